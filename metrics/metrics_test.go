package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRecordSubmission(t *testing.T) {
	before := SubmissionCount(OutcomeDenied)
	RecordSubmission(OutcomeDenied)
	RecordSubmission(OutcomeDenied)
	if got := SubmissionCount(OutcomeDenied) - before; got != 2 {
		t.Errorf("denied delta = %v, want 2", got)
	}
}

func TestRouteLabel(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Post("/contact", func(w http.ResponseWriter, r *http.Request) {
		got = routeLabel(r)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/contact", nil))
	if got != "/contact" {
		t.Errorf("routeLabel = %q", got)
	}

	long := httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("é", 300), nil)
	if l := routeLabel(long); len(l) > maxPathLabelLength || !strings.HasSuffix(l, "...") {
		t.Errorf("long label not truncated: %d bytes", len(l))
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestHTTPMetrics_PassesThrough(t *testing.T) {
	h := HTTPMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
