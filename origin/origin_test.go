package origin

import (
	"net/http"
	"testing"
)

func TestCheck(t *testing.T) {
	allowed := []string{"https://example.com", "https://shop.example.org:8443"}

	tests := []struct {
		name    string
		allowed []string
		origin  string
		referer string
		want    Decision
	}{
		{"wildcard echoes origin", []string{"*"}, "https://anything.test", "", Decision{true, "https://anything.test"}},
		{"wildcard without origin", []string{"*"}, "", "", Decision{true, "*"}},
		{"wildcard ignores referer", []string{"*"}, "", "https://x.test/page", Decision{true, "*"}},
		{"exact origin", allowed, "https://example.com", "", Decision{true, "https://example.com"}},
		{"origin scheme mismatch", allowed, "http://example.com", "", Decision{}},
		{"referer host fallback", allowed, "", "https://example.com/contact?x=1", Decision{true, "https://example.com"}},
		{"referer host ignores port", allowed, "", "http://shop.example.org/form", Decision{true, "https://shop.example.org:8443"}},
		{"referer rescues unknown origin", allowed, "https://evil.test", "https://example.com/", Decision{true, "https://example.com"}},
		{"substring host is not a match", allowed, "https://example.com.evil.test", "https://example.com.evil.test/", Decision{}},
		{"suffix host is not a match", allowed, "", "https://notexample.com/", Decision{}},
		{"no headers", allowed, "", "", Decision{}},
		{"referer without host", allowed, "", "/relative/path", Decision{}},
		{"empty list denies", nil, "https://example.com", "https://example.com/", Decision{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.origin, tt.referer, tt.allowed)
			if got != tt.want {
				t.Errorf("Validate(%q, %q) = %+v, want %+v", tt.origin, tt.referer, got, tt.want)
			}
		})
	}
}

func TestHostlessEntriesNeverMatchReferer(t *testing.T) {
	// "example.com" has no scheme, so it has no host component.
	p := NewPolicy([]string{"example.com"})
	if d := p.Check("", "https://example.com/"); d.Allowed {
		t.Errorf("hostless entry matched referer: %+v", d)
	}
	if d := p.Check("example.com", ""); !d.Allowed {
		t.Errorf("exact origin match should still work: %+v", d)
	}
}

func TestDecisionHeaders(t *testing.T) {
	h := http.Header{}
	Decision{Allowed: true, Origin: "https://example.com"}.ApplyPreflight(h)

	want := map[string]string{
		"Access-Control-Allow-Origin":  "https://example.com",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Origin, Referer",
		"Access-Control-Max-Age":       "86400",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	denied := http.Header{}
	Decision{}.ApplyPreflight(denied)
	if len(denied) != 0 {
		t.Errorf("denied decision set headers: %v", denied)
	}

	simple := http.Header{}
	Decision{Allowed: true, Origin: "*"}.Apply(simple)
	if simple.Get("Access-Control-Allow-Methods") != "" {
		t.Error("Apply should not advertise preflight headers")
	}
	if simple.Get("Vary") != "" {
		t.Error("wildcard origin should not add Vary")
	}
}
