package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/formfling/config"
	"github.com/dalemusser/formfling/health"
	"github.com/dalemusser/formfling/mailer"
	"github.com/dalemusser/formfling/recaptcha"
	"github.com/dalemusser/formfling/render"
	"go.uber.org/zap"
)

type recordingSender struct{ sent []mailer.Envelope }

func (s *recordingSender) Send(_ context.Context, env mailer.Envelope) mailer.Result {
	s.sent = append(s.sent, env)
	return mailer.Result{}
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:         "formfling-api",
		AllowedOrigins:      []string{"https://example.com"},
		MaxRequestBodyBytes: 1 << 20,
	}
}

func buildHandler(t *testing.T, cfg *config.Config, deps Deps) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	if deps.Renderer == nil {
		deps.Renderer = render.New(nil, "", logger)
	}
	if deps.Captcha == nil {
		deps.Captcha = recaptcha.New(cfg.Recaptcha, nil)
	}
	h, err := BuildHandler(cfg, deps, logger)
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}
	return h
}

func TestBuildHandler_Contact(t *testing.T) {
	sender := &recordingSender{}
	h := buildHandler(t, testConfig(), Deps{Sender: sender})

	form := url.Values{
		"name":    {"Jo"},
		"email":   {"jo@example.com"},
		"subject": {"Hi"},
		"message": {"Hello there friend"},
	}
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestBuildHandler_Health(t *testing.T) {
	tests := []struct {
		name     string
		check    health.MailCheck
		wantCode int
		wantMail string
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, health.MailAvailable},
		{"unhealthy", func(context.Context) error { return errors.New("no host") }, http.StatusServiceUnavailable, health.MailError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := buildHandler(t, testConfig(), Deps{Sender: &recordingSender{}, MailCheck: tc.check})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "https://anywhere.example")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
			}
			var st health.Status
			if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if st.Mail != tc.wantMail || st.Service != "formfling-api" {
				t.Errorf("status = %+v", st)
			}
		})
	}
}

func TestBuildHandler_OptionalRoutes(t *testing.T) {
	cfg := testConfig()
	h := buildHandler(t, cfg, Deps{Sender: &recordingSender{}})

	for _, path := range []string{"/metrics", "/test", "/nope"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /version = %d", rec.Code)
	}
}

func TestBuildDeps_TestForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test-form.html")
	if err := os.WriteFile(path, []byte(`<form data-sitekey="{{.SiteKey}}"></form>`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.SMTP = config.SMTPConfig{Host: "localhost", Port: 25, TLSPolicy: "none"}
	cfg.EnableTestForm = true
	cfg.TestFormTemplate = path
	cfg.Recaptcha.SiteKey = "site-key"

	deps, err := BuildDeps(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildDeps: %v", err)
	}
	if deps.TestForm == nil {
		t.Fatal("TestForm not built")
	}

	h := buildHandler(t, cfg, deps)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `data-sitekey="site-key"`) {
		t.Errorf("GET /test = %d %q", rec.Code, rec.Body.String())
	}

	cfg.TestFormTemplate = filepath.Join(dir, "missing.html")
	if _, err := BuildDeps(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Error("missing test form template accepted")
	}
}
