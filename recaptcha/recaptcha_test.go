package recaptcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/formfling/config"
)

type seenRequest struct {
	method string
	form   url.Values
}

func siteverify(t *testing.T, status int, body string) (*httptest.Server, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		seen.method = r.Method
		seen.form = r.PostForm
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func cfgFor(url string) config.RecaptchaConfig {
	return config.RecaptchaConfig{
		SecretKey: "secret",
		MinScore:  0.5,
		Action:    "submit",
		VerifyURL: url,
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		token   string
		wantErr string
	}{
		{"accepted", 200, `{"success":true,"score":0.9,"action":"submit"}`, "tok", ""},
		{"exact minimum", 200, `{"success":true,"score":0.5,"action":"submit"}`, "tok", ""},
		{"missing token", 200, `{"success":true}`, "  ", "token is required"},
		{"not successful", 200, `{"success":false,"error-codes":["invalid-input-response"]}`, "tok", "invalid-input-response"},
		{"low score", 200, `{"success":true,"score":0.1,"action":"submit"}`, "tok", "score too low: 0.10 (minimum: 0.50)"},
		{"wrong action", 200, `{"success":true,"score":0.9,"action":"login"}`, "tok", "action mismatch"},
		{"bad json", 200, `not json`, "tok", "decode response"},
		{"server error", 500, ``, "tok", "siteverify returned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := siteverify(t, tt.status, tt.body)
			err := New(cfgFor(srv.URL), srv.Client()).Verify(context.Background(), tt.token, "203.0.113.1")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrVerificationFailed) {
				t.Fatalf("err = %v, want ErrVerificationFailed", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_SendsSecretTokenAndIP(t *testing.T) {
	srv, seen := siteverify(t, 200, `{"success":true,"score":1,"action":"submit"}`)
	if err := New(cfgFor(srv.URL), srv.Client()).Verify(context.Background(), "tok", "203.0.113.1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if seen.method != http.MethodPost {
		t.Errorf("method = %s", seen.method)
	}
	if got := seen.form.Get("secret"); got != "secret" {
		t.Errorf("secret = %q", got)
	}
	if got := seen.form.Get("response"); got != "tok" {
		t.Errorf("response = %q", got)
	}
	if got := seen.form.Get("remoteip"); got != "203.0.113.1" {
		t.Errorf("remoteip = %q", got)
	}
}

func TestVerify_AnyActionWhenUnset(t *testing.T) {
	srv, _ := siteverify(t, 200, `{"success":true,"score":0.7,"action":"whatever"}`)
	cfg := cfgFor(srv.URL)
	cfg.Action = ""
	if err := New(cfg, srv.Client()).Verify(context.Background(), "tok", ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_DisabledAcceptsEverything(t *testing.T) {
	v := New(config.RecaptchaConfig{}, nil)
	if v.Enabled() {
		t.Fatal("verifier without secret reports enabled")
	}
	if err := v.Verify(context.Background(), "", ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	var nilV *Verifier
	if nilV.Enabled() {
		t.Fatal("nil verifier reports enabled")
	}
}
