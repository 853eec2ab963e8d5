// Package recaptcha verifies reCAPTCHA v3 tokens against Google's
// siteverify endpoint.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/formfling/config"
)

// ErrVerificationFailed is the client-facing failure. Every error returned
// by Verify wraps it; the wrapped detail is for the server log only.
var ErrVerificationFailed = errors.New("reCAPTCHA verification failed")

// DefaultTimeout bounds one siteverify round trip.
const DefaultTimeout = 10 * time.Second

// Response is the siteverify reply.
type Response struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks tokens. A Verifier built from a config without a secret
// accepts everything.
type Verifier struct {
	cfg    config.RecaptchaConfig
	client *http.Client
}

// New returns a Verifier. A nil client gets one with DefaultTimeout.
func New(cfg config.RecaptchaConfig, client *http.Client) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Verifier{cfg: cfg, client: client}
}

// Enabled reports whether tokens are checked.
func (v *Verifier) Enabled() bool {
	return v != nil && v.cfg.Enabled()
}

// Verify checks token: siteverify must report success, the score must reach
// the configured minimum and, when an action is configured, it must match.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrVerificationFailed)
	}

	form := url.Values{
		"secret":   {v.cfg.SecretKey},
		"response": {token},
	}
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrVerificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: siteverify returned %s", ErrVerificationFailed, resp.Status)
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrVerificationFailed, err)
	}

	if !out.Success {
		if len(out.ErrorCodes) > 0 {
			return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(out.ErrorCodes, ", "))
		}
		return ErrVerificationFailed
	}
	if out.Score < v.cfg.MinScore {
		return fmt.Errorf("%w: score too low: %s (minimum: %s)", ErrVerificationFailed,
			formatScore(out.Score), formatScore(v.cfg.MinScore))
	}
	if v.cfg.Action != "" && out.Action != v.cfg.Action {
		return fmt.Errorf("%w: action mismatch: expected %s, got %s", ErrVerificationFailed, v.cfg.Action, out.Action)
	}
	return nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}
