// health/health.go
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/formfling/httputil"
	"github.com/dalemusser/formfling/version"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Overall and dependency states reported in Status.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	MailAvailable = "available"
	MailError     = "error"
)

// Status is the JSON body of GET /health. The mail library state keeps the
// "phpmailer" key that existing monitors already parse.
type Status struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Mail      string `json:"phpmailer"`
}

// Healthy reports whether every dependency is usable.
func (s Status) Healthy() bool { return s.Status == StatusHealthy }

// MailCheck tries to construct the mail client. It must not connect.
type MailCheck func(ctx context.Context) error

// Reporter builds Status values.
type Reporter struct {
	Service string
	Mail    MailCheck
	Now     func() time.Time
	Logger  *zap.Logger
}

// Check runs the mail check and returns the resulting Status.
func (rp Reporter) Check(ctx context.Context) Status {
	now := time.Now
	if rp.Now != nil {
		now = rp.Now
	}
	service := rp.Service
	if service == "" {
		service = "formfling-api"
	}

	st := Status{
		Status:    StatusHealthy,
		Timestamp: now().UTC().Format(time.RFC3339),
		Service:   service,
		Version:   version.Version,
		Mail:      MailAvailable,
	}
	if rp.Mail != nil {
		if err := rp.Mail(ctx); err != nil {
			st.Status = StatusUnhealthy
			st.Mail = MailError
			if rp.Logger != nil {
				rp.Logger.Warn("health check failed", zap.String("check", "mail"), zap.Error(err))
			}
		}
	}
	return st
}

// Handler responds with Check as JSON: 200 when healthy, 503 otherwise.
func (rp Reporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := rp.Check(r.Context())
		code := http.StatusOK
		if !st.Healthy() {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, st)
	})
}

// Mount attaches GET /health to r.
func (rp Reporter) Mount(r chi.Router) {
	r.Method(http.MethodGet, "/health", rp.Handler())
}
