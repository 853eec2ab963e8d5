// middleware/security.go
package middleware

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/formfling/config"
)

// SecurityHeadersOptions selects the security headers to send. An empty
// string (or zero HSTSMaxAge) omits the header.
type SecurityHeadersOptions struct {
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	HSTSMaxAge            int // seconds; sent only on TLS requests
	HSTSIncludeSubDomains bool
	ContentSecurityPolicy string
}

// DefaultSecurityHeadersOptions suits a JSON API that also serves one
// small HTML page (the test form).
func DefaultSecurityHeadersOptions() SecurityHeadersOptions {
	return SecurityHeadersOptions{
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
	}
}

// SecurityHeaders returns middleware that sets the headers selected by opts.
func SecurityHeaders(opts SecurityHeadersOptions) func(next http.Handler) http.Handler {
	var hsts string
	if opts.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(opts.HSTSMaxAge)
		if opts.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.XFrameOptions != "" {
				h.Set("X-Frame-Options", opts.XFrameOptions)
			}
			if opts.XContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", opts.XContentTypeOptions)
			}
			if opts.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", opts.ReferrerPolicy)
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			if opts.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", opts.ContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersFromConfig uses the defaults, dropping HSTS unless the
// service itself terminates TLS.
func SecurityHeadersFromConfig(cfg *config.Config) func(next http.Handler) http.Handler {
	opts := DefaultSecurityHeadersOptions()
	if cfg == nil || !cfg.HTTP.UseHTTPS {
		opts.HSTSMaxAge = 0
	}
	return SecurityHeaders(opts)
}
