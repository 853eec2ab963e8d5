package middleware

import (
	"net/http"

	"github.com/dalemusser/formfling/httputil"
	"go.uber.org/zap"
)

// NotFoundHandler logs a 404 and answers with the JSON error envelope.
// Pass it to chi.Router.NotFound.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Info("not_found",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.WriteError(w, http.StatusNotFound, "Not found")
	}
}

// MethodNotAllowedHandler logs a 405 and answers with the JSON error
// envelope. Pass it to chi.Router.MethodNotAllowed.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Info("method_not_allowed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
