// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// PublicCORS lets any origin read a GET endpoint such as /health. The
// contact endpoint does not use it: its origin policy lives in package origin.
func PublicCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
