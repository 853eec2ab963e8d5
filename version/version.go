// version/version.go
package version

import (
	"net/http"
	"runtime"

	"github.com/dalemusser/formfling/httputil"
	"github.com/go-chi/chi/v5"
)

// These variables are meant to be set at build time using ldflags:
//
//	go build -ldflags "-X github.com/dalemusser/formfling/version.Version=1.0.1 \
//	                   -X github.com/dalemusser/formfling/version.Commit=abc123 \
//	                   -X github.com/dalemusser/formfling/version.BuildTime=2024-01-15T10:30:00Z"
var (
	// Version is reported by /health and /version.
	Version = "1.0.0"

	// Commit is the git commit SHA at build time.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built (RFC3339 format).
	BuildTime = "unknown"
)

// Info contains version and build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current version info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// Handler responds with Get() as JSON.
func Handler() http.Handler {
	info := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	})
}

// Mount attaches GET /version.
func Mount(r chi.Router) {
	r.Method(http.MethodGet, "/version", Handler())
}

// String returns a human-readable version string, e.g.
// "1.0.0 (abc123, built 2024-01-15T10:30:00Z)".
func String() string {
	if Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ", built " + BuildTime + ")"
}
