// metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Submission outcomes, used as the "outcome" label of formfling_submissions_total.
const (
	OutcomeSent    = "sent"    // relay accepted the message
	OutcomeFailed  = "failed"  // relay or transport error
	OutcomeInvalid = "invalid" // missing fields, validation or captcha failure
	OutcomeDenied  = "denied"  // origin rejected
)

// reqDuration is a histogram of HTTP request durations in seconds, labeled
// by route pattern, method and status code.
var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5},
	},
	[]string{"path", "method", "status"},
)

var submissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "formfling_submissions_total",
		Help: "Contact form submissions by outcome.",
	},
	[]string{"outcome"},
)

// RegisterDefault registers the Go runtime and process collectors, the HTTP
// histogram and the submissions counter with the default registry. Calling
// it twice is harmless.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, "HTTP request histogram", reqDuration)
	mustRegister(logger, "submissions counter", submissions)
}

// mustRegister ignores AlreadyRegisteredError and treats anything else as
// fatal: logged via logger.Fatal, or a panic when logger is nil.
func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	err := prometheus.Register(c)
	if err == nil {
		return
	}
	if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return
	}
	if logger != nil {
		logger.Fatal("failed to register "+name, zap.Error(err))
	}
	panic("metrics: failed to register " + name + ": " + err.Error())
}

// RecordSubmission counts one submission with the given outcome.
func RecordSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// SubmissionCount returns the current counter value for outcome.
func SubmissionCount(outcome string) float64 {
	return counterValue(submissions.WithLabelValues(outcome))
}

// maxPathLabelLength caps the path label.
const maxPathLabelLength = 256

// HTTPMetrics records request duration into http_request_duration_seconds,
// labelled by chi route pattern so that paths cannot explode cardinality.
// Place it after logging.Recoverer so panics are seen as 500.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}

		reqDuration.WithLabelValues(
			routeLabel(r),
			r.Method,
			strconv.Itoa(status),
		).Observe(time.Since(start).Seconds())
	})
}

// routeLabel is the chi route pattern, or the raw path for unmatched routes,
// truncated to maxPathLabelLength.
func routeLabel(r *http.Request) string {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	if len(path) > maxPathLabelLength {
		path = truncateUTF8(path, maxPathLabelLength-3) + "..."
	}
	return path
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// truncateUTF8 truncates s to at most maxBytes bytes on a rune boundary.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
