// render/metadata.go
package render

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TimestampLayout formats the submission time shown in the email.
const TimestampLayout = "3:04 PM - 2 January 2006"

// DefaultWebsiteName is used when the request carries no usable Referer.
const DefaultWebsiteName = "your website"

// Metadata describes the request a submission arrived on.
type Metadata struct {
	Time      time.Time
	ClientIP  string
	UserAgent string
	Origin    string
	Referer   string
}

// MetadataFromRequest collects metadata from r. Missing values get the
// placeholders "unknown" (IP, user agent) and "N/A" (origin, referer).
func MetadataFromRequest(r *http.Request, now time.Time) Metadata {
	return Metadata{
		Time:      now,
		ClientIP:  ClientIP(r),
		UserAgent: orDefault(r.UserAgent(), "unknown"),
		Origin:    orDefault(r.Header.Get("Origin"), "N/A"),
		Referer:   orDefault(r.Header.Get("Referer"), "N/A"),
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address, else "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// Timestamp is Time in UTC, formatted with TimestampLayout.
func (m Metadata) Timestamp() string {
	return m.Time.UTC().Format(TimestampLayout)
}

// WebsiteName is the host of the Referer, or DefaultWebsiteName.
func (m Metadata) WebsiteName() string {
	if u, err := url.Parse(m.Referer); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return DefaultWebsiteName
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
