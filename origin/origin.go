// Package origin decides whether a cross-origin contact submission may
// proceed, based on its Origin header or, failing that, its Referer host.
package origin

import (
	"net/http"
	"net/url"
	"strings"
)

// Wildcard accepts every origin.
const Wildcard = "*"

// Headers advertised on an accepted preflight request.
const (
	AllowMethods = "POST, OPTIONS"
	AllowHeaders = "Content-Type, Origin, Referer"
	MaxAge       = "86400"
)

// Decision is the outcome of an origin check. Origin is the value to echo in
// Access-Control-Allow-Origin when Allowed is true.
type Decision struct {
	Allowed bool
	Origin  string
}

// Policy is a parsed allow-list. The zero value denies everything.
type Policy struct {
	any     bool
	origins []string
	hosts   []string // host of origins[i], "" when it has none
}

// NewPolicy builds a Policy from the configured allowed origins. A list
// consisting of the single entry "*" accepts every origin.
func NewPolicy(allowed []string) Policy {
	if len(allowed) == 1 && allowed[0] == Wildcard {
		return Policy{any: true}
	}
	p := Policy{
		origins: make([]string, 0, len(allowed)),
		hosts:   make([]string, 0, len(allowed)),
	}
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		p.origins = append(p.origins, o)
		p.hosts = append(p.hosts, hostOf(o))
	}
	return p
}

// Validate is NewPolicy(allowed).Check(requestOrigin, requestReferer).
func Validate(requestOrigin, requestReferer string, allowed []string) Decision {
	return NewPolicy(allowed).Check(requestOrigin, requestReferer)
}

// Check applies the policy:
//   - wildcard: accept and echo the request origin, or "*" when absent;
//   - an Origin exactly equal to an allowed entry is accepted and echoed;
//   - otherwise the Referer host is compared with the host of each allowed
//     entry, and the matching entry is echoed.
func (p Policy) Check(requestOrigin, requestReferer string) Decision {
	if p.any {
		if requestOrigin == "" {
			return Decision{Allowed: true, Origin: Wildcard}
		}
		return Decision{Allowed: true, Origin: requestOrigin}
	}

	if requestOrigin != "" {
		for _, o := range p.origins {
			if requestOrigin == o {
				return Decision{Allowed: true, Origin: o}
			}
		}
	}

	if requestReferer != "" {
		refHost := hostOf(requestReferer)
		if refHost == "" {
			return Decision{}
		}
		for i, h := range p.hosts {
			if h != "" && strings.EqualFold(h, refHost) {
				return Decision{Allowed: true, Origin: p.origins[i]}
			}
		}
	}

	return Decision{}
}

// Apply sets Access-Control-Allow-Origin for an accepted decision.
func (d Decision) Apply(h http.Header) {
	if !d.Allowed {
		return
	}
	h.Set("Access-Control-Allow-Origin", d.Origin)
	if d.Origin != Wildcard {
		h.Add("Vary", "Origin")
	}
}

// ApplyPreflight additionally advertises methods, headers and the preflight
// cache lifetime.
func (d Decision) ApplyPreflight(h http.Header) {
	if !d.Allowed {
		return
	}
	d.Apply(h)
	h.Set("Access-Control-Allow-Methods", AllowMethods)
	h.Set("Access-Control-Allow-Headers", AllowHeaders)
	h.Set("Access-Control-Max-Age", MaxAge)
}

// hostOf returns the host (without port) of an absolute URL, or "".
func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
