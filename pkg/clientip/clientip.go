// Package clientip identifies the caller of an HTTP request for rate limiting
// and audit logging.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when the request carries no usable address.
const Unknown = "unknown"

// RealClientIP returns the client IP from r.RemoteAddr. Proxy headers are
// ignored; the service is reached directly, so they are caller-controlled.
func RealClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	if addr == "" {
		return Unknown
	}
	return addr
}
