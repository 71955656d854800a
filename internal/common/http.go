package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address from r.RemoteAddr. Proxy headers are
// not read here: chi's middleware.RealIP, mounted ahead of every handler,
// has already rewritten RemoteAddr from True-Client-IP, X-Real-IP or
// X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
