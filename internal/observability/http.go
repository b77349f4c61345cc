package observability

import (
	"net"
	"net/http"
	"strings"
)

// IPFromRequest resolves the client address, preferring the first
// X-Forwarded-For hop when a proxy sits in front of the hub.
func IPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
