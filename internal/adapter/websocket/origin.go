package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the upgrader. Empty origins (non-browser
// clients) are allowed, as is any origin in allowed. In development localhost origins are
// allowed as well. A "*" entry disables the check.
func NewCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, raw := range allowed {
		if strings.TrimSpace(raw) == "*" {
			wildcard = true
			continue
		}
		if o := extractOrigin(raw); o != "" {
			origins[o] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}

		if _, ok := origins[strings.ToLower(origin)]; ok {
			return true
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("websocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
