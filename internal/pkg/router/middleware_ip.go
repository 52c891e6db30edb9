package router

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/shandysiswandi/gomfa/internal/pkg/config"
)

// middlewareIP rewrites RemoteAddr to the client address. Forwarding headers
// are honored only with app.server.trust_proxy, since clients can forge them.
func middlewareIP(cfg config.Config) Middleware {
	trustProxy := cfg != nil && cfg.GetBool("app.server.trust_proxy")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := clientIP(r, trustProxy); ip.IsValid() {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) netip.Addr {
	if trustProxy {
		for _, candidate := range []string{
			r.Header.Get("True-Client-IP"),
			r.Header.Get("X-Real-IP"),
			firstForwarded(r.Header.Get("X-Forwarded-For")),
		} {
			if ip, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return ip
}

func firstForwarded(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return first
}
