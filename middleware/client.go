package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/sessionguard"
)

// ClientMetadata copies the remote address and User-Agent into the request
// context. Put a trusted proxy-header middleware such as chi's RealIP in
// front of it when running behind a load balancer.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ip := remoteIP(r.RemoteAddr); ip != "" {
			ctx = sessionguard.WithClientIP(ctx, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = sessionguard.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
