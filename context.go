package sessionguard

import "context"

type contextKey uint8

const (
	clientIPKey contextKey = iota
	userAgentKey
)

// WithClientIP attaches the caller's IP address to ctx. The Engine stamps it
// on refresh records and audit entries and keys the optional login
// throttle on it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	return contextString(ctx, clientIPKey)
}

func userAgentFromContext(ctx context.Context) string {
	return contextString(ctx, userAgentKey)
}

func contextString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
