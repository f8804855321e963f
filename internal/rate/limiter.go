package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when an IP has used up its login budget.
	ErrRateLimited = errors.New("login throttle exceeded")
	// ErrRedisUnavailable wraps any Redis failure.
	ErrRedisUnavailable = errors.New("throttle backend unavailable")
)

// hitScript increments a window counter and starts the window on its first
// hit, in one round trip.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Config tunes the per-IP login throttle.
type Config struct {
	Prefix           string
	MaxLoginAttempts int
	Window           time.Duration
}

// Limiter counts failed logins per client IP in fixed Redis windows. It sits
// in front of the per-account lockout and bounds one source spraying many
// accounts.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	max    int64
	window time.Duration
}

// New returns a Limiter on client. Prefix defaults to "sg".
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "sg"
	}
	return &Limiter{
		redis:  client,
		prefix: cfg.Prefix,
		max:    int64(cfg.MaxLoginAttempts),
		window: cfg.Window,
	}
}

// CheckLogin returns ErrRateLimited once ip has reached its budget for the
// current window. An empty ip is never throttled.
func (l *Limiter) CheckLogin(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	n, err := l.count(ctx, ip)
	if err != nil {
		return err
	}
	if n >= l.max {
		return ErrRateLimited
	}
	return nil
}

// IncrementLogin records one failed login from ip.
func (l *Limiter) IncrementLogin(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	err := hitScript.Run(ctx, l.redis, []string{l.key(ip)}, l.window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures recorded for ip in the current window.
func (l *Limiter) Attempts(ctx context.Context, ip string) (int, error) {
	n, err := l.count(ctx, ip)
	return int(max(n, 0)), err
}

func (l *Limiter) count(ctx context.Context, ip string) (int64, error) {
	n, err := l.redis.Get(ctx, l.key(ip)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (l *Limiter) key(ip string) string {
	return l.prefix + ":ali:" + ip
}
