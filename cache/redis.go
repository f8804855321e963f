package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "sg"
	defaultAuditCap    = 100
	defaultAuditTTL    = 30 * 24 * time.Hour
)

const appendAuditScript = `
redis.call("LPUSH", KEYS[1], ARGV[1])
redis.call("LTRIM", KEYS[1], 0, tonumber(ARGV[2]) - 1)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return redis.call("LLEN", KEYS[1])
`

var appendAuditLua = redis.NewScript(appendAuditScript)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	// Prefix namespaces every key. Defaults to "sg".
	Prefix string
	// AuditCap bounds the per-user recent audit list. Defaults to 100.
	AuditCap int
	// AuditTTL is the idle lifetime of a recent audit list. Defaults to 30 days.
	AuditTTL time.Duration
	Logger   *slog.Logger
}

// Redis caches projections and session entries as JSON values and mirrors
// audit entries into a capped list per user.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	auditCap int
	auditTTL time.Duration
	logger   *slog.Logger
}

// NewRedis returns a Redis-backed cache.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	if opts.AuditCap <= 0 {
		opts.AuditCap = defaultAuditCap
	}
	if opts.AuditTTL <= 0 {
		opts.AuditTTL = defaultAuditTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Redis{
		client:   client,
		prefix:   opts.Prefix,
		auditCap: opts.AuditCap,
		auditTTL: opts.AuditTTL,
		logger:   opts.Logger,
	}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

func (r *Redis) auditKey(userID string) string {
	return r.prefix + ":audit:" + userID
}

// GetUser returns the cached projection under key.
func (r *Redis) GetUser(ctx context.Context, key string) (*account.Projection, bool) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "sessionguard: cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var p account.Projection
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.WarnContext(ctx, "sessionguard: cache entry corrupt", "key", key, "error", err)
		r.Invalidate(ctx, key)
		return nil, false
	}
	return &p, true
}

// SetUser stores p under key for ttl.
func (r *Redis) SetUser(ctx context.Context, key string, p account.Projection, ttl time.Duration) {
	r.set(ctx, key, p, ttl)
}

// SetSession stores s under key for ttl.
func (r *Redis) SetSession(ctx context.Context, key string, s account.SessionEntry, ttl time.Duration) {
	r.set(ctx, key, s, ttl)
}

// Session returns the cached session entry under key.
func (r *Redis) Session(ctx context.Context, key string) (*account.SessionEntry, bool) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "sessionguard: cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var s account.SessionEntry
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// Invalidate deletes key.
func (r *Redis) Invalidate(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.WarnContext(ctx, "sessionguard: cache invalidate failed", "key", key, "error", err)
	}
}

// AppendAuditEntry pushes entry onto the user's recent audit list.
func (r *Redis) AppendAuditEntry(ctx context.Context, userID string, entry account.AuditEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	err = appendAuditLua.Run(ctx, r.client,
		[]string{r.auditKey(userID)},
		raw,
		strconv.Itoa(r.auditCap),
		strconv.FormatInt(r.auditTTL.Milliseconds(), 10),
	).Err()
	if err != nil {
		r.logger.WarnContext(ctx, "sessionguard: cache audit append failed", "user_id", userID, "error", err)
	}
}

// RecentAudit returns up to limit mirrored entries for userID, newest first.
func (r *Redis) RecentAudit(ctx context.Context, userID string, limit int) ([]account.AuditEntry, error) {
	if limit <= 0 || limit > r.auditCap {
		limit = r.auditCap
	}
	rows, err := r.client.LRange(ctx, r.auditKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]account.AuditEntry, 0, len(rows))
	for _, row := range rows {
		var e account.AuditEntry
		if err := json.Unmarshal([]byte(row), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "sessionguard: cache write failed", "key", key, "error", err)
	}
}
