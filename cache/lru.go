package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUOptions configures an in-process cache.
type LRUOptions struct {
	Size int
	// MaxTTL bounds every entry regardless of the ttl passed on write.
	MaxTTL   time.Duration
	AuditCap int
	// Now overrides the clock used for per-entry deadlines.
	Now func() time.Time
}

type lruEntry[V any] struct {
	value    V
	deadline time.Time
}

// LRU is a size-bounded in-process cache for single-node deployments.
type LRU struct {
	users    *expirable.LRU[string, lruEntry[account.Projection]]
	sessions *expirable.LRU[string, lruEntry[account.SessionEntry]]
	now      func() time.Time
	auditCap int

	mu    sync.Mutex
	audit *expirable.LRU[string, []account.AuditEntry]
}

// NewLRU returns an in-process cache.
func NewLRU(opts LRUOptions) *LRU {
	if opts.Size <= 0 {
		opts.Size = 10_000
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = time.Hour
	}
	if opts.AuditCap <= 0 {
		opts.AuditCap = defaultAuditCap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LRU{
		users:    expirable.NewLRU[string, lruEntry[account.Projection]](opts.Size, nil, opts.MaxTTL),
		sessions: expirable.NewLRU[string, lruEntry[account.SessionEntry]](opts.Size, nil, opts.MaxTTL),
		audit:    expirable.NewLRU[string, []account.AuditEntry](opts.Size, nil, defaultAuditTTL),
		now:      opts.Now,
		auditCap: opts.AuditCap,
	}
}

func (c *LRU) GetUser(_ context.Context, key string) (*account.Projection, bool) {
	e, ok := c.users.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.deadline) {
		c.users.Remove(key)
		return nil, false
	}
	p := e.value
	return &p, true
}

func (c *LRU) SetUser(_ context.Context, key string, p account.Projection, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.users.Add(key, lruEntry[account.Projection]{value: p, deadline: c.now().Add(ttl)})
}

func (c *LRU) SetSession(_ context.Context, key string, s account.SessionEntry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.sessions.Add(key, lruEntry[account.SessionEntry]{value: s, deadline: c.now().Add(ttl)})
}

// Session returns the cached session entry under key.
func (c *LRU) Session(_ context.Context, key string) (*account.SessionEntry, bool) {
	e, ok := c.sessions.Get(key)
	if !ok || !c.now().Before(e.deadline) {
		return nil, false
	}
	s := e.value
	return &s, true
}

// Invalidate removes key from both the projection and session spaces.
func (c *LRU) Invalidate(_ context.Context, key string) {
	c.users.Remove(key)
	c.sessions.Remove(key)
}

func (c *LRU) AppendAuditEntry(_ context.Context, userID string, entry account.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, _ := c.audit.Get(userID)
	next := make([]account.AuditEntry, 0, min(len(prev)+1, c.auditCap))
	next = append(next, entry)
	for _, e := range prev {
		if len(next) == c.auditCap {
			break
		}
		next = append(next, e)
	}
	c.audit.Add(userID, next)
}

// RecentAudit returns up to limit mirrored entries for userID, newest first.
func (c *LRU) RecentAudit(_ context.Context, userID string, limit int) ([]account.AuditEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, _ := c.audit.Get(userID)
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	return append([]account.AuditEntry(nil), entries[:limit]...), nil
}
