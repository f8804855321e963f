package sessionguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testEmail    = "a@x.com"
	testUsername = "alice1"
	testPassword = "Passw0rd!"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	fail  bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: map[string][]string{}}
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = append(n.codes[email], code)
	if n.fail {
		return errors.New("smtp: connection refused")
	}
	return nil
}

func (n *recordingNotifier) setFail(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = fail
}

func (n *recordingNotifier) last(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		t.Fatalf("no verification code sent to %s", email)
	}
	return codes[len(codes)-1]
}

func (n *recordingNotifier) sent(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes[email])
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type harness struct {
	engine   *Engine
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
	cache    Cache
}

type cacheVariant struct {
	name string
	new  func(t *testing.T, clock *fakeClock) Cache
}

func cacheVariants() []cacheVariant {
	return []cacheVariant{
		{name: "noop", new: func(*testing.T, *fakeClock) Cache { return cache.NoOp{} }},
		{name: "lru", new: func(_ *testing.T, clock *fakeClock) Cache {
			return cache.NewLRU(cache.LRUOptions{Size: 128, Now: clock.Now})
		}},
		{name: "redis", new: func(t *testing.T, _ *fakeClock) Cache {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return cache.NewRedis(rdb, cache.RedisOptions{Prefix: "sgtest"})
		}},
	}
}

func newHarness(t *testing.T, cfg Config, newCache func(*testing.T, *fakeClock) Cache) *harness {
	t.Helper()

	h := &harness{
		store:    memory.New(),
		clock:    newFakeClock(),
		notifier: newRecordingNotifier(),
		cache:    cache.NoOp{},
	}
	if newCache != nil {
		h.cache = newCache(t, h.clock)
	}

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(h.store).
		WithCache(h.cache).
		WithNotifier(h.notifier).
		WithClock(h.clock).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

// forEachCache runs fn once per cache implementation. Every engine
// property must hold identically across them.
func forEachCache(t *testing.T, cfg Config, fn func(t *testing.T, h *harness)) {
	t.Helper()
	for _, v := range cacheVariants() {
		v := v
		t.Run(v.name, func(t *testing.T) {
			fn(t, newHarness(t, cfg, v.new))
		})
	}
}

// registerVerified registers and verifies an account and returns the
// session minted by verification.
func (h *harness) registerVerified(t *testing.T, email, password string) TokenPair {
	t.Helper()
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, email, testUsername, password); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	pair, err := h.engine.VerifyEmail(ctx, email, h.notifier.last(t, email))
	if err != nil {
		t.Fatalf("verify %s: %v", email, err)
	}
	return pair
}

func (h *harness) user(t *testing.T, email string) *User {
	t.Helper()
	u, err := h.store.FindByEmail(context.Background(), email, FieldsAll)
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	if u == nil {
		t.Fatalf("user %s not found", email)
	}
	return u
}

func countActions(u *User, action AuditAction, success bool) int {
	n := 0
	for _, e := range u.AuditLog {
		if e.Action == action && e.Success == success {
			n++
		}
	}
	return n
}
