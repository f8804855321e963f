package sessionguard

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionguard/cache"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/limiters"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/redis/go-redis/v9"
)

// timingSecret is hashed once at Build to produce the digest used by
// equalized failure paths.
const timingSecret = "sessionguard/timing"

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config   Config
	store    UserStore
	cache    Cache
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
	redis    redis.UniversalClient

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the authoritative user store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithCache installs a read cache. Without one the engine runs with
// cache.NoOp and behaves identically.
func (b *Builder) WithCache(c Cache) *Builder {
	b.cache = c
	return b
}

// WithNotifier sets the verification code sender. Required.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithClock overrides the time source. Defaults to SystemClock.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithRedis supplies the Redis client backing the per-IP login throttle.
// It is only required when Security.EnableIPThrottle is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination of the async audit stream. The stream
// itself is toggled by Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if cfg.Security.EnableIPThrottle && b.redis == nil {
		return nil, errors.New("Security EnableIPThrottle requires redis client")
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		cache:    b.cache,
		notifier: b.notifier,
		clock:    b.clock,
		logger:   b.logger,
		lockout: limiters.Lockout{
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
		},
		cooldown: limiters.ResendCooldown{
			Interval: cfg.EmailVerification.ResendCooldown,
		},
	}
	if engine.cache == nil {
		engine.cache = cache.NoOp{}
	}
	if engine.clock == nil {
		engine.clock = SystemClock{}
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}

	if cfg.Security.EnableIPThrottle {
		engine.ipLimiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Security.RedisPrefix,
			MaxLoginAttempts: cfg.Security.MaxLoginAttemptsPerIP,
			Window:           cfg.Security.IPThrottleWindow,
		})
	}

	ph, err := password.NewArgon2(cfg.Password.argon2())
	if err != nil {
		return nil, err
	}
	engine.hasher = ph

	engine.timingDigest, err = ph.Hash(timingSecret)
	if err != nil {
		return nil, err
	}

	clock := engine.clock
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           func() time.Time { return clock.Now() },
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
