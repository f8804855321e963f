// Command sessionguard-server exposes the sessionguard engine over HTTP.
//
// Configuration comes from the environment, optionally seeded from a .env
// file:
//
//	SG_ADDR               listen address (":8080")
//	SG_STORE              memory | mongo | postgres ("memory")
//	SG_MONGO_URI          MongoDB connection string
//	SG_MONGO_DB           MongoDB database ("sessionguard")
//	SG_POSTGRES_DSN       PostgreSQL connection string
//	SG_REDIS_URL          Redis URL; enables the Redis cache, the mail
//	                      stream and the per-IP login throttle
//	SG_JWT_SECRET         HS256 signing secret
//	SG_JWT_ED25519_SEED   base64 ed25519 seed, used when no secret is set
//	SG_JWT_ISSUER         token issuer ("sessionguard")
//	SG_JWT_AUDIENCE       token audience
//	SG_AUDIT_LOG          log audit events (true)
//	SG_AUDIT_FILE         also append audit events as JSON lines to this file
//	SG_IP_THROTTLE        throttle logins per client IP (false)
//	SG_SECURE_COOKIE      mark the refresh cookie Secure (false)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/cache"
	"github.com/MrEthical07/sessionguard/notify"
	"github.com/MrEthical07/sessionguard/store/memory"
	mongostore "github.com/MrEthical07/sessionguard/store/mongo"
	"github.com/MrEthical07/sessionguard/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loadConfig(), logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, sc serverConfig, logger *slog.Logger) error {
	cfg, ephemeral, err := sc.engineConfig()
	if err != nil {
		return err
	}
	if ephemeral {
		logger.Warn("no signing key configured, using a throwaway ed25519 key")
	}

	store, closeStore, err := openStore(ctx, sc)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks := sessionguard.MultiSink{sessionguard.NewSlogSink(logger)}
	if sc.AuditFile != "" {
		f, err := os.OpenFile(sc.AuditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open SG_AUDIT_FILE: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, sessionguard.NewJSONWriterSink(f))
	}

	b := sessionguard.New().
		WithConfig(cfg).
		WithUserStore(store).
		WithLogger(logger).
		WithAuditSink(sinks)

	if sc.RedisURL != "" {
		opts, err := redis.ParseURL(sc.RedisURL)
		if err != nil {
			return fmt.Errorf("parse SG_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		stream, err := notify.NewRedisStream(rdb, notify.RedisStreamOptions{})
		if err != nil {
			return err
		}
		b = b.WithRedis(rdb).
			WithCache(cache.NewRedis(rdb, cache.RedisOptions{Prefix: cfg.Security.RedisPrefix, Logger: logger})).
			WithNotifier(stream)
		logger.Info("redis enabled", slog.String("stream", stream.Stream()))
	} else {
		b = b.WithCache(cache.NewLRU(cache.LRUOptions{Size: 10000})).
			WithNotifier(notify.NewLogNotifier(logger))
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	s := &server{
		engine:       engine,
		logger:       logger,
		cookieMaxAge: refreshCookieMaxAge(cfg),
		secureCookie: sc.SecureCookie,
	}
	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", sc.Addr), slog.String("store", sc.Store))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, sc serverConfig) (sessionguard.UserStore, func(), error) {
	switch sc.Store {
	case "memory":
		return memory.New(), func() {}, nil

	case "mongo":
		if sc.MongoURI == "" {
			return nil, nil, errors.New("SG_MONGO_URI required for the mongo store")
		}
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().
			ApplyURI(sc.MongoURI).
			SetServerSelectionTimeout(10*time.Second))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		s := mongostore.New(client.Database(sc.MongoDB), mongostore.Options{})
		if err := s.EnsureIndexes(connectCtx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return s, closeFn, nil

	case "postgres":
		if sc.PostgresDSN == "" {
			return nil, nil, errors.New("SG_POSTGRES_DSN required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown SG_STORE %q", sc.Store)
	}
}
