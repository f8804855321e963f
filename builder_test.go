package sessionguard

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/MrEthical07/sessionguard/store/memory"
)

func TestBuildRequiresCollaborators(t *testing.T) {
	throttled := testConfig()
	throttled.Security.EnableIPThrottle = true

	cases := []struct {
		name    string
		builder *Builder
		want    string
	}{
		{
			name:    "store",
			builder: New().WithConfig(testConfig()).WithNotifier(newRecordingNotifier()),
			want:    "user store required",
		},
		{
			name:    "notifier",
			builder: New().WithConfig(testConfig()).WithUserStore(memory.New()),
			want:    "notifier required",
		},
		{
			name:    "redis for throttle",
			builder: New().WithConfig(throttled).WithUserStore(memory.New()).WithNotifier(newRecordingNotifier()),
			want:    "requires redis client",
		},
		{
			name:    "signing key",
			builder: New().WithUserStore(memory.New()).WithNotifier(newRecordingNotifier()),
			want:    "ed25519",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserStore(memory.New()).WithNotifier(newRecordingNotifier())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildWithEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := testConfig()
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Audience = "api"

	notifier := newRecordingNotifier()
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(memory.New()).
		WithNotifier(notifier).
		WithClock(newFakeClock()).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if _, err := engine.Register(ctx, testEmail, testUsername, testPassword); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	pair, err := engine.VerifyEmail(ctx, testEmail, notifier.last(t, testEmail))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	claims, err := engine.ValidateAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "api" {
		t.Fatalf("unexpected audience %v", claims.Audience)
	}
}

func TestZeroEngineIsNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), testEmail, testPassword); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}
