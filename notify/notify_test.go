package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifierWritesCode(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.SendVerificationCode(context.Background(), "a@x.com", "123456"))
	out := buf.String()
	assert.Contains(t, out, "email=a@x.com")
	assert.Contains(t, out, "code=123456")
}

func TestLogNotifierHonorsCanceledContext(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.SendVerificationCode(ctx, "a@x.com", "123456"), context.Canceled)
	assert.Empty(t, buf.String())
}

func newStream(t *testing.T, opts RedisStreamOptions) (*RedisStream, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s, err := NewRedisStream(rdb, opts)
	require.NoError(t, err)
	return s, rdb, mr
}

func TestRedisStreamQueuesJob(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, rdb, _ := newStream(t, RedisStreamOptions{Now: func() time.Time { return at }})
	ctx := context.Background()

	require.NoError(t, s.SendVerificationCode(ctx, "a@x.com", "654321"))
	require.NoError(t, s.SendVerificationCode(ctx, "b@x.com", "111111"))

	msgs, err := rdb.XRange(ctx, defaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a@x.com", msgs[0].Values["email"])
	assert.Equal(t, "654321", msgs[0].Values["code"])
	assert.Equal(t, "2026-03-01T12:00:00Z", msgs[0].Values["queued_at"])
	assert.Equal(t, "b@x.com", msgs[1].Values["email"])
}

func TestRedisStreamCustomKey(t *testing.T) {
	s, rdb, _ := newStream(t, RedisStreamOptions{Stream: "mail:jobs"})
	ctx := context.Background()

	require.NoError(t, s.SendVerificationCode(ctx, "a@x.com", "000000"))
	assert.Equal(t, "mail:jobs", s.Stream())

	n, err := rdb.XLen(ctx, "mail:jobs").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisStreamReportsUnavailableRedis(t *testing.T) {
	s, _, mr := newStream(t, RedisStreamOptions{})
	mr.Close()

	err := s.SendVerificationCode(context.Background(), "a@x.com", "000000")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "notify: xadd"))
}

func TestNewRedisStreamRequiresClient(t *testing.T) {
	_, err := NewRedisStream(nil, RedisStreamOptions{})
	assert.ErrorIs(t, err, ErrNilClient)
}
