package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream = "sg:mail:verification"
	defaultMaxLen = 10000
)

// ErrNilClient is returned by NewRedisStream without a client.
var ErrNilClient = errors.New("notify: nil redis client")

// RedisStreamOptions configures a RedisStream.
type RedisStreamOptions struct {
	// Stream is the stream key. Defaults to "sg:mail:verification".
	Stream string
	// MaxLen caps the stream with approximate trimming. Defaults to 10000.
	MaxLen int64
	// Now stamps each job. Defaults to time.Now.
	Now func() time.Time
}

// RedisStream queues verification jobs with XADD. Each entry carries the
// fields "email", "code" and "queued_at" (RFC 3339, UTC).
type RedisStream struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	now    func() time.Time
}

// NewRedisStream returns a stream notifier on client.
func NewRedisStream(client redis.UniversalClient, opts RedisStreamOptions) (*RedisStream, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if strings.TrimSpace(opts.Stream) == "" {
		opts.Stream = defaultStream
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultMaxLen
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RedisStream{
		client: client,
		stream: opts.Stream,
		maxLen: opts.MaxLen,
		now:    opts.Now,
	}, nil
}

// SendVerificationCode appends one job to the stream.
func (s *RedisStream) SendVerificationCode(ctx context.Context, email, code string) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"email":     email,
			"code":      code,
			"queued_at": s.now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("notify: xadd %s: %w", s.stream, err)
	}
	return nil
}

// Stream returns the stream key jobs are written to.
func (s *RedisStream) Stream() string {
	return s.stream
}
