package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// NoOpSink discards everything.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a consumer over a buffered channel. Emit blocks
// while the buffer is full unless ctx ends first.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case <-ctx.Done():
	case s.ch <- event:
	}
}

// Events is the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// JSONWriterSink encodes each event as a JSON line on w. Concurrent Emit
// calls are serialized.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONWriterSink{enc: enc}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// MultiSink fans each event out to every member in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}

// SlogSink turns events into log records: failures at WARN, everything else
// at INFO.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "sessionguard: audit", eventAttrs(event)...)
}

func eventAttrs(event Event) []slog.Attr {
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs,
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.Time("at", event.Timestamp),
	)
	for _, f := range [...]struct{ key, val string }{
		{"user_id", event.UserID},
		{"ip", event.IP},
		{"error", event.Error},
	} {
		if f.val != "" {
			attrs = append(attrs, slog.String(f.key, f.val))
		}
	}
	if len(event.Metadata) == 0 {
		return attrs
	}
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	meta := make([]any, len(keys))
	for i, k := range keys {
		meta[i] = slog.String(k, event.Metadata[k])
	}
	return append(attrs, slog.Group("metadata", meta...))
}
