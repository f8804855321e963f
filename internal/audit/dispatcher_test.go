package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) { <-s.gate }

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.UserID != "u1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}

	close(sink.gate)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "a"})
	s.Emit(context.Background(), Event{EventType: "b"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil || ev.EventType != "b" {
		t.Fatalf("bad line %q: %v", lines[1], err)
	}
}

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *collectSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherCloseFlushesQueue(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	d.Close()
	d.Close()

	if sink.len() != 50 {
		t.Fatalf("expected 50 delivered events after close, got %d", sink.len())
	}
	d.Emit(context.Background(), Event{EventType: "late"})
	if sink.len() != 50 {
		t.Fatal("events after close must be discarded")
	}
}

func TestBlockingDispatcherCountsCanceledEmits(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event is held by the sink, one fills the queue.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "c"})
	if d.Dropped() != 1 {
		t.Fatalf("expected the canceled emit to count as dropped, got %d", d.Dropped())
	}

	close(sink.gate)
	d.Close()
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewSlogSink(logger)

	s.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials", Metadata: map[string]string{"kind": "password"}})
	s.Emit(context.Background(), Event{EventType: "login_success", Success: true, UserID: "u1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"WARN"`) || !strings.Contains(lines[0], `"kind":"password"`) {
		t.Fatalf("unexpected failure record %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"INFO"`) || !strings.Contains(lines[1], `"user_id":"u1"`) {
		t.Fatalf("unexpected success record %s", lines[1])
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	first, second := NewChannelSink(1), NewChannelSink(1)
	MultiSink{first, nil, second}.Emit(context.Background(), Event{EventType: "logout"})

	for i, s := range []*ChannelSink{first, second} {
		select {
		case ev := <-s.Events():
			if ev.EventType != "logout" {
				t.Fatalf("sink %d got %q", i, ev.EventType)
			}
		default:
			t.Fatalf("sink %d received nothing", i)
		}
	}
}
