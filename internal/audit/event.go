package audit

import (
	"context"
	"time"
)

// Event is one security-relevant action relayed to a Sink. It never carries
// passwords, codes or token material.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the Dispatcher worker. Emit is called from a
// single goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}
