package cache

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/account"
)

// NoOp is a cache that stores nothing.
type NoOp struct{}

func (NoOp) GetUser(context.Context, string) (*account.Projection, bool) { return nil, false }

func (NoOp) SetUser(context.Context, string, account.Projection, time.Duration) {}

func (NoOp) SetSession(context.Context, string, account.SessionEntry, time.Duration) {}

func (NoOp) Invalidate(context.Context, string) {}

func (NoOp) AppendAuditEntry(context.Context, string, account.AuditEntry) {}
