//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SESSIONGUARD_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SESSIONGUARD_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE users")
	require.NoError(t, err)
	return New(pool)
}

func TestPostgresStoreLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := &account.User{
		ID:           uuid.NewString(),
		Email:        "a@x.com",
		Username:     "alice",
		Role:         account.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
		PasswordHash: "hash",
		Fields:       account.FieldsAll,
	}
	u.Record(account.AuditEntry{Action: account.ActionRegister, Success: true, At: now})
	require.NoError(t, s.Save(ctx, u))
	assert.EqualValues(t, 1, u.Version)

	dup := &account.User{ID: uuid.NewString(), Email: "a@x.com", CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.Save(ctx, dup), account.ErrDuplicateEmail)

	lean, err := s.FindByEmail(ctx, "a@x.com", account.FieldsNone)
	require.NoError(t, err)
	require.NotNil(t, lean)
	assert.Empty(t, lean.PasswordHash)

	lean.Verified = true
	lean.Record(account.AuditEntry{Action: account.ActionVerify, Success: true, At: now})
	require.NoError(t, s.Save(ctx, lean))

	stale, err := s.FindByID(ctx, u.ID, account.FieldsAll)
	require.NoError(t, err)
	stale.Version = 1
	assert.ErrorIs(t, s.Save(ctx, stale), account.ErrVersionConflict)

	full, err := s.FindByID(ctx, u.ID, account.FieldsAll)
	require.NoError(t, err)
	assert.True(t, full.Verified)
	assert.Equal(t, "hash", full.PasswordHash)
	assert.Len(t, full.AuditLog, 2)
	assert.Empty(t, full.RefreshTokens)

	missing, err := s.FindByID(ctx, "nope", account.FieldsAll)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
