package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(id, email string) *account.User {
	now := time.Unix(1_700_000_000, 0).UTC()
	u := &account.User{
		ID:           id,
		Email:        email,
		Username:     "alice",
		Role:         account.RoleUser,
		PasswordHash: "hash",
		CreatedAt:    now,
		Fields:       account.FieldsAll,
	}
	u.Record(account.AuditEntry{Action: account.ActionRegister, Success: true, At: now})
	return u
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser("u1", "a@x.com")
	require.NoError(t, s.Save(ctx, u))
	assert.Equal(t, int64(1), u.Version)
	assert.Empty(t, u.PendingAudit())

	got, err := s.FindByEmail(ctx, "a@x.com", account.FieldsAll)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Len(t, got.AuditLog, 1)

	missing, err := s.FindByID(ctx, "nope", account.FieldsAll)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, newUser("u1", "a@x.com")))

	err := s.Save(ctx, newUser("u2", "a@x.com"))
	assert.True(t, errors.Is(err, account.ErrDuplicateEmail))
	assert.Equal(t, 1, s.Len())
}

func TestFieldSelection(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("u1", "a@x.com")
	u.RefreshTokens = []account.RefreshToken{{Token: "t"}}
	require.NoError(t, s.Save(ctx, u))

	got, err := s.FindByID(ctx, "u1", account.FieldRefreshTokens)
	require.NoError(t, err)
	assert.Empty(t, got.PasswordHash)
	assert.Len(t, got.RefreshTokens, 1)
	assert.Nil(t, got.AuditLog)

	// A save that did not load credentials must not erase them.
	got.FailedLoginAttempts = 2
	got.Record(account.AuditEntry{Action: account.ActionRefresh})
	require.NoError(t, s.Save(ctx, got))

	full, err := s.FindByID(ctx, "u1", account.FieldsAll)
	require.NoError(t, err)
	assert.Equal(t, "hash", full.PasswordHash)
	assert.Equal(t, 2, full.FailedLoginAttempts)
	assert.Len(t, full.AuditLog, 2)
	assert.Equal(t, int64(2), full.Version)
}

func TestStaleSaveConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, newUser("u1", "a@x.com")))

	a, _ := s.FindByID(ctx, "u1", account.FieldsAll)
	b, _ := s.FindByID(ctx, "u1", account.FieldsAll)

	a.Verified = true
	require.NoError(t, s.Save(ctx, a))

	b.Username = "mallory"
	err := s.Save(ctx, b)
	assert.True(t, errors.Is(err, account.ErrVersionConflict))

	got, _ := s.FindByID(ctx, "u1", account.FieldsNone)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.Verified)
}

func TestConcurrentSavesHaveOneWinnerPerVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, newUser("u1", "a@x.com")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		u, err := s.FindByID(ctx, "u1", account.FieldsAll)
		require.NoError(t, err)
		wg.Add(1)
		go func(u *account.User) {
			defer wg.Done()
			u.FailedLoginAttempts++
			if s.Save(ctx, u) == nil {
				wins.Add(1)
			}
		}(u)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("u1", "a@x.com")
	u.RefreshTokens = []account.RefreshToken{{Token: "t"}}
	require.NoError(t, s.Save(ctx, u))

	u.RefreshTokens[0].Revoked = true
	got, _ := s.FindByID(ctx, "u1", account.FieldsAll)
	assert.False(t, got.RefreshTokens[0].Revoked)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().FindByEmail(ctx, "a@x.com", account.FieldsAll)
	assert.ErrorIs(t, err, context.Canceled)
}
