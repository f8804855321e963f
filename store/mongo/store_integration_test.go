//go:build integration

package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("SESSIONGUARD_MONGO_URI")
	if uri == "" {
		t.Skip("SESSIONGUARD_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("sessionguard_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	s := New(db, Options{})
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestMongoStoreLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

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

	dup := &account.User{ID: uuid.NewString(), Email: "a@x.com", Fields: account.FieldsAll}
	assert.ErrorIs(t, s.Save(ctx, dup), account.ErrDuplicateEmail)

	lean, err := s.FindByEmail(ctx, "a@x.com", account.FieldsNone)
	require.NoError(t, err)
	require.NotNil(t, lean)
	assert.Empty(t, lean.PasswordHash)
	assert.Empty(t, lean.AuditLog)

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

	missing, err := s.FindByID(ctx, "nope", account.FieldsAll)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
