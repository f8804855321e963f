// Package memory is an in-process user store with the same versioning and
// field-selection semantics as the database-backed stores.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/sessionguard/account"
)

// Store keeps user records in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*account.User
	byEmail map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*account.User),
		byEmail: make(map[string]string),
	}
}

// FindByEmail returns the record with email, or nil.
func (s *Store) FindByEmail(ctx context.Context, email string, fields account.Fieldset) (*account.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	return project(s.byID[id], fields), nil
}

// FindByID returns the record with id, or nil.
func (s *Store) FindByID(ctx context.Context, id string, fields account.Fieldset) (*account.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return project(u, fields), nil
}

// Save inserts or compare-and-swaps u.
func (s *Store) Save(ctx context.Context, u *account.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Version == 0 {
		if _, taken := s.byEmail[u.Email]; taken {
			return account.ErrDuplicateEmail
		}
		if _, taken := s.byID[u.ID]; taken {
			return account.ErrDuplicateEmail
		}
		stored := u.Clone()
		stored.AuditLog = append([]account.AuditEntry(nil), u.PendingAudit()...)
		stored.Version = 1
		stored.Fields = account.FieldsAll
		stored.Committed(1)
		s.byID[u.ID] = stored
		s.byEmail[u.Email] = u.ID
		u.Committed(1)
		return nil
	}

	current, ok := s.byID[u.ID]
	if !ok || current.Version != u.Version {
		return account.ErrVersionConflict
	}

	src := u.Clone()
	next := current.Clone()
	next.Username = src.Username
	next.Role = src.Role
	next.Verified = src.Verified
	next.UpdatedAt = src.UpdatedAt
	next.LastVerificationSentAt = src.LastVerificationSentAt
	next.FailedLoginAttempts = src.FailedLoginAttempts
	next.LockUntil = src.LockUntil

	if src.Fields.Has(account.FieldCredentials) {
		next.PasswordHash = src.PasswordHash
		next.VerificationCodeHash = src.VerificationCodeHash
		next.VerificationExpiresAt = src.VerificationExpiresAt
	}
	if src.Fields.Has(account.FieldRefreshTokens) {
		next.RefreshTokens = src.RefreshTokens
	}
	next.AuditLog = append(next.AuditLog, u.PendingAudit()...)
	next.Version = current.Version + 1
	next.Committed(next.Version)

	s.byID[u.ID] = next
	u.Committed(next.Version)
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func project(u *account.User, fields account.Fieldset) *account.User {
	out := u.Clone()
	out.Fields = fields
	if !fields.Has(account.FieldCredentials) {
		out.PasswordHash = ""
		out.VerificationCodeHash = ""
		out.VerificationExpiresAt = nil
	}
	if !fields.Has(account.FieldRefreshTokens) {
		out.RefreshTokens = nil
	}
	if !fields.Has(account.FieldAuditLog) {
		out.AuditLog = nil
	}
	return out
}
