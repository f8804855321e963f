// Package postgres stores user records in a single PostgreSQL table. Refresh
// tokens and the audit trail live in JSONB columns, and a version column
// backs compare-and-swap saves.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/MrEthical07/sessionguard/account"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	baseColumns = []string{
		"id", "email", "username", "role", "verified", "created_at", "updated_at",
		"last_verification_sent_at", "failed_login_attempts", "lock_until", "version",
	}
	credentialColumns = []string{"password_hash", "verification_code_hash", "verification_expires_at"}
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the engine's user store on PostgreSQL.
type Store struct {
	db DB
}

// New returns a store on db. Run Migrate first.
func New(db DB) *Store {
	return &Store{db: db}
}

// FindByEmail returns the record with email, or nil.
func (s *Store) FindByEmail(ctx context.Context, email string, fields account.Fieldset) (*account.User, error) {
	return s.find(ctx, sq.Eq{"email": email}, fields)
}

// FindByID returns the record with id, or nil.
func (s *Store) FindByID(ctx context.Context, id string, fields account.Fieldset) (*account.User, error) {
	return s.find(ctx, sq.Eq{"id": id}, fields)
}

func (s *Store) find(ctx context.Context, where sq.Eq, fields account.Fieldset) (*account.User, error) {
	query, args, err := psql.Select(selectColumns(fields)...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build select: %w", err)
	}

	var (
		u              account.User
		tokens, audits []byte
	)
	dest := []any{
		&u.ID, &u.Email, &u.Username, &u.Role, &u.Verified, &u.CreatedAt, &u.UpdatedAt,
		&u.LastVerificationSentAt, &u.FailedLoginAttempts, &u.LockUntil, &u.Version,
	}
	if fields.Has(account.FieldCredentials) {
		dest = append(dest, &u.PasswordHash, &u.VerificationCodeHash, &u.VerificationExpiresAt)
	}
	if fields.Has(account.FieldRefreshTokens) {
		dest = append(dest, &tokens)
	}
	if fields.Has(account.FieldAuditLog) {
		dest = append(dest, &audits)
	}

	if err := s.db.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	if tokens != nil {
		if err := json.Unmarshal(tokens, &u.RefreshTokens); err != nil {
			return nil, fmt.Errorf("postgres: decode refresh tokens: %w", err)
		}
	}
	if audits != nil {
		if err := json.Unmarshal(audits, &u.AuditLog); err != nil {
			return nil, fmt.Errorf("postgres: decode audit log: %w", err)
		}
	}
	u.Fields = fields
	return &u, nil
}

// Save inserts u when it was never persisted, otherwise updates the row
// only if its version still matches.
func (s *Store) Save(ctx context.Context, u *account.User) error {
	if u.Version == 0 {
		return s.insert(ctx, u)
	}

	query, args, err := updateQuery(u)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrVersionConflict
	}
	u.Committed(u.Version + 1)
	return nil
}

func (s *Store) insert(ctx context.Context, u *account.User) error {
	query, args, err := insertQuery(u)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return account.ErrDuplicateEmail
		}
		return fmt.Errorf("postgres: insert user: %w", err)
	}
	u.Committed(1)
	return nil
}

func selectColumns(fields account.Fieldset) []string {
	cols := append([]string(nil), baseColumns...)
	if fields.Has(account.FieldCredentials) {
		cols = append(cols, credentialColumns...)
	}
	if fields.Has(account.FieldRefreshTokens) {
		cols = append(cols, "refresh_tokens")
	}
	if fields.Has(account.FieldAuditLog) {
		cols = append(cols, "audit_log")
	}
	return cols
}

func insertQuery(u *account.User) (string, []any, error) {
	tokens, err := encodeJSON(u.RefreshTokens)
	if err != nil {
		return "", nil, err
	}
	audits, err := encodeJSON(u.PendingAudit())
	if err != nil {
		return "", nil, err
	}

	query, args, err := psql.Insert("users").
		Columns(append(append(append([]string(nil), baseColumns...), credentialColumns...), "refresh_tokens", "audit_log")...).
		Values(
			u.ID, u.Email, u.Username, string(u.Role), u.Verified, u.CreatedAt, u.UpdatedAt,
			u.LastVerificationSentAt, u.FailedLoginAttempts, u.LockUntil, int64(1),
			u.PasswordHash, u.VerificationCodeHash, u.VerificationExpiresAt,
			tokens, audits,
		).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("postgres: build insert: %w", err)
	}
	return query, args, nil
}

// updateQuery writes the always-present columns and the loaded sensitive
// groups. Pending audit entries are appended to the stored array.
func updateQuery(u *account.User) (string, []any, error) {
	set := map[string]any{
		"username":                  u.Username,
		"role":                      string(u.Role),
		"verified":                  u.Verified,
		"updated_at":                u.UpdatedAt,
		"last_verification_sent_at": u.LastVerificationSentAt,
		"failed_login_attempts":     u.FailedLoginAttempts,
		"lock_until":                u.LockUntil,
		"version":                   u.Version + 1,
	}
	if u.Fields.Has(account.FieldCredentials) {
		set["password_hash"] = u.PasswordHash
		set["verification_code_hash"] = u.VerificationCodeHash
		set["verification_expires_at"] = u.VerificationExpiresAt
	}
	if u.Fields.Has(account.FieldRefreshTokens) {
		tokens, err := encodeJSON(u.RefreshTokens)
		if err != nil {
			return "", nil, err
		}
		set["refresh_tokens"] = tokens
	}

	b := psql.Update("users").SetMap(set)
	if pending := u.PendingAudit(); len(pending) > 0 {
		audits, err := encodeJSON(pending)
		if err != nil {
			return "", nil, err
		}
		b = b.Set("audit_log", sq.Expr("audit_log || ?::jsonb", audits))
	}

	query, args, err := b.Where(sq.Eq{"id": u.ID, "version": u.Version}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("postgres: build update: %w", err)
	}
	return query, args, nil
}

// encodeJSON renders a nil slice as an empty array so JSONB columns never
// hold null.
func encodeJSON[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("postgres: encode json: %w", err)
	}
	return string(b), nil
}
