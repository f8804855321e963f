// Package mongo stores user records as one MongoDB document per user, with
// refresh tokens and the audit trail embedded as arrays.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionguard/account"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultCollection = "users"

// Store implements the engine's user store on a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

// Options configures New.
type Options struct {
	// Collection defaults to "users".
	Collection string
}

// New returns a store on db. Call EnsureIndexes once before serving.
func New(db *mongo.Database, opts Options) *Store {
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}
	return &Store{coll: db.Collection(opts.Collection)}
}

// EnsureIndexes creates the unique email index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo: create email index: %w", err)
	}
	return nil
}

// FindByEmail returns the record with email, or nil.
func (s *Store) FindByEmail(ctx context.Context, email string, fields account.Fieldset) (*account.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}}, fields)
}

// FindByID returns the record with id, or nil.
func (s *Store) FindByID(ctx context.Context, id string, fields account.Fieldset) (*account.User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}}, fields)
}

func (s *Store) findOne(ctx context.Context, filter bson.D, fields account.Fieldset) (*account.User, error) {
	opts := options.FindOne()
	if p := projection(fields); len(p) > 0 {
		opts.SetProjection(p)
	}

	var u account.User
	err := s.coll.FindOne(ctx, filter, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	u.Fields = fields
	return &u, nil
}

// Save inserts u when it was never persisted, otherwise updates the
// document only if its version still matches.
func (s *Store) Save(ctx context.Context, u *account.User) error {
	if u.Version == 0 {
		return s.insert(ctx, u)
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: u.ID}, {Key: "version", Value: u.Version}},
		updateDocument(u),
	)
	if err != nil {
		return fmt.Errorf("mongo: update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return account.ErrVersionConflict
	}
	u.Committed(u.Version + 1)
	return nil
}

func (s *Store) insert(ctx context.Context, u *account.User) error {
	doc := u.Clone()
	doc.AuditLog = append([]account.AuditEntry(nil), u.PendingAudit()...)
	doc.Version = 1

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrDuplicateEmail
		}
		return fmt.Errorf("mongo: insert user: %w", err)
	}
	u.Committed(1)
	return nil
}

// projection excludes the sensitive groups fields does not select.
func projection(fields account.Fieldset) bson.D {
	var p bson.D
	if !fields.Has(account.FieldCredentials) {
		p = append(p,
			bson.E{Key: "password_hash", Value: 0},
			bson.E{Key: "verification_code_hash", Value: 0},
			bson.E{Key: "verification_expires_at", Value: 0},
		)
	}
	if !fields.Has(account.FieldRefreshTokens) {
		p = append(p, bson.E{Key: "refresh_tokens", Value: 0})
	}
	if !fields.Has(account.FieldAuditLog) {
		p = append(p, bson.E{Key: "audit_log", Value: 0})
	}
	return p
}

// updateDocument sets the always-present fields and the loaded sensitive
// groups, and appends pending audit entries. Nil pointers unset the field.
func updateDocument(u *account.User) bson.D {
	set := bson.D{
		{Key: "username", Value: u.Username},
		{Key: "role", Value: u.Role},
		{Key: "verified", Value: u.Verified},
		{Key: "updated_at", Value: u.UpdatedAt},
		{Key: "failed_login_attempts", Value: u.FailedLoginAttempts},
		{Key: "version", Value: u.Version + 1},
	}
	var unset bson.D

	optional := func(key string, v any, present bool) {
		if present {
			set = append(set, bson.E{Key: key, Value: v})
			return
		}
		unset = append(unset, bson.E{Key: key, Value: ""})
	}
	optional("last_verification_sent_at", u.LastVerificationSentAt, u.LastVerificationSentAt != nil)
	optional("lock_until", u.LockUntil, u.LockUntil != nil)

	if u.Fields.Has(account.FieldCredentials) {
		optional("password_hash", u.PasswordHash, u.PasswordHash != "")
		optional("verification_code_hash", u.VerificationCodeHash, u.VerificationCodeHash != "")
		optional("verification_expires_at", u.VerificationExpiresAt, u.VerificationExpiresAt != nil)
	}
	if u.Fields.Has(account.FieldRefreshTokens) {
		tokens := u.RefreshTokens
		if tokens == nil {
			tokens = []account.RefreshToken{}
		}
		set = append(set, bson.E{Key: "refresh_tokens", Value: tokens})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	if pending := u.PendingAudit(); len(pending) > 0 {
		update = append(update, bson.E{Key: "$push", Value: bson.D{
			{Key: "audit_log", Value: bson.D{{Key: "$each", Value: pending}}},
		}})
	}
	return update
}
