// Package auth manages passvault user accounts: creation, authentication,
// role changes and deletion. The admin account is protected here, so the
// rule holds no matter which caller drives the store.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/store"
)

// Role is the access level of an account.
type Role string

const (
	RoleBasic Role = store.RoleBasic
	RoleAdmin Role = store.RoleAdmin
)

// Error kinds, shared with the store package.
var (
	ErrValidation = store.ErrValidation
	ErrDuplicate  = store.ErrDuplicate
	ErrNotFound   = store.ErrNotFound
	ErrCrypto     = store.ErrCrypto
	ErrStorage    = store.ErrStorage
	ErrPermission = store.ErrPermission
)

// ParseRole lower-cases and trims s. An empty role means basic.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleBasic, nil
	case RoleBasic, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("auth: %w: unknown role %q", ErrValidation, s)
	}
}

// User is a stored account without its digest.
type User struct {
	ID        int64
	Username  string
	Role      Role
	CreatedAt time.Time
}

// UserSummary is one entry of ListUsers.
type UserSummary struct {
	Username string
	Role     Role
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is the store handle's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l.Named("auth") }
}

// WithHashParams overrides the Argon2id costs for new digests.
func WithHashParams(p crypto.PasswordParams) Option {
	return func(s *Store) { s.params = p }
}

// Store is the credential store.
type Store struct {
	db     *store.DB
	log    *zap.Logger
	params crypto.PasswordParams
}

// New creates a credential store over db.
func New(db *store.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		log:    db.Logger().Named("auth"),
		params: db.HashParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeUsername trims surrounding space and applies Unicode NFC so that
// visually identical names compare equal.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// UserExists reports whether username is registered. Empty input returns
// false without touching storage.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, nil
	}
	ok, err := s.db.Bun().NewSelect().Model((*store.UserRow)(nil)).Where("username = ?", username).Exists(ctx)
	if err != nil {
		return false, store.Classify("auth: user exists", err)
	}
	return ok, nil
}

// AddUser registers a new account. An empty role means basic.
func (s *Store) AddUser(ctx context.Context, username, password string, role Role) (User, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return User{}, fmt.Errorf("auth: add user: %w: username is required", ErrValidation)
	}
	if password == "" {
		return User{}, fmt.Errorf("auth: add user: %w: password is required", ErrValidation)
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return User{}, err
	}

	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return User{}, err
	}
	if exists {
		return User{}, fmt.Errorf("auth: add user: %w: %q", ErrDuplicate, username)
	}

	hash, err := crypto.HashPassword(password, s.params)
	if err != nil {
		return User{}, fmt.Errorf("auth: add user: %w: %w", ErrCrypto, err)
	}

	return s.insert(ctx, "auth: add user", username, hash, role)
}

// ImportUser inserts an account with a digest computed elsewhere, such as
// a legacy "sha256$" digest carried over from an old database. It is
// upgraded to Argon2id on the first successful login.
func (s *Store) ImportUser(ctx context.Context, username, encodedHash string, role Role) (User, error) {
	username = NormalizeUsername(username)
	if username == "" || encodedHash == "" {
		return User{}, fmt.Errorf("auth: import user: %w: username and digest are required", ErrValidation)
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return User{}, err
	}
	return s.insert(ctx, "auth: import user", username, encodedHash, role)
}

func (s *Store) insert(ctx context.Context, op, username, hash string, role Role) (User, error) {
	now := store.Now()
	row := &store.UserRow{
		Username:     username,
		PasswordHash: hash,
		Role:         string(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithTx(ctx, op, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(row).Returning("id").Exec(ctx)
		return err
	})
	if err != nil {
		return User{}, err
	}

	s.log.Info("user added", zap.String("username", username), zap.String("role", string(role)))
	return User{ID: row.ID, Username: username, Role: role, CreatedAt: now}, nil
}

// ValidateUser checks a username/password pair. On success it returns the
// stored role; on any mismatch it returns (false, RoleBasic, nil). Legacy
// digests and digests with outdated costs are rehashed after a successful
// check.
func (s *Store) ValidateUser(ctx context.Context, username, password string) (bool, Role, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return false, RoleBasic, nil
	}

	row := new(store.UserRow)
	err := s.db.Bun().NewSelect().Model(row).Where("username = ?", username).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Debug("login for unknown user", zap.String("username", username))
		return false, RoleBasic, nil
	}
	if err != nil {
		return false, RoleBasic, store.Classify("auth: validate user", err)
	}

	ok, err := crypto.VerifyPassword(password, row.PasswordHash)
	if err != nil {
		return false, RoleBasic, fmt.Errorf("auth: validate user: %w: %w", ErrCrypto, err)
	}
	if !ok {
		s.log.Debug("password mismatch", zap.String("username", username))
		return false, RoleBasic, nil
	}

	if crypto.NeedsRehash(row.PasswordHash, s.params) {
		if err := s.rehash(ctx, row.ID, password); err != nil {
			// login still succeeds; the old digest keeps working
			s.log.Warn("failed to upgrade password digest", zap.String("username", username), zap.Error(err))
		} else {
			s.log.Info("upgraded password digest", zap.String("username", username))
		}
	}

	return true, Role(row.Role), nil
}

func (s *Store) rehash(ctx context.Context, id int64, password string) error {
	hash, err := crypto.HashPassword(password, s.params)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, "auth: rehash", func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*store.UserRow)(nil)).
			Set("password_hash = ?", hash).
			Set("updated_at = ?", store.Now()).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// UpdateUser replaces the password and role of username. It reports whether
// an account was changed. The admin account cannot be demoted.
func (s *Store) UpdateUser(ctx context.Context, username, newPassword string, newRole Role) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, fmt.Errorf("auth: update user: %w: username is required", ErrValidation)
	}
	if newPassword == "" {
		return false, fmt.Errorf("auth: update user: %w: password is required", ErrValidation)
	}
	role, err := ParseRole(string(newRole))
	if err != nil {
		return false, err
	}
	if username == store.AdminUsername && role != RoleAdmin {
		return false, fmt.Errorf("auth: update user: %w: the admin account cannot be demoted", ErrPermission)
	}

	hash, err := crypto.HashPassword(newPassword, s.params)
	if err != nil {
		return false, fmt.Errorf("auth: update user: %w: %w", ErrCrypto, err)
	}

	var affected int64
	err = s.db.WithTx(ctx, "auth: update user", func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*store.UserRow)(nil)).
			Set("password_hash = ?", hash).
			Set("role = ?", string(role)).
			Set("updated_at = ?", store.Now()).
			Where("username = ?", username).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}

	if affected > 0 {
		s.log.Info("user updated", zap.String("username", username), zap.String("role", string(role)))
	}
	return affected > 0, nil
}

// DeleteUser removes username and, through the foreign key, its secrets.
// It reports whether an account was removed. The admin account cannot be
// deleted.
func (s *Store) DeleteUser(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, fmt.Errorf("auth: delete user: %w: username is required", ErrValidation)
	}
	if username == store.AdminUsername {
		return false, fmt.Errorf("auth: delete user: %w: the admin account cannot be deleted", ErrPermission)
	}

	var affected int64
	err := s.db.WithTx(ctx, "auth: delete user", func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*store.UserRow)(nil)).Where("username = ?", username).Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}

	if affected > 0 {
		s.log.Info("user deleted", zap.String("username", username))
	}
	return affected > 0, nil
}

// ListUsers returns every account ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	var rows []store.UserRow
	err := s.db.Bun().NewSelect().Model(&rows).Column("username", "role").OrderExpr("username ASC").Scan(ctx)
	if err != nil {
		return nil, store.Classify("auth: list users", err)
	}

	out := make([]UserSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserSummary{Username: r.Username, Role: Role(r.Role)})
	}
	return out, nil
}

// GetUserID resolves username to its id.
func (s *Store) GetUserID(ctx context.Context, username string) (int64, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return 0, fmt.Errorf("auth: get user id: %w: empty username", ErrNotFound)
	}

	var id int64
	err := s.db.Bun().NewSelect().Model((*store.UserRow)(nil)).Column("id").Where("username = ?", username).Limit(1).Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("auth: get user id: %w: %q", ErrNotFound, username)
	}
	if err != nil {
		return 0, store.Classify("auth: get user id", err)
	}
	return id, nil
}
