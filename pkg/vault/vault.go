// Package vault stores per-user website credentials.
//
// Secret values are sealed with the installation data key (see package
// keyring) and bound to their owner's id, so every read and delete is
// scoped to the owner passed by the caller.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/forest6511/passvault/pkg/keyring"
	"github.com/forest6511/passvault/pkg/store"
)

// Input limits
const (
	MaxWebsiteLength  = 2048        // RFC 3986 practical URL limit
	MaxUsernameLength = 256         // login name recorded for a website
	MaxPasswordSize   = 1024 * 1024 // 1 MB
)

// Error kinds, shared with the store package.
var (
	ErrValidation = store.ErrValidation
	ErrNotFound   = store.ErrNotFound
	ErrCrypto     = store.ErrCrypto
	ErrStorage    = store.ErrStorage
)

// Secret is a decrypted credential.
type Secret struct {
	ID        int64
	OwnerID   int64
	Website   string
	Username  string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is a credential to be stored.
type Entry struct {
	Website  string
	Username string
	Password string
}

func (e Entry) normalized() Entry {
	e.Website = strings.TrimSpace(e.Website)
	e.Username = strings.TrimSpace(e.Username)
	return e
}

func (e Entry) validate() error {
	switch {
	case e.Website == "":
		return fmt.Errorf("%w: website is required", ErrValidation)
	case e.Username == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case e.Password == "":
		return fmt.Errorf("%w: password is required", ErrValidation)
	case len(e.Website) > MaxWebsiteLength:
		return fmt.Errorf("%w: website longer than %d bytes", ErrValidation, MaxWebsiteLength)
	case len(e.Username) > MaxUsernameLength:
		return fmt.Errorf("%w: username longer than %d bytes", ErrValidation, MaxUsernameLength)
	case len(e.Password) > MaxPasswordSize:
		return fmt.Errorf("%w: password larger than %d bytes", ErrValidation, MaxPasswordSize)
	}
	return nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is the store handle's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l.Named("vault") }
}

// Store is the vault store.
type Store struct {
	db  *store.DB
	log *zap.Logger
}

// New creates a vault store over db.
func New(db *store.DB, opts ...Option) *Store {
	s := &Store{db: db, log: db.Logger().Named("vault")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) keyring(ctx context.Context, op string) (*keyring.Keyring, error) {
	kr, err := s.db.Keyring(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return kr, nil
}

// AddSecret seals password for ownerID and stores it. It returns the new
// secret id. An unknown owner yields ErrNotFound.
func (s *Store) AddSecret(ctx context.Context, ownerID int64, website, username, password string) (int64, error) {
	ids, err := s.addSecrets(ctx, "vault: add secret", ownerID, []Entry{{Website: website, Username: username, Password: password}})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddSecrets stores several entries for ownerID in a single transaction.
// Either all entries are stored or none is.
func (s *Store) AddSecrets(ctx context.Context, ownerID int64, entries []Entry) ([]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	return s.addSecrets(ctx, "vault: add secrets", ownerID, entries)
}

func (s *Store) addSecrets(ctx context.Context, op string, ownerID int64, entries []Entry) ([]int64, error) {
	rows := make([]*store.SecretRow, 0, len(entries))
	passwords := make([]string, 0, len(entries))
	now := store.Now()
	for i, e := range entries {
		e = e.normalized()
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", op, i+1, err)
		}
		rows = append(rows, &store.SecretRow{
			UserID:    ownerID,
			Website:   e.Website,
			Username:  e.Username,
			CreatedAt: now,
			UpdatedAt: now,
		})
		passwords = append(passwords, e.Password)
	}

	kr, err := s.keyring(ctx, op)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		blob, err := kr.Seal([]byte(passwords[i]), ownerID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrCrypto, err)
		}
		row.EncryptedPassword = blob
	}

	err = s.db.WithTx(ctx, op, func(ctx context.Context, tx bun.Tx) error {
		for _, row := range rows {
			if _, err := tx.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	s.log.Info("secrets added", zap.Int64("owner_id", ownerID), zap.Int("count", len(ids)))
	return ids, nil
}

// ListSecrets returns every secret of ownerID, decrypted, ordered by id.
// If any value fails to decrypt the whole call fails with ErrCrypto.
func (s *Store) ListSecrets(ctx context.Context, ownerID int64) ([]Secret, error) {
	var rows []store.SecretRow
	err := s.db.Bun().NewSelect().Model(&rows).Where("user_id = ?", ownerID).OrderExpr("id ASC").Scan(ctx)
	if err != nil {
		return nil, store.Classify("vault: list secrets", err)
	}
	if len(rows) == 0 {
		return []Secret{}, nil
	}

	kr, err := s.keyring(ctx, "vault: list secrets")
	if err != nil {
		return nil, err
	}

	out := make([]Secret, 0, len(rows))
	for i := range rows {
		sec, err := open(kr, &rows[i])
		if err != nil {
			s.log.Warn("failed to decrypt secret", zap.Int64("owner_id", ownerID), zap.Int64("secret_id", rows[i].ID))
			return nil, fmt.Errorf("vault: list secrets: %w", err)
		}
		out = append(out, sec)
	}
	return out, nil
}

// GetSecret returns one decrypted secret owned by ownerID.
func (s *Store) GetSecret(ctx context.Context, ownerID, id int64) (Secret, error) {
	row := new(store.SecretRow)
	err := s.db.Bun().NewSelect().Model(row).Where("id = ?", id).Where("user_id = ?", ownerID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Secret{}, fmt.Errorf("vault: get secret: %w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return Secret{}, store.Classify("vault: get secret", err)
	}

	kr, err := s.keyring(ctx, "vault: get secret")
	if err != nil {
		return Secret{}, err
	}

	sec, err := open(kr, row)
	if err != nil {
		return Secret{}, fmt.Errorf("vault: get secret: %w", err)
	}
	return sec, nil
}

func open(kr *keyring.Keyring, row *store.SecretRow) (Secret, error) {
	plain, err := kr.Open(row.EncryptedPassword, row.UserID)
	if err != nil {
		return Secret{}, fmt.Errorf("%w: secret %d: %w", ErrCrypto, row.ID, err)
	}
	return Secret{
		ID:        row.ID,
		OwnerID:   row.UserID,
		Website:   row.Website,
		Username:  row.Username,
		Password:  string(plain),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// DeleteSecret removes secret id if it belongs to ownerID. A missing secret
// and a secret of another user both yield ErrNotFound.
func (s *Store) DeleteSecret(ctx context.Context, ownerID, id int64) error {
	err := s.db.WithTx(ctx, "vault: delete secret", func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*store.SecretRow)(nil)).
			Where("id = ?", id).
			Where("user_id = ?", ownerID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("vault: delete secret: %w: id %d", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("secret deleted", zap.Int64("owner_id", ownerID), zap.Int64("secret_id", id))
	return nil
}

// CountSecrets returns the number of secrets owned by ownerID.
func (s *Store) CountSecrets(ctx context.Context, ownerID int64) (int, error) {
	n, err := s.db.Bun().NewSelect().Model((*store.SecretRow)(nil)).Where("user_id = ?", ownerID).Count(ctx)
	if err != nil {
		return 0, store.Classify("vault: count secrets", err)
	}
	return n, nil
}
