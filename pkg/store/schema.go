package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/keyring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Initialize brings the database to a usable state. It is safe to call on
// every start:
//
//  1. applies pending migrations (tables are only ever created, never dropped)
//  2. seeds the admin account unless it already exists
//  3. provisions the wrapped data key unless one is stored
func (db *DB) Initialize(ctx context.Context) error {
	if err := db.migrate(ctx); err != nil {
		return err
	}

	var seedHash string
	exists, err := db.bun.NewSelect().Model((*UserRow)(nil)).Where("username = ?", AdminUsername).Exists(ctx)
	if err != nil {
		return Classify("store: initialize", err)
	}
	if !exists {
		seedHash, err = crypto.HashPassword(db.cfg.AdminPassword, db.cfg.HashParams)
		if err != nil {
			return fmt.Errorf("store: initialize: %w: %w", ErrCrypto, err)
		}
	}

	var fresh *keyring.Keyring
	err = db.WithTx(ctx, "store: initialize", func(ctx context.Context, tx bun.Tx) error {
		if seedHash != "" {
			now := Now()
			res, err := tx.NewRaw(
				"INSERT INTO users (username, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT (username) DO NOTHING",
				AdminUsername, seedHash, RoleAdmin, now, now,
			).Exec(ctx)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				db.log.Info("seeded admin account")
			}
		}

		count, err := tx.NewSelect().Model((*VaultKeyRow)(nil)).Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		kr, w, err := keyring.Generate(db.cfg.KeySource)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		row := &VaultKeyRow{
			ID:             1,
			EncryptedDEK:   w.EncryptedDEK,
			DEKNonce:       w.Nonce,
			KEKSalt:        w.Salt,
			KEKSource:      w.Source,
			InstallationID: w.InstallationID,
			CreatedAt:      Now(),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			kr.Wipe()
			return err
		}
		fresh = kr
		db.log.Info("provisioned data key",
			zap.String("kek_source", w.Source),
			zap.String("installation_id", w.InstallationID))
		return nil
	})
	if err != nil {
		if fresh != nil {
			fresh.Wipe()
		}
		return err
	}

	if fresh != nil {
		db.mu.Lock()
		if db.kr != nil {
			db.kr.Wipe()
		}
		db.kr = fresh
		db.mu.Unlock()
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrate: %w: %w", ErrStorage, err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db.sql, sub)
	if err != nil {
		return fmt.Errorf("store: migrate: %w: %w", ErrStorage, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: migrate: %w: %w", ErrStorage, err)
	}
	if len(results) > 0 {
		db.log.Info("applied migrations", zap.Int("count", len(results)))
	}
	return nil
}

// Keyring returns the unwrapped data key. It is cached until Close.
// A wrong master secret or key file yields ErrCrypto.
func (db *DB) Keyring(ctx context.Context) (*keyring.Keyring, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.kr != nil {
		return db.kr, nil
	}

	row := new(VaultKeyRow)
	err := db.bun.NewSelect().Model(row).Where("id = ?", 1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: keyring: %w: %w", ErrStorage, ErrNotInitialized)
	}
	if err != nil {
		return nil, Classify("store: keyring", err)
	}

	kr, err := keyring.Unwrap(db.cfg.KeySource, &keyring.Wrapped{
		EncryptedDEK:   row.EncryptedDEK,
		Nonce:          row.DEKNonce,
		Salt:           row.KEKSalt,
		Source:         row.KEKSource,
		InstallationID: row.InstallationID,
	})
	if err != nil {
		db.log.Warn("failed to unwrap data key", zap.String("kek_source", row.KEKSource), zap.Error(err))
		return nil, fmt.Errorf("store: keyring: %w: %w", ErrCrypto, err)
	}

	db.kr = kr
	return kr, nil
}
