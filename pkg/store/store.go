// Package store owns the SQLite file behind passvault: it opens the
// database, applies the embedded schema migrations, seeds the protected
// admin account, provisions the wrapped data key and runs transactions on
// behalf of the auth and vault packages.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/keyring"
)

const (
	DefaultDBFileName  = "passvault.db"
	DefaultKeyFileName = "passvault.key"

	DefaultAdminPassword = "admin123"

	FileMode = 0600
	DirMode  = 0700

	// MinDiskSpaceBytes is the free space required to open the database.
	MinDiskSpaceBytes = 10 * 1024 * 1024
	// DiskWarningPercent triggers a low-space warning.
	DiskWarningPercent = 90

	busyTimeoutMillis = 5000
)

var (
	ErrInsufficientDisk = errors.New("store: insufficient disk space")
	ErrNotInitialized   = errors.New("store: vault keys missing, run init")
)

// Config is the storage configuration. It is passed explicitly to Open so
// each caller (and each test) can point at its own database.
type Config struct {
	// Path is the SQLite file. Its directory is created if needed.
	Path string

	// KeySource provides the KEK that wraps the data key. An empty
	// KeySource.KeyFile defaults to passvault.key next to Path.
	KeySource keyring.Source

	// AdminPassword is the seed password for the admin account.
	AdminPassword string

	// HashParams are the Argon2id costs for new password digests.
	HashParams crypto.PasswordParams

	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultDBFileName
	}
	if c.KeySource.KeyFile == "" {
		c.KeySource.KeyFile = filepath.Join(filepath.Dir(c.Path), DefaultKeyFileName)
	}
	if c.AdminPassword == "" {
		c.AdminPassword = DefaultAdminPassword
	}
	if c.HashParams == (crypto.PasswordParams{}) {
		c.HashParams = crypto.DefaultPasswordParams()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// DB is the shared storage handle.
type DB struct {
	sql *sql.DB
	bun *bun.DB
	cfg Config
	log *zap.Logger

	mu sync.Mutex
	kr *keyring.Keyring
}

// Open creates the database file if needed and opens it with foreign keys
// enforced, a busy timeout and a single connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger.Named("store")

	if err := os.MkdirAll(filepath.Dir(cfg.Path), DirMode); err != nil {
		return nil, fmt.Errorf("store: open: %w: failed to create directory: %w", ErrStorage, err)
	}

	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE|os.O_EXCL, FileMode)
		if err != nil && !os.IsExist(err) {
			return nil, fmt.Errorf("store: open: %w: failed to create database file: %w", ErrStorage, err)
		}
		if f != nil {
			f.Close()
		}
		log.Info("created database file", zap.String("path", cfg.Path))
	}

	if err := checkDiskSpace(cfg.Path, log); err != nil {
		return nil, fmt.Errorf("store: open: %w: %w", ErrStorage, err)
	}

	query := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", busyTimeoutMillis)
	sqlDB, err := sql.Open("sqlite", DSN(cfg.Path, query))
	if err != nil {
		return nil, fmt.Errorf("store: open: %w: %w", ErrStorage, err)
	}

	// One connection serializes statements from this process; SQLite
	// locking handles other processes.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: open: %w: %w", ErrStorage, err)
	}

	return FromSQL(sqlDB, cfg), nil
}

// DSN returns a file: URI for path with the given raw query. The path is
// percent-escaped so '#' and '?' in directory names stay part of the path.
func DSN(path, rawQuery string) string {
	u := &url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(path), RawQuery: rawQuery}
	return u.String()
}

// FromSQL wraps an already opened *sql.DB. Tests use it with sqlmock.
func FromSQL(sqlDB *sql.DB, cfg Config) *DB {
	cfg = cfg.withDefaults()
	return &DB{
		sql: sqlDB,
		bun: bun.NewDB(sqlDB, sqlitedialect.New()),
		cfg: cfg,
		log: cfg.Logger.Named("store"),
	}
}

// Bun returns the query handle for reads outside transactions.
func (db *DB) Bun() *bun.DB {
	return db.bun
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.cfg.Path
}

// HashParams returns the configured Argon2id costs.
func (db *DB) HashParams() crypto.PasswordParams {
	return db.cfg.HashParams
}

// Logger returns the base logger the handle was configured with.
func (db *DB) Logger() *zap.Logger {
	return db.cfg.Logger
}

// WithTx runs fn in a transaction. It commits when fn returns nil and rolls
// back on error or panic. The returned error is classified under op.
func (db *DB) WithTx(ctx context.Context, op string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return Classify(op, db.bun.RunInTx(ctx, nil, fn))
}

// Close wipes the cached data key and closes the database.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.kr != nil {
		db.kr.Wipe()
		db.kr = nil
	}
	db.mu.Unlock()

	if err := db.bun.Close(); err != nil {
		return fmt.Errorf("store: close: %w: %w", ErrStorage, err)
	}
	return nil
}

// CheckPermissions logs a warning when the database, the key file or their
// directory are accessible by group or others. It never blocks.
func (db *DB) CheckPermissions() {
	check := func(path string, want os.FileMode) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			db.log.Warn("insecure permissions",
				zap.String("path", path),
				zap.String("mode", fmt.Sprintf("%04o", perm)),
				zap.String("expected", fmt.Sprintf("%04o", want)))
		}
	}

	check(filepath.Dir(db.cfg.Path), DirMode)
	check(db.cfg.Path, FileMode)
	if db.cfg.KeySource.KeyFile != "" {
		check(db.cfg.KeySource.KeyFile, keyring.KeyFileMode)
	}
}

func checkDiskSpace(path string, log *zap.Logger) error {
	info, err := DiskSpace(filepath.Dir(path))
	if err != nil {
		log.Warn("failed to check disk space", zap.Error(err))
		return nil
	}
	if info.Available < MinDiskSpaceBytes {
		return fmt.Errorf("%w: only %d MB available, need at least %d MB",
			ErrInsufficientDisk, info.Available/(1024*1024), MinDiskSpaceBytes/(1024*1024))
	}
	if info.UsedPct >= DiskWarningPercent {
		log.Warn("disk is almost full", zap.Int("used_pct", info.UsedPct))
	}
	return nil
}
