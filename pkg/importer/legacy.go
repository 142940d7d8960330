package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/forest6511/passvault/pkg/auth"
	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/store"
	"github.com/forest6511/passvault/pkg/vault"
)

// LegacyDBFileName is the file written by the original program.
const LegacyDBFileName = "UserDatabase.db"

// LegacyUser is an account read from a legacy database, with its secrets
// already decrypted.
type LegacyUser struct {
	Username string
	// Digest is the stored unsalted SHA-256 digest in "sha256$" form.
	Digest  string
	Role    auth.Role
	Secrets []Record
}

// LegacyDump is the content of a legacy database.
type LegacyDump struct {
	Users    []LegacyUser
	Warnings []string
}

type legacyUserRow struct {
	ID       int64  `bun:"id"`
	Username string `bun:"username"`
	Password string `bun:"password"`
	Role     string `bun:"role"`
}

type legacySecretRow struct {
	ID       int64  `bun:"id"`
	UserID   int64  `bun:"user_id"`
	Website  string `bun:"website"`
	Username string `bun:"username"`
	Password string `bun:"password"`
}

// ReadLegacy opens a legacy database read-only and returns its accounts
// and their decrypted secrets. Secrets that fail to decrypt and secrets
// of unknown accounts become warnings.
func ReadLegacy(ctx context.Context, path string) (*LegacyDump, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("importer: legacy database: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", store.DSN(path, "mode=ro"))
	if err != nil {
		return nil, fmt.Errorf("importer: legacy database: %w", err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	defer db.Close()

	var users []legacyUserRow
	err = db.NewRaw("SELECT Id AS id, Username AS username, Password AS password, Role AS role FROM Users ORDER BY Id").Scan(ctx, &users)
	if err != nil {
		return nil, fmt.Errorf("importer: legacy database: read users: %w", err)
	}

	var secrets []legacySecretRow
	err = db.NewRaw("SELECT Id AS id, UserId AS user_id, Website AS website, Username AS username, Password AS password FROM StoredPasswords ORDER BY Id").Scan(ctx, &secrets)
	if err != nil {
		return nil, fmt.Errorf("importer: legacy database: read secrets: %w", err)
	}

	dump := &LegacyDump{}
	index := make(map[int64]int, len(users))
	for _, u := range users {
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			dump.Warnings = append(dump.Warnings, fmt.Sprintf("user %q: unknown role %q, imported as basic", u.Username, u.Role))
			role = auth.RoleBasic
		}
		index[u.ID] = len(dump.Users)
		dump.Users = append(dump.Users, LegacyUser{
			Username: auth.NormalizeUsername(u.Username),
			Digest:   crypto.LegacyDigest(u.Password),
			Role:     role,
		})
	}

	for _, s := range secrets {
		i, ok := index[s.UserID]
		if !ok {
			dump.Warnings = append(dump.Warnings, fmt.Sprintf("secret %d: owner %d does not exist", s.ID, s.UserID))
			continue
		}
		plain, err := crypto.LegacyDecrypt(s.Password)
		if err != nil {
			dump.Warnings = append(dump.Warnings, fmt.Sprintf("secret %d: %v", s.ID, err))
			continue
		}
		rec := Record{
			Website:  NormalizeValue(s.Website),
			Username: NormalizeValue(s.Username),
			Password: plain,
		}
		if rec.Website == "" || rec.Username == "" || rec.Password == "" {
			dump.Warnings = append(dump.Warnings, fmt.Sprintf("secret %d: empty website, username or password", s.ID))
			continue
		}
		dump.Users[i].Secrets = append(dump.Users[i].Secrets, rec)
	}

	return dump, nil
}

// LegacyReport summarizes ImportLegacy.
type LegacyReport struct {
	UsersCreated    int
	UsersExisting   int
	SecretsImported int
	Warnings        []string
}

// ImportLegacy writes dump into the current database. Accounts keep their
// legacy digest and are upgraded on first login. Accounts whose username
// already exists are left alone; with merge set their secrets are added to
// the existing account, otherwise they are skipped.
//
// An account created here is removed again when its secrets cannot be
// stored, so a rerun imports it from scratch.
func ImportLegacy(ctx context.Context, dump *LegacyDump, users *auth.Store, secrets *vault.Store, merge bool, log *zap.Logger) (*LegacyReport, error) {
	if log == nil {
		log = zap.NewNop()
	}
	report := &LegacyReport{Warnings: append([]string(nil), dump.Warnings...)}

	for _, u := range dump.Users {
		var ownerID int64
		isNew := false

		created, err := users.ImportUser(ctx, u.Username, u.Digest, u.Role)
		switch {
		case err == nil:
			ownerID = created.ID
			isNew = true
		case errors.Is(err, auth.ErrDuplicate):
			report.UsersExisting++
			if !merge {
				report.Warnings = append(report.Warnings, fmt.Sprintf("user %q exists, skipped with %d secrets", u.Username, len(u.Secrets)))
				continue
			}
			ownerID, err = users.GetUserID(ctx, u.Username)
			if err != nil {
				return report, err
			}
		case errors.Is(err, auth.ErrValidation):
			report.Warnings = append(report.Warnings, fmt.Sprintf("user %q: %v", u.Username, err))
			continue
		default:
			return report, err
		}

		ids, err := secrets.AddSecrets(ctx, ownerID, Entries(u.Secrets))
		if err != nil {
			if !isNew {
				return report, fmt.Errorf("importer: secrets of %q: %w", u.Username, err)
			}
			if _, delErr := users.DeleteUser(ctx, u.Username); delErr != nil {
				log.Error("failed to remove partially imported account", zap.String("username", u.Username), zap.Error(delErr))
				return report, fmt.Errorf("importer: secrets of %q: %w; account was kept without secrets, rerun with merge", u.Username, err)
			}
			return report, fmt.Errorf("importer: secrets of %q: %w", u.Username, err)
		}
		if isNew {
			report.UsersCreated++
		}
		report.SecretsImported += len(ids)
		log.Info("imported legacy account", zap.String("username", u.Username), zap.Int("secrets", len(ids)))
	}

	return report, nil
}
