package importer

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/passvault/pkg/auth"
	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/store"
	"github.com/forest6511/passvault/pkg/vault"
)

var testParams = crypto.PasswordParams{Memory: 64, Time: 1, Threads: 1}

// writeLegacyDB creates a database with the layout and encodings of the
// original program.
func writeLegacyDB(t *testing.T) string {
	t.Helper()
	return writeLegacyDBAt(t, filepath.Join(t.TempDir(), LegacyDBFileName))
}

func writeLegacyDBAt(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE Users (
			Id INTEGER PRIMARY KEY AUTOINCREMENT,
			Username TEXT UNIQUE NOT NULL,
			Password TEXT NOT NULL,
			Role TEXT NOT NULL DEFAULT 'basic')`,
		`CREATE TABLE StoredPasswords (
			Id INTEGER PRIMARY KEY AUTOINCREMENT,
			UserId INTEGER NOT NULL,
			Website TEXT NOT NULL,
			Username TEXT NOT NULL,
			Password TEXT NOT NULL,
			FOREIGN KEY(UserId) REFERENCES Users(Id))`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}

	users := []struct{ name, pw, role string }{
		{"admin", "admin123", "admin"},
		{"bob", "hunter2", "Basic"},
		{"eve", "x", "superuser"},
	}
	for _, u := range users {
		_, err := db.Exec("INSERT INTO Users (Username, Password, Role) VALUES (?, ?, ?)",
			u.name, crypto.LegacyHashPassword(u.pw), u.role)
		require.NoError(t, err)
	}

	enc := func(s string) string {
		out, err := crypto.LegacyEncrypt(s)
		require.NoError(t, err)
		return out
	}
	secrets := []struct {
		userID                      int
		website, username, password string
	}{
		{1, "https://admin.example", "root", enc("adm1n")},
		{2, "https://example.com", "bob@example.com", enc("P@ss1")},
		{2, "https://bank.example", "bob", enc("s3cure")},
		{2, "https://broken.example", "bob", "%%%not-base64"},
		{9, "https://orphan.example", "ghost", enc("x")},
	}
	for _, s := range secrets {
		_, err := db.Exec("INSERT INTO StoredPasswords (UserId, Website, Username, Password) VALUES (?, ?, ?, ?)",
			s.userID, s.website, s.username, s.password)
		require.NoError(t, err)
	}
	return path
}

func TestReadLegacy(t *testing.T) {
	dump, err := ReadLegacy(context.Background(), writeLegacyDB(t))
	require.NoError(t, err)

	require.Len(t, dump.Users, 3)
	assert.Equal(t, "admin", dump.Users[0].Username)
	assert.Equal(t, auth.RoleAdmin, dump.Users[0].Role)
	assert.Equal(t, auth.RoleBasic, dump.Users[1].Role)
	assert.Equal(t, auth.RoleBasic, dump.Users[2].Role, "unknown role falls back to basic")

	ok, err := crypto.VerifyPassword("hunter2", dump.Users[1].Digest)
	require.NoError(t, err)
	assert.True(t, ok)

	bob := dump.Users[1]
	require.Len(t, bob.Secrets, 2)
	assert.Equal(t, "P@ss1", bob.Secrets[0].Password)
	assert.Equal(t, "https://bank.example", bob.Secrets[1].Website)

	// unknown role, undecryptable secret, orphan secret
	assert.Len(t, dump.Warnings, 3)
}

func TestReadLegacyPathWithURIChars(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("'?' is not allowed in Windows file names")
	}
	path := writeLegacyDBAt(t, filepath.Join(t.TempDir(), "old#copy?1", LegacyDBFileName))

	dump, err := ReadLegacy(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, dump.Users, 3)
}

func TestReadLegacyMissingFile(t *testing.T) {
	_, err := ReadLegacy(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}

func newTarget(t *testing.T) (*store.DB, *auth.Store, *vault.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Config{
		Path:       filepath.Join(t.TempDir(), "passvault.db"),
		HashParams: testParams,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Initialize(ctx))
	return db, auth.New(db), vault.New(db)
}

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	dump, err := ReadLegacy(ctx, writeLegacyDB(t))
	require.NoError(t, err)

	_, users, secrets := newTarget(t)

	report, err := ImportLegacy(ctx, dump, users, secrets, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersCreated)
	assert.Equal(t, 1, report.UsersExisting, "seeded admin already exists")
	assert.Equal(t, 2, report.SecretsImported)

	ok, role, err := users.ValidateUser(ctx, "bob", "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, auth.RoleBasic, role)

	bobID, err := users.GetUserID(ctx, "bob")
	require.NoError(t, err)
	list, err := secrets.ListSecrets(ctx, bobID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "P@ss1", list[0].Password)

	adminID, err := users.GetUserID(ctx, "admin")
	require.NoError(t, err)
	n, err := secrets.CountSecrets(ctx, adminID)
	require.NoError(t, err)
	assert.Zero(t, n, "existing accounts are skipped without merge")
}

func TestImportLegacyMerge(t *testing.T) {
	ctx := context.Background()
	dump, err := ReadLegacy(ctx, writeLegacyDB(t))
	require.NoError(t, err)

	_, users, secrets := newTarget(t)

	report, err := ImportLegacy(ctx, dump, users, secrets, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.SecretsImported)

	adminID, err := users.GetUserID(ctx, "admin")
	require.NoError(t, err)
	list, err := secrets.ListSecrets(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "adm1n", list[0].Password)

	// the existing admin keeps its own password
	ok, _, err := users.ValidateUser(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportLegacyRemovesAccountWhenSecretsFail(t *testing.T) {
	ctx := context.Background()
	_, users, secrets := newTarget(t)

	dump := &LegacyDump{Users: []LegacyUser{{
		Username: "carol",
		Digest:   crypto.LegacyHashPassword("pw"),
		Role:     auth.RoleBasic,
		Secrets: []Record{
			{Website: "https://ok.example", Username: "carol", Password: "fine"},
			{Website: "https://bad.example", Username: "", Password: "no-user"},
		},
	}}}

	report, err := ImportLegacy(ctx, dump, users, secrets, false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrValidation)
	assert.Zero(t, report.UsersCreated)

	exists, err := users.UserExists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, exists, "account without its secrets is not left behind")

	// a corrected rerun creates the account without needing merge
	dump.Users[0].Secrets = dump.Users[0].Secrets[:1]
	report, err = ImportLegacy(ctx, dump, users, secrets, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UsersCreated)
	assert.Equal(t, 1, report.SecretsImported)
}
