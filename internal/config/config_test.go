package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/store"
)

// isolate points the user config dir and working directory at empty temp
// directories so no real passvault.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))
	t.Setenv("HOME", tmp)
	t.Chdir(tmp)
	return tmp
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("db", "", "")
	fs.String("user", "", "")
	fs.String("log-level", "", "")
	fs.String("key-file", "", "")
	fs.Bool("verbose", false, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	c, err := Load(nil, "")
	require.NoError(t, err)

	p := crypto.DefaultPasswordParams()
	assert.Equal(t, store.DefaultDBFileName, c.DB)
	assert.Equal(t, store.DefaultAdminPassword, c.AdminSeedPassword)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Empty(t, c.MasterSecret)
	assert.Equal(t, p, c.HashParams())
}

func TestLoad_CurrentDirFile(t *testing.T) {
	tmp := isolate(t)
	yml := "db: ./vault/data.db\nuser: alice\nhash:\n  memory: 1024\n  time: 2\n  threads: 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "passvault.yaml"), []byte(yml), 0o600))

	c, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "./vault/data.db", c.DB)
	assert.Equal(t, "alice", c.User)
	assert.Equal(t, crypto.PasswordParams{Memory: 1024, Time: 2, Threads: 1}, c.HashParams())
	// untouched keys keep defaults
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoad_UserConfigDirFile(t *testing.T) {
	isolate(t)
	path, err := UserConfigPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

	c, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_ExplicitFile(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("db: /srv/passvault.db\nmaster_secret: from-file\n"), 0o600))

	c, err := Load(nil, file)
	require.NoError(t, err)
	assert.Equal(t, "/srv/passvault.db", c.DB)
	assert.Equal(t, "from-file", c.MasterSecret)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	tmp := isolate(t)

	_, err := Load(nil, filepath.Join(tmp, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestLoad_MalformedFile(t *testing.T) {
	tmp := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "passvault.yaml"), []byte("db: [unterminated\n"), 0o600))

	_, err := Load(nil, "")
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmp := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "passvault.yaml"), []byte("db: from-file.db\n"), 0o600))
	t.Setenv("PASSVAULT_DB", "from-env.db")
	t.Setenv("PASSVAULT_MASTER_SECRET", "s3cret")
	t.Setenv("PASSVAULT_HASH_MEMORY", "2048")

	c, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", c.DB)
	assert.Equal(t, "s3cret", c.MasterSecret)
	assert.Equal(t, uint32(2048), c.Hash.Memory)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PASSVAULT_DB", "from-env.db")
	t.Setenv("PASSVAULT_LOG_LEVEL", "info")

	c, err := Load(newFlags(t, "--db", "from-flag.db", "--key-file", "/tmp/k"), "")
	require.NoError(t, err)
	assert.Equal(t, "from-flag.db", c.DB)
	assert.Equal(t, "/tmp/k", c.KeyFile)
	// unset flags do not mask lower layers
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoad_UnsetFlagsKeepDefaults(t *testing.T) {
	isolate(t)

	c, err := Load(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, store.DefaultDBFileName, c.DB)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestKeySource(t *testing.T) {
	c := Config{KeyFile: "/k"}
	src := c.KeySource()
	assert.Nil(t, src.MasterSecret)
	assert.Equal(t, "/k", src.KeyFile)

	c.MasterSecret = "m"
	src = c.KeySource()
	assert.Equal(t, []byte("m"), src.MasterSecret)
	assert.Empty(t, src.KeyFile)
}

func TestStore(t *testing.T) {
	log := zap.NewNop()
	c := Config{DB: "x.db", AdminSeedPassword: "seed", Hash: Hash{Memory: 64, Time: 1, Threads: 1}}

	sc := c.Store(log)
	assert.Equal(t, "x.db", sc.Path)
	assert.Equal(t, "seed", sc.AdminPassword)
	assert.Equal(t, crypto.PasswordParams{Memory: 64, Time: 1, Threads: 1}, sc.HashParams)
	assert.Same(t, log, sc.Logger)
}

func TestWrite(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "out", "passvault.yaml")

	c := Config{
		DB:           "data.db",
		MasterSecret: "never-on-disk",
		LogLevel:     "info",
		User:         "alice",
		Hash:         Hash{Memory: 4096, Time: 2, Threads: 2},
	}
	require.NoError(t, Write(c, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileMode), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-on-disk")
	assert.NotContains(t, string(data), "master_secret")

	got, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "data.db", got.DB)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, c.Hash, got.Hash)
	assert.Empty(t, got.MasterSecret)
}

func TestWrite_TightensExistingFile(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "passvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: old.db\n"), 0o644))

	require.NoError(t, Write(Config{DB: "new.db"}, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileMode), info.Mode().Perm())
}
