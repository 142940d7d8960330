// Package config loads passvault settings from defaults, a passvault.yaml
// file, PASSVAULT_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/keyring"
	"github.com/forest6511/passvault/pkg/store"
)

const (
	// FileName is the config file name without extension.
	FileName = "passvault"

	// EnvPrefix is prepended to every environment override, e.g.
	// PASSVAULT_DB or PASSVAULT_HASH_MEMORY.
	EnvPrefix = "passvault"

	// FileMode is the permission of written config files.
	FileMode = 0600
)

// Hash holds the Argon2id cost for new account digests.
type Hash struct {
	Memory  uint32 `mapstructure:"memory" yaml:"memory"`
	Time    uint32 `mapstructure:"time" yaml:"time"`
	Threads uint8  `mapstructure:"threads" yaml:"threads"`
}

// Config is the resolved passvault configuration.
type Config struct {
	DB                string `mapstructure:"db" yaml:"db"`
	KeyFile           string `mapstructure:"key_file" yaml:"key_file,omitempty"`
	MasterSecret      string `mapstructure:"master_secret" yaml:"-"`
	AdminSeedPassword string `mapstructure:"admin_seed_password" yaml:"admin_seed_password,omitempty"`
	LogLevel          string `mapstructure:"log_level" yaml:"log_level"`
	User              string `mapstructure:"user" yaml:"user,omitempty"`
	Hash              Hash   `mapstructure:"hash" yaml:"hash"`
}

// Defaults returns the built-in value of every key.
func Defaults() map[string]any {
	p := crypto.DefaultPasswordParams()
	return map[string]any{
		"db":                  store.DefaultDBFileName,
		"key_file":            "",
		"master_secret":       "",
		"admin_seed_password": store.DefaultAdminPassword,
		"log_level":           "warn",
		"user":                "",
		"hash.memory":         p.Memory,
		"hash.time":           p.Time,
		"hash.threads":        p.Threads,
	}
}

// flagKeys maps CLI flag names to config keys where they differ.
var flagKeys = map[string]string{
	"log-level": "log_level",
	"key-file":  "key_file",
}

// UserConfigPath returns the per-user config file location.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: could not get user config directory: %w", err)
	}
	return filepath.Join(dir, "passvault", FileName+".yaml"), nil
}

// Load resolves the configuration. explicitPath, when non-empty, names the
// only config file consulted and must exist; otherwise passvault.yaml is
// searched in the user config directory and the current directory. flags may
// be nil.
func Load(flags *pflag.FlagSet, explicitPath string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		if path, err := UserConfigPath(); err == nil {
			v.AddConfigPath(filepath.Dir(path))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return c, fmt.Errorf("config: read %s: %w", configName(v, explicitPath), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = f.Name
			}
			if _, known := Defaults()[key]; !known {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return c, fmt.Errorf("config: bind flags: %w", bindErr)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func configName(v *viper.Viper, explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return FileName + ".yaml"
}

// KeySource returns the KEK source: the master secret when set, otherwise
// the key file (empty lets the store place it next to the database).
func (c Config) KeySource() keyring.Source {
	if c.MasterSecret != "" {
		return keyring.Source{MasterSecret: []byte(c.MasterSecret)}
	}
	return keyring.Source{KeyFile: c.KeyFile}
}

// HashParams returns the Argon2id parameters for new digests.
func (c Config) HashParams() crypto.PasswordParams {
	return crypto.PasswordParams{
		Memory:  c.Hash.Memory,
		Time:    c.Hash.Time,
		Threads: c.Hash.Threads,
	}
}

// Store builds the storage configuration.
func (c Config) Store(log *zap.Logger) store.Config {
	return store.Config{
		Path:          c.DB,
		KeySource:     c.KeySource(),
		AdminPassword: c.AdminSeedPassword,
		HashParams:    c.HashParams(),
		Logger:        log,
	}
}

// Write saves c as YAML to path with mode 0600, creating the directory.
// The master secret is never written.
func Write(c Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: could not create config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, FileMode)
}
