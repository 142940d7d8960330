package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/passvault/internal/config"
	"github.com/forest6511/passvault/internal/logging"
	"github.com/forest6511/passvault/pkg/auth"
	"github.com/forest6511/passvault/pkg/store"
	"github.com/forest6511/passvault/pkg/vault"
)

// Environment variables read directly by the CLI for non-interactive use.
const (
	envPassword = "PASSVAULT_PASSWORD"
)

var (
	errAuthFailed    = fmt.Errorf("%w: invalid username or password", store.ErrPermission)
	errAdminRequired = fmt.Errorf("%w: admin role required", store.ErrPermission)
	errNoUser        = fmt.Errorf("%w: no user given, use --user or set user in the config", store.ErrValidation)
)

// app carries what every command needs. Stores are opened lazily by open.
type app struct {
	in     *bufio.Reader
	rawIn  io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	cfg        config.Config
	log        *zap.Logger

	db     *store.DB
	users  *auth.Store
	vault  *vault.Store
	getenv func(string) string
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     bufio.NewReader(in),
		rawIn:  in,
		out:    out,
		errOut: errOut,
		log:    zap.NewNop(),
		getenv: lookupEnv,
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passvault",
		Short: "passvault is a local multi-user password vault",
		Long: `passvault keeps website logins for several local users in one SQLite file.
Each password is encrypted with AES-256-GCM under a data key that is itself
wrapped by a master secret or a key file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// PersistentPreRunE runs before every subcommand and resolves the
		// configuration; the database is opened by the commands that need it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetIn(a.rawIn)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default: passvault.yaml in the user config dir or current dir)")
	pf.String("db", "", "Database file (default: passvault.db)")
	pf.String("key-file", "", "Key file used when no master secret is set (default: next to the database)")
	pf.StringP("user", "u", "", "Username to act as")
	pf.String("log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newInitCmd(a),
		newLoginCmd(a),
		newSignupCmd(a),
		newUserCmd(a),
		newSecretCmd(a),
		newImportCmd(a),
		newGenerateCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags(), a.configPath)
	if err != nil {
		return err
	}
	log, err := logging.NewWithWriter(cfg.LogLevel, a.errOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// open opens and initializes the database and builds the stores.
func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	db, err := store.Open(ctx, a.cfg.Store(a.log))
	if err != nil {
		return err
	}
	if err := db.Initialize(ctx); err != nil {
		_ = db.Close()
		return err
	}
	db.CheckPermissions()

	a.db = db
	a.users = auth.New(db, auth.WithLogger(a.log), auth.WithHashParams(a.cfg.HashParams()))
	a.vault = vault.New(db, vault.WithLogger(a.log))
	return nil
}

func (a *app) close() error {
	_ = a.log.Sync()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db, a.users, a.vault = nil, nil, nil
	return err
}

// session is an authenticated caller.
type session struct {
	username string
	id       int64
	role     auth.Role
}

func (s session) isAdmin() bool {
	return s.role == auth.RoleAdmin
}

// login authenticates the configured user. The password comes from
// PASSVAULT_PASSWORD or a prompt.
func (a *app) login(ctx context.Context) (session, error) {
	if err := a.open(ctx); err != nil {
		return session{}, err
	}

	username := auth.NormalizeUsername(a.cfg.User)
	if username == "" {
		return session{}, errNoUser
	}
	password, err := a.authPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return session{}, err
	}

	ok, role, err := a.users.ValidateUser(ctx, username, password)
	if err != nil {
		return session{}, err
	}
	if !ok {
		a.log.Warn("login failed", zap.String("username", username))
		return session{}, errAuthFailed
	}

	id, err := a.users.GetUserID(ctx, username)
	if err != nil {
		return session{}, err
	}
	a.log.Debug("login succeeded", zap.String("username", username), zap.String("role", string(role)))
	return session{username: username, id: id, role: role}, nil
}

// loginAdmin is login restricted to admin accounts.
func (a *app) loginAdmin(ctx context.Context) (session, error) {
	s, err := a.login(ctx)
	if err != nil {
		return s, err
	}
	if !s.isAdmin() {
		return s, errAdminRequired
	}
	return s, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) warnf(format string, args ...any) {
	fmt.Fprintf(a.errOut, "Warning: "+format+"\n", args...)
}
