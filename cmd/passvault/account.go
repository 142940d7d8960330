package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/passvault/pkg/auth"
	"github.com/forest6511/passvault/pkg/store"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database, seed the admin account and provision the data key",
		Long: `Create the database if it does not exist, apply schema migrations, seed
the admin account and generate the wrapped data key.

Running init again is safe: existing users and secrets are never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			kr, err := a.db.Keyring(ctx)
			if err != nil {
				return err
			}

			a.printf("Vault ready at %s\n", a.db.Path())
			a.printf("Installation ID: %s\n", kr.InstallationID())
			if a.cfg.MasterSecret != "" {
				a.printf("Data key protected by: master secret\n")
			} else {
				keyFile := a.cfg.KeyFile
				if keyFile == "" {
					keyFile = filepath.Join(filepath.Dir(a.db.Path()), store.DefaultKeyFileName)
				}
				a.printf("Data key protected by: key file %s\n", keyFile)
			}

			// The seed password is public; nudge the operator to change it.
			seeded, _, err := a.users.ValidateUser(ctx, store.AdminUsername, a.cfg.AdminSeedPassword)
			if err != nil {
				return err
			}
			if seeded {
				a.warnf("the admin account still uses its seed password; change it with 'passvault user update admin -u admin'")
			}
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check a username and password",
		Long: `Verify the credentials of --user and print the account role.

passvault keeps no session between commands: every command that needs an
account authenticates again, reading PASSVAULT_PASSWORD or prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.vault.CountSecrets(cmd.Context(), s.id)
			if err != nil {
				return err
			}
			a.printf("Logged in as %s (%s), %d stored secret(s)\n", s.username, s.role, n)
			return nil
		},
	}
}

func newSignupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signup [username]",
		Short: "Create a basic account",
		Long: `Create a new account with the basic role. The password is asked twice.

Examples:
  passvault signup alice
  printf 'pw\npw\n' | passvault signup alice`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}

			username, err := a.usernameArg(args)
			if err != nil {
				return err
			}
			exists, err := a.users.UserExists(ctx, username)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: user %q", store.ErrDuplicate, username)
			}

			password, err := a.newPassword("password", username)
			if err != nil {
				return err
			}
			u, err := a.users.AddUser(ctx, username, password, auth.RoleBasic)
			if err != nil {
				return err
			}
			a.log.Info("signup", zap.String("username", u.Username))
			a.printf("Account %s created\n", u.Username)
			return nil
		},
	}
}

// usernameArg takes the username from args or prompts for it.
func (a *app) usernameArg(args []string) (string, error) {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		line, err := a.readLine("Username: ")
		if err != nil {
			return "", err
		}
		username = line
	}
	username = auth.NormalizeUsername(username)
	if username == "" {
		return "", fmt.Errorf("%w: username must not be empty", store.ErrValidation)
	}
	return username, nil
}
