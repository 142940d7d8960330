package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/auth"
	"github.com/forest6511/passvault/pkg/store"
)

var errProtectedAdmin = fmt.Errorf("%w: the %s account cannot be deleted", store.ErrPermission, store.AdminUsername)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts (admin only)",
	}
	cmd.AddCommand(
		newUserListCmd(a),
		newUserAddCmd(a),
		newUserUpdateCmd(a),
		newUserDeleteCmd(a),
	)
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.loginAdmin(ctx); err != nil {
				return err
			}
			users, err := a.users.ListUsers(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\n", u.Username, u.Role)
			}
			return w.Flush()
		},
	}
}

func newUserAddCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.loginAdmin(ctx); err != nil {
				return err
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			username := auth.NormalizeUsername(args[0])
			password, err := a.newPassword("password for "+username, username)
			if err != nil {
				return err
			}
			u, err := a.users.AddUser(ctx, username, password, r)
			if err != nil {
				return err
			}
			a.printf("Account %s created with role %s\n", u.Username, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(auth.RoleBasic), "Role: basic or admin")
	return cmd
}

func newUserUpdateCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "update <username>",
		Short: "Set a new password and optionally a new role",
		Long: `Replace the password of an account. The role is kept unless --role is
given. The admin account cannot be demoted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.loginAdmin(ctx); err != nil {
				return err
			}
			username := auth.NormalizeUsername(args[0])

			newRole, err := a.currentRole(cmd, username, role)
			if err != nil {
				return err
			}
			password, err := a.newPassword("new password for "+username, username)
			if err != nil {
				return err
			}

			updated, err := a.users.UpdateUser(ctx, username, password, newRole)
			if err != nil {
				return err
			}
			if !updated {
				return fmt.Errorf("%w: user %q", store.ErrNotFound, username)
			}
			a.printf("Account %s updated (role %s)\n", username, newRole)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "New role: basic or admin (default: unchanged)")
	return cmd
}

// currentRole returns the parsed --role when it was given, otherwise the
// stored role of username.
func (a *app) currentRole(cmd *cobra.Command, username, flagValue string) (auth.Role, error) {
	if cmd.Flags().Changed("role") {
		return auth.ParseRole(flagValue)
	}
	users, err := a.users.ListUsers(cmd.Context())
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.Username == username {
			return u.Role, nil
		}
	}
	return "", fmt.Errorf("%w: user %q", store.ErrNotFound, username)
}

func newUserDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account and all of its secrets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := auth.NormalizeUsername(args[0])
			// Refuse before touching the database.
			if username == store.AdminUsername {
				return errProtectedAdmin
			}

			ctx := cmd.Context()
			s, err := a.loginAdmin(ctx)
			if err != nil {
				return err
			}
			if username == s.username {
				return fmt.Errorf("%w: cannot delete the account you are logged in as", store.ErrPermission)
			}

			if !force && !a.confirm(fmt.Sprintf("Delete %s and all of its secrets?", username)) {
				a.printf("Aborted\n")
				return nil
			}

			deleted, err := a.users.DeleteUser(ctx, username)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: user %q", store.ErrNotFound, username)
			}
			a.printf("Account %s deleted\n", username)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}
