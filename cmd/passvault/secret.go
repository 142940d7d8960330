package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passvault/pkg/security"
	"github.com/forest6511/passvault/pkg/store"
	"github.com/forest6511/passvault/pkg/vault"
)

const maskedPassword = "********"

func newSecretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "secret",
		Aliases: []string{"secrets"},
		Short:   "Manage your stored website logins",
	}
	cmd.AddCommand(
		newSecretAddCmd(a),
		newSecretListCmd(a),
		newSecretGetCmd(a),
		newSecretCopyCmd(a),
		newSecretDeleteCmd(a),
		newSecretReportCmd(a),
	)
	return cmd
}

// validateWebsite requires an https URL with a host.
func validateWebsite(website string) error {
	website = strings.TrimSpace(website)
	u, err := url.Parse(website)
	if err != nil || !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: website must start with https://", store.ErrValidation)
	}
	if host := u.Hostname(); host == "" || !strings.Contains(host, ".") {
		return fmt.Errorf("%w: website %q has no valid host", store.ErrValidation, website)
	}
	return nil
}

func parseSecretID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid secret id %q", store.ErrValidation, arg)
	}
	return id, nil
}

func newSecretAddCmd(a *app) *cobra.Command {
	var (
		username string
		generate bool
	)
	opts := defaultGenerateOptions()

	cmd := &cobra.Command{
		Use:   "add <website>",
		Short: "Store a login for a website",
		Long: `Store a website login. The website must be an https:// URL.

Examples:
  passvault secret add https://example.com --username alice@example.com
  passvault secret add https://example.com --username alice --generate -l 32`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			website := strings.TrimSpace(args[0])
			if err := validateWebsite(website); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.login(ctx)
			if err != nil {
				return err
			}

			if strings.TrimSpace(username) == "" {
				if username, err = a.readLine("Username for " + website + ": "); err != nil {
					return err
				}
			}

			var password string
			if generate {
				passwords, err := opts.generate()
				if err != nil {
					return err
				}
				password = passwords[0]
			} else {
				if password, err = a.readPassword("Password for " + website + ": "); err != nil {
					return err
				}
				a.showStrength(password, username)
			}

			id, err := a.vault.AddSecret(ctx, s.id, website, username, password)
			if err != nil {
				return err
			}
			a.printf("Secret %d stored for %s\n", id, website)
			if generate {
				a.printf("Generated password: %s\n", password)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Login name for the website (prompted if empty)")
	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "Generate the password instead of prompting")
	opts.bindFlags(cmd)
	return cmd
}

func newSecretListCmd(a *app) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your stored logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.login(ctx)
			if err != nil {
				return err
			}
			secrets, err := a.vault.ListSecrets(ctx, s.id)
			if err != nil {
				return err
			}
			if len(secrets) == 0 {
				a.printf("No secrets stored\n")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWEBSITE\tUSERNAME\tPASSWORD")
			for _, sec := range secrets {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", sec.ID, sec.Website, sec.Username, displayPassword(sec.Password, show))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print passwords in clear text")
	return cmd
}

func displayPassword(p string, show bool) string {
	if show {
		return p
	}
	return maskedPassword
}

func newSecretGetCmd(a *app) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one stored login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSecretID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.login(ctx)
			if err != nil {
				return err
			}
			sec, err := a.vault.GetSecret(ctx, s.id, id)
			if err != nil {
				return err
			}
			a.printf("Website:  %s\n", sec.Website)
			a.printf("Username: %s\n", sec.Username)
			a.printf("Password: %s\n", displayPassword(sec.Password, show))
			a.printf("Updated:  %s\n", sec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the password in clear text")
	return cmd
}

func newSecretCopyCmd(a *app) *cobra.Command {
	var clearAfter time.Duration
	cmd := &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a stored password to the clipboard",
		Long: `Copy a stored password to the clipboard.

The command waits and then clears the clipboard if it still holds the
password. Interrupting the wait clears it immediately. Use --clear-after 0
to leave the password on the clipboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSecretID(args[0])
			if err != nil {
				return err
			}
			if clearAfter < 0 {
				return fmt.Errorf("%w: --clear-after must not be negative", store.ErrValidation)
			}
			ctx := cmd.Context()
			s, err := a.login(ctx)
			if err != nil {
				return err
			}
			sec, err := a.vault.GetSecret(ctx, s.id, id)
			if err != nil {
				return err
			}
			if err := copyToClipboard(sec.Password); err != nil {
				return err
			}
			a.printf("Password for %s copied to clipboard\n", sec.Website)
			if clearAfter == 0 {
				return nil
			}

			a.printf("Clipboard will be cleared in %s\n", clearAfter)
			cleared, err := clearClipboardAfter(ctx, sec.Password, clearAfter)
			if err != nil {
				return err
			}
			if cleared {
				a.printf("Clipboard cleared\n")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&clearAfter, "clear-after", defaultClipboardClear, "Clear the clipboard after this long if it still holds the password (0 disables)")
	return cmd
}

func newSecretDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your stored logins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSecretID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.login(ctx)
			if err != nil {
				return err
			}
			if !force {
				sec, err := a.vault.GetSecret(ctx, s.id, id)
				if err != nil {
					return err
				}
				if !a.confirm(fmt.Sprintf("Delete secret %d (%s)?", id, sec.Website)) {
					a.printf("Aborted\n")
					return nil
				}
			}
			if err := a.vault.DeleteSecret(ctx, s.id, id); err != nil {
				return err
			}
			a.printf("Secret %d deleted\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func newSecretReportCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Find weak and reused passwords",
		Long: `Analyze the passwords in your vault.

The score (0-100) is calculated from:
  - Password Strength (0-50): average strength, length based
  - Uniqueness (0-50): share of distinct passwords`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.login(ctx)
			if err != nil {
				return err
			}
			secrets, err := a.vault.ListSecrets(ctx, s.id)
			if err != nil {
				return err
			}

			analyzer, err := security.NewAnalyzer()
			if err != nil {
				return err
			}
			defer analyzer.Close()
			report := analyzer.Analyze(secrets, limit)

			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal report: %w", err)
				}
				a.printf("%s\n", data)
				return nil
			}
			a.printReport(report, secrets)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum issues of each type to list (0 = all)")
	return cmd
}

func (a *app) printReport(r *security.Report, secrets []vault.Secret) {
	websites := make(map[int64]string, len(secrets))
	for _, s := range secrets {
		websites[s.ID] = s.Website
	}

	a.printf("Security score: %d/100 (%d secrets)\n", r.Overall, r.Total)
	a.printf("  Strength:   %d/50\n", r.Components.Strength)
	a.printf("  Uniqueness: %d/50\n", r.Components.Uniqueness)

	if len(r.Issues) == 0 {
		a.printf("\nNo issues found\n")
		return
	}

	a.printf("\nIssues:\n")
	for i, issue := range r.Issues {
		switch issue.Type {
		case security.IssueDuplicatePassword:
			sites := make([]string, 0, len(issue.SecretIDs))
			for _, id := range issue.SecretIDs {
				sites = append(sites, fmt.Sprintf("%d %s", id, websites[id]))
			}
			a.printf("%d. [%s] %s: %s\n", i+1, issue.Severity, issue.Description, strings.Join(sites, ", "))
		default:
			a.printf("%d. [%s] %d %s: %s\n", i+1, issue.Severity, issue.SecretID, issue.Website, issue.Description)
		}
	}

	a.printf("\nSuggestions:\n")
	for _, s := range r.Suggestions {
		a.printf("  - %s\n", s)
	}
}
