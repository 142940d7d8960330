package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/passvault/pkg/importer"
	"github.com/forest6511/passvault/pkg/store"
	"github.com/forest6511/passvault/pkg/vault"
)

// maxImportFileSize bounds export files read into memory.
const maxImportFileSize = 50 * 1024 * 1024

func newImportCmd(a *app) *cobra.Command {
	var (
		source string
		merge  bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import logins from another password manager",
		Long: `Import website logins into your vault.

Sources:
  lastpass    LastPass CSV export
  1password   1Password CSV export
  bitwarden   Bitwarden unencrypted JSON export
  legacy      UserDatabase.db written by the original application (admin only;
              imports every account and its secrets)

Entries already present in your vault (same website and username) are skipped.

Examples:
  passvault import lastpass.csv --source lastpass
  passvault import UserDatabase.db --source legacy -u admin --merge`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := importer.Source(strings.ToLower(strings.TrimSpace(source)))
			if src == importer.SourceLegacy {
				return a.importLegacy(cmd, args[0], merge, dryRun)
			}
			parser, err := importer.GetParser(src)
			if err != nil {
				return fmt.Errorf("%w: invalid --source %q: must be one of %v", store.ErrValidation, source, importer.ValidSources())
			}
			return a.importExport(cmd, parser, args[0], dryRun)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Import source: "+strings.Join(importer.ValidSources(), ", "))
	cmd.Flags().BoolVar(&merge, "merge", false, "Legacy only: add secrets of existing accounts to those accounts")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without writing")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (a *app) importExport(cmd *cobra.Command, parser importer.Parser, path string, dryRun bool) error {
	data, err := readImportFile(path)
	if err != nil {
		return err
	}
	result, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: failed to parse %s file: %w", store.ErrValidation, parser.Source(), err)
	}
	importer.Deduplicate(result)
	a.printParseNotes(result.Warnings, result.Skipped)

	ctx := cmd.Context()
	s, err := a.login(ctx)
	if err != nil {
		return err
	}

	existing, err := a.vault.ListSecrets(ctx, s.id)
	if err != nil {
		return err
	}
	records, already := withoutExisting(result.Records, existing)

	if len(records) == 0 {
		a.printf("Nothing to import (%d already in vault)\n", already)
		return nil
	}
	if dryRun {
		a.printf("Would import %d secret(s), %d already in vault\n", len(records), already)
		return nil
	}

	ids, err := a.vault.AddSecrets(ctx, s.id, importer.Entries(records))
	if err != nil {
		return err
	}
	a.log.Info("import finished",
		zap.String("source", string(parser.Source())),
		zap.String("username", s.username),
		zap.Int("imported", len(ids)))
	a.printf("Imported %d secret(s), %d already in vault, %d skipped\n", len(ids), already, len(result.Skipped))
	return nil
}

// withoutExisting drops records whose website and username are already
// stored, comparing websites case-insensitively.
func withoutExisting(records []importer.Record, existing []vault.Secret) ([]importer.Record, int) {
	type key struct{ website, username string }
	have := make(map[key]bool, len(existing))
	for _, s := range existing {
		have[key{strings.ToLower(s.Website), s.Username}] = true
	}

	out := make([]importer.Record, 0, len(records))
	for _, r := range records {
		if have[key{strings.ToLower(r.Website), r.Username}] {
			continue
		}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

func (a *app) importLegacy(cmd *cobra.Command, path string, merge, dryRun bool) error {
	abs, err := checkImportPath(path)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := a.loginAdmin(ctx); err != nil {
		return err
	}

	dump, err := importer.ReadLegacy(ctx, abs)
	if err != nil {
		return err
	}
	if dryRun {
		secrets := 0
		for _, u := range dump.Users {
			secrets += len(u.Secrets)
		}
		a.printParseNotes(dump.Warnings, nil)
		a.printf("Would import %d account(s) and up to %d secret(s)\n", len(dump.Users), secrets)
		return nil
	}

	report, err := importer.ImportLegacy(ctx, dump, a.users, a.vault, merge, a.log)
	if err != nil {
		return err
	}
	a.printParseNotes(report.Warnings, nil)
	a.printf("Created %d account(s), %d already existed, imported %d secret(s)\n",
		report.UsersCreated, report.UsersExisting, report.SecretsImported)
	if report.UsersCreated > 0 {
		a.printf("Imported accounts keep their old password; it is re-hashed on first login\n")
	}
	return nil
}

func (a *app) printParseNotes(warnings []string, skipped []importer.SkippedItem) {
	for _, w := range warnings {
		a.warnf("%s", w)
	}
	for _, s := range skipped {
		fmt.Fprintf(a.errOut, "Skipped: %s (%s)\n", s.OriginalName, s.Reason)
	}
}

// checkImportPath resolves path and rejects symlinks and non-regular files.
func checkImportPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", store.ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to access file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("%w: refusing to read symlink: %s", store.ErrPermission, abs)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: not a regular file: %s", store.ErrValidation, abs)
	}
	if info.Size() > maxImportFileSize {
		return "", fmt.Errorf("%w: file larger than %d bytes", store.ErrValidation, maxImportFileSize)
	}
	return abs, nil
}

func readImportFile(path string) ([]byte, error) {
	abs, err := checkImportPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
