package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"
)

// Character set constants
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	minPasswordLength     = 8
	maxPasswordLength     = 256
	defaultPasswordLength = 24
	defaultPasswordCount  = 1
	maxPasswordCount      = 100
	maxExcludeLength      = 256
)

// generateOptions selects the generated alphabet and length.
type generateOptions struct {
	length      int
	count       int
	noSymbols   bool
	noNumbers   bool
	noUppercase bool
	noLowercase bool
	exclude     string
}

func defaultGenerateOptions() generateOptions {
	return generateOptions{length: defaultPasswordLength, count: defaultPasswordCount}
}

// bindFlags registers the alphabet and length flags on cmd.
func (o *generateOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.length, "length", "l", defaultPasswordLength, "Password length (8-256)")
	cmd.Flags().BoolVar(&o.noSymbols, "no-symbols", false, "Exclude symbols")
	cmd.Flags().BoolVar(&o.noNumbers, "no-numbers", false, "Exclude numbers")
	cmd.Flags().BoolVar(&o.noUppercase, "no-uppercase", false, "Exclude uppercase letters")
	cmd.Flags().BoolVar(&o.noLowercase, "no-lowercase", false, "Exclude lowercase letters")
	cmd.Flags().StringVar(&o.exclude, "exclude", "", "Characters to exclude")
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := defaultGenerateOptions()
	var copyFirst bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate secure random passwords",
		Long: `Generate cryptographically secure random passwords.

Examples:
  # Generate a 24-character password (default)
  passvault generate

  # Generate a 32-character password without symbols
  passvault generate -l 32 --no-symbols

  # Generate 5 passwords
  passvault generate -n 5

  # Generate and copy to clipboard
  passvault generate -c

  # Generate password excluding ambiguous characters
  passvault generate --exclude "0O1lI"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			passwords, err := opts.generate()
			if err != nil {
				return err
			}
			for _, p := range passwords {
				a.printf("%s\n", p)
			}

			if copyFirst {
				if err := copyToClipboard(passwords[0]); err != nil {
					a.warnf("%v", err)
				} else {
					fmt.Fprintln(a.errOut, "Password copied to clipboard")
				}
			}
			return nil
		},
	}
	opts.bindFlags(cmd)
	cmd.Flags().IntVarP(&opts.count, "count", "n", defaultPasswordCount, "Number of passwords to generate (1-100)")
	cmd.Flags().BoolVarP(&copyFirst, "copy", "c", false, "Copy first password to clipboard (accessible to all processes)")
	return cmd
}

// generate validates o and returns o.count passwords.
func (o generateOptions) generate() ([]string, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	charset, err := o.charset()
	if err != nil {
		return nil, err
	}

	passwords := make([]string, o.count)
	for i := range passwords {
		p, err := generatePassword(charset, o.length)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		passwords[i] = p
	}
	return passwords, nil
}

func (o generateOptions) validate() error {
	if o.length < minPasswordLength {
		return fmt.Errorf("password length must be at least %d characters", minPasswordLength)
	}
	if o.length > maxPasswordLength {
		return fmt.Errorf("password length must be at most %d characters", maxPasswordLength)
	}
	if o.count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if o.count > maxPasswordCount {
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	}
	if len(o.exclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

func (o generateOptions) charset() (string, error) {
	var b strings.Builder
	if !o.noLowercase {
		b.WriteString(charsetLowercase)
	}
	if !o.noUppercase {
		b.WriteString(charsetUppercase)
	}
	if !o.noNumbers {
		b.WriteString(charsetDigits)
	}
	if !o.noSymbols {
		b.WriteString(charsetSymbols)
	}

	result := b.String()
	if o.exclude != "" {
		result = removeChars(result, o.exclude)
	}
	if result == "" {
		return "", fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return result, nil
}

// removeChars removes specified characters from a string
func removeChars(s, chars string) string {
	excludeSet := make(map[rune]bool)
	for _, c := range chars {
		excludeSet[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !excludeSet[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// generatePassword draws length characters uniformly from charset.
func generatePassword(charset string, length int) (string, error) {
	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, length)

	for i := range password {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}
	return string(password), nil
}
