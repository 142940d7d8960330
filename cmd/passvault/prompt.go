package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/security"
	"github.com/forest6511/passvault/pkg/store"
)

func lookupEnv(key string) string {
	return os.Getenv(key)
}

// terminalFd returns the descriptor of the input when it is a terminal.
func (a *app) terminalFd() (int, bool) {
	f, ok := a.rawIn.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// authPassword returns PASSVAULT_PASSWORD when set, otherwise prompts.
func (a *app) authPassword(prompt string) (string, error) {
	if p := a.getenv(envPassword); p != "" {
		return p, nil
	}
	return a.readPassword(prompt)
}

// readPassword reads a password without echo from a terminal, or one line
// from piped input.
func (a *app) readPassword(prompt string) (string, error) {
	fd, ok := a.terminalFd()
	if !ok {
		return a.readLine(prompt)
	}

	fmt.Fprint(a.errOut, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	defer crypto.SecureWipe(b)
	return string(b), nil
}

// readLine prompts and reads one line of input without its line ending.
func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.errOut, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: no input", store.ErrValidation)
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newPassword asks for a password twice and shows advisory strength
// warnings. username is used to flag passwords that contain it.
func (a *app) newPassword(label, username string) (string, error) {
	p1, err := a.readPassword(fmt.Sprintf("Enter %s: ", label))
	if err != nil {
		return "", err
	}
	if p1 == "" {
		return "", fmt.Errorf("%w: %s must not be empty", store.ErrValidation, label)
	}
	p2, err := a.readPassword(fmt.Sprintf("Confirm %s: ", label))
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", fmt.Errorf("%w: passwords do not match", store.ErrValidation)
	}

	a.showStrength(p1, username)
	return p1, nil
}

// showStrength prints the strength rating and warnings. Nothing is blocked.
func (a *app) showStrength(password, username string) {
	check := security.CheckPassword(password, username)
	fmt.Fprintf(a.errOut, "Password strength: %s\n", check.Strength)
	for _, w := range check.Warnings {
		a.warnf("%s", w)
	}
}

// confirm asks a yes/no question; anything but y or yes is no.
func (a *app) confirm(question string) bool {
	answer, err := a.readLine(question + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
