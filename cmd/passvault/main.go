// Command passvault is a local, multi-user credential vault backed by a
// single SQLite file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/forest6511/passvault/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := newApp(os.Stdin, os.Stdout, os.Stderr)

	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(exitCode(err))
	}
}

// formatError prefixes err with its kind when it has one.
func formatError(err error) string {
	if kind := store.Kind(err); kind != "" {
		return fmt.Sprintf("Error (%s): %v", kind, err)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Exit codes by error kind.
const (
	exitGeneral    = 1
	exitValidation = 2
	exitAuth       = 3
	exitNotFound   = 4
)

func exitCode(err error) int {
	switch store.Kind(err) {
	case "validation", "duplicate":
		return exitValidation
	case "permission":
		return exitAuth
	case "not found":
		return exitNotFound
	default:
		return exitGeneral
	}
}
