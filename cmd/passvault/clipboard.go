package main

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

const defaultClipboardClear = 30 * time.Second

// Replaced in tests.
var (
	clipboardUnsupported = func() bool { return clipboard.Unsupported }
	clipboardRead        = clipboard.ReadAll
	clipboardWrite       = clipboard.WriteAll
)

func copyToClipboard(value string) error {
	if clipboardUnsupported() {
		return fmt.Errorf("clipboard not available: install xclip, xsel or wl-clipboard")
	}
	if err := clipboardWrite(value); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// clearClipboardAfter waits for d, or until ctx is done, and then empties the
// clipboard if it still holds value. It reports whether it cleared it.
func clearClipboardAfter(ctx context.Context, value string, d time.Duration) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	current, err := clipboardRead()
	if err != nil {
		return false, fmt.Errorf("failed to read clipboard: %w", err)
	}
	if current != value {
		return false, nil
	}
	if err := clipboardWrite(""); err != nil {
		return false, fmt.Errorf("failed to clear clipboard: %w", err)
	}
	return true, nil
}
