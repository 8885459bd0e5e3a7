package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault"
)

// runEditor launches the user's editor on path and waits for it to exit.
// Test seam.
var runEditor = func(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Unlock re-prompts for the passphrase after a lock or expiry.
func (a *App) Unlock(ctx context.Context) error {
	if a.isUnlocked() {
		fmt.Fprintln(a.out, "Vault is already unlocked.")
		return nil
	}
	if err := a.unlock(ctx); err != nil {
		a.reportErr(err)
		return err
	}
	fmt.Fprintln(a.out, "Vault unlocked.")
	return nil
}

// resolveDate takes the optional date argument, defaulting to today.
func resolveDate(args []string) (string, error) {
	if len(args) == 0 {
		return vault.DateKey(time.Now()), nil
	}
	if _, err := vault.ParseDate(args[0]); err != nil {
		return "", err
	}
	return args[0], nil
}

// Write edits the entry for the given (or today's) date. Existing content is
// decrypted into a secure staging file, handed to $EDITOR, read back, saved,
// and the staging file is wiped. Without $EDITOR, lines are read from the
// terminal instead.
func (a *App) Write(ctx context.Context, args []string) error {
	date, err := resolveDate(args)
	if err != nil {
		a.reportErr(err)
		return err
	}

	var current string
	var baseChecksum string
	entry, err := a.vault.ReadEntry(ctx, a.sess, date)
	switch {
	case err == nil:
		current = entry.Text
		baseChecksum = entry.Record.Checksum
	case errors.Is(err, common.ErrorNotFound):
		// new entry
	default:
		a.reportErr(err)
		return err
	}

	text, err := a.editText(date, current)
	if err != nil {
		a.reportErr(err)
		return err
	}
	if text == current {
		fmt.Fprintln(a.out, "No changes.")
		return nil
	}

	res, err := a.vault.WriteEntry(ctx, a.sess, date, text, baseChecksum)
	if err != nil {
		a.reportErr(err)
		return err
	}
	if res.Conflict {
		fmt.Fprintln(a.out, "Warning: the entry changed while you were editing; your version was kept.")
	}
	fmt.Fprintf(a.out, "Saved %s (%d words)\n", date, res.WordCount)

	// The entry is durable at this point; embedding failures only delay
	// searchability until the next reindex.
	if _, err := a.index.Refresh(ctx, a.sess, date); err != nil {
		fmt.Fprintln(a.out, "Entry saved, but embedding failed; run 'reindex' later.")
		a.reportErr(err)
	}
	return nil
}

// editText round-trips current through $EDITOR via a staging file, or falls
// back to multiline terminal input.
func (a *App) editText(date, current string) (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		if current != "" {
			fmt.Fprintf(a.out, "Current entry for %s:\n%s\n\n", date, current)
		}
		return GetMultiline(a.reader, "Enter the entry for "+date, a.out)
	}

	staged, err := session.Stage([]byte(current))
	if err != nil {
		return "", err
	}
	defer staged.Cleanup()

	if err := runEditor(editor, staged.Path()); err != nil {
		return "", fmt.Errorf("editor: %w", err)
	}

	edited, err := staged.Read()
	if err != nil {
		return "", err
	}
	return string(edited), nil
}

// Show prints the decrypted entry for the given (or today's) date.
func (a *App) Show(ctx context.Context, args []string) error {
	date, err := resolveDate(args)
	if err != nil {
		a.reportErr(err)
		return err
	}

	entry, err := a.vault.ReadEntry(ctx, a.sess, date)
	if err != nil {
		a.reportErr(err)
		return err
	}
	fmt.Fprintf(a.out, "%s (%d words, updated %s)\n\n%s\n",
		entry.Record.Date, entry.Record.WordCount,
		entry.Record.UpdatedAt.Local().Format("2006-01-02 15:04"), entry.Text)
	return nil
}

// List prints one line per entry: date, word count, and whether its
// embeddings are current.
func (a *App) List(ctx context.Context) error {
	records, err := a.vault.ListEntries(ctx, a.sess)
	if err != nil {
		a.reportErr(err)
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "The journal is empty.")
		return nil
	}

	for _, rec := range records {
		status := "indexed"
		if rec.NeedsEmbedding() {
			status = "pending"
		}
		fmt.Fprintf(a.out, "%s  %5d words  %s\n", rec.Date, rec.WordCount, status)
	}
	return nil
}

// Delete removes an entry after confirmation.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: delete <YYYY-MM-DD>")
		return nil
	}
	date := args[0]
	if _, err := vault.ParseDate(date); err != nil {
		a.reportErr(err)
		return err
	}

	if !Confirm(a.reader, "Delete the entry for "+date+"? This cannot be undone.", a.out) {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}

	if err := a.vault.DeleteEntry(ctx, a.sess, date); err != nil {
		a.reportErr(err)
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", date)
	return nil
}

// Reindex re-embeds every entry whose chunks are missing or stale.
func (a *App) Reindex(ctx context.Context) error {
	n, err := a.index.RefreshAll(ctx, a.sess)
	if err != nil {
		a.reportErr(err)
		return err
	}
	if n == 0 {
		fmt.Fprintln(a.out, "Index is up to date.")
	} else {
		fmt.Fprintf(a.out, "Re-embedded %d entries.\n", n)
	}
	return nil
}

// LockVault wipes the session keys; 'unlock' starts a fresh session.
func (a *App) LockVault(ctx context.Context) error {
	a.lockSession()
	a.loop.Reset()
	fmt.Fprintln(a.out, "Vault locked.")
	return nil
}
