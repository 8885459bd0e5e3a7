// Package cli implements the interactive mindvault terminal client: unlock,
// a command REPL, the chat subloop, and entry editing via a secure staging
// file handed to $EDITOR.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/mindvault/internal/chat"
	"github.com/dmitrijs2005/mindvault/internal/chunker"
	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/config"
	"github.com/dmitrijs2005/mindvault/internal/embedx"
	"github.com/dmitrijs2005/mindvault/internal/inference"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/reflector"
	"github.com/dmitrijs2005/mindvault/internal/search"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault"
)

// unlockAttempts is how many wrong passphrases are tolerated before exit.
const unlockAttempts = 3

// App wires the store, the embedding index, and the conversational loop
// behind the REPL commands.
type App struct {
	config *config.Config
	log    logging.Logger
	vault  *vault.Vault
	sess   *session.Session
	index  *embedx.Index
	loop   *chat.Loop
	reader *bufio.Reader
	out    io.Writer

	// newConversation builds a fresh loop for one-shot queries, so they
	// share nothing with the persistent chat history.
	newConversation func() *chat.Loop
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	v, err := vault.Open(ctx, c.VaultDir, log)
	if err != nil {
		return nil, err
	}

	client, err := inference.NewClient(inference.Config{
		BaseURL:    c.InferenceBaseURL,
		ChatModel:  c.ChatModel,
		EmbedModel: c.EmbedModel,
		Timeout:    c.InferenceTimeout,
	}, log)
	if err != nil {
		v.Close()
		return nil, err
	}

	ch := chunker.NewDefault()
	searcher := search.NewSearcher(v, log)
	newConversation := func() *chat.Loop {
		loop := chat.NewLoop(reflector.New(client), searcher, client, client, v, ch, log)
		loop.SetLimits(c.TopK, c.HistoryTurns)
		return loop
	}
	app := &App{
		config:          c,
		log:             log,
		vault:           v,
		index:           embedx.NewIndex(v, client, ch, log),
		loop:            newConversation(),
		reader:          bufio.NewReader(os.Stdin),
		out:             os.Stdout,
		newConversation: newConversation,
	}
	return app, nil
}

// Run unlocks the vault and enters the REPL. It returns when the user exits
// or unlock fails.
func (a *App) Run(ctx context.Context) error {
	defer a.vault.Close()

	if err := a.unlock(ctx); err != nil {
		return err
	}
	defer a.lockSession()

	fmt.Fprintln(a.out, "Vault unlocked. Type 'help' for commands.")
	runREPL(ctx, a, bufio.NewScanner(os.Stdin))
	return nil
}

// unlock prompts for the passphrase, up to unlockAttempts times on mismatch.
// The passphrase bytes are wiped after each attempt.
func (a *App) unlock(ctx context.Context) error {
	for attempt := 1; attempt <= unlockAttempts; attempt++ {
		passphrase, err := GetPassword(a.out)
		if err != nil {
			return err
		}

		sess, err := a.vault.Unlock(ctx, passphrase, a.config.SessionTimeout)
		common.WipeByteArray(passphrase)

		if err == nil {
			a.sess = sess
			return nil
		}
		if !errors.Is(err, common.ErrAuthentication) {
			return err
		}
		fmt.Fprintf(a.out, "Wrong passphrase (%d/%d)\n", attempt, unlockAttempts)
	}
	return fmt.Errorf("%w: too many failed attempts", common.ErrAuthentication)
}

func (a *App) lockSession() {
	if a.sess != nil {
		a.sess.Lock()
	}
}

func (a *App) isUnlocked() bool {
	return a.sess != nil && !a.sess.Expired()
}

// reportErr translates well-known errors into user guidance.
func (a *App) reportErr(err error) {
	switch {
	case errors.Is(err, common.ErrSessionExpired):
		fmt.Fprintln(a.out, "Session expired; run 'unlock' to continue.")
	case errors.Is(err, common.ErrVaultLocked):
		fmt.Fprintln(a.out, "Vault is locked; run 'unlock' to continue.")
	case errors.Is(err, common.ErrBackendUnreachable):
		fmt.Fprintln(a.out, "Inference backend is unreachable; is it running?")
	case errors.Is(err, common.ErrModelUnavailable):
		fmt.Fprintln(a.out, "Model not available on the backend; check the configured model names.")
	case errors.Is(err, common.ErrorNotFound):
		fmt.Fprintln(a.out, "No entry for that date.")
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}
