package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dmitrijs2005/mindvault/internal/chat"
	"github.com/dmitrijs2005/mindvault/internal/reflector"
)

// chatReadlineConfig returns the readline setup for the chat subloop.
// Input history stays in memory only; a history file would persist
// plaintext queries outside the vault.
func chatReadlineConfig() *readline.Config {
	return &readline.Config{
		Prompt:          "you> ",
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "back",
	}
}

// Chat enters the conversational subloop. Each message is classified first:
// journal questions trigger retrieval, small talk is answered directly.
// Ctrl+C or 'back' returns to the main prompt; the conversation history
// survives until 'lock' or program exit.
func (a *App) Chat(ctx context.Context) error {
	rl, err := readline.NewEx(chatReadlineConfig())
	if err != nil {
		return a.chatFallback(ctx)
	}
	defer rl.Close()

	fmt.Fprintln(a.out, "Chat mode. Ask about your journal; 'back' returns to the main prompt.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			a.reportErr(err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "back" || input == "exit" {
			return nil
		}

		a.chatTurn(ctx, input)
	}
}

// chatFallback serves chat without readline, e.g. when no TTY is available.
func (a *App) chatFallback(ctx context.Context) error {
	fmt.Fprintln(a.out, "Chat mode. Ask about your journal; 'back' returns to the main prompt.")
	for {
		input, err := GetSimpleText(a.reader, "you:", a.out)
		if err != nil {
			return nil
		}
		if input == "" {
			continue
		}
		if input == "back" || input == "exit" {
			return nil
		}
		a.chatTurn(ctx, input)
	}
}

// chatTurn runs one exchange on the persistent conversation, streaming the
// answer as it arrives.
func (a *App) chatTurn(ctx context.Context, input string) {
	a.runTurn(ctx, a.loop, input)
	fmt.Fprintln(a.out)
}

// runTurn executes one exchange on loop and prints the streamed reply plus
// its source dates.
func (a *App) runTurn(ctx context.Context, loop *chat.Loop, input string) {
	res, err := loop.Turn(ctx, a.sess, input, func(delta string) {
		fmt.Fprint(a.out, delta)
	})
	if err != nil {
		fmt.Fprintln(a.out)
		a.reportErr(err)
		return
	}
	fmt.Fprintln(a.out)

	if res.Action == reflector.ActionSearch && len(res.Sources) > 0 {
		dates := make([]string, 0, len(res.Sources))
		seen := map[string]bool{}
		for _, src := range res.Sources {
			if !seen[src.Date] {
				seen[src.Date] = true
				dates = append(dates, src.Date)
			}
		}
		fmt.Fprintf(a.out, "(sources: %s)\n", strings.Join(dates, ", "))
	}
}

// Query answers a single question end to end, the same reflect, search, and
// respond cycle as chat, but on a throwaway conversation: nothing is added
// to the persistent chat history.
func (a *App) Query(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: query <text>")
		return nil
	}
	a.runTurn(ctx, a.newConversation(), strings.Join(args, " "))
	return nil
}
