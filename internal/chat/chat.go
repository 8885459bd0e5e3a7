// Package chat drives the conversational retrieval loop: each user turn is
// first reflected on (search or answer directly), optionally grounded in
// retrieved journal chunks, and then answered with a streamed completion.
// History only grows on fully delivered answers, so a cancelled or failed
// turn leaves the conversation exactly where it was.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/mindvault/internal/chunker"
	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/inference"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/reflector"
	"github.com/dmitrijs2005/mindvault/internal/search"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault"
)

const (
	// DefaultTopK is how many chunks ground an answer.
	DefaultTopK = 5

	// DefaultHistoryTurns bounds how many past exchanges ride along in
	// prompts. Older turns fall off; retrieval brings old facts back.
	DefaultHistoryTurns = 10
)

// Decider classifies a user input. *reflector.Reflector satisfies it.
type Decider interface {
	Decide(ctx context.Context, input string, history []inference.Message) (*reflector.Decision, error)
}

// Searcher ranks stored chunks against a query vector. *search.Searcher
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, sess *session.Session, queryVec []float32, topK int, tc search.TemporalConstraint) ([]search.Result, error)
}

// EntryReader reads decrypted entries. *vault.Vault satisfies it.
type EntryReader interface {
	ReadEntry(ctx context.Context, sess *session.Session, date string) (*vault.Entry, error)
}

// Result summarizes one completed turn.
type Result struct {
	Reply   string
	Action  reflector.Action
	Sources []search.Result
}

// Loop holds the conversation state for one chat session.
type Loop struct {
	decider  Decider
	searcher Searcher
	embedder inference.Embedder
	chatter  inference.Chatter
	entries  EntryReader
	chunker  *chunker.Chunker
	log      logging.Logger

	topK         int
	historyTurns int
	history      []inference.Message
}

func NewLoop(decider Decider, searcher Searcher, embedder inference.Embedder, chatter inference.Chatter, entries EntryReader, ch *chunker.Chunker, log logging.Logger) *Loop {
	if ch == nil {
		ch = chunker.NewDefault()
	}
	return &Loop{
		decider:      decider,
		searcher:     searcher,
		embedder:     embedder,
		chatter:      chatter,
		entries:      entries,
		chunker:      ch,
		log:          log,
		topK:         DefaultTopK,
		historyTurns: DefaultHistoryTurns,
	}
}

// SetLimits overrides the retrieval depth and history bound; a zero keeps
// the current value.
func (l *Loop) SetLimits(topK, historyTurns int) {
	if topK > 0 {
		l.topK = topK
	}
	if historyTurns > 0 {
		l.historyTurns = historyTurns
	}
}

// History returns the retained conversation messages.
func (l *Loop) History() []inference.Message {
	return l.history
}

// Reset drops the conversation history.
func (l *Loop) Reset() {
	l.history = nil
}

const answerSystemPrompt = `You are a thoughtful assistant with access to the user's personal journal. Answer from the journal excerpts below when they are relevant, citing the entry date (e.g. "on 2024-06-15 you wrote..."). If the excerpts do not cover the question, say so honestly instead of inventing journal content.`

const directSystemPrompt = `You are a thoughtful assistant for the user's personal journal. Answer conversationally from the dialogue so far; you have not consulted the journal for this message.`

// Turn processes one user input. Deltas of the streamed answer are passed to
// onDelta as they arrive; the full reply is also returned. On any error —
// including cancellation mid-stream — the conversation history is left
// unchanged, so the exchange can simply be retried.
func (l *Loop) Turn(ctx context.Context, sess *session.Session, input string, onDelta func(string)) (*Result, error) {
	if err := sess.Use(); err != nil {
		return nil, err
	}

	decision, err := l.decider.Decide(ctx, input, l.history)
	if err != nil {
		return nil, err
	}
	l.log.Debug(ctx, "turn decided", "action", decision.Action, "reasoning", decision.Reasoning)

	res := &Result{Action: decision.Action}
	msgs := make([]inference.Message, 0, len(l.history)+2)

	switch decision.Action {
	case reflector.ActionRespondDirect:
		msgs = append(msgs, inference.Message{Role: inference.RoleSystem, Content: directSystemPrompt})
	case reflector.ActionSearch:
		sources, contextBlock, err := l.retrieve(ctx, sess, input, decision.Temporal)
		if err != nil {
			return nil, err
		}
		res.Sources = sources
		msgs = append(msgs, inference.Message{
			Role:    inference.RoleSystem,
			Content: answerSystemPrompt + "\n\n" + contextBlock,
		})
	default:
		return nil, fmt.Errorf("%w: unhandled action %q", common.ErrDecisionParse, decision.Action)
	}

	msgs = append(msgs, l.history...)
	msgs = append(msgs, inference.Message{Role: inference.RoleUser, Content: input})

	reply, err := l.streamAnswer(ctx, msgs, onDelta)
	if err != nil {
		return nil, err
	}
	res.Reply = reply

	l.history = append(l.history,
		inference.Message{Role: inference.RoleUser, Content: input},
		inference.Message{Role: inference.RoleAssistant, Content: reply},
	)
	if limit := l.historyTurns * 2; len(l.history) > limit {
		l.history = append([]inference.Message(nil), l.history[len(l.history)-limit:]...)
	}
	return res, nil
}

// retrieve embeds the query, ranks chunks under the temporal constraint, and
// renders the matching chunk texts into a context block. Entries are read and
// re-chunked once per date within the turn.
func (l *Loop) retrieve(ctx context.Context, sess *session.Session, input string, tc search.TemporalConstraint) ([]search.Result, string, error) {
	queryVec, err := l.embedder.Embed(ctx, input)
	if err != nil {
		return nil, "", err
	}

	hits, err := l.searcher.Search(ctx, sess, queryVec, l.topK, tc)
	if err != nil {
		return nil, "", err
	}
	if len(hits) == 0 {
		return nil, "No journal excerpts matched this question.", nil
	}

	chunksByDate := map[string][]string{}
	kept := make([]search.Result, 0, len(hits))
	var b strings.Builder
	b.WriteString("Journal excerpts, most relevant first:\n")
	for _, hit := range hits {
		texts, ok := chunksByDate[hit.Date]
		if !ok {
			entry, err := l.entries.ReadEntry(ctx, sess, hit.Date)
			if err != nil {
				return nil, "", err
			}
			texts = l.chunker.Split(entry.Text)
			chunksByDate[hit.Date] = texts
		}
		if hit.ChunkIndex < 0 || hit.ChunkIndex >= len(texts) {
			// Index drifted from content; the reindex command repairs this.
			// A hit we cannot render is not reported as a source either.
			l.log.Warn(ctx, "chunk index out of range", "date", hit.Date, "index", hit.ChunkIndex)
			continue
		}
		kept = append(kept, hit)
		fmt.Fprintf(&b, "\n[%s]\n%s\n", hit.Date, texts[hit.ChunkIndex])
	}
	return kept, b.String(), nil
}

// streamAnswer runs the streaming completion, forwarding deltas and
// accumulating the full reply. A partial reply is discarded on error.
func (l *Loop) streamAnswer(ctx context.Context, msgs []inference.Message, onDelta func(string)) (string, error) {
	stream, err := l.chatter.CompleteStream(ctx, msgs)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}
