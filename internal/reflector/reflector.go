// Package reflector runs the decision step of the conversational loop: before
// answering, the model is asked whether the question needs a journal search
// and, if so, over which date range. The model's answer is demanded as strict
// JSON; anything unparseable surfaces as common.ErrDecisionParse so the
// caller can tell the user instead of guessing.
package reflector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/inference"
	"github.com/dmitrijs2005/mindvault/internal/search"
)

const dateLayout = "2006-01-02"

// Action is what the model decided to do with the user's input.
type Action string

const (
	ActionSearch        Action = "search"
	ActionRespondDirect Action = "respond_directly"
)

// Decision is the parsed outcome of one reflection call.
type Decision struct {
	Action    Action
	Reasoning string
	Temporal  search.TemporalConstraint
}

// Reflector asks the chat model to classify an input.
type Reflector struct {
	chatter inference.Chatter

	nowFn func() time.Time // test seam; "today" is injected into the prompt
}

func New(chatter inference.Chatter) *Reflector {
	return &Reflector{chatter: chatter, nowFn: time.Now}
}

const systemPromptFmt = `You are the retrieval planner for a personal journal assistant. Today's date is %s.

Given the user's latest message and the conversation so far, decide whether answering requires searching the journal.

Respond with ONLY a JSON object, no prose, no markdown, in exactly this shape:
{"action":"search","reasoning":"...","temporal":{"kind":"relative","days":30}}

Fields:
- "action": "search" if the journal must be consulted, "respond_directly" if the message is conversational (greetings, follow-ups about text already shown, questions about you).
- "reasoning": one short sentence.
- "temporal": only when action is "search". "kind" is one of "none", "relative", "absolute". Use {"kind":"relative","days":N} for phrases like "last week" (7) or "past month" (30). Use {"kind":"absolute","start":"YYYY-MM-DD","end":"YYYY-MM-DD"} for explicit dates or named periods, resolved against today's date. Use {"kind":"none"} when no time frame is implied.`

// Decide classifies input given the prior conversation turns.
func (r *Reflector) Decide(ctx context.Context, input string, history []inference.Message) (*Decision, error) {
	msgs := make([]inference.Message, 0, len(history)+2)
	msgs = append(msgs, inference.Message{
		Role:    inference.RoleSystem,
		Content: fmt.Sprintf(systemPromptFmt, r.nowFn().Format(dateLayout)),
	})
	msgs = append(msgs, history...)
	msgs = append(msgs, inference.Message{Role: inference.RoleUser, Content: input})

	raw, err := r.chatter.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	dec, err := parseDecision(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecisionParse, err)
	}
	return dec, nil
}

// decisionWire is the JSON shape the model is instructed to produce.
type decisionWire struct {
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
	Temporal  *struct {
		Kind  string `json:"kind"`
		Days  int    `json:"days"`
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"temporal"`
}

// parseDecision tolerates the usual model wrapping (markdown fences, leading
// prose) by extracting the outermost {...} before decoding, but rejects
// anything that does not decode to a known action.
func parseDecision(raw string) (*Decision, error) {
	jsonPart, err := extractObject(raw)
	if err != nil {
		return nil, err
	}

	var wire decisionWire
	if err := json.Unmarshal([]byte(jsonPart), &wire); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}

	dec := &Decision{Reasoning: wire.Reasoning, Temporal: search.None()}

	switch wire.Action {
	case string(ActionSearch):
		dec.Action = ActionSearch
	case string(ActionRespondDirect):
		dec.Action = ActionRespondDirect
	default:
		return nil, fmt.Errorf("unknown action %q", wire.Action)
	}

	if wire.Temporal == nil {
		return dec, nil
	}
	switch search.ConstraintKind(wire.Temporal.Kind) {
	case search.ConstraintNone, "":
		// keep None
	case search.ConstraintRelative:
		if wire.Temporal.Days <= 0 {
			return nil, fmt.Errorf("relative range needs positive days, got %d", wire.Temporal.Days)
		}
		dec.Temporal = search.LastDays(wire.Temporal.Days)
	case search.ConstraintAbsolute:
		start, err := time.Parse(dateLayout, wire.Temporal.Start)
		if err != nil {
			return nil, fmt.Errorf("absolute range start: %w", err)
		}
		end, err := time.Parse(dateLayout, wire.Temporal.End)
		if err != nil {
			return nil, fmt.Errorf("absolute range end: %w", err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("absolute range ends %s before it starts %s", wire.Temporal.End, wire.Temporal.Start)
		}
		dec.Temporal = search.Between(wire.Temporal.Start, wire.Temporal.End)
	default:
		return nil, fmt.Errorf("unknown temporal kind %q", wire.Temporal.Kind)
	}
	return dec, nil
}

// extractObject returns the substring from the first '{' to the last '}'.
func extractObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return raw[start : end+1], nil
}
