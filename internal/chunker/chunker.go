// Package chunker splits entry plaintext into overlapping word windows
// sized for the embedding backend. Splitting is deterministic, so a stored
// chunk index can be re-sliced from the decrypted entry at retrieval time.
package chunker

import (
	"fmt"
	"strings"
)

const (
	// DefaultWindow is the window size in words, chosen to stay well under
	// typical embedding-model input limits.
	DefaultWindow = 200

	// DefaultOverlap is how many words consecutive windows share, so
	// semantic continuity survives window boundaries.
	DefaultOverlap = 40
)

type Chunker struct {
	window  int
	overlap int
}

// New validates the window geometry. overlap must be smaller than window or
// splitting would never advance.
func New(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("chunker: window must be positive, got %d", window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("chunker: overlap must be in [0, window), got %d", overlap)
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

// NewDefault returns a chunker with the default geometry.
func NewDefault() *Chunker {
	c, _ := New(DefaultWindow, DefaultOverlap)
	return c
}

// Split cuts text into overlapping windows. Identical input always yields
// identical output. Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.window - c.overlap
	var out []string
	for start := 0; ; start += stride {
		end := start + c.window
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}
