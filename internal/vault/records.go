package vault

import (
	"fmt"
	"time"
)

// DateLayout is the canonical entry-date format. One entry exists per
// calendar date; the formatted date is the entry's logical key.
const DateLayout = "2006-01-02"

// DateKey formats t as an entry date key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an entry date key.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid entry date %q: %w", s, err)
	}
	return t, nil
}

// EntryRecord is the decrypted metadata record of one journal entry.
// It is stored sealed inside an index envelope; all fields are invisible
// at rest.
type EntryRecord struct {
	Date             string     `json:"date"`
	Path             string     `json:"path"`
	Checksum         string     `json:"checksum"`
	WordCount        int        `json:"word_count"`
	UpdatedAt        time.Time  `json:"updated_at"`
	EmbeddedAt       *time.Time `json:"embedded_at,omitempty"`
	EmbeddedChecksum string     `json:"embedded_checksum,omitempty"`
}

// NeedsEmbedding reports whether the entry's chunks are missing or derived
// from outdated content.
func (r *EntryRecord) NeedsEmbedding() bool {
	return r.EmbeddedAt == nil || r.EmbeddedChecksum != r.Checksum
}

// ChunkRecord is the decrypted form of one stored chunk: its position within
// the owning entry, the checksum of the chunk text, and the embedding vector.
type ChunkRecord struct {
	Date     string    `json:"date"`
	Index    int       `json:"index"`
	Checksum string    `json:"checksum"`
	Vector   []float32 `json:"vector"`
}

// Entry is a decrypted journal entry: its metadata record plus plaintext.
type Entry struct {
	Record EntryRecord
	Text   string
}

// WriteResult reports the outcome of a WriteEntry call.
//
// Conflict is set when the caller's base checksum no longer matches the
// stored one, meaning another process changed the entry between the caller's
// read and this write. The write still wins (last-write-wins policy); the
// caller is expected to surface the conflict to the user.
type WriteResult struct {
	Checksum  string
	WordCount int
	Changed   bool
	Conflict  bool
}
