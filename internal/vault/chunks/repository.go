// Package chunks persists sealed chunk envelopes (text-window checksum plus
// embedding vector) keyed by the owning entry's opaque digest. The full
// chunk set for an entry is always replaced as a unit.
package chunks

import "context"

// Row is one stored chunk: the owning entry's digest plus the sealed envelope.
type Row struct {
	EntryDigest string
	Envelope    []byte
}

// Repository is the chunk store interface.
type Repository interface {
	Insert(ctx context.Context, row *Row) error
	DeleteByEntry(ctx context.Context, entryDigest string) error
	All(ctx context.Context) ([]Row, error)
	CountByEntry(ctx context.Context, entryDigest string) (int, error)
}
