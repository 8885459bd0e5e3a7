// Package entries persists sealed entry-record envelopes. Rows are addressed
// by an opaque keyed digest of the entry date; the envelope itself is an
// AES-GCM blob whose fields (date, path, checksum, timestamps) are
// unreadable without the vault key.
package entries

import "context"

// Row is one stored entry record: the lookup digest plus the sealed envelope.
type Row struct {
	Digest   string
	Envelope []byte
}

// Repository is the entry-record store interface.
type Repository interface {
	Get(ctx context.Context, digest string) (*Row, error)
	Upsert(ctx context.Context, row *Row) error
	Delete(ctx context.Context, digest string) error
	All(ctx context.Context) ([]Row, error)
}
