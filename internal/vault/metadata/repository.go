// Package metadata stores small key/value items of the vault index, such as
// the on-disk format version.
package metadata

import "context"

// Repository is the key/value store interface.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Well-known keys.
const (
	KeyFormatVersion = "format_version"
)
