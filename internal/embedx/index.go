// Package embedx maintains the derived embedding index: it re-chunks and
// re-embeds an entry only when its content checksum has moved past the
// last-embedded checksum, and commits each entry's new chunk set
// all-or-nothing. A failed refresh leaves the previous state untouched, so
// retries reprocess cleanly.
package embedx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/chunker"
	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/cryptox"
	"github.com/dmitrijs2005/mindvault/internal/inference"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultConcurrency bounds in-flight embedding calls per refresh.
	defaultConcurrency = 4

	// embed-call retry schedule for transient backend failures.
	retryBase = 500 * time.Millisecond
	retryMax  = 3
)

// Store is the slice of the vault the index needs. *vault.Vault satisfies it.
type Store interface {
	ReadEntry(ctx context.Context, sess *session.Session, date string) (*vault.Entry, error)
	ReplaceChunks(ctx context.Context, sess *session.Session, date, contentChecksum string, recs []vault.ChunkRecord) error
	PendingEmbedding(ctx context.Context, sess *session.Session) ([]vault.EntryRecord, error)
}

// Index orchestrates chunking, embedding-backend calls, and chunk storage.
type Index struct {
	store       Store
	embedder    inference.Embedder
	chunker     *chunker.Chunker
	log         logging.Logger
	concurrency int
}

func NewIndex(store Store, embedder inference.Embedder, ch *chunker.Chunker, log logging.Logger) *Index {
	if ch == nil {
		ch = chunker.NewDefault()
	}
	return &Index{
		store:       store,
		embedder:    embedder,
		chunker:     ch,
		log:         log,
		concurrency: defaultConcurrency,
	}
}

// Refresh re-embeds the entry for date if its content changed since the last
// embedding pass. Unchanged content is a no-op and costs zero backend calls.
// Returns the number of chunks committed (0 for the no-op).
//
// Per-chunk embedding calls run concurrently; any failure aborts the whole
// refresh before anything is written, so partial success never becomes
// partial commit.
func (ix *Index) Refresh(ctx context.Context, sess *session.Session, date string) (int, error) {
	entry, err := ix.store.ReadEntry(ctx, sess, date)
	if err != nil {
		return 0, err
	}

	if !entry.Record.NeedsEmbedding() {
		return 0, nil
	}

	texts := ix.chunker.Split(entry.Text)
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := ix.embedText(gctx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %d of %s: %w", i, date, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	recs := make([]vault.ChunkRecord, len(texts))
	for i, text := range texts {
		recs[i] = vault.ChunkRecord{
			Date:     date,
			Index:    i,
			Checksum: cryptox.Checksum([]byte(text)),
			Vector:   vectors[i],
		}
	}

	if err := ix.store.ReplaceChunks(ctx, sess, date, entry.Record.Checksum, recs); err != nil {
		return 0, err
	}

	ix.log.Info(ctx, "entry re-embedded", "date", date, "chunks", len(recs))
	return len(recs), nil
}

// RefreshAll refreshes every entry currently marked as needing embedding.
// Entries are processed independently; the first failure stops the pass and
// is returned, with already-refreshed entries staying committed.
func (ix *Index) RefreshAll(ctx context.Context, sess *session.Session) (int, error) {
	pending, err := ix.store.PendingEmbedding(ctx, sess)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, rec := range pending {
		if _, err := ix.Refresh(ctx, sess, rec.Date); err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

// embedText calls the backend with exponential backoff on transient
// failures (unreachable, timeout). A missing model is not retried; waiting
// will not make it appear.
func (ix *Index) embedText(ctx context.Context, text string) ([]float32, error) {
	backoff := retry.WithMaxRetries(retryMax, retry.NewExponential(retryBase))

	var vec []float32
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		vec, err = ix.embedder.Embed(ctx, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrBackendUnreachable) || errors.Is(err, common.ErrBackendTimeout) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}
