// Package search ranks stored chunk vectors against a query vector by
// cosine similarity, with optional temporal pre-filtering: candidates are
// narrowed to the date window first, then ranked (filter-then-rank), so an
// out-of-window chunk can never displace an in-window one.
package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault"
)

// ChunkSource yields the decrypted chunk records to rank. *vault.Vault
// satisfies it.
type ChunkSource interface {
	Chunks(ctx context.Context, sess *session.Session) ([]vault.ChunkRecord, error)
}

// Result is one ranked hit: the owning entry's date, the chunk's ordinal
// within it, and the cosine similarity to the query.
type Result struct {
	Date       string
	ChunkIndex int
	Similarity float32
}

// Searcher performs a linear scan over all stored chunks. That is
// comfortable up to low thousands of chunks; an approximate index can be
// substituted behind the same interface if a vault ever outgrows it.
type Searcher struct {
	source ChunkSource
	log    logging.Logger

	nowFn func() time.Time // test seam for relative constraints
}

func NewSearcher(source ChunkSource, log logging.Logger) *Searcher {
	return &Searcher{source: source, log: log, nowFn: time.Now}
}

// Search returns up to topK chunks most similar to queryVec, restricted to
// the constraint's date window when one is set. An empty corpus or an empty
// post-filter set yields an empty result, not an error.
func (s *Searcher) Search(ctx context.Context, sess *session.Session, queryVec []float32, topK int, tc TemporalConstraint) ([]Result, error) {
	if topK <= 0 || len(queryVec) == 0 {
		return nil, nil
	}

	start, end, bounded, err := tc.Window(s.nowFn())
	if err != nil {
		return nil, err
	}

	records, err := s.source.Chunks(ctx, sess)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		if bounded && !contains(start, end, rec.Date) {
			continue
		}
		sim, ok := cosineSimilarity(queryVec, rec.Vector)
		if !ok {
			s.log.Warn(ctx, "skipping chunk with mismatched vector", "date", rec.Date, "index", rec.Index)
			continue
		}
		results = append(results, Result{Date: rec.Date, ChunkIndex: rec.Index, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// ok is false on dimension mismatch or empty input; a zero-magnitude vector
// scores 0.
func cosineSimilarity(a, b []float32) (float32, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, magA, magB float32
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0, true
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB)))), true
}
