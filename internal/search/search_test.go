package search

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/cryptox"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/session"
	"github.com/dmitrijs2005/mindvault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records []vault.ChunkRecord
	err     error
}

func (f *fakeSource) Chunks(ctx context.Context, sess *session.Session) ([]vault.ChunkRecord, error) {
	return f.records, f.err
}

func newTestSession() *session.Session {
	return session.New(cryptox.DeriveKeys([]byte("p"), []byte("s")), time.Hour)
}

func newSearcher(records []vault.ChunkRecord, now time.Time) *Searcher {
	s := NewSearcher(&fakeSource{records: records}, logging.New(io.Discard, "error"))
	s.nowFn = func() time.Time { return now }
	return s
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	records := []vault.ChunkRecord{
		{Date: "2024-06-01", Index: 0, Vector: []float32{1, 0}},
		{Date: "2024-06-02", Index: 0, Vector: []float32{0.9, 0.1}},
		{Date: "2024-06-03", Index: 0, Vector: []float32{0, 1}},
	}
	s := newSearcher(records, time.Now())

	results, err := s.Search(context.Background(), newTestSession(), []float32{1, 0}, 2, None())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "2024-06-01", results[0].Date)
	assert.Equal(t, "2024-06-02", results[1].Date)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	s := newSearcher(nil, time.Now())

	results, err := s.Search(context.Background(), newTestSession(), []float32{1, 0}, 5, None())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_RelativeConstraintFiltersBeforeRanking(t *testing.T) {
	// The out-of-window chunk is a perfect match; it must still be excluded.
	records := []vault.ChunkRecord{
		{Date: "2024-05-01", Index: 0, Vector: []float32{1, 0}},
		{Date: "2024-06-01", Index: 0, Vector: []float32{0.5, 0.5}},
		{Date: "2024-06-10", Index: 0, Vector: []float32{0, 1}},
	}
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	s := newSearcher(records, now)

	results, err := s.Search(context.Background(), newTestSession(), []float32{1, 0}, 10, LastDays(30))
	require.NoError(t, err)
	require.Len(t, results, 2)

	dates := []string{results[0].Date, results[1].Date}
	assert.ElementsMatch(t, []string{"2024-06-01", "2024-06-10"}, dates)
}

func TestSearch_AbsoluteConstraint(t *testing.T) {
	records := []vault.ChunkRecord{
		{Date: "2024-05-31", Index: 0, Vector: []float32{1, 0}},
		{Date: "2024-06-01", Index: 0, Vector: []float32{1, 0}},
		{Date: "2024-06-30", Index: 1, Vector: []float32{1, 0}},
		{Date: "2024-07-01", Index: 0, Vector: []float32{1, 0}},
	}
	s := newSearcher(records, time.Now())

	results, err := s.Search(context.Background(), newTestSession(), []float32{1, 0}, 10, Between("2024-06-01", "2024-06-30"))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"2024-06-01", "2024-06-30"}, []string{results[0].Date, results[1].Date})
}

func TestSearch_EmptyFilteredSetIsNotAnError(t *testing.T) {
	records := []vault.ChunkRecord{
		{Date: "2020-01-01", Index: 0, Vector: []float32{1, 0}},
	}
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	s := newSearcher(records, now)

	results, err := s.Search(context.Background(), newTestSession(), []float32{1, 0}, 10, LastDays(7))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_SkipsMismatchedVectors(t *testing.T) {
	records := []vault.ChunkRecord{
		{Date: "2024-06-01", Index: 0, Vector: []float32{1, 0, 0}}, // wrong dim
		{Date: "2024-06-02", Index: 0, Vector: []float32{1, 0}},
	}
	s := newSearcher(records, time.Now())

	results, err := s.Search(context.Background(), newTestSession(), []float32{1, 0}, 10, None())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2024-06-02", results[0].Date)
}

func TestWindow_Relative(t *testing.T) {
	now := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	start, end, bounded, err := LastDays(30).Window(now)
	require.NoError(t, err)
	assert.True(t, bounded)
	assert.Equal(t, "2024-05-16", start)
	assert.Equal(t, "2024-06-15", end)
}

func TestWindow_Invalid(t *testing.T) {
	_, _, _, err := LastDays(0).Window(time.Now())
	assert.Error(t, err)

	_, _, _, err = Between("2024-06-30", "2024-06-01").Window(time.Now())
	assert.Error(t, err)

	_, _, _, err = Between("bad", "2024-06-01").Window(time.Now())
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	sim, ok := cosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-6)

	sim, ok = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.True(t, ok)
	assert.InDelta(t, 0.0, sim, 1e-6)

	sim, ok = cosineSimilarity([]float32{1, 0}, []float32{0, 0})
	require.True(t, ok)
	assert.Zero(t, sim)

	_, ok = cosineSimilarity([]float32{1}, []float32{1, 2})
	assert.False(t, ok)
}
