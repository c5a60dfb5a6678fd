// Package storetest holds the behaviour every knowledge.Store backend must
// share. Backend tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) knowledge.Store

// Run executes the shared store tests.
func Run(t *testing.T, newStore Factory) {
	t.Run("AddAssignsID", func(t *testing.T) { testAdd(t, newStore(t)) })
	t.Run("AddRejectsBlankAnswer", func(t *testing.T) { testAddInvalid(t, newStore(t)) })
	t.Run("AddBatchKeepsOrder", func(t *testing.T) { testBatchOrder(t, newStore(t)) })
	t.Run("AddBatchRejectsInvalid", func(t *testing.T) { testBatchInvalid(t, newStore(t)) })
	t.Run("SetFingerprint", func(t *testing.T) { testSetFingerprint(t, newStore(t)) })
	t.Run("SourcesAndStats", func(t *testing.T) { testSourcesAndStats(t, newStore(t)) })
	t.Run("DeleteBySource", func(t *testing.T) { testDeleteBySource(t, newStore(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newStore(t)) })
	t.Run("ReturnsCopies", func(t *testing.T) { testCopies(t, newStore(t)) })
}

var samplePairs = []knowledge.Pair{
	{Question: "Do you encrypt data at rest?", Answer: "Yes, AES-256", SourceFile: "audit.xlsx", Category: "Security"},
	{Question: "Do you have a DPO?", Answer: "Yes", SourceFile: "gdpr.csv"},
	{Question: "Is MFA enforced?", Answer: "For all staff", SourceFile: "audit.xlsx", Category: "Access"},
}

var sampleFingerprints = [][]float32{
	{1, 0, 0},
	nil,
	{0, 0.6, 0.8},
}

func testAdd(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	rec, err := s.Add(ctx, samplePairs[0], []float32{0.6, 0.8})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, samplePairs[0], rec.Pair)
	assert.False(t, rec.CreatedAt.IsZero())

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec.ID, all[0].ID)
	assert.Equal(t, samplePairs[0], all[0].Pair)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, all[0].Fingerprint, 1e-6)
}

func testAddInvalid(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	_, err := s.Add(ctx, knowledge.Pair{Question: "Orphan question?", Answer: "  "}, nil)
	assert.ErrorIs(t, err, knowledge.ErrInvalidRecord)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testBatchOrder(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	recs, err := s.AddBatch(ctx, samplePairs, sampleFingerprints)
	require.NoError(t, err)
	require.Len(t, recs, len(samplePairs))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(samplePairs))

	seen := map[string]bool{}
	for i, r := range all {
		assert.Equal(t, samplePairs[i], r.Pair)
		assert.Equal(t, recs[i].ID, r.ID)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
		if sampleFingerprints[i] == nil {
			assert.Empty(t, r.Fingerprint)
		} else {
			assert.InDeltaSlice(t, sampleFingerprints[i], r.Fingerprint, 1e-6)
		}
	}
}

func testBatchInvalid(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	pairs := append([]knowledge.Pair{}, samplePairs...)
	pairs = append(pairs, knowledge.Pair{Question: "", Answer: "no question"})

	_, err := s.AddBatch(ctx, pairs, nil)
	assert.ErrorIs(t, err, knowledge.ErrInvalidRecord)

	_, err = s.AddBatch(ctx, samplePairs, sampleFingerprints[:1])
	assert.ErrorIs(t, err, knowledge.ErrInvalidRecord)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testSetFingerprint(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	rec, err := s.Add(ctx, samplePairs[1], nil)
	require.NoError(t, err)

	require.NoError(t, s.SetFingerprint(ctx, rec.ID, []float32{0, 1}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.InDeltaSlice(t, []float32{0, 1}, all[0].Fingerprint, 1e-6)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.WithFingerprints)

	err = s.SetFingerprint(ctx, "999999", []float32{1})
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func testSourcesAndStats(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	_, err := s.AddBatch(ctx, samplePairs, sampleFingerprints)
	require.NoError(t, err)

	sources, err := s.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit.xlsx", "gdpr.csv"}, sources)

	bySource, err := s.BySource(ctx, "audit.xlsx")
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Equal(t, samplePairs[0].Question, bySource[0].Question)
	assert.Equal(t, samplePairs[2].Question, bySource[1].Question)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, knowledge.Stats{TotalPairs: 3, SourceFiles: 2, WithFingerprints: 2}, stats)
}

func testDeleteBySource(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	_, err := s.AddBatch(ctx, samplePairs, sampleFingerprints)
	require.NoError(t, err)

	n, err := s.DeleteBySource(ctx, "audit.xlsx")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.DeleteBySource(ctx, "missing.docx")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "gdpr.csv", all[0].SourceFile)

	sources, err := s.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gdpr.csv"}, sources)
}

func testClear(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	_, err := s.AddBatch(ctx, samplePairs, sampleFingerprints)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, knowledge.Stats{}, stats)

	rec, err := s.Add(ctx, samplePairs[0], nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func testCopies(t *testing.T, s knowledge.Store) {
	ctx := context.Background()
	_, err := s.Add(ctx, samplePairs[0], []float32{1, 0})
	require.NoError(t, err)

	first, err := s.All(ctx)
	require.NoError(t, err)
	first[0].Fingerprint[0] = 42
	first[0].Answer = "tampered"

	second, err := s.All(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 0}, second[0].Fingerprint, 1e-6)
	assert.Equal(t, samplePairs[0].Answer, second[0].Answer)
}
