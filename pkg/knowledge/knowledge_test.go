package knowledge_test

import (
	"context"
	"testing"

	"github.com/barekit/dossier/pkg/fingerprint"
	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_Ingest(t *testing.T) {
	ctx := context.Background()
	enc := fingerprint.NewLocal()
	kb := knowledge.NewBase(enc, inmemory.New())

	pairs := []knowledge.Pair{
		{Question: "Do you encrypt data at rest?", Answer: "Yes, AES-256", SourceFile: "audit.xlsx"},
		{Question: "Do you run background checks?", Answer: "Yes, for all hires", SourceFile: "audit.xlsx"},
	}
	recs, err := kb.Ingest(ctx, pairs)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	all, err := kb.Store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for i, r := range all {
		assert.Equal(t, enc.Encode(ctx, pairs[i].Question), r.Fingerprint)
	}
}

func TestBase_IngestRejectsInvalidPair(t *testing.T) {
	kb := knowledge.NewBase(fingerprint.NewLocal(), inmemory.New())
	_, err := kb.Ingest(context.Background(), []knowledge.Pair{{Question: "Unanswered?"}})
	assert.ErrorIs(t, err, knowledge.ErrInvalidRecord)
}

func TestBase_AddDefaultsSource(t *testing.T) {
	kb := knowledge.NewBase(fingerprint.NewLocal(), inmemory.New())
	rec, err := kb.Add(context.Background(), knowledge.Pair{Question: "Is there a bug bounty?", Answer: "Yes"})
	require.NoError(t, err)
	assert.Equal(t, knowledge.SourceManual, rec.SourceFile)
	assert.NotEmpty(t, rec.Fingerprint)
}

func TestBase_Backfill(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()
	_, err := store.AddBatch(ctx, []knowledge.Pair{
		{Question: "Do you log admin access?", Answer: "Yes", SourceFile: "legacy.csv"},
		{Question: "Do you rotate keys?", Answer: "Yearly", SourceFile: "legacy.csv"},
	}, [][]float32{nil, {1}})
	require.NoError(t, err)

	kb := knowledge.NewBase(fingerprint.NewLocal(), store)
	n, err := kb.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.WithFingerprints)

	n, err = kb.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
