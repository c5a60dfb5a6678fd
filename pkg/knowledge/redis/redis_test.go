package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) knowledge.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestRedisStore_Layout(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.Add(ctx, knowledge.Pair{Question: "Do you encrypt data at rest?", Answer: "Yes", SourceFile: "audit.xlsx"}, []float32{1, 0})
	require.NoError(t, err)

	assert.Equal(t, "Yes", mr.HGet("dossier:kb:pair:1", "answer"))
	assert.Equal(t, "[1,0]", mr.HGet("dossier:kb:pair:1", "fingerprint"))

	members, err := mr.Members("dossier:kb:source:audit.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	other := s.WithPrefix("tenant-b:")

	_, err := s.Add(ctx, knowledge.Pair{Question: "Q?", Answer: "A"}, nil)
	require.NoError(t, err)

	all, err := other.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRedisStore_SetFingerprintAfterDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	rec, err := s.Add(ctx, knowledge.Pair{Question: "Do you encrypt data at rest?", Answer: "Yes", SourceFile: "audit.xlsx"}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetFingerprint(ctx, rec.ID, []float32{0.6, 0.8}))
	assert.Equal(t, "[0.6,0.8]", mr.HGet("dossier:kb:pair:1", "fingerprint"))

	require.NoError(t, s.SetFingerprint(ctx, rec.ID, nil))
	assert.Empty(t, mr.HGet("dossier:kb:pair:1", "fingerprint"))
	assert.Equal(t, "Yes", mr.HGet("dossier:kb:pair:1", "answer"))

	n, err := s.DeleteBySource(ctx, "audit.xlsx")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = s.SetFingerprint(ctx, rec.ID, []float32{1, 0})
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
	assert.False(t, mr.Exists("dossier:kb:pair:1"))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSortIDs(t *testing.T) {
	ids := []string{"10", "2", "1"}
	sortIDs(ids)
	assert.Equal(t, []string{"1", "2", "10"}, ids)
}
