package inmemory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/barekit/dossier/pkg/knowledge"
)

// InMemory implements knowledge.Store on a slice.
type InMemory struct {
	mu      sync.RWMutex
	records []knowledge.Record
	nextID  int64
}

// New creates a new InMemory store.
func New() *InMemory {
	return &InMemory{}
}

// Add implements knowledge.Store.
func (m *InMemory) Add(ctx context.Context, pair knowledge.Pair, fingerprint []float32) (*knowledge.Record, error) {
	recs, err := m.AddBatch(ctx, []knowledge.Pair{pair}, [][]float32{fingerprint})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// AddBatch implements knowledge.Store.
func (m *InMemory) AddBatch(ctx context.Context, pairs []knowledge.Pair, fingerprints [][]float32) ([]knowledge.Record, error) {
	if err := knowledge.ValidateBatch(pairs, fingerprints); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	out := make([]knowledge.Record, len(pairs))
	for i, p := range pairs {
		m.nextID++
		rec := knowledge.Record{
			ID:          strconv.FormatInt(m.nextID, 10),
			Pair:        p,
			Fingerprint: knowledge.CloneFingerprint(knowledge.FingerprintAt(fingerprints, i)),
			CreatedAt:   now,
		}
		m.records = append(m.records, rec)
		out[i] = copyRecord(rec)
	}
	return out, nil
}

// SetFingerprint implements knowledge.Store.
func (m *InMemory) SetFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Fingerprint = knowledge.CloneFingerprint(fingerprint)
			return nil
		}
	}
	return knowledge.ErrNotFound
}

// All implements knowledge.Store.
func (m *InMemory) All(ctx context.Context) ([]knowledge.Record, error) {
	return m.filter(func(knowledge.Record) bool { return true }), nil
}

// BySource implements knowledge.Store.
func (m *InMemory) BySource(ctx context.Context, source string) ([]knowledge.Record, error) {
	return m.filter(func(r knowledge.Record) bool { return r.SourceFile == source }), nil
}

// Sources implements knowledge.Store.
func (m *InMemory) Sources(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedSources(m.records), nil
}

// Stats implements knowledge.Store.
func (m *InMemory) Stats(ctx context.Context) (knowledge.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := knowledge.Stats{
		TotalPairs:  int64(len(m.records)),
		SourceFiles: int64(len(sortedSources(m.records))),
	}
	for _, r := range m.records {
		if len(r.Fingerprint) > 0 {
			stats.WithFingerprints++
		}
	}
	return stats, nil
}

// DeleteBySource implements knowledge.Store.
func (m *InMemory) DeleteBySource(ctx context.Context, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.SourceFile == source {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Clear implements knowledge.Store.
func (m *InMemory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	return nil
}

func (m *InMemory) filter(keep func(knowledge.Record) bool) []knowledge.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]knowledge.Record, 0, len(m.records))
	for _, r := range m.records {
		if keep(r) {
			out = append(out, copyRecord(r))
		}
	}
	return out
}

func copyRecord(r knowledge.Record) knowledge.Record {
	r.Fingerprint = knowledge.CloneFingerprint(r.Fingerprint)
	return r
}

func sortedSources(records []knowledge.Record) []string {
	set := map[string]struct{}{}
	for _, r := range records {
		if r.SourceFile != "" {
			set[r.SourceFile] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
