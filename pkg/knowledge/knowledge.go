package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceManual labels pairs entered by hand.
const SourceManual = "manual"

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("knowledge: record not found")
	// ErrInvalidRecord is returned when a record lacks a question or answer.
	ErrInvalidRecord = errors.New("knowledge: question and answer are required")
)

// Pair is a question with its answer and provenance.
type Pair struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	SourceFile string `json:"source_file"`
	Category   string `json:"category"`
}

// Record is a stored Pair.
type Record struct {
	ID string `json:"id"`
	Pair
	Fingerprint []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate reports ErrInvalidRecord when the question or answer is blank.
func (p Pair) Validate() error {
	if strings.TrimSpace(p.Question) == "" || strings.TrimSpace(p.Answer) == "" {
		return ErrInvalidRecord
	}
	return nil
}

// Stats summarises the store contents.
type Stats struct {
	TotalPairs       int64 `json:"total_qa_pairs"`
	SourceFiles      int64 `json:"source_files"`
	WithFingerprints int64 `json:"with_embeddings"`
}

// Store persists records. All returns records in insertion order and every
// method returns copies the caller may modify.
type Store interface {
	// Add inserts one record and returns it with its assigned id.
	Add(ctx context.Context, pair Pair, fingerprint []float32) (*Record, error)
	// AddBatch inserts records atomically where the backend supports it.
	AddBatch(ctx context.Context, pairs []Pair, fingerprints [][]float32) ([]Record, error)
	// SetFingerprint replaces the fingerprint of an existing record.
	SetFingerprint(ctx context.Context, id string, fingerprint []float32) error
	All(ctx context.Context) ([]Record, error)
	BySource(ctx context.Context, source string) ([]Record, error)
	// Sources returns the distinct non-empty source labels, sorted.
	Sources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	// DeleteBySource removes every record of source and returns the count.
	DeleteBySource(ctx context.Context, source string) (int64, error)
	Clear(ctx context.Context) error
}

// Encoder produces fingerprints.
type Encoder interface {
	Encode(ctx context.Context, text string) []float32
}

// Base combines an Encoder and a Store.
type Base struct {
	Encoder Encoder
	Store   Store
}

// NewBase creates a new Base.
func NewBase(encoder Encoder, store Store) *Base {
	return &Base{
		Encoder: encoder,
		Store:   store,
	}
}

// Ingest fingerprints every question and stores the pairs in one batch.
func (b *Base) Ingest(ctx context.Context, pairs []Pair) ([]Record, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	if err := ValidateBatch(pairs, nil); err != nil {
		return nil, err
	}

	fingerprints := make([][]float32, len(pairs))
	for i, p := range pairs {
		fingerprints[i] = b.Encoder.Encode(ctx, p.Question)
	}

	return b.Store.AddBatch(ctx, pairs, fingerprints)
}

// Add stores a single pair. An empty source is labelled SourceManual.
func (b *Base) Add(ctx context.Context, pair Pair) (*Record, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if pair.SourceFile == "" {
		pair.SourceFile = SourceManual
	}
	return b.Store.Add(ctx, pair, b.Encoder.Encode(ctx, pair.Question))
}

// Backfill fingerprints stored records that have none and returns how many
// were updated.
func (b *Base) Backfill(ctx context.Context) (int, error) {
	records, err := b.Store.All(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, r := range records {
		if len(r.Fingerprint) > 0 {
			continue
		}
		if err := b.Store.SetFingerprint(ctx, r.ID, b.Encoder.Encode(ctx, r.Question)); err != nil {
			return updated, fmt.Errorf("record %s: %w", r.ID, err)
		}
		updated++
	}
	return updated, nil
}

// ValidateBatch checks every pair and that fingerprints, when given, line up
// with pairs.
func ValidateBatch(pairs []Pair, fingerprints [][]float32) error {
	if fingerprints != nil && len(fingerprints) != len(pairs) {
		return fmt.Errorf("%w: %d pairs but %d fingerprints", ErrInvalidRecord, len(pairs), len(fingerprints))
	}
	for i, p := range pairs {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
	}
	return nil
}

// FingerprintAt returns fingerprints[i], or nil when fingerprints is nil.
func FingerprintAt(fingerprints [][]float32, i int) []float32 {
	if fingerprints == nil {
		return nil
	}
	return fingerprints[i]
}

// CloneFingerprint copies v. A nil or empty v yields nil.
func CloneFingerprint(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
