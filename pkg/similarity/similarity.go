// Package similarity ranks stored records against a query fingerprint by
// cosine similarity.
package similarity

import (
	"math"
	"sort"

	"github.com/barekit/dossier/pkg/knowledge"
)

// DefaultTopK is the number of matches returned when topK is not positive.
const DefaultTopK = 5

// Match is a record with its cosine similarity to the query.
type Match struct {
	Record knowledge.Record
	Score  float64
}

// Cosine returns the cosine similarity of a and b. ok is false when the
// lengths differ or either vector has zero magnitude.
func Cosine(a, b []float32) (score float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// Rank scores every candidate that has a comparable fingerprint and returns
// the best topK, highest first. Ties keep candidate order.
func Rank(query []float32, candidates []knowledge.Record, topK int) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score, ok := Cosine(query, c.Fingerprint)
		if !ok {
			continue
		}
		matches = append(matches, Match{Record: c, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
