// Package fingerprint maps text to fixed-length, L2-normalized hash-bucket
// vectors that can be compared with cosine similarity.
package fingerprint

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultDimension is the number of buckets in a fingerprint.
const DefaultDimension = 256

// Encoder turns text into a fingerprint.
type Encoder interface {
	Encode(ctx context.Context, text string) []float32
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

type options struct {
	dim       int
	cache     Cache
	stopWords map[string]struct{}
	minLen    int
	logger    *slog.Logger
}

// Option configures an encoder.
type Option func(*options)

// WithDimension sets the number of buckets.
func WithDimension(dim int) Option {
	return func(o *options) {
		if dim > 0 {
			o.dim = dim
		}
	}
}

// WithCache sets the result cache. Passing nil disables caching.
func WithCache(c Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithStopWords replaces the stop-word set used by the local strategy.
func WithStopWords(words []string) Option {
	return func(o *options) {
		o.stopWords = toSet(words)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		dim:       DefaultDimension,
		cache:     NewMemoryCache(),
		stopWords: toSet(DefaultStopWords),
		minLen:    3,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Tokenize lowercases text and splits it on word boundaries.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// Normalize scales v to unit length in place. The zero vector is left as is.
func Normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	magnitude := math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) / magnitude)
	}
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

// addFeature hashes feature and increments the buckets selected by the first
// positions digest bytes. Each byte is one hex pair of the digest.
func addFeature(vec []float32, feature string, positions int) {
	sum := md5.Sum([]byte(feature))
	if positions > len(sum) {
		positions = len(sum)
	}
	for i := 0; i < positions; i++ {
		vec[int(sum[i])%len(vec)] += 1.0
	}
}

func cacheKey(strategy string, dim int, text string) string {
	sum := md5.Sum([]byte(text))
	return strategy + ":" + strconv.Itoa(dim) + ":" + hex.EncodeToString(sum[:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
