package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/barekit/dossier/pkg/llm"
)

const (
	featurePositions  = 4
	fallbackPositions = 2

	// FeatureCount is the number of semantic features requested from the model.
	FeatureCount     = 20
	featureMaxTokens = 200
)

var errNoFeatures = errors.New("fingerprint: model returned no features")

const featurePrompt = `Analyze this question/text and extract %d key semantic features as single words or short phrases.
Focus on: topic, domain, compliance area, data type, security concept, process type.

Text: %s

Return ONLY a comma-separated list of %d features, nothing else.
Example: data security, encryption, personal data, GDPR, access control, authentication, ...`

// Assisted asks a language model for semantic feature phrases and hashes
// them. Any model failure falls back to raw word hashing.
type Assisted struct {
	provider llm.Provider
	opts     options
}

// NewAssisted creates an Assisted encoder backed by provider.
func NewAssisted(provider llm.Provider, opts ...Option) *Assisted {
	return &Assisted{provider: provider, opts: newOptions(opts)}
}

// Dimension returns the fingerprint length.
func (a *Assisted) Dimension() int {
	return a.opts.dim
}

// Encode implements Encoder.
func (a *Assisted) Encode(ctx context.Context, text string) []float32 {
	key := cacheKey("assisted", a.opts.dim, text)
	if a.opts.cache != nil {
		if v, ok := a.opts.cache.Get(ctx, key); ok {
			return v
		}
	}

	features, err := a.extract(ctx, text)
	if err != nil {
		a.opts.logger.Debug("feature extraction failed, using word hashing", "error", err)
		return a.fallback(text)
	}

	vec := make([]float32, a.opts.dim)
	for _, f := range features {
		addFeature(vec, f, featurePositions)
	}
	Normalize(vec)

	if a.opts.cache != nil {
		a.opts.cache.Set(ctx, key, vec)
	}
	return vec
}

func (a *Assisted) extract(ctx context.Context, text string) ([]string, error) {
	if a.provider == nil {
		return nil, errors.New("fingerprint: no provider configured")
	}
	prompt := fmt.Sprintf(featurePrompt, FeatureCount, text, FeatureCount)
	reply, err := llm.Complete(ctx, a.provider, prompt, featureMaxTokens)
	if err != nil {
		return nil, err
	}
	features := ParseFeatures(reply)
	if len(features) == 0 {
		return nil, errNoFeatures
	}
	return features, nil
}

// fallback hashes every word without stop-word filtering.
func (a *Assisted) fallback(text string) []float32 {
	vec := make([]float32, a.opts.dim)
	for _, tok := range Tokenize(text) {
		addFeature(vec, tok, fallbackPositions)
	}
	Normalize(vec)
	return vec
}

// ParseFeatures splits a comma-separated model reply into lowercase,
// trimmed, non-empty features.
func ParseFeatures(reply string) []string {
	parts := strings.Split(reply, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		f := strings.ToLower(strings.TrimSpace(p))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
