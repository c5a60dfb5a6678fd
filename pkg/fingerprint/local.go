package fingerprint

import "context"

const localPositions = 4

// Local is the stop-word filtered hashed bag-of-words strategy. It needs no
// external service.
type Local struct {
	opts options
}

// NewLocal creates a Local encoder.
func NewLocal(opts ...Option) *Local {
	return &Local{opts: newOptions(opts)}
}

// Dimension returns the fingerprint length.
func (l *Local) Dimension() int {
	return l.opts.dim
}

// Encode implements Encoder.
func (l *Local) Encode(ctx context.Context, text string) []float32 {
	key := cacheKey("local", l.opts.dim, text)
	if l.opts.cache != nil {
		if v, ok := l.opts.cache.Get(ctx, key); ok {
			return v
		}
	}

	vec := make([]float32, l.opts.dim)
	for _, tok := range l.Features(text) {
		addFeature(vec, tok, localPositions)
	}
	Normalize(vec)

	if l.opts.cache != nil {
		l.opts.cache.Set(ctx, key, vec)
	}
	return vec
}

// Features returns the tokens of text that survive filtering, in order.
func (l *Local) Features(text string) []string {
	tokens := Tokenize(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if runeLen(tok) < l.opts.minLen {
			continue
		}
		if _, stop := l.opts.stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}
