// Package answer suggests answers for new questionnaire questions from the
// most similar stored question-answer pairs.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/barekit/dossier/pkg/fingerprint"
	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/llm"
	"github.com/barekit/dossier/pkg/similarity"
)

// Confidence thresholds, in percent.
const (
	// ReviewThreshold is the confidence below which a reply without an
	// explicit needs_review flag is marked for review.
	ReviewThreshold = 70
	// HighConfidence and above counts as high confidence.
	HighConfidence = 80
	// LowConfidence is the bound below which confidence counts as low.
	LowConfidence = 50
)

// DefaultMaxTokens bounds the generated reply.
const DefaultMaxTokens = 1000

// NoMatchReasoning is reported when the knowledge base has nothing similar.
const NoMatchReasoning = "No similar questions found in knowledge base."

// Source is a stored pair that informed an answer.
type Source struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// Result is a suggested answer for one question.
type Result struct {
	Question        string   `json:"question"`
	SuggestedAnswer string   `json:"suggested_answer"`
	Confidence      int      `json:"confidence"`
	NeedsReview     bool     `json:"needs_review"`
	SourceQuestions []Source `json:"source_questions"`
	Reasoning       string   `json:"reasoning"`
}

// Synthesizer answers questions from a knowledge store.
type Synthesizer struct {
	Store     knowledge.Store
	LLM       llm.Provider
	Encoder   fingerprint.Encoder
	TopK      int
	MaxTokens int
	Logger    *slog.Logger
	Debug     bool
}

// Option is a function that configures a Synthesizer.
type Option func(*Synthesizer)

// New creates a Synthesizer. provider may be nil, in which case every
// answer is the best direct match.
func New(store knowledge.Store, provider llm.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		Store:     store,
		LLM:       provider,
		Encoder:   fingerprint.NewLocal(),
		TopK:      similarity.DefaultTopK,
		MaxTokens: DefaultMaxTokens,
		Logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithEncoder sets the query encoder. It must match the encoder used when
// the stored fingerprints were produced.
func WithEncoder(enc fingerprint.Encoder) Option {
	return func(s *Synthesizer) {
		s.Encoder = enc
	}
}

// WithTopK sets how many similar pairs are retrieved.
func WithTopK(k int) Option {
	return func(s *Synthesizer) {
		if k > 0 {
			s.TopK = k
		}
	}
}

// WithMaxTokens sets the output token limit of the generation call.
func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.MaxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.Logger = l
		}
	}
}

// WithDebug enables debug logging.
func WithDebug(enable bool) Option {
	return func(s *Synthesizer) {
		s.Debug = enable
	}
}

// Synthesize suggests an answer for question. It only fails when the store
// cannot be read; model failures fall back to the best direct match.
func (s *Synthesizer) Synthesize(ctx context.Context, question string) (*Result, error) {
	if s.Debug {
		s.Logger.Info("Synthesize started", "question", question)
	}

	query := s.Encoder.Encode(ctx, question)
	records, err := s.Store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge: %w", err)
	}
	matches := similarity.Rank(query, records, s.TopK)

	if len(matches) == 0 {
		return &Result{
			Question:        question,
			NeedsReview:     true,
			SourceQuestions: []Source{},
			Reasoning:       NoMatchReasoning,
		}, nil
	}

	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			Question:   m.Record.Question,
			Answer:     m.Record.Answer,
			Source:     m.Record.SourceFile,
			Similarity: percent(m.Score),
		}
	}

	if s.LLM == nil {
		return fallback(question, sources), nil
	}

	text, err := llm.Complete(ctx, s.LLM, buildPrompt(question, sources), s.MaxTokens)
	if err != nil {
		s.Logger.Warn("answer generation failed, using best match", "error", err)
		return fallback(question, sources), nil
	}

	r, err := parseReply(text)
	if err != nil {
		s.Logger.Warn("unusable model reply, using best match", "error", err)
		if s.Debug {
			s.Logger.Info("model reply", "text", text)
		}
		return fallback(question, sources), nil
	}

	if s.Debug {
		s.Logger.Info("Synthesize finished", "confidence", r.Confidence, "needs_review", r.NeedsReview)
	}

	return &Result{
		Question:        question,
		SuggestedAnswer: r.Answer,
		Confidence:      r.Confidence,
		NeedsReview:     r.NeedsReview,
		SourceQuestions: sources,
		Reasoning:       r.Reasoning,
	}, nil
}

// FillQuestionnaire answers each question in order, one generation call per
// question.
func (s *Synthesizer) FillQuestionnaire(ctx context.Context, questions []string) ([]Result, error) {
	results := make([]Result, 0, len(questions))
	for _, q := range questions {
		r, err := s.Synthesize(ctx, q)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, nil
}

// fallback returns the best candidate's answer verbatim.
func fallback(question string, sources []Source) *Result {
	best := sources[0]
	return &Result{
		Question:        question,
		SuggestedAnswer: best.Answer,
		Confidence:      int(best.Similarity),
		NeedsReview:     true,
		SourceQuestions: sources,
		Reasoning:       "Direct match from: " + best.Source,
	}
}

// percent converts a cosine score to a percentage with one decimal.
func percent(score float64) float64 {
	return math.Round(score*1000) / 10
}

const promptTemplate = `You are helping fill out a due diligence/compliance questionnaire.
Based on the similar questions and answers from previously completed questionnaires,
generate an appropriate answer for the new question.

Previously answered similar questions:
%s

New question to answer:
%s

Provide your response as a JSON object with these fields:
- "answer": The suggested answer (keep the same style/format as the source answers)
- "confidence": A number 0-100 indicating how confident you are (100 = exact match exists, 50 = related info found, 0 = guessing)
- "reasoning": Brief explanation of how you derived this answer
- "needs_review": true if a human should verify this answer, false if high confidence

Return ONLY valid JSON, no other text.`

func buildPrompt(question string, sources []Source) string {
	blocks := make([]string, len(sources))
	for i, src := range sources {
		blocks[i] = fmt.Sprintf("Similar Question (similarity: %.1f%%):\nQ: %s\nA: %s\nSource: %s",
			src.Similarity, src.Question, src.Answer, src.Source)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(blocks, "\n\n"), question)
}
