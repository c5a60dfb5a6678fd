package document

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/llm"
	"github.com/tidwall/gjson"
)

const (
	// DefaultMaxChars is how much document text is sent to the model.
	DefaultMaxChars = 50000
	// DefaultExtractTokens bounds the extraction reply.
	DefaultExtractTokens = 4000
)

const pairsPrompt = `Extract all question-answer pairs from this due diligence/compliance questionnaire document.

Return a JSON array of objects with "question" and "answer" fields.
Only include actual Q&A pairs, not headers or instructions.
If a question has no answer, skip it.

Document text:
%s

Return ONLY valid JSON array, no other text. Example format:
[{"question": "What is your company name?", "answer": "Acme Corp"}]`

const questionsPrompt = `Extract all questions from this due diligence/compliance questionnaire document.
This is a NEW questionnaire to be filled out, so answers may be missing or empty.

Return a JSON array of objects with "question" and "answer" fields.
For questions without answers, set "answer" to an empty string.
Only include actual questions, not headers or instructions.

Document text:
%s

Return ONLY valid JSON array, no other text. Example format:
[{"question": "What is your company name?", "answer": ""}]`

// extract asks the model for pairs found in free text.
func (p *Parser) extract(ctx context.Context, text, source, category string, questionsOnly bool) ([]knowledge.Pair, error) {
	if p.LLM == nil {
		return nil, ErrNoProvider
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := pairsPrompt
	if questionsOnly {
		prompt = questionsPrompt
	}
	reply, err := llm.Complete(ctx, p.LLM, fmt.Sprintf(prompt, truncate(text, p.MaxChars)), p.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	pairs := parsePairs(reply, source, category, questionsOnly)
	if len(pairs) == 0 {
		p.Logger.Warn("model extracted no pairs", "file", source)
	}
	return pairs, nil
}

// truncate cuts text to max runes and marks the cut.
func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "\n...[truncated]"
}

// parsePairs reads a JSON array of {question, answer} objects from reply,
// either whole or as the span from the first '[' to the last ']'.
// Unusable replies yield no pairs.
func parsePairs(reply, source, category string, questionsOnly bool) []knowledge.Pair {
	reply = strings.TrimSpace(reply)
	arr := gjson.Result{}
	if gjson.Valid(reply) {
		arr = gjson.Parse(reply)
	}
	if !arr.IsArray() {
		start := strings.Index(reply, "[")
		end := strings.LastIndex(reply, "]")
		if start < 0 || end <= start || !gjson.Valid(reply[start:end+1]) {
			return nil
		}
		arr = gjson.Parse(reply[start : end+1])
		if !arr.IsArray() {
			return nil
		}
	}

	var pairs []knowledge.Pair
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		q := strings.TrimSpace(item.Get("question").String())
		a := strings.TrimSpace(item.Get("answer").String())
		if q == "" || (a == "" && !questionsOnly) {
			return true
		}
		pairs = append(pairs, knowledge.Pair{
			Question:   q,
			Answer:     a,
			SourceFile: source,
			Category:   category,
		})
		return true
	})
	return pairs
}
