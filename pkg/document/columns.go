package document

import "strings"

// Columns holds the ordered header substrings that identify the question
// and answer columns of a table.
type Columns struct {
	Question []string
	Answer   []string
}

// DefaultColumns returns the stock header patterns.
func DefaultColumns() Columns {
	return Columns{
		Question: []string{"question", "query", "ask", "q", "requirement", "item"},
		Answer:   []string{"answer", "response", "reply", "a", "value", "input"},
	}
}

// Detect returns the indexes of the question and answer columns in header,
// or -1 when absent. Patterns are tried in order and, for each pattern, the
// leftmost header containing it wins. The answer column is never the
// question column.
func (c Columns) Detect(header []string) (question, answer int) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}

	question = find(norm, c.Question, -1)
	answer = find(norm, c.Answer, question)
	return question, answer
}

func find(header, patterns []string, skip int) int {
	for _, p := range patterns {
		p = strings.ToLower(p)
		for i, h := range header {
			if i == skip || h == "" {
				continue
			}
			if strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}
