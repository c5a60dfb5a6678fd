package document

import (
	"strings"

	"github.com/barekit/dossier/pkg/knowledge"
)

// cell normalises a table value. Blank and "nan" cells are empty.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

// headerIndex returns the first row with a non-blank cell, or -1.
func headerIndex(rows [][]string) int {
	for i, row := range rows {
		for j := range row {
			if cell(row, j) != "" {
				return i
			}
		}
	}
	return -1
}

// tablePairs reads pairs from rows using the detected header. ok is false
// when the table has no question column.
func (p *Parser) tablePairs(rows [][]string, source, category string, questionsOnly bool) (pairs []knowledge.Pair, ok bool) {
	h := headerIndex(rows)
	if h < 0 {
		return nil, true
	}
	qCol, aCol := p.Columns.Detect(rows[h])
	if qCol < 0 {
		return nil, false
	}

	for _, row := range rows[h+1:] {
		q := cell(row, qCol)
		if q == "" {
			continue
		}
		a := cell(row, aCol)
		if a == "" && !questionsOnly {
			continue
		}
		pairs = append(pairs, knowledge.Pair{
			Question:   q,
			Answer:     a,
			SourceFile: source,
			Category:   category,
		})
	}
	return pairs, true
}

// tableText renders rows for model extraction.
func tableText(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		line := strings.TrimSpace(strings.Join(row, " | "))
		if strings.Trim(line, "| ") == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
