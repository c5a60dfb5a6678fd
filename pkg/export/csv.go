package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/barekit/dossier/pkg/answer"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (e *Exporter) fillCSV(template []byte, results []answer.Result) ([]byte, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(template, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if h := headerRow(rows); h >= 0 {
		qCol, aCol := e.Columns.Detect(rows[h])
		if qCol >= 0 && aCol >= 0 {
			answers := byQuestion(results)
			for i := h + 1; i < len(rows); i++ {
				if qCol >= len(rows[i]) {
					continue
				}
				res, ok := answers[strings.TrimSpace(rows[i][qCol])]
				if !ok {
					continue
				}
				for len(rows[i]) <= aCol {
					rows[i] = append(rows[i], "")
				}
				rows[i][aCol] = res.SuggestedAnswer
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}
