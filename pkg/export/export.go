// Package export writes suggested answers back into the questionnaire they
// came from, flagging weak answers with colour.
package export

import (
	"fmt"
	"strings"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/barekit/dossier/pkg/document"
)

// Highlight colours.
const (
	ExcelLowFill     = "FFFF00"
	ExcelMediumFill  = "FFD580"
	WordLowHighlight = "yellow"
	WordMediumColor  = "FFA500"
)

// Exporter fills templates with results.
type Exporter struct {
	Columns document.Columns
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithColumns replaces the header patterns used to find the question and
// answer columns.
func WithColumns(c document.Columns) Option {
	return func(e *Exporter) {
		e.Columns = c
	}
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{Columns: document.DefaultColumns()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OutputName is the download name of a filled template.
func OutputName(filename string) string {
	return "filled_" + document.SourceName(filename)
}

// Export fills template with results and returns the new file and its
// content type. Only Excel, CSV and Word templates can be filled.
func (e *Exporter) Export(template []byte, filename string, results []answer.Result) ([]byte, string, error) {
	format, err := document.FormatOf(filename)
	if err != nil {
		return nil, "", err
	}

	var out []byte
	switch format {
	case document.FormatExcel:
		out, err = e.fillExcel(template, results)
	case document.FormatCSV:
		out, err = e.fillCSV(template, results)
	case document.FormatWord:
		out, err = e.fillWord(template, results)
	default:
		return nil, "", fmt.Errorf("%w: cannot export %s", document.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, "", err
	}
	return out, format.ContentType(), nil
}

// byQuestion indexes results by trimmed question text. Later results win.
func byQuestion(results []answer.Result) map[string]answer.Result {
	m := make(map[string]answer.Result, len(results))
	for _, r := range results {
		m[strings.TrimSpace(r.Question)] = r
	}
	return m
}

// band classifies a confidence for highlighting.
type band int

const (
	bandNone band = iota
	bandMedium
	bandLow
)

func bandOf(confidence int) band {
	switch {
	case confidence < answer.LowConfidence:
		return bandLow
	case confidence < answer.HighConfidence:
		return bandMedium
	default:
		return bandNone
	}
}
