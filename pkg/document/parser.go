// Package document extracts question-answer pairs from Excel, CSV, Word and
// PDF questionnaires.
package document

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/llm"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser reads questionnaires. Tables with a recognisable question column
// are read directly; everything else is handed to the language model.
type Parser struct {
	LLM       llm.Provider
	Columns   Columns
	MaxChars  int
	MaxTokens int
	Logger    *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithColumns replaces the header patterns.
func WithColumns(c Columns) Option {
	return func(p *Parser) {
		p.Columns = c
	}
}

// WithMaxChars sets how much text is sent to the model.
func WithMaxChars(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.MaxChars = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.Logger = l
		}
	}
}

// NewParser creates a Parser. provider may be nil; Word, PDF and
// unstructured tables then fail with ErrNoProvider.
func NewParser(provider llm.Provider, opts ...Option) *Parser {
	p := &Parser{
		LLM:       provider,
		Columns:   DefaultColumns(),
		MaxChars:  DefaultMaxChars,
		MaxTokens: DefaultExtractTokens,
		Logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts pairs from content. In questionsOnly mode rows without an
// answer are kept, which is what filling a new questionnaire needs.
func (p *Parser) Parse(ctx context.Context, filename string, content []byte, questionsOnly bool) ([]knowledge.Pair, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	source := SourceName(filename)

	var pairs []knowledge.Pair
	switch format {
	case FormatExcel:
		pairs, err = p.parseExcel(ctx, content, source, questionsOnly)
	case FormatCSV:
		pairs, err = p.parseCSV(ctx, content, source, questionsOnly)
	case FormatWord:
		pairs, err = p.parseWord(ctx, content, source, questionsOnly)
	case FormatPDF:
		pairs, err = p.parsePDF(ctx, content, source, questionsOnly)
	}
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, ErrNoQuestions
	}

	p.Logger.Debug("document parsed", "file", source, "format", format.String(), "pairs", len(pairs))
	return pairs, nil
}

// Questions returns just the question texts of pairs, in order.
func Questions(pairs []knowledge.Pair) []string {
	out := make([]string, len(pairs))
	for i, pair := range pairs {
		out[i] = pair.Question
	}
	return out
}

func (p *Parser) parseExcel(ctx context.Context, content []byte, source string, questionsOnly bool) ([]knowledge.Pair, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var pairs []knowledge.Pair
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		sheetPairs, err := p.rowsPairs(ctx, rows, source, sheet, questionsOnly)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, sheetPairs...)
	}
	return pairs, nil
}

func (p *Parser) parseCSV(ctx context.Context, content []byte, source string, questionsOnly bool) ([]knowledge.Pair, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return p.rowsPairs(ctx, rows, source, "", questionsOnly)
}

func (p *Parser) rowsPairs(ctx context.Context, rows [][]string, source, category string, questionsOnly bool) ([]knowledge.Pair, error) {
	pairs, ok := p.tablePairs(rows, source, category, questionsOnly)
	if ok {
		return pairs, nil
	}
	return p.extract(ctx, tableText(rows), source, category, questionsOnly)
}

func (p *Parser) parseWord(ctx context.Context, content []byte, source string, questionsOnly bool) ([]knowledge.Pair, error) {
	if p.LLM == nil {
		return nil, ErrNoProvider
	}
	text, err := DocxText(content)
	if err != nil {
		return nil, err
	}
	return p.extract(ctx, text, source, "", questionsOnly)
}

func (p *Parser) parsePDF(ctx context.Context, content []byte, source string, questionsOnly bool) ([]knowledge.Pair, error) {
	if p.LLM == nil {
		return nil, ErrNoProvider
	}
	text, err := pdfText(content)
	if err != nil {
		return nil, err
	}
	return p.extract(ctx, text, source, "", questionsOnly)
}

func pdfText(content []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n"), nil
}
