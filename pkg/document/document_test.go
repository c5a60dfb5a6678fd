package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOf(t *testing.T) {
	for name, want := range map[string]Format{
		"audit.xlsx":       FormatExcel,
		"AUDIT.XLSM":       FormatExcel,
		"dir/security.csv": FormatCSV,
		"policy.DOCX":      FormatWord,
		"soc2-report.pdf":  FormatPDF,
	} {
		got, err := FormatOf(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{"legacy.xls", "notes.txt", "README"} {
		_, err := FormatOf(name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestColumns_Detect(t *testing.T) {
	c := DefaultColumns()

	q, a := c.Detect([]string{"Category", " Question ", "Answer"})
	assert.Equal(t, 1, q)
	assert.Equal(t, 2, a)

	// "a" would match "Category", but "response" is tried first.
	q, a = c.Detect([]string{"Category", "Requirement", "Vendor Response"})
	assert.Equal(t, 1, q)
	assert.Equal(t, 2, a)

	q, a = c.Detect([]string{"ID", "Notes"})
	assert.Equal(t, -1, q)
	assert.Equal(t, -1, a)

	q, a = c.Detect([]string{"Question"})
	assert.Equal(t, 0, q)
	assert.Equal(t, -1, a)
}

func TestColumns_AnswerNeverQuestion(t *testing.T) {
	c := Columns{Question: []string{"qa"}, Answer: []string{"qa", "text"}}
	q, a := c.Detect([]string{"QA", "Text"})
	assert.Equal(t, 0, q)
	assert.Equal(t, 1, a)
}

func TestParse_Excel(t *testing.T) {
	content := workbook(t, []string{"Security", "Privacy"}, map[string][][]string{
		"Security": {
			{"Question", "Answer"},
			{"Do you encrypt data at rest?", "Yes, AES-256"},
			{"Do you pen test annually?", ""},
			{"", "orphan answer"},
		},
		"Privacy": {
			{},
			{"#", "Requirement", "Response"},
			{"1", "Do you have a DPO?", "Yes"},
			{"2", "nan", "skip me"},
		},
	})

	p := NewParser(nil)
	pairs, err := p.Parse(context.Background(), "uploads/audit.xlsx", content, false)
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Pair{
		{Question: "Do you encrypt data at rest?", Answer: "Yes, AES-256", SourceFile: "audit.xlsx", Category: "Security"},
		{Question: "Do you have a DPO?", Answer: "Yes", SourceFile: "audit.xlsx", Category: "Privacy"},
	}, pairs)

	pairs, err = p.Parse(context.Background(), "audit.xlsx", content, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Do you encrypt data at rest?",
		"Do you pen test annually?",
		"Do you have a DPO?",
	}, Questions(pairs))
	assert.Equal(t, "", pairs[1].Answer)
}

func TestParse_CSV(t *testing.T) {
	content := []byte("\xEF\xBB\xBFQuestion,Answer\n\"Do you log access, and for how long?\",\"Yes, 1 year\"\nIs SSO supported?,NaN\n")

	pairs, err := NewParser(nil).Parse(context.Background(), "gdpr.csv", content, false)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "Do you log access, and for how long?", pairs[0].Question)
	assert.Equal(t, "Yes, 1 year", pairs[0].Answer)
	assert.Equal(t, "gdpr.csv", pairs[0].SourceFile)
	assert.Equal(t, "", pairs[0].Category)

	pairs, err = NewParser(nil).Parse(context.Background(), "gdpr.csv", content, true)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestParse_CSVWithoutQuestionColumnUsesModel(t *testing.T) {
	content := []byte("ID,Text,Notes\n1,Do you have an ISMS?,Yes ISO 27001\n")
	p := &mockProvider{reply: `[{"question":"Do you have an ISMS?","answer":"Yes ISO 27001"}]`}

	pairs, err := NewParser(p).Parse(context.Background(), "misc.csv", content, false)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "misc.csv", pairs[0].SourceFile)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "1 | Do you have an ISMS? | Yes ISO 27001")

	_, err = NewParser(nil).Parse(context.Background(), "misc.csv", content, false)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestParse_EmptyIsNoQuestions(t *testing.T) {
	_, err := NewParser(nil).Parse(context.Background(), "empty.csv", []byte("Question,Answer\n"), false)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestParse_Unsupported(t *testing.T) {
	_, err := NewParser(nil).Parse(context.Background(), "old.xls", []byte("x"), false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse_Word(t *testing.T) {
	content := docx(t, []string{"Vendor Security Questionnaire", "Section 1"}, [][]string{
		{"Question", "Answer"},
		{"Do you encrypt backups?", "Yes"},
	})
	p := &mockProvider{reply: "Here you go:\n[{\"question\": \"Do you encrypt backups?\", \"answer\": \"Yes\"}, {\"question\": \"Header\"}]"}

	pairs, err := NewParser(p).Parse(context.Background(), "vendor.docx", content, false)
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Pair{{Question: "Do you encrypt backups?", Answer: "Yes", SourceFile: "vendor.docx"}}, pairs)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "Vendor Security Questionnaire\nSection 1\nQuestion | Answer\nDo you encrypt backups? | Yes")
	assert.Contains(t, p.prompts[0], "If a question has no answer, skip it.")
}

func TestParse_WordQuestionsOnlyKeepsEmptyAnswers(t *testing.T) {
	content := docx(t, []string{"1. Do you have a SOC 2 report?", "2. Who is your DPO?"}, nil)
	p := &mockProvider{reply: `[{"question":"Do you have a SOC 2 report?","answer":""},{"question":"Who is your DPO?","answer":""}]`}

	pairs, err := NewParser(p).Parse(context.Background(), "new.docx", content, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Do you have a SOC 2 report?", "Who is your DPO?"}, Questions(pairs))
	assert.Contains(t, p.prompts[0], "This is a NEW questionnaire")
}

func TestParse_WordWithoutProvider(t *testing.T) {
	_, err := NewParser(nil).Parse(context.Background(), "vendor.docx", docx(t, []string{"x"}, nil), false)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestParse_ModelError(t *testing.T) {
	p := &mockProvider{err: errors.New("rate limited")}
	_, err := NewParser(p).Parse(context.Background(), "vendor.docx", docx(t, []string{"Q?"}, nil), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestParse_PDF(t *testing.T) {
	_, err := NewParser(nil).Parse(context.Background(), "report.pdf", []byte("%PDF-1.4"), false)
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = NewParser(&mockProvider{}).Parse(context.Background(), "report.pdf", []byte("not a pdf"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf")
}

func TestDocxText(t *testing.T) {
	content := docx(t, []string{"Intro", "  "}, [][]string{{"A", "B"}, {"", ""}, {"C", ""}})
	text, err := DocxText(content)
	require.NoError(t, err)
	assert.Equal(t, "Intro\nA | B\nC | ", text)

	_, err = DocxText([]byte("not a zip"))
	assert.Error(t, err)
}

func TestDocxText_NestedTable(t *testing.T) {
	cell := func(text string) string {
		return `<w:tc><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:tc>`
	}
	nested := `<w:tc><w:tbl><w:tr>` + cell("Yes") + cell("No") + `</w:tr></w:tbl><w:p/></w:tc>`
	content := docxBody(t, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:tbl>`+
		`<w:tr>`+cell("Question")+cell("Answer")+`</w:tr>`+
		`<w:tr>`+cell("Do you encrypt data?")+nested+`</w:tr>`+
		`</w:tbl></w:body></w:document>`)

	text, err := DocxText(content)
	require.NoError(t, err)
	assert.Equal(t, "Question | Answer\nDo you encrypt data? | Yes No", text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate(strings.Repeat("é", 12), 10)
	assert.Equal(t, strings.Repeat("é", 10)+"\n...[truncated]", got)
}

func TestParsePairs(t *testing.T) {
	assert.Nil(t, parsePairs("no json", "f", "", false))
	assert.Nil(t, parsePairs(`{"question":"x"}`, "f", "", false))

	pairs := parsePairs(`[{"question":" Q1 ","answer":" A1 "},{"question":"Q2","answer":""},"junk",{"question":"Q3","answer":3}]`, "f.pdf", "", false)
	assert.Equal(t, []knowledge.Pair{
		{Question: "Q1", Answer: "A1", SourceFile: "f.pdf"},
		{Question: "Q3", Answer: "3", SourceFile: "f.pdf"},
	}, pairs)
}
