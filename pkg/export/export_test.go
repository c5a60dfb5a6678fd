package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/barekit/dossier/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var results = []answer.Result{
	{Question: "Do you encrypt data at rest?", SuggestedAnswer: "Yes, AES-256", Confidence: 92},
	{Question: "Do you have a DPO?", SuggestedAnswer: "Yes & <named>", Confidence: 65},
	{Question: "Do you pen test annually?", SuggestedAnswer: "Unsure", Confidence: 30},
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "filled_audit.xlsx", OutputName("uploads/audit.xlsx"))
}

func TestExport_Unsupported(t *testing.T) {
	_, _, err := New().Export([]byte("%PDF"), "report.pdf", results)
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)

	_, _, err = New().Export(nil, "notes.txt", results)
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
}

func TestExport_CSV(t *testing.T) {
	template := "Category,Question,Response\nSecurity,Do you encrypt data at rest?,\nPrivacy,Do you have a DPO?\nOther,Unknown question,keep\n"

	out, contentType, err := New().Export([]byte(template), "new.csv", results)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	r := csv.NewReader(bytes.NewReader(out))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Category", "Question", "Response"},
		{"Security", "Do you encrypt data at rest?", "Yes, AES-256"},
		{"Privacy", "Do you have a DPO?", "Yes & <named>"},
		{"Other", "Unknown question", "keep"},
	}, rows)
}

func TestExport_Excel(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"Question", "Answer"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"Do you encrypt data at rest?", ""}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]string{"Do you have a DPO?", ""}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]string{" Do you pen test annually? ", ""}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A5", &[]string{"Not answered", "keep"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, contentType, err := New().Export(buf.Bytes(), "audit.xlsx", results)
	require.NoError(t, err)
	assert.Equal(t, document.FormatExcel.ContentType(), contentType)

	filled, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer filled.Close()

	for cell, want := range map[string]string{
		"B2": "Yes, AES-256",
		"B3": "Yes & <named>",
		"B4": "Unsure",
		"B5": "keep",
	} {
		got, err := filled.GetCellValue("Sheet1", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}

	assert.NotContains(t, []string{ExcelLowFill, ExcelMediumFill}, fillColor(t, filled, "B2"))
	assert.Equal(t, ExcelMediumFill, fillColor(t, filled, "B3"))
	assert.Equal(t, ExcelLowFill, fillColor(t, filled, "B4"))
	assert.NotContains(t, []string{ExcelLowFill, ExcelMediumFill}, fillColor(t, filled, "B5"))
}

func fillColor(t *testing.T, f *excelize.File, cell string) string {
	t.Helper()
	id, err := f.GetCellStyle("Sheet1", cell)
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	if len(style.Fill.Color) == 0 {
		return ""
	}
	c := strings.ToUpper(strings.TrimPrefix(style.Fill.Color[0], "#"))
	if len(c) > 6 {
		c = c[len(c)-6:]
	}
	return c
}

func TestExport_Word(t *testing.T) {
	template := wordTemplate(t, [][]string{
		{"Question", "Answer"},
		{"DO YOU ENCRYPT DATA AT REST?", "TBD"},
		{"2. Do you have a DPO? (name them)", ""},
		{"Do you pen test annually?", ""},
		{"", "blank question"},
		{"Something else entirely", "keep"},
	})

	out, contentType, err := New().Export(template, "vendor.docx", results)
	require.NoError(t, err)
	assert.Equal(t, document.FormatWord.ContentType(), contentType)

	text, err := document.DocxText(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Question | Answer",
		"DO YOU ENCRYPT DATA AT REST? | Yes, AES-256",
		"2. Do you have a DPO? (name them) | Yes & <named>",
		"Do you pen test annually? | Unsure",
		" | blank question",
		"Something else entirely | keep",
	}, "\n"), text)

	body := docBody(t, out)
	assert.Contains(t, body, `<w:color w:val="FFA500"/></w:rPr><w:t xml:space="preserve">Yes &amp; &lt;named&gt;</w:t>`)
	assert.Contains(t, body, `<w:highlight w:val="yellow"/></w:rPr><w:t xml:space="preserve">Unsure</w:t>`)
	assert.Contains(t, body, `<w:tcPr><w:tcW w:w="4000" w:type="dxa"/></w:tcPr><w:p><w:r><w:t xml:space="preserve">Yes, AES-256</w:t>`)

	styles := zipEntry(t, out, "word/styles.xml")
	assert.Equal(t, "<styles/>", styles)
}

func TestExport_WordNestedTable(t *testing.T) {
	nested := `<w:tc><w:tcPr><w:tcW w:w="4000" w:type="dxa"/></w:tcPr><w:tbl>` +
		`<w:tr>` + wordCell("Yes") + wordCell("No") + `</w:tr>` +
		`</w:tbl><w:p/></w:tc>`
	template := wordTemplateXML(t,
		`<w:tr>`+wordCell("Question")+wordCell("Answer")+`</w:tr>`+
			`<w:tr>`+wordCell("Do you encrypt data at rest?")+nested+`</w:tr>`+
			`<w:tr>`+wordCell("Do you pen test annually?")+wordCell("")+`</w:tr>`)

	out, _, err := New().Export(template, "vendor.docx", results)
	require.NoError(t, err)

	body := docBody(t, out)
	dec := xml.NewDecoder(strings.NewReader(body))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err, "output is not well-formed XML")
	}
	assert.NotContains(t, body, ">No<")

	text, err := document.DocxText(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Question | Answer",
		"Do you encrypt data at rest? | Yes, AES-256",
		"Do you pen test annually? | Unsure",
	}, "\n"), text)
}

func TestExport_WordNestedTableInQuestionCell(t *testing.T) {
	inner := `<w:tbl><w:tr>` + wordCell("Do you pen test annually?") + wordCell("inner") + `</w:tr></w:tbl>`
	template := wordTemplateXML(t,
		`<w:tr><w:tc>`+inner+`<w:p/></w:tc>`+wordCell("outer")+`</w:tr>`)

	out, _, err := New().Export(template, "vendor.docx", results)
	require.NoError(t, err)

	body := docBody(t, out)
	assert.Contains(t, body, ">inner<")
	assert.Contains(t, body, `<w:highlight w:val="yellow"/></w:rPr><w:t xml:space="preserve">Unsure</w:t>`)
	assert.NotContains(t, body, ">outer<")
}

func TestExport_WordMalformedBody(t *testing.T) {
	template := wordTemplateXML(t, `<w:tr>`+wordCell("Do you encrypt data at rest?")+`<w:tc><w:p><w:r><w:t>&bogus;</w:t></w:r></w:p></w:tc></w:tr>`)
	_, _, err := New().Export(template, "vendor.docx", results)
	assert.Error(t, err)
}

func TestMatcher(t *testing.T) {
	m := newMatcher([]answer.Result{
		{Question: "Encryption at rest?"},
		{Question: "  "},
		{Question: "Do you have MFA?", SuggestedAnswer: "first"},
		{Question: "do you have mfa?", SuggestedAnswer: "second"},
	})

	r, ok := m.match("DO YOU HAVE MFA?")
	require.True(t, ok)
	assert.Equal(t, "second", r.SuggestedAnswer)

	r, ok = m.match("1.2 Encryption at rest? Describe.")
	require.True(t, ok)
	assert.Equal(t, "Encryption at rest?", r.Question)

	_, ok = m.match("")
	assert.False(t, ok)
	_, ok = m.match("Unrelated")
	assert.False(t, ok)
}

func wordCell(text string) string {
	return `<w:tc><w:tcPr><w:tcW w:w="4000" w:type="dxa"/></w:tcPr><w:p><w:r><w:t>` + escapeXML(text) + `</w:t></w:r></w:p></w:tc>`
}

func wordTemplate(t *testing.T, table [][]string) []byte {
	t.Helper()
	var rows strings.Builder
	for _, row := range table {
		rows.WriteString(`<w:tr><w:trPr><w:cantSplit/></w:trPr>`)
		for _, c := range row {
			rows.WriteString(wordCell(c))
		}
		rows.WriteString(`</w:tr>`)
	}
	return wordTemplateXML(t, rows.String())
}

// wordTemplateXML wraps raw w:tr elements in a one-table .docx.
func wordTemplateXML(t *testing.T, rows string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:tbl>`)
	body.WriteString(rows)
	body.WriteString(`</w:tbl></w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		document.DocxBody: body.String(),
		"word/styles.xml": "<styles/>",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func docBody(t *testing.T, docx []byte) string {
	return zipEntry(t, docx, document.DocxBody)
}

func zipEntry(t *testing.T, archive []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("%s not found", name)
	return ""
}
