package document

import (
	"archive/zip"
	"bytes"
	"context"
	"html"
	"strings"
	"testing"

	"github.com/barekit/dossier/pkg/llm"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockProvider struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Message, error) {
	m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Message{Role: llm.RoleAssistant, Content: m.reply}, nil
}

// workbook builds an xlsx with one sheet per entry, in the given order.
func workbook(t *testing.T, sheets []string, rows map[string][][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows[name] {
			cellName, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cellName, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// docx builds a minimal Word document from paragraphs and one table.
func docx(t *testing.T, paragraphs []string, table [][]string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + html.EscapeString(p) + `</w:t></w:r></w:p>`)
	}
	if len(table) > 0 {
		body.WriteString(`<w:tbl>`)
		for _, row := range table {
			body.WriteString(`<w:tr>`)
			for _, c := range row {
				body.WriteString(`<w:tc><w:p><w:r><w:t>` + html.EscapeString(c) + `</w:t></w:r></w:p></w:tc>`)
			}
			body.WriteString(`</w:tr>`)
		}
		body.WriteString(`</w:tbl>`)
	}
	body.WriteString(`</w:body></w:document>`)
	return docxBody(t, body.String())
}

// docxBody packs a raw word/document.xml into a minimal .docx archive.
func docxBody(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`))
	require.NoError(t, err)
	w, err = zw.Create(DocxBody)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
