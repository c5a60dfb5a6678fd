package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/barekit/dossier/pkg/document"
)

// Word tables are rewritten in the raw XML. Row and cell spans come from a
// token scan that tracks w:tbl depth, so only cells of top-level tables are
// touched and a nested table stays inside the cell holding it.
var (
	paraPattern   = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*)?>.*?</w:p>`)
	textPattern   = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	cellPrPattern = regexp.MustCompile(`(?s)\A(?:<w:tcPr>.*?</w:tcPr>|<w:tcPr/>)`)
)

func (e *Exporter) fillWord(template []byte, results []answer.Result) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	found := false
	for _, f := range zr.File {
		if f.Name != document.DocxBody {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}
		found = true

		body, err := readAll(f)
		if err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, err
		}
		filled, err := fillTables(body, newMatcher(results))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		if _, err := w.Write(filled); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("failed to open docx: %s missing", document.DocxBody)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// matcher finds the result for a question cell: exact match first, then
// containment in either direction, case-insensitively.
type matcher struct {
	keys    []string
	results map[string]answer.Result
}

func newMatcher(results []answer.Result) *matcher {
	m := &matcher{results: make(map[string]answer.Result, len(results))}
	for _, r := range results {
		k := strings.ToLower(strings.TrimSpace(r.Question))
		if k == "" {
			continue
		}
		if _, dup := m.results[k]; !dup {
			m.keys = append(m.keys, k)
		}
		m.results[k] = r
	}
	return m
}

func (m *matcher) match(question string) (answer.Result, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return answer.Result{}, false
	}
	if r, ok := m.results[q]; ok {
		return r, true
	}
	for _, k := range m.keys {
		if strings.Contains(q, k) || strings.Contains(k, q) {
			return m.results[k], true
		}
	}
	return answer.Result{}, false
}

// span is a byte range [start, end) of the document body.
type span struct {
	start, end int64
}

// tableRows returns the cell spans of every row of the top-level tables in
// body, in document order.
func tableRows(body []byte) ([][]span, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		rows      [][]span
		cells     []span
		cellStart int64
		depth     int
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != "w" {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					cells = nil
				}
			case "tc":
				if depth == 1 {
					cellStart = offset
				}
			}
		case xml.EndElement:
			if t.Name.Space != "w" {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				depth--
			case "tc":
				if depth == 1 {
					cells = append(cells, span{cellStart, dec.InputOffset()})
				}
			case "tr":
				if depth == 1 {
					rows = append(rows, cells)
					cells = nil
				}
			}
		}
	}
	return rows, nil
}

// fillTables writes the matched answer into the second cell of each
// top-level table row whose first cell holds a known question.
func fillTables(body []byte, m *matcher) ([]byte, error) {
	rows, err := tableRows(body)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	var last int64
	for _, cells := range rows {
		if len(cells) < 2 {
			continue
		}
		q, a := cells[0], cells[1]
		r, ok := m.match(cellText(body[q.start:q.end]))
		if !ok || r.SuggestedAnswer == "" {
			continue
		}
		out.Write(body[last:a.start])
		out.WriteString(answerCellXML(body[a.start:a.end], r))
		last = a.end
	}
	out.Write(body[last:])
	return out.Bytes(), nil
}

// cellText joins the text of each paragraph in a cell with newlines.
func cellText(cellXML []byte) string {
	var paras []string
	for _, p := range paraPattern.FindAll(cellXML, -1) {
		var b strings.Builder
		for _, t := range textPattern.FindAllSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(string(t[1])))
		}
		paras = append(paras, b.String())
	}
	return strings.Join(paras, "\n")
}

// answerCellXML rebuilds a cell holding only the answer, keeping the cell
// properties.
func answerCellXML(cellXML []byte, r answer.Result) string {
	end := bytes.IndexByte(cellXML, '>') + 1
	open := string(cellXML[:end])
	if strings.HasSuffix(open, "/>") {
		open = strings.TrimSuffix(open, "/>") + ">"
	}

	var b strings.Builder
	b.WriteString(open)
	b.Write(cellPrPattern.Find(cellXML[end:]))
	b.WriteString("<w:p><w:r>")
	switch bandOf(r.Confidence) {
	case bandLow:
		b.WriteString(`<w:rPr><w:highlight w:val="` + WordLowHighlight + `"/></w:rPr>`)
	case bandMedium:
		b.WriteString(`<w:rPr><w:color w:val="` + WordMediumColor + `"/></w:rPr>`)
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escapeXML(r.SuggestedAnswer))
	b.WriteString("</w:t></w:r></w:p></w:tc>")
	return b.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
