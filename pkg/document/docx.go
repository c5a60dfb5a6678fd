package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DocxBody is the part of a .docx archive holding the document text.
const DocxBody = "word/document.xml"

// DocxText returns the paragraphs of a .docx file, one per line, in document
// order. Table rows become one line with cells joined by " | "; nested tables
// are flattened into the text of the cell holding them.
func DocxText(content []byte) (string, error) {
	body, err := readZipEntry(content, DocxBody)
	if err != nil {
		return "", err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		lines      []string
		para       strings.Builder
		cells      []string
		cellText   strings.Builder
		tableDepth int
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					cells = cells[:0]
				}
			case "tc":
				if tableDepth == 1 {
					cellText.Reset()
				}
			case "t":
				inText = true
			case "tab":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				para.Reset()
				if tableDepth > 0 {
					if cellText.Len() > 0 && text != "" {
						cellText.WriteByte(' ')
					}
					cellText.WriteString(text)
				} else if text != "" {
					lines = append(lines, text)
				}
			case "tc":
				if tableDepth == 1 {
					cells = append(cells, strings.TrimSpace(cellText.String()))
				}
			case "tr":
				if tableDepth != 1 {
					break
				}
				row := strings.Join(cells, " | ")
				if strings.Trim(row, "| ") != "" {
					lines = append(lines, row)
				}
			case "tbl":
				tableDepth--
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func readZipEntry(content []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("failed to open docx: %s missing", name)
}
