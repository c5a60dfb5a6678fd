package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a handler.
	ErrUnsupportedFormat = errors.New("document: unsupported file format")
	// ErrNoProvider is returned when text needs model extraction but no
	// provider is configured.
	ErrNoProvider = errors.New("document: language model not configured")
	// ErrNoQuestions is returned when a document yields nothing.
	ErrNoQuestions = errors.New("document: no questions found")
	// ErrExtraction wraps a failed model extraction call.
	ErrExtraction = errors.New("document: extraction failed")
)

// Format is a supported document type.
type Format int

const (
	FormatExcel Format = iota + 1
	FormatCSV
	FormatWord
	FormatPDF
)

var extensions = map[string]Format{
	".xlsx": FormatExcel,
	".xlsm": FormatExcel,
	".csv":  FormatCSV,
	".docx": FormatWord,
	".pdf":  FormatPDF,
}

// FormatOf maps a file name to its Format by extension, case-insensitively.
func FormatOf(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

func (f Format) String() string {
	switch f {
	case FormatExcel:
		return "excel"
	case FormatCSV:
		return "csv"
	case FormatWord:
		return "word"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	case FormatWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// SourceName returns the base name used as a pair's source label.
func SourceName(filename string) string {
	return filepath.Base(filepath.ToSlash(filename))
}
