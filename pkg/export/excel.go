package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/xuri/excelize/v2"
)

func (e *Exporter) fillExcel(template []byte, results []answer.Result) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	low, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{ExcelLowFill}}})
	if err != nil {
		return nil, err
	}
	medium, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{ExcelMediumFill}}})
	if err != nil {
		return nil, err
	}

	answers := byQuestion(results)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		h := headerRow(rows)
		if h < 0 {
			continue
		}
		qCol, aCol := e.Columns.Detect(rows[h])
		if qCol < 0 || aCol < 0 {
			continue
		}

		for i := h + 1; i < len(rows); i++ {
			if qCol >= len(rows[i]) {
				continue
			}
			r, ok := answers[strings.TrimSpace(rows[i][qCol])]
			if !ok {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(aCol+1, i+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cellName, r.SuggestedAnswer); err != nil {
				return nil, err
			}

			style := 0
			switch bandOf(r.Confidence) {
			case bandLow:
				style = low
			case bandMedium:
				style = medium
			}
			if style != 0 {
				if err := f.SetCellStyle(sheet, cellName, cellName, style); err != nil {
					return nil, err
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// headerRow returns the first row with a non-blank cell, or -1.
func headerRow(rows [][]string) int {
	for i, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				return i
			}
		}
	}
	return -1
}
