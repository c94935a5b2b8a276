package pipeline

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/deptops/batchops/internal/domain"
)

// Standardize reads raw source bytes and produces the normalised Form at
// the standardize stage. The extension drives dispatch; stdlib
// encoding/csv handles the common case, excelize handles xlsx/xls, and
// ledongthuc/pdf extracts the page text, from which the longest consistent
// table run is taken.
func Standardize(filename string, data []byte) (*Form, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "csv":
		return standardizeCSV(data)
	case "xlsx", "xls":
		return standardizeExcel(data)
	case "pdf":
		return standardizePDF(data)
	default:
		return nil, newStageError(domain.StageStandardize, ErrUnsupportedFormat, ext)
	}
}

func standardizeCSV(data []byte) (*Form, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, err.Error())
	}
	if len(records) == 0 {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, "empty csv")
	}
	return NewForm(records[0], records[1:]), nil
}

func standardizeExcel(data []byte) (*Form, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, err.Error())
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, err.Error())
	}
	if len(rows) == 0 {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, "sheet has no rows")
	}

	return NewForm(rows[0], rows[1:]), nil
}

// pdf table extraction uses a simple heuristic: look for the longest run of
// lines that split on two-or-more whitespace characters into a consistent
// column count, and treat that as the table.
var pdfColumnSplit = regexp.MustCompile(`\s{2,}`)

func standardizePDF(data []byte) (*Form, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newStageError(domain.StageStandardize, ErrParseFailure, err.Error())
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	}

	table := extractTable(lines)
	if table == nil || len(table) < 2 {
		return nil, newStageError(domain.StageStandardize, ErrNoTableFound, "")
	}

	return NewForm(table[0], table[1:]), nil
}

// extractTable finds the longest run of consecutive lines that all split
// into the same number of fields (>= 2) on runs of two or more whitespace
// characters.
func extractTable(lines []string) [][]string {
	var best [][]string
	var current [][]string
	var width int

	flush := func() {
		if len(current) > len(best) {
			best = current
		}
		current = nil
		width = 0
	}

	for _, line := range lines {
		fields := pdfColumnSplit.Split(strings.TrimSpace(line), -1)
		if len(fields) < 2 {
			flush()
			continue
		}
		if width == 0 {
			width = len(fields)
		}
		if len(fields) != width {
			flush()
			width = len(fields)
		}
		current = append(current, fields)
	}
	flush()

	return best
}
