package pipeline

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/deptops/batchops/internal/domain"
)

// maxPDFReportRows bounds how many data rows the rendered PDF lists
// explicitly; the summary statistics always cover every row regardless.
const maxPDFReportRows = 200

// Publish renders the final CSV and PDF artifacts for an Upload at the
// publish stage. For transform mode the published CSV is the canonical
// summary table; for append/delete/custom it is the processed dataset
// itself.
func Publish(uploadID string, mode domain.ProcessMode, form *Form, summary Summary) (csvText string, pdfBytes []byte, err error) {
	csvText = publishCSV(mode, form, summary)

	pdfBytes, err = renderPDF(uploadID, form, summary)
	if err != nil {
		return "", nil, newStageError(domain.StagePublish, ErrInternal, err.Error())
	}

	return csvText, pdfBytes, nil
}

func publishCSV(mode domain.ProcessMode, form *Form, summary Summary) string {
	if mode == domain.ProcessTransform {
		return summaryCSV(summary)
	}
	return form.ToCSV()
}

func summaryCSV(summary Summary) string {
	var sb bytes.Buffer
	sb.WriteString("column,numeric_rows,min,max,sum\n")
	for _, cs := range summary.Columns {
		if cs.NumericRows == 0 {
			fmt.Fprintf(&sb, "%s,0,,,\n", cs.Column)
			continue
		}
		fmt.Fprintf(&sb, "%s,%d,%s,%s,%s\n",
			cs.Column, cs.NumericRows,
			trimNumber(cs.Min), trimNumber(cs.Max), trimNumber(cs.Sum))
	}
	return sb.String()
}

func trimNumber(f float64) string {
	return fmt.Sprintf("%g", f)
}

func renderPDF(uploadID string, form *Form, summary Summary) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("BatchOps Report — Upload %s", uploadID))
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Rows: %d   Columns: %d", summary.RowCount, summary.ColumnCount))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Data")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	colWidth := 190.0 / float64(max(1, len(form.Columns)))
	for _, col := range form.Columns {
		pdf.CellFormat(colWidth, 6, col, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	rows := form.Rows
	if len(rows) > maxPDFReportRows {
		rows = rows[:maxPDFReportRows]
	}
	for _, row := range rows {
		for _, col := range form.Columns {
			pdf.CellFormat(colWidth, 6, row[col], "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
