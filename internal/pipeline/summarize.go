package pipeline

import "strconv"

// ColumnStats holds numeric summary statistics for one column. NumericRows
// is the count of rows whose value in this column parsed as a number;
// Min/Max/Sum are only meaningful when NumericRows > 0.
type ColumnStats struct {
	Column      string
	NumericRows int
	Min         float64
	Max         float64
	Sum         float64
}

// Summary is the output of the summarize stage: row/column counts and
// per-column numeric stats.
type Summary struct {
	RowCount    int
	ColumnCount int
	Columns     []ColumnStats
}

// Summarize computes row/column counts and per-column numeric stats over a
// transformed Form.
func Summarize(form *Form) Summary {
	summary := Summary{
		RowCount:    len(form.Rows),
		ColumnCount: len(form.Columns),
		Columns:     make([]ColumnStats, 0, len(form.Columns)),
	}

	for _, col := range form.Columns {
		stats := ColumnStats{Column: col}
		first := true
		for _, row := range form.Rows {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				continue
			}
			stats.NumericRows++
			stats.Sum += v
			if first || v < stats.Min {
				stats.Min = v
			}
			if first || v > stats.Max {
				stats.Max = v
			}
			first = false
		}
		summary.Columns = append(summary.Columns, stats)
	}

	return summary
}
