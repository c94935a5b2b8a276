package pipeline

import "strings"

// Form is the normalised tabular representation every stage after
// standardize operates on: trimmed, lower-snake column names and rows
// addressed by column name rather than position.
type Form struct {
	Columns []string
	Rows    []map[string]string
}

// NewForm builds a Form from a header row and data rows, normalising
// column names to lower-snake as standardize requires.
func NewForm(header []string, records [][]string) *Form {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = normalizeColumn(h)
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string, len(cols))
		for i, col := range cols {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Form{Columns: cols, Rows: rows}
}

// normalizeColumn lower-snakes a raw header cell: trims, lowercases, and
// replaces runs of whitespace with a single underscore.
func normalizeColumn(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	fields := strings.Fields(lower)
	return strings.Join(fields, "_")
}

// ToCSV renders the Form as CSV text, header first.
func (f *Form) ToCSV() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(f.Columns, ","))
	sb.WriteString("\n")
	for _, row := range f.Rows {
		vals := make([]string, len(f.Columns))
		for i, col := range f.Columns {
			vals[i] = escapeCSVField(row[col])
		}
		sb.WriteString(strings.Join(vals, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func escapeCSVField(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// Clone deep-copies the Form so transform stages can produce a new Form
// without mutating the one standardize/validate handed them.
func (f *Form) Clone() *Form {
	cols := append([]string(nil), f.Columns...)
	rows := make([]map[string]string, len(f.Rows))
	for i, row := range f.Rows {
		clone := make(map[string]string, len(row))
		for k, v := range row {
			clone[k] = v
		}
		rows[i] = clone
	}
	return &Form{Columns: cols, Rows: rows}
}
