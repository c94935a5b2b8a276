package pipeline

import (
	"fmt"

	"github.com/deptops/batchops/internal/domain"
)

// Validate checks the standardized Form before it enters the transform
// stage. The first column is treated as the critical identifier field —
// standardize always normalises the header's first cell into Columns[0],
// so every row must carry a non-empty value there.
func Validate(form *Form) error {
	if len(form.Columns) == 0 {
		return newStageError(domain.StageValidate, ErrMissingColumn, "no columns present")
	}

	seen := make(map[string]bool, len(form.Columns))
	for _, col := range form.Columns {
		if col == "" {
			return newStageError(domain.StageValidate, ErrSchemaMismatch, "blank column name")
		}
		if seen[col] {
			return newStageError(domain.StageValidate, ErrSchemaMismatch, fmt.Sprintf("duplicate column %q", col))
		}
		seen[col] = true
	}

	if len(form.Rows) == 0 {
		return newStageError(domain.StageValidate, ErrMissingColumn, "no data rows present")
	}

	critical := form.Columns[0]
	for i, row := range form.Rows {
		if row[critical] == "" {
			return newStageError(domain.StageValidate, ErrEmptyCriticalField,
				fmt.Sprintf("row %d: %s is empty", i, critical))
		}
	}

	return nil
}
