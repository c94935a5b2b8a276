package pipeline

import "testing"

func TestSummarize_ComputesNumericStats(t *testing.T) {
	form := NewForm([]string{"id", "amount"}, [][]string{
		{"1", "10"},
		{"2", "30"},
		{"3", "not-a-number"},
	})
	summary := Summarize(form)

	if summary.RowCount != 3 || summary.ColumnCount != 2 {
		t.Fatalf("unexpected row/column counts: %+v", summary)
	}

	var amount ColumnStats
	for _, cs := range summary.Columns {
		if cs.Column == "amount" {
			amount = cs
		}
	}
	if amount.NumericRows != 2 {
		t.Fatalf("expected 2 numeric rows, got %d", amount.NumericRows)
	}
	if amount.Min != 10 || amount.Max != 30 || amount.Sum != 40 {
		t.Fatalf("unexpected stats: %+v", amount)
	}
}

func TestSummarize_NonNumericColumnHasZeroNumericRows(t *testing.T) {
	form := NewForm([]string{"name"}, [][]string{{"alice"}, {"bob"}})
	summary := Summarize(form)
	if summary.Columns[0].NumericRows != 0 {
		t.Fatalf("expected 0 numeric rows, got %d", summary.Columns[0].NumericRows)
	}
}
