package pipeline

import (
	"errors"
	"testing"
)

func TestStandardize_CSV(t *testing.T) {
	data := []byte("Employee ID,Gross Pay\n1001,250.00\n1002,300.00\n")
	form, err := Standardize("payroll.csv", data)
	if err != nil {
		t.Fatalf("standardize: %v", err)
	}
	if len(form.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(form.Rows))
	}
	if form.Columns[0] != "employee_id" {
		t.Fatalf("expected normalized column name, got %q", form.Columns[0])
	}
}

func TestStandardize_EmptyCSVFails(t *testing.T) {
	_, err := Standardize("empty.csv", []byte(""))
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
}

func TestStandardize_UnsupportedExtension(t *testing.T) {
	_, err := Standardize("report.docx", []byte("whatever"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractTable_PicksLongestConsistentRun(t *testing.T) {
	lines := []string{
		"BatchOps Monthly Report",
		"",
		"Employee ID   Gross Pay   Net Pay",
		"1001          250.00      200.00",
		"1002          300.00      240.00",
		"Generated by engine",
	}
	table := extractTable(lines)
	if len(table) != 3 {
		t.Fatalf("expected header + 2 data rows, got %d", len(table))
	}
	if table[0][0] != "Employee ID" {
		t.Fatalf("unexpected header cell: %q", table[0][0])
	}
}
