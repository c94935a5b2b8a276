package pipeline

import "testing"

func TestNewForm_NormalizesColumnsAndTrimsCells(t *testing.T) {
	form := NewForm([]string{" Employee ID ", "Gross Pay"}, [][]string{
		{" 1001 ", " 250.00 "},
	})

	if form.Columns[0] != "employee_id" || form.Columns[1] != "gross_pay" {
		t.Fatalf("unexpected columns: %v", form.Columns)
	}
	if form.Rows[0]["employee_id"] != "1001" {
		t.Fatalf("expected trimmed cell, got %q", form.Rows[0]["employee_id"])
	}
}

func TestNewForm_ShortRowsPadWithEmptyCells(t *testing.T) {
	form := NewForm([]string{"a", "b", "c"}, [][]string{{"1"}})
	if form.Rows[0]["b"] != "" || form.Rows[0]["c"] != "" {
		t.Fatalf("expected missing trailing cells to be empty, got %+v", form.Rows[0])
	}
}

func TestForm_ToCSVEscapesSpecialCharacters(t *testing.T) {
	form := &Form{
		Columns: []string{"name", "note"},
		Rows:    []map[string]string{{"name": "Acme, Inc.", "note": "has \"quotes\""}},
	}
	csv := form.ToCSV()
	want := "name,note\n\"Acme, Inc.\",\"has \"\"quotes\"\"\"\n"
	if csv != want {
		t.Fatalf("got %q, want %q", csv, want)
	}
}

func TestForm_CloneIsIndependent(t *testing.T) {
	form := NewForm([]string{"a"}, [][]string{{"1"}})
	clone := form.Clone()
	clone.Rows[0]["a"] = "2"
	clone.Columns[0] = "b"

	if form.Rows[0]["a"] != "1" {
		t.Fatal("mutating the clone's row mutated the original")
	}
	if form.Columns[0] != "a" {
		t.Fatal("mutating the clone's columns mutated the original")
	}
}
