package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/deptops/batchops/internal/domain"
)

func TestPublish_TransformModePublishesSummaryCSV(t *testing.T) {
	form := NewForm([]string{"id", "amount"}, [][]string{{"1", "10"}, {"2", "20"}})
	summary := Summarize(form)

	csvText, pdfBytes, err := Publish("upload-1", domain.ProcessTransform, form, summary)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.HasPrefix(csvText, "column,numeric_rows,min,max,sum") {
		t.Fatalf("expected summary csv header, got %q", csvText)
	}
	if len(pdfBytes) == 0 {
		t.Fatal("expected non-empty pdf output")
	}
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		t.Fatalf("expected pdf output to start with the PDF magic bytes, got %q", pdfBytes[:minInt(8, len(pdfBytes))])
	}
}

func TestPublish_AppendModePublishesRawForm(t *testing.T) {
	form := NewForm([]string{"id"}, [][]string{{"1"}})
	summary := Summarize(form)

	csvText, _, err := Publish("upload-2", domain.ProcessAppend, form, summary)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if csvText != form.ToCSV() {
		t.Fatalf("expected raw form csv for append mode, got %q", csvText)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
