package domain

import "time"

// DepartmentRecord is a read-only row sourced from a department feed; the
// core never writes these, only ingest generators read them.
type DepartmentRecord struct {
	ID         string
	Department string
	Source     string
	Payload    map[string]any
	RecordedAt time.Time
}
