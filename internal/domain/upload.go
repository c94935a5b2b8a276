package domain

import "time"

// UploadStatus is the lifecycle state of an Upload. Transitions are
// monotonic except failed->pending on retry (see Incident retry).
type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadPublished  UploadStatus = "published"
	UploadFailed     UploadStatus = "failed"
)

// ProcessMode selects the transform stage's behavior.
type ProcessMode string

const (
	ProcessTransform ProcessMode = "transform"
	ProcessAppend    ProcessMode = "append"
	ProcessDelete    ProcessMode = "delete"
	ProcessCustom    ProcessMode = "custom"
)

// Upload is a single departmental data file moving through the pipeline.
//
// Invariant: ReportCSV and ReportPDF non-nil implies Status == UploadPublished.
// Invariant: ReportGeneratedAt is set iff both report fields are set.
type Upload struct {
	ID          string
	Filename    string
	Department  string
	ReceivedAt  time.Time
	Status      UploadStatus
	ProcessMode ProcessMode

	// ProcessConfig is an opaque structured payload interpreted by the
	// transform stage according to ProcessMode (see internal/pipeline).
	ProcessConfig map[string]any

	ReportCSV         *string
	ReportPDF         []byte
	ReportGeneratedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClearArtifacts clears published report fields on the in-memory Upload:
// the same fields UploadRepository.UpdateStatus clears in storage whenever
// status leaves UploadPublished, so a stale download can never be served
// after a subsequent run failed.
func (u *Upload) ClearArtifacts() {
	u.ReportCSV = nil
	u.ReportPDF = nil
	u.ReportGeneratedAt = nil
}
