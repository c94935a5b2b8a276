package domain

import "time"

type IncidentState string

const (
	IncidentOpen       IncidentState = "open"
	IncidentInProgress IncidentState = "in_progress"
	IncidentResolved   IncidentState = "resolved"
	IncidentArchived   IncidentState = "archived"
)

type DetectionSource string

const (
	DetectionEngine DetectionSource = "engine"
	DetectionManual DetectionSource = "manual"
)

// Category values used across the error taxonomy.
const (
	CategoryIngest     = "ingest"
	CategoryValidation = "validation"
	CategoryTransform  = "transform"
	CategoryRuntime    = "runtime"
	CategoryUnknown    = "unknown"
)

// TimelineEvent is one append-only entry in an Incident's audit trail.
type TimelineEvent struct {
	Timestamp time.Time
	Actor     string
	Event     string
	Notes     string
}

// Well-known timeline event names.
const (
	EventRecurrence         = "recurrence"
	EventAutoRetryScheduled = "auto_retry_scheduled"
	EventAutoResolved       = "auto_resolved"
	EventAssigned           = "assigned"
	EventAnalyzed           = "analyzed"
	EventResolved           = "resolved"
	EventManualRetry        = "manual_retry"
	EventArchived           = "archived"
	EventOpened             = "opened"
)

// Incident is a durable record of a pipeline failure.
//
// Invariant: IsKnown <=> MatchedKnownError != nil.
// Invariant: AutoRetryCount <= MaxAutoRetries.
// Invariant: ResolvedAt set <=> State in {IncidentResolved, IncidentArchived}.
// Invariant: Timeline is strictly non-decreasing in Timestamp.
type Incident struct {
	ID       string
	UploadID string
	JobRunID *string
	Stage    string

	State            IncidentState
	Severity         string
	Category         string
	Error            string
	RootCause        string
	CorrectiveAction string
	ImpactSummary    string
	AnalysisNotes    string
	ResolutionReport string

	MatchedKnownError *string
	IsKnown           bool

	AutoRetryCount int
	MaxAutoRetries int

	DetectionSource DetectionSource
	Assignee        *string

	Timeline []TimelineEvent

	CreatedAt  time.Time
	ResolvedAt *time.Time
	ArchivedAt *time.Time
}

// AppendEvent appends a timeline entry, preserving monotonic ordering by
// clamping its timestamp forward if the caller's clock ever goes backwards
// relative to the last recorded entry.
func (i *Incident) AppendEvent(now time.Time, actor, event, notes string) {
	if n := len(i.Timeline); n > 0 {
		if last := i.Timeline[n-1].Timestamp; now.Before(last) {
			now = last
		}
	}
	i.Timeline = append(i.Timeline, TimelineEvent{
		Timestamp: now,
		Actor:     actor,
		Event:     event,
		Notes:     notes,
	})
}
