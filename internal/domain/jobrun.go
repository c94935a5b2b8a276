package domain

import "time"

type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunSuccess  RunStatus = "success"
	RunFailed   RunStatus = "failed"
	RunRetrying RunStatus = "retrying"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Pipeline stage names, in the strict execution order the Pipeline
// Executor must follow for every run.
const (
	StageStandardize = "standardize"
	StageValidate    = "validate"
	StageTransform   = "transform"
	StageSummarize   = "summarize"
	StagePublish     = "publish"
)

// PipelineStages is the fixed, ordered stage sequence for a pipeline execution.
var PipelineStages = []string{
	StageStandardize,
	StageValidate,
	StageTransform,
	StageSummarize,
	StagePublish,
}

// StepRecord is one append-only entry in a JobRun's step telemetry.
type StepRecord struct {
	Name       string
	Status     StepStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	Logs       string
}

// JobRun is one execution of a callable. Invariant: FinishedAt set implies
// Status in {RunSuccess, RunFailed}; Duration == FinishedAt-StartedAt within
// tolerance when both are set; Details is append-only within a run.
type JobRun struct {
	ID         string
	JobID      string
	UploadID   *string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	DurationMS *int64
	ExitCode   *int
	Details    []StepRecord
	Logs       string
}

// Duration returns FinishedAt-StartedAt, or false if FinishedAt is unset.
func (r *JobRun) Duration() (time.Duration, bool) {
	if r.FinishedAt == nil {
		return 0, false
	}
	return r.FinishedAt.Sub(r.StartedAt), true
}

// StepByName returns a pointer to the most recent StepRecord with the given
// name, or nil if no such step has been appended yet.
func (r *JobRun) StepByName(name string) *StepRecord {
	for i := len(r.Details) - 1; i >= 0; i-- {
		if r.Details[i].Name == name {
			return &r.Details[i]
		}
	}
	return nil
}

// FirstIncompleteStage returns the name of the first stage in
// PipelineStages whose StepRecord is not StepSuccess — used by the
// executor to resume a redelivered, partially-run Upload.
func (r *JobRun) FirstIncompleteStage() string {
	for _, name := range PipelineStages {
		step := r.StepByName(name)
		if step == nil || step.Status != StepSuccess {
			return name
		}
	}
	return ""
}
