package pipeline

import "fmt"

// StageError wraps one of the sentinel error kinds below with the stage
// name it occurred in, so the Known-Error Matcher and Incident Writer can
// switch on category via errors.Is/errors.As instead of string-matching
// internal control flow — regex matching is reserved for human-authored
// KnownError patterns against the rendered message.
type StageError struct {
	Stage string
	Kind  error
	Msg   string
}

func (e *StageError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Stage, e.Kind, e.Msg)
}

func (e *StageError) Unwrap() error { return e.Kind }

func newStageError(stage string, kind error, msg string) *StageError {
	return &StageError{Stage: stage, Kind: kind, Msg: msg}
}

// DefaultSeverity returns the baseline Incident severity for an error
// whose Kind has no KnownError match to supply one — internal failures in
// summarize/publish are always high.
func DefaultSeverity(err error) string {
	se, ok := err.(*StageError)
	if ok && se.Kind == ErrInternal {
		return "high"
	}
	return "medium"
}

// Error taxonomy sentinels.
var (
	ErrUnsupportedFormat  = fmt.Errorf("unsupported format")
	ErrParseFailure       = fmt.Errorf("parse error")
	ErrNoTableFound       = fmt.Errorf("no table found in pdf")
	ErrMissingColumn      = fmt.Errorf("missing required column")
	ErrEmptyCriticalField = fmt.Errorf("empty critical field")
	ErrSchemaMismatch     = fmt.Errorf("schema mismatch")
	ErrPlanPayload        = fmt.Errorf("invalid plan payload")
	ErrStageTimeout       = fmt.Errorf("stage timeout")
	ErrCallableUnresolved = fmt.Errorf("callable unresolved")
	ErrInternal           = fmt.Errorf("internal error")
	ErrTransientIO        = fmt.Errorf("transient io error")
)

// Category maps a StageError's Kind to the Incident category taxonomy.
func Category(err error) string {
	se, ok := err.(*StageError)
	if !ok {
		return "unknown"
	}
	switch se.Kind {
	case ErrUnsupportedFormat, ErrParseFailure, ErrNoTableFound:
		return "ingest"
	case ErrMissingColumn, ErrEmptyCriticalField, ErrSchemaMismatch:
		return "validation"
	case ErrPlanPayload:
		return "transform"
	case ErrStageTimeout:
		return "runtime"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Retryable reports whether a stage error kind participates in stage-local
// transient-io retry rather than going straight to the Incident Writer.
// Only genuinely transient failures qualify; parse, validation, and
// plan-payload errors are deterministic and retrying them locally would
// just waste the stage timeout.
func Retryable(err error) bool {
	se, ok := err.(*StageError)
	if !ok {
		return false
	}
	return se.Kind == ErrTransientIO
}
