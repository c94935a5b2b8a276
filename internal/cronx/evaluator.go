// Package cronx wraps robfig/cron's expression parser behind a narrow
// contract: parse a 5-field cron expression, and compute the next fire
// time strictly after a given instant, evaluated in a single reference
// zone fixed at process start (not a per-job setting).
package cronx

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrMalformedSchedule is returned for any unparseable cron expression.
var ErrMalformedSchedule = errors.New("malformed schedule")

// Evaluator parses and evaluates standard 5-field cron expressions
// (minute hour day-of-month month day-of-week, with day-of-week 0-6 and
// 0=Sunday — robfig/cron's ParseStandard already implements exactly this).
type Evaluator struct {
	zone *time.Location
}

// NewEvaluator returns an Evaluator fixed to zone. All NextFireAfter
// computations happen in this zone; results are converted back to UTC
// before being returned, since stored timestamps are always UTC.
func NewEvaluator(zone *time.Location) *Evaluator {
	return &Evaluator{zone: zone}
}

// Parse validates a cron expression, returning ErrMalformedSchedule wrapped
// with the parser's detail on any unparseable field.
func (e *Evaluator) Parse(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSchedule, expr, err)
	}
	return sched, nil
}

// NextFireAfter returns the smallest instant t' > after that matches expr,
// evaluated in the Evaluator's reference zone. The returned time is in UTC.
func (e *Evaluator) NextFireAfter(expr string, after time.Time) (time.Time, error) {
	sched, err := e.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	inZone := after.In(e.zone)
	next := sched.Next(inZone)
	return next.UTC(), nil
}
