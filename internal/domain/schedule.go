package domain

import "time"

// ScheduleEntry is the Schedule Registry's durable state for one scheduled
// Job: the cron expression (duplicated from Job.ScheduleCron for fast
// lookup) and the bookkeeping needed to dispatch at-most-once per fire.
//
// DispatchedFireAt records the most recent fire time that has already been
// enqueued; Due(now) must never return a fire at or before this mark.
type ScheduleEntry struct {
	JobID            string
	CronExpr         string
	NextFireAt       time.Time
	DispatchedFireAt *time.Time
	UpdatedAt        time.Time
}
