package domain

import "errors"

var (
	ErrUploadNotFound      = errors.New("upload not found")
	ErrJobNotFound         = errors.New("job not found")
	ErrDuplicateJobName    = errors.New("job with this name already exists")
	ErrJobRunNotFound      = errors.New("job run not found")
	ErrKnownErrorNotFound  = errors.New("known error not found")
	ErrIncidentNotFound    = errors.New("incident not found")
	ErrInvalidCronExpr     = errors.New("malformed schedule: invalid cron expression")
	ErrScheduleNotFound    = errors.New("schedule entry not found")
	ErrIncidentArchived    = errors.New("incident is archived")
	ErrInvalidProcessMode  = errors.New("invalid process mode")
	ErrQueueEmpty          = errors.New("queue empty")
)
