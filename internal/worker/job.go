package worker

import (
	"time"
)

// Job is a rescan request submitted to the worker.
type Job struct {
	Reason    string // "startup", "schedule", "fsnotify", "reload"
	Requested time.Time
}

// NewJob stamps a job with the current time.
func NewJob(reason string) Job {
	return Job{Reason: reason, Requested: time.Now()}
}
