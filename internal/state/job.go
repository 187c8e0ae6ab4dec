package state

import (
	"time"

	"dubline/internal/language"
	"dubline/internal/services"
)

// JobState is the lifecycle of an external lip-sync job.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobPolling   JobState = "polling"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// Terminal reports whether no further transitions are allowed.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobTimedOut:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known job state.
func (s JobState) Valid() bool {
	switch s {
	case JobSubmitted, JobPolling, JobSucceeded, JobFailed, JobTimedOut:
		return true
	default:
		return false
	}
}

// JobRecord tracks one asynchronous lip-sync job for one language.
type JobRecord struct {
	JobID        string        `json:"job_id"`
	Language     language.Code `json:"language"`
	State        JobState      `json:"state"`
	OutputURL    string        `json:"output_url,omitempty"`
	Error        string        `json:"error,omitempty"`
	Attempts     int           `json:"attempts"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	LastPolledAt *time.Time    `json:"last_polled_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Terminal reports whether the record reached a final state.
func (r JobRecord) Terminal() bool { return r.State.Terminal() }

// Pending reports whether the job is still waiting on the service.
func (r JobRecord) Pending() bool { return r.State == JobSubmitted || r.State == JobPolling }

// Err converts failed and timed-out records into typed errors.
func (r JobRecord) Err() error {
	switch r.State {
	case JobFailed:
		return services.WrapLanguage(services.ErrJobFailed, "lipsync", string(r.Language), "poll", r.Error, nil)
	case JobTimedOut:
		return services.WrapLanguage(services.ErrJobTimeout, "lipsync", string(r.Language), "poll", r.Error, nil)
	default:
		return nil
	}
}

// Clone returns a copy that shares no pointers with r.
func (r JobRecord) Clone() JobRecord {
	if r.LastPolledAt != nil {
		polled := *r.LastPolledAt
		r.LastPolledAt = &polled
	}
	return r
}

// NewSubmittedJob records a freshly accepted submission.
func NewSubmittedJob(lang language.Code, jobID string, now time.Time) JobRecord {
	return JobRecord{
		JobID:       jobID,
		Language:    lang,
		State:       JobSubmitted,
		SubmittedAt: now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

// NewFailedJob records a submission that never reached the service.
func NewFailedJob(lang language.Code, reason string, now time.Time) JobRecord {
	return JobRecord{
		Language:    lang,
		State:       JobFailed,
		Error:       reason,
		SubmittedAt: now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}
