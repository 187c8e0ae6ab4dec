package state

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a workflow id is unknown.
var ErrNotFound = errors.New("workflow not found")

// PendingJob pairs a non-terminal job record with its workflow.
type PendingJob struct {
	WorkflowID string
	Record     JobRecord
}

// Repository persists WorkflowState.
//
// Update loads the current state, applies fn to a private copy, and stores
// the result atomically. If fn returns an error nothing is written and the
// error is returned unchanged.
type Repository interface {
	Create(ctx context.Context) (WorkflowState, error)
	Get(ctx context.Context, id string) (WorkflowState, error)
	Update(ctx context.Context, id string, fn func(*WorkflowState) error) (WorkflowState, error)
	List(ctx context.Context) ([]WorkflowState, error)
	Delete(ctx context.Context, id string) error
	PendingJobs(ctx context.Context) ([]PendingJob, error)
	Close() error
}
