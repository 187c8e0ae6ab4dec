package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps workflows in process memory.
type MemoryRepository struct {
	mu        sync.Mutex
	workflows map[string]WorkflowState
	now       func() time.Time
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{workflows: make(map[string]WorkflowState), now: time.Now}
}

func (r *MemoryRepository) Create(ctx context.Context) (WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return WorkflowState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := NewWorkflowState(uuid.NewString(), r.now())
	r.workflows[ws.ID] = ws
	return ws.Clone(), nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return WorkflowState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workflows[id]
	if !ok {
		return WorkflowState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ws.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, fn func(*WorkflowState) error) (WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return WorkflowState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.workflows[id]
	if !ok {
		return WorkflowState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	working := current.Clone()
	if err := fn(&working); err != nil {
		return WorkflowState{}, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = r.now().UTC()
	r.workflows[id] = working.Clone()
	return working, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WorkflowState, 0, len(r.workflows))
	for _, ws := range r.workflows {
		out = append(out, ws.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.workflows, id)
	return nil
}

func (r *MemoryRepository) PendingJobs(ctx context.Context) ([]PendingJob, error) {
	workflows, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []PendingJob
	for _, ws := range workflows {
		for _, rec := range ws.PendingJobs() {
			out = append(out, PendingJob{WorkflowID: ws.ID, Record: rec})
		}
	}
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }
