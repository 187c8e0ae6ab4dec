// Package redisstore keeps workflow state in redis, one JSON document per
// workflow plus an index set of workflow ids. It suits deployments that run
// several API processes against shared state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"dubline/internal/config"
	"dubline/internal/state"
)

const maxTxRetries = 32

// Store implements state.Repository on redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ state.Repository = (*Store)(nil)

// Open connects using the [redis] config section and verifies the server.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return New(rdb, cfg.Redis.Key), nil
}

// New wraps an existing client. prefix namespaces every key.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "dubline:workflows"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) indexKey() string { return s.prefix }

func (s *Store) workflowKey(id string) string { return s.prefix + ":" + id }

func (s *Store) Create(ctx context.Context) (state.WorkflowState, error) {
	ws := state.NewWorkflowState(uuid.NewString(), s.now())
	data, err := encode(ws)
	if err != nil {
		return state.WorkflowState{}, err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.workflowKey(ws.ID), data, 0)
		pipe.SAdd(ctx, s.indexKey(), ws.ID)
		return nil
	})
	if err != nil {
		return state.WorkflowState{}, fmt.Errorf("redis create workflow: %w", err)
	}
	return ws, nil
}

func (s *Store) Get(ctx context.Context, id string) (state.WorkflowState, error) {
	raw, err := s.rdb.Get(ctx, s.workflowKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.WorkflowState{}, fmt.Errorf("%w: %s", state.ErrNotFound, id)
	}
	if err != nil {
		return state.WorkflowState{}, fmt.Errorf("redis get workflow: %w", err)
	}
	return decode(raw)
}

// Update uses WATCH/MULTI so concurrent writers retry instead of losing
// each other's changes.
func (s *Store) Update(ctx context.Context, id string, fn func(*state.WorkflowState) error) (state.WorkflowState, error) {
	key := s.workflowKey(id)
	var result state.WorkflowState
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", state.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		current, err := decode(raw)
		if err != nil {
			return err
		}
		working := current.Clone()
		if err := fn(&working); err != nil {
			return err
		}
		working.ID = current.ID
		working.CreatedAt = current.CreatedAt
		working.UpdatedAt = s.now().UTC()
		data, err := encode(working)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			result = working
		}
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return state.WorkflowState{}, err
	}
	return state.WorkflowState{}, fmt.Errorf("redis update workflow %s: too much contention", id)
}

func (s *Store) List(ctx context.Context) ([]state.WorkflowState, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list workflows: %w", err)
	}
	out := make([]state.WorkflowState, 0, len(ids))
	for _, id := range ids {
		ws, err := s.Get(ctx, id)
		if errors.Is(err, state.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.workflowKey(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete workflow: %w", err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("%w: %s", state.ErrNotFound, id)
	}
	return nil
}

func (s *Store) PendingJobs(ctx context.Context) ([]state.PendingJob, error) {
	workflows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []state.PendingJob
	for _, ws := range workflows {
		for _, rec := range ws.PendingJobs() {
			out = append(out, state.PendingJob{WorkflowID: ws.ID, Record: rec})
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func encode(ws state.WorkflowState) ([]byte, error) {
	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("encode workflow %s: %w", ws.ID, err)
	}
	return data, nil
}

func decode(raw []byte) (state.WorkflowState, error) {
	var ws state.WorkflowState
	if err := json.Unmarshal(raw, &ws); err != nil {
		return state.WorkflowState{}, fmt.Errorf("decode workflow: %w", err)
	}
	return ws.Clone(), nil
}
