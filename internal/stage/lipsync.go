package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dubline/internal/objectstore"
	"dubline/internal/services"
	"dubline/internal/services/syncso"
)

// LipSyncAPI is the generation client used by LipSync.
type LipSyncAPI interface {
	Submit(ctx context.Context, videoURL, audioURL string) (syncso.Generation, error)
	Get(ctx context.Context, id string) (syncso.Generation, error)
	HealthCheck(ctx context.Context) error
}

// LipSync submits stored media to a lip-sync service. Store objects are
// presigned so the service can fetch them.
type LipSync struct {
	api   LipSyncAPI
	store objectstore.Store
	ttl   time.Duration
}

// NewLipSync builds the adapter. ttl bounds presigned media URLs.
func NewLipSync(api LipSyncAPI, store objectstore.Store, ttl time.Duration) *LipSync {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LipSync{api: api, store: store, ttl: ttl}
}

func (l *LipSync) Submit(ctx context.Context, req LipSyncRequest) (JobHandle, error) {
	video, err := objectstore.Resolve(ctx, l.store, req.VideoURL, l.ttl)
	if err != nil {
		return JobHandle{}, err
	}
	audio, err := objectstore.Resolve(ctx, l.store, req.AudioURL, l.ttl)
	if err != nil {
		return JobHandle{}, err
	}
	gen, err := l.api.Submit(ctx, video, audio)
	if err != nil {
		return JobHandle{}, err
	}
	return JobHandle{JobID: gen.ID}, nil
}

func (l *LipSync) PollOnce(ctx context.Context, jobID string) (PollResult, error) {
	gen, err := l.api.Get(ctx, jobID)
	if err != nil {
		return PollResult{}, err
	}
	return generationResult(gen)
}

func (l *LipSync) HealthCheck(ctx context.Context) Health {
	return healthFrom("lipsync", l.api.HealthCheck(ctx))
}

func generationResult(gen syncso.Generation) (PollResult, error) {
	switch gen.Status {
	case syncso.StatusPending, syncso.StatusProcessing:
		return PollResult{Status: PollRunning}, nil
	case syncso.StatusCompleted:
		if strings.TrimSpace(gen.OutputURL) == "" {
			return PollResult{}, services.Wrap(services.ErrInvalidResponse, "lipsync", "poll",
				fmt.Sprintf("generation %s completed without output url", gen.ID), nil)
		}
		return PollResult{Status: PollSucceeded, OutputURL: gen.OutputURL}, nil
	case syncso.StatusFailed, syncso.StatusRejected, syncso.StatusCanceled:
		reason := strings.TrimSpace(gen.Error)
		if reason == "" {
			reason = "generation " + strings.ToLower(gen.Status)
		}
		return PollResult{Status: PollFailed, Reason: reason}, nil
	default:
		return PollResult{}, services.Wrap(services.ErrInvalidResponse, "lipsync", "poll",
			fmt.Sprintf("unknown generation status %q", gen.Status), nil)
	}
}
