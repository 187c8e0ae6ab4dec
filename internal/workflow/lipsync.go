package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/poller"
	"dubline/internal/services"
	"dubline/internal/stage"
	"dubline/internal/state"
)

// LipSyncReport holds the job record for every attempted language and the
// reason each unattempted language was skipped.
type LipSyncReport struct {
	Jobs    map[language.Code]state.JobRecord `json:"jobs"`
	Skipped map[language.Code]string          `json:"skipped,omitempty"`
}

// LipSync submits one lip-sync job per requested language. Languages without
// synthesized audio get a Failed record; pending or succeeded records are
// returned untouched; submission failures are recorded as Failed. The call
// only errors when the session has no video or cannot be loaded.
func (o *Orchestrator) LipSync(ctx context.Context, id string, langs []language.Code) (LipSyncReport, error) {
	ctx = withStageContext(ctx, id, StageLipSync, "")
	ws, err := o.load(ctx, id)
	if err != nil {
		return LipSyncReport{}, err
	}
	if strings.TrimSpace(ws.VideoURL) == "" {
		return LipSyncReport{}, precondition(StageLipSync, "no video has been ingested")
	}
	targets, skipped := o.requested(langs)
	report := LipSyncReport{Jobs: make(map[language.Code]state.JobRecord, targets.Len()), Skipped: skipped}
	if targets.Empty() {
		return report, precondition(StageLipSync, "no requested language is configured")
	}

	started := o.stageStarted(ctx, logging.String("languages", targets.String()))
	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(o.maxConcurrency)
	for _, code := range targets.Codes() {
		group.Go(func() error {
			rec := o.lipSyncOne(ctx, id, code)
			mu.Lock()
			report.Jobs[code] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	submitted := 0
	for _, rec := range report.Jobs {
		if rec.Pending() {
			submitted++
		}
	}
	o.stageCompleted(ctx, started,
		logging.Int("pending", submitted),
		logging.Int("jobs", len(report.Jobs)),
		logging.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

func (o *Orchestrator) lipSyncOne(ctx context.Context, id string, code language.Code) state.JobRecord {
	ctx = withStageContext(ctx, "", "", code)
	logger := o.stageLogger(ctx)
	unlock := o.locks.Lock(lockKey(id, StageLipSync, code))
	defer unlock()

	ws, err := o.load(ctx, id)
	if err != nil {
		return state.NewFailedJob(code, err.Error(), o.now())
	}
	if existing, ok := ws.LipSyncJobs[code]; ok && (existing.Pending() || existing.State == state.JobSucceeded) {
		if existing.Pending() && o.autoPoll {
			o.startPolling(id, existing)
		}
		return existing
	}

	var rec state.JobRecord
	audioURL := strings.TrimSpace(ws.SynthesizedAudio[code])
	if audioURL == "" {
		rec = state.NewFailedJob(code, fmt.Sprintf("no synthesized audio for %s", code.DisplayName()), o.now())
	} else {
		handle, submitErr := o.deps.LipSyncer.Submit(ctx, stage.LipSyncRequest{VideoURL: ws.VideoURL, AudioURL: audioURL, Language: code})
		if submitErr == nil && strings.TrimSpace(handle.JobID) == "" {
			submitErr = services.Wrap(services.ErrInvalidResponse, StageLipSync, "submit", "service returned no job id", nil)
		}
		if submitErr != nil {
			submitErr = services.WrapLanguage(services.ErrLipSync, StageLipSync, string(code), "submit", "", submitErr)
			o.stageFailed(ctx, StageLipSync, submitErr)
			rec = state.NewFailedJob(code, services.Details(submitErr).Message, o.now())
		} else {
			rec = state.NewSubmittedJob(code, handle.JobID, o.now())
		}
	}

	_, err = o.update(ctx, id, func(current *state.WorkflowState) error {
		if current.VideoURL != ws.VideoURL || strings.TrimSpace(current.SynthesizedAudio[code]) != audioURL {
			return precondition(StageLipSync, "video or voice changed during submission")
		}
		current.LipSyncJobs[code] = rec
		return nil
	})
	if errors.Is(err, services.ErrPrecondition) {
		logger.Warn("dropping lip-sync record for replaced inputs",
			logging.String(logging.FieldJobID, rec.JobID),
			logging.Error(err),
		)
		return state.NewFailedJob(code, services.Details(err).Message, o.now())
	}
	if err != nil {
		logger.Warn("failed to persist lip-sync record", logging.Error(err))
		return rec
	}
	if rec.Pending() {
		logger.Info("lip-sync job submitted",
			logging.String(logging.FieldEventType, "lipsync_submitted"),
			logging.String(logging.FieldJobID, rec.JobID),
		)
		if o.autoPoll {
			o.startPolling(id, rec)
		}
	}
	return rec
}

// AwaitLipSync polls every pending job for the requested languages until it
// is terminal or ctx ends, then returns the stored records. Loops already
// running in the background are waited on, not restarted. When ctx ends only
// the loops this call started are stopped.
func (o *Orchestrator) AwaitLipSync(ctx context.Context, id string, langs []language.Code) (map[language.Code]state.JobRecord, error) {
	ctx = withStageContext(ctx, id, StageLipSync, "")
	ws, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	targets, _ := o.requested(langs)
	var keys, started []poller.Key
	for _, code := range targets.Codes() {
		rec, ok := ws.LipSyncJobs[code]
		if !ok || !rec.Pending() {
			continue
		}
		key := poller.Key{WorkflowID: id, Language: code}
		if _, isNew := o.startPolling(id, rec); isNew {
			started = append(started, key)
		}
		keys = append(keys, key)
	}

	for _, key := range keys {
		_, _, waitErr := o.poller.Wait(ctx, key)
		if ctx.Err() != nil {
			for _, mine := range started {
				o.poller.Cancel(mine)
			}
			return nil, ctx.Err()
		}
		if waitErr != nil && !errors.Is(waitErr, poller.ErrStale) {
			o.stageLogger(withStageContext(ctx, "", "", key.Language)).Debug("poll loop ended with error", logging.Error(waitErr))
		}
	}

	ws, err = o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[language.Code]state.JobRecord)
	for _, code := range targets.Codes() {
		if rec, ok := ws.LipSyncJobs[code]; ok {
			out[code] = rec
		}
	}
	return out, nil
}

// CancelLipSync stops the background poll loop for one language. The stored
// record is left as is. It reports whether a loop was running.
func (o *Orchestrator) CancelLipSync(ctx context.Context, id string, code language.Code) (bool, error) {
	if _, err := o.load(ctx, id); err != nil {
		return false, err
	}
	if !o.languages.Contains(code) {
		return false, services.Wrap(services.ErrValidation, StageLipSync, "cancel", fmt.Sprintf("language %q is not configured", code), nil)
	}
	return o.poller.Cancel(poller.Key{WorkflowID: id, Language: code}), nil
}

// ResumePolling starts a loop for every pending job in the repository and
// returns how many were started. Jobs that already have a loop are skipped.
func (o *Orchestrator) ResumePolling(ctx context.Context) (int, error) {
	pending, err := o.repo.PendingJobs(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, job := range pending {
		if !o.languages.Contains(job.Record.Language) {
			logging.WarnWithContext(o.logger, "pending job for unconfigured language not resumed", "poll_resume_skipped",
				logging.String(logging.FieldWorkflowID, job.WorkflowID),
				logging.String(logging.FieldLanguage, string(job.Record.Language)),
				logging.String(logging.FieldJobID, job.Record.JobID),
				logging.String(logging.FieldErrorHint, "add the language back to languages.targets"),
				logging.String(logging.FieldImpact, "job stays pending until resumed"),
			)
			continue
		}
		if _, started := o.startPolling(job.WorkflowID, job.Record); started {
			resumed++
		}
	}
	if resumed > 0 {
		o.logger.Info("resumed lip-sync polling",
			logging.String(logging.FieldEventType, "poll_resumed"),
			logging.Int("jobs", resumed),
		)
	}
	return resumed, nil
}

func (o *Orchestrator) startPolling(id string, rec state.JobRecord) (*poller.Handle, bool) {
	key := poller.Key{WorkflowID: id, Language: rec.Language}
	return o.poller.Start(key, rec, o.jobSink(id, rec.JobID))
}

// jobSink persists poll transitions for one job. It reports poller.ErrStale
// once the stored record belongs to a different job, is already terminal, or
// the workflow is gone.
func (o *Orchestrator) jobSink(id, jobID string) poller.Sink {
	return func(ctx context.Context, rec state.JobRecord) error {
		unlock := o.locks.Lock(lockKey(id, StageLipSync, rec.Language))
		defer unlock()
		_, err := o.repo.Update(ctx, id, func(ws *state.WorkflowState) error {
			current, ok := ws.LipSyncJobs[rec.Language]
			if !ok || current.JobID != jobID || current.Terminal() {
				return poller.ErrStale
			}
			ws.LipSyncJobs[rec.Language] = rec
			return nil
		})
		if errors.Is(err, state.ErrNotFound) {
			return poller.ErrStale
		}
		if err != nil {
			return err
		}
		if rec.Terminal() {
			o.jobFinished(ctx, id, rec)
		}
		return nil
	}
}

func (o *Orchestrator) jobFinished(ctx context.Context, id string, rec state.JobRecord) {
	ctx = withStageContext(ctx, id, StageLipSync, rec.Language)
	logger := o.stageLogger(ctx)
	if rec.State == state.JobSucceeded {
		logger.Info("lip-sync video ready",
			logging.String(logging.FieldJobID, rec.JobID),
			logging.String("output_url", rec.OutputURL),
			logging.Int("attempts", rec.Attempts),
		)
	} else {
		logging.WarnWithContext(logger, "lip-sync job did not succeed", "lipsync_unsuccessful",
			logging.String(logging.FieldJobID, rec.JobID),
			logging.String("state", string(rec.State)),
			logging.String("reason", rec.Error),
			logging.String(logging.FieldErrorHint, services.Hint(rec.Err())),
			logging.String(logging.FieldImpact, "no dubbed video for this language"),
		)
	}
	if err := o.notifier.NotifyLipSyncFinished(ctx, id, rec); err != nil {
		o.notificationFailed(ctx, "lipsync", err)
	}
}
