package poller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dubline/internal/services"
	"dubline/internal/stage"
	"dubline/internal/state"
)

// Config bounds a job's polling.
type Config struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
	MaxAttempts int
}

// Delay returns the wait before poll n (n >= 1): BaseDelay * 2^(n-1),
// capped at MaxDelay.
func (c Config) Delay(n int) time.Duration {
	if c.BaseDelay <= 0 {
		return 0
	}
	delay := c.BaseDelay
	for i := 1; i < n; i++ {
		if c.MaxDelay > 0 && delay >= c.MaxDelay {
			break
		}
		delay *= 2
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// Step applies one poll observation to rec. Exactly one of res and pollErr
// is meaningful: pollErr != nil means the service call failed.
//
// The returned error is non-nil only when polling must stop without a
// retry (job not found).
func Step(cfg Config, rec state.JobRecord, now time.Time, res stage.PollResult, pollErr error) (state.JobRecord, error) {
	if rec.Terminal() {
		return rec, nil
	}
	now = now.UTC()
	next := rec.Clone()
	next.Attempts++
	next.LastPolledAt = &now
	next.UpdatedAt = now

	if pollErr != nil {
		switch {
		case errors.Is(pollErr, services.ErrJobNotFound):
			next.State = state.JobFailed
			next.Error = "job not found by lip-sync service"
			return next, services.WrapLanguage(services.ErrJobNotFound, "lipsync", string(rec.Language), "poll",
				fmt.Sprintf("job %s", rec.JobID), pollErr)
		case errors.Is(pollErr, services.ErrInvalidResponse):
			next.State = state.JobFailed
			next.Error = "invalid response: " + pollErr.Error()
			return next, nil
		default:
			return applyCeiling(cfg, next, now, pollErr.Error()), nil
		}
	}

	switch res.Status {
	case stage.PollSucceeded:
		if strings.TrimSpace(res.OutputURL) == "" {
			next.State = state.JobFailed
			next.Error = "invalid response: success without output url"
			return next, nil
		}
		next.State = state.JobSucceeded
		next.OutputURL = res.OutputURL
		next.Error = ""
	case stage.PollFailed:
		next.State = state.JobFailed
		next.Error = strings.TrimSpace(res.Reason)
		if next.Error == "" {
			next.Error = "lip-sync job failed"
		}
	case stage.PollRunning:
		return applyCeiling(cfg, next, now, ""), nil
	default:
		next.State = state.JobFailed
		next.Error = fmt.Sprintf("invalid response: unknown poll status %q", res.Status)
	}
	return next, nil
}

// applyCeiling keeps a running job polling unless it has used up its
// attempts or its time budget.
func applyCeiling(cfg Config, rec state.JobRecord, now time.Time, lastErr string) state.JobRecord {
	elapsed := now.Sub(rec.SubmittedAt)
	switch {
	case cfg.MaxAttempts > 0 && rec.Attempts >= cfg.MaxAttempts:
		rec.State = state.JobTimedOut
		rec.Error = fmt.Sprintf("no result after %d polls (%s elapsed)", rec.Attempts, elapsed.Round(time.Second))
	case cfg.Timeout > 0 && elapsed >= cfg.Timeout:
		rec.State = state.JobTimedOut
		rec.Error = fmt.Sprintf("no result within %s (%d polls)", cfg.Timeout, rec.Attempts)
	default:
		rec.State = state.JobPolling
		return rec
	}
	if lastErr != "" {
		rec.Error += "; last error: " + lastErr
	}
	return rec
}
