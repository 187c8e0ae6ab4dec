package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/stage"
	"dubline/internal/state"
)

// ErrStale is returned by a Sink when the stored record no longer matches
// the job being polled. The loop stops without treating it as a failure.
var ErrStale = errors.New("poller: stale job record")

// Checker performs one status request.
type Checker interface {
	PollOnce(ctx context.Context, jobID string) (stage.PollResult, error)
}

// Key identifies one job loop.
type Key struct {
	WorkflowID string
	Language   language.Code
}

func (k Key) String() string { return k.WorkflowID + "/" + string(k.Language) }

// Sink receives every record transition produced by a loop.
type Sink func(ctx context.Context, rec state.JobRecord) error

// Option customizes a Poller.
type Option func(*Poller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithSleeper overrides how loops wait between polls. The sleeper must
// return ctx.Err() when ctx ends first.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = sleep }
}

// Poller runs job loops against one Checker.
type Poller struct {
	checker Checker
	cfg     Config
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	loops   map[Key]*Handle
	wg      sync.WaitGroup
}

// Handle tracks one background loop.
type Handle struct {
	key    Key
	cancel context.CancelFunc
	done   chan struct{}
	rec    state.JobRecord
	err    error
}

// Done is closed when the loop exits.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the final record and error. Valid after Done is closed.
func (h *Handle) Result() (state.JobRecord, error) { return h.rec, h.err }

// New builds a Poller.
func New(checker Checker, cfg Config, logger *slog.Logger, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		checker: checker,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepContext,
		logger:  logging.NewComponentLogger(logger, "poller"),
		baseCtx: ctx,
		stop:    cancel,
		loops:   make(map[Key]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the polling bounds.
func (p *Poller) Config() Config { return p.cfg }

// PollOnce performs one status request and applies Step. Terminal records
// are returned unchanged without contacting the service.
func (p *Poller) PollOnce(ctx context.Context, rec state.JobRecord) (state.JobRecord, error) {
	if rec.Terminal() {
		return rec, nil
	}
	res, err := p.checker.PollOnce(ctx, rec.JobID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return rec, ctxErr
	}
	return Step(p.cfg, rec, p.now(), res, err)
}

// Run polls until rec is terminal, ctx ends, the job disappears or the sink
// reports ErrStale. It returns the last record it produced.
func (p *Poller) Run(ctx context.Context, rec state.JobRecord, sink Sink) (state.JobRecord, error) {
	logger := p.logger.With(logging.String(logging.FieldJobID, rec.JobID), logging.String(logging.FieldLanguage, string(rec.Language)))
	for !rec.Terminal() {
		if err := p.sleep(ctx, p.cfg.Delay(rec.Attempts+1)); err != nil {
			return rec, err
		}
		next, pollErr := p.PollOnce(ctx, rec)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, ctxErr
		}
		if sink != nil {
			if err := sink(ctx, next); err != nil {
				if errors.Is(err, ErrStale) {
					logger.DebugContext(ctx, "stopping poll loop for superseded job")
					return next, err
				}
				logger.WarnContext(ctx, "failed to persist job record", logging.Error(err))
			}
		}
		if next.State != rec.State || next.Terminal() {
			logger.DebugContext(ctx, "job state changed",
				logging.String("from", string(rec.State)),
				logging.String("to", string(next.State)),
				logging.Int("attempts", next.Attempts),
			)
		}
		rec = next
		if pollErr != nil {
			return rec, pollErr
		}
	}
	logger.InfoContext(ctx, "job reached terminal state",
		logging.String(logging.FieldEventType, "job_terminal"),
		logging.String("state", string(rec.State)),
		logging.Int("attempts", rec.Attempts),
	)
	return rec, nil
}

// Start launches a background loop for key unless one is already running,
// in which case the running loop is returned with started=false.
func (p *Poller) Start(key Key, rec state.JobRecord, sink Sink) (handle *Handle, started bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.loops[key]; ok {
		return existing, false
	}
	ctx, cancel := context.WithCancel(p.baseCtx)
	h := &Handle{key: key, cancel: cancel, done: make(chan struct{}), rec: rec}
	p.loops[key] = h
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		h.rec, h.err = p.Run(ctx, rec, sink)
		p.mu.Lock()
		if p.loops[key] == h {
			delete(p.loops, key)
		}
		p.mu.Unlock()
		close(h.done)
	}()
	return h, true
}

// Running reports whether a loop is active for key.
func (p *Poller) Running(key Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.loops[key]
	return ok
}

// Active returns the number of running loops.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.loops)
}

// Wait blocks until the loop for key exits or ctx ends. Ending ctx does not
// cancel the loop. found is false when no loop is running for key.
func (p *Poller) Wait(ctx context.Context, key Key) (rec state.JobRecord, found bool, err error) {
	p.mu.Lock()
	h, ok := p.loops[key]
	p.mu.Unlock()
	if !ok {
		return state.JobRecord{}, false, nil
	}
	select {
	case <-h.done:
		rec, err = h.Result()
		return rec, true, err
	case <-ctx.Done():
		return state.JobRecord{}, true, ctx.Err()
	}
}

// Cancel stops the loop for key and waits for it to exit. It reports
// whether a loop was running.
func (p *Poller) Cancel(key Key) bool {
	p.mu.Lock()
	h, ok := p.loops[key]
	p.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	<-h.done
	return true
}

// Shutdown stops every loop and waits for them to exit. Loops started
// afterwards run under a fresh context, so a stopped daemon can start again.
func (p *Poller) Shutdown() {
	p.mu.Lock()
	p.stop()
	p.mu.Unlock()
	p.wg.Wait()

	p.mu.Lock()
	if p.baseCtx.Err() != nil {
		p.baseCtx, p.stop = context.WithCancel(context.Background())
	}
	p.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
