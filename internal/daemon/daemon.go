package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dubline/internal/config"
	"dubline/internal/deps"
	"dubline/internal/logging"
	"dubline/internal/notifications"
	"dubline/internal/objectstore"
	"dubline/internal/preflight"
	"dubline/internal/stage"
	"dubline/internal/workflow"
)

// Daemon owns the orchestrator lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Orchestrator
	objects  objectstore.Store
	notifier notifications.Service
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	resumeInterval time.Duration
	sweepDone      chan struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Store        string
	DatabasePath string
	LockFilePath string
	Languages    []string
	Workflows    int
	ActivePolls  int
	StageHealth  []stage.Health
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, wf *workflow.Orchestrator, objects objectstore.Store, logger *slog.Logger, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || wf == nil || objects == nil {
		return nil, errors.New("daemon requires config, orchestrator, and object store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		objects:  objects,
		notifier: notifier,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),

		resumeInterval: cfg.ResumeInterval(),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the API server, and resumes
// pending lip-sync polling, sweeping the store again every resume interval.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dubline daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	if d.cfg.Poller.AutoPoll {
		d.resumePending(d.ctx)
		if d.resumeInterval > 0 {
			d.sweepDone = make(chan struct{})
			go d.sweepLoop(d.ctx, d.resumeInterval, d.sweepDone)
		}
	}

	d.running.Store(true)
	d.logger.Info("dubline daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops polling and the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.sweepDone != nil {
		<-d.sweepDone
		d.sweepDone = nil
	}
	d.api.stop()
	d.workflow.Shutdown()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("dubline daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// sweepLoop resumes polling for pending jobs on every tick so jobs submitted
// by other processes sharing the store, such as the CLI, are driven to a
// terminal state.
func (d *Daemon) sweepLoop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.resumePending(ctx)
		}
	}
}

func (d *Daemon) resumePending(ctx context.Context) {
	if _, err := d.workflow.ResumePolling(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.WarnWithContext(d.logger, "failed to resume lip-sync polling", "poll_resume_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check workflow store access"),
			logging.String(logging.FieldImpact, "pending jobs stay pending until the next sweep"),
		)
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Store:        storeKind(d.cfg),
		LockFilePath: d.lockPath,
		Languages:    d.workflow.Languages().Strings(),
		ActivePolls:  d.workflow.ActivePolls(),
		StageHealth:  d.workflow.Health(ctx),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	if status.Store == "sqlite" {
		status.DatabasePath = d.cfg.DatabasePath()
	}
	if list, err := d.workflow.List(ctx); err == nil {
		status.Workflows = len(list)
	} else {
		d.logger.Warn("failed to count workflows", logging.Error(err))
	}
	return status
}

func storeKind(cfg *config.Config) string {
	kind := strings.ToLower(strings.TrimSpace(cfg.Workflow.Store))
	if kind == "" {
		return "sqlite"
	}
	return kind
}
