package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dubline/internal/config"
	"dubline/internal/language"
	"dubline/internal/state"
)

// Store manages workflow persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ state.Repository = (*Store)(nil)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the workflow database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes read-modify-write transactions from
	// concurrent language workers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context) (state.WorkflowState, error) {
	ws := state.NewWorkflowState(uuid.NewString(), s.now())
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO workflows (id, video_duration_ms, duration_defaulted, created_at, updated_at) VALUES (?, 0, 0, ?, ?)`,
			ws.ID, formatTime(ws.CreatedAt), formatTime(ws.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return state.WorkflowState{}, fmt.Errorf("insert workflow: %w", err)
	}
	return ws, nil
}

func (s *Store) Get(ctx context.Context, id string) (state.WorkflowState, error) {
	var ws state.WorkflowState
	err := retryOnBusy(ctx, func() error {
		var loadErr error
		ws, loadErr = loadWorkflow(ctx, s.db, id)
		return loadErr
	})
	return ws, err
}

func (s *Store) Update(ctx context.Context, id string, fn func(*state.WorkflowState) error) (state.WorkflowState, error) {
	var result state.WorkflowState
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin update tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		current, err := loadWorkflow(ctx, tx, id)
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
		if err := saveWorkflow(ctx, tx, working); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit update: %w", err)
		}
		result = working
		return nil
	})
	if err != nil {
		return state.WorkflowState{}, err
	}
	return result, nil
}

func (s *Store) List(ctx context.Context) ([]state.WorkflowState, error) {
	var ids []string
	err := retryOnBusy(ctx, func() error {
		ids = ids[:0]
		rows, err := s.db.QueryContext(ctx, `SELECT id FROM workflows ORDER BY created_at, id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
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
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", state.ErrNotFound, id)
	}
	return nil
}

// PendingJobs lists every submitted or polling lip-sync job.
func (s *Store) PendingJobs(ctx context.Context) ([]state.PendingJob, error) {
	var out []state.PendingJob
	err := retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx,
			`SELECT workflow_id, `+jobColumns+` FROM lipsync_jobs WHERE state IN (?, ?) ORDER BY submitted_at, workflow_id, language`,
			string(state.JobSubmitted), string(state.JobPolling),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var workflowID string
			rec, err := scanJob(rows, &workflowID)
			if err != nil {
				return err
			}
			out = append(out, state.PendingJob{WorkflowID: workflowID, Record: rec})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return out, nil
}

// JobCounts reports how many lip-sync jobs are in each state.
func (s *Store) JobCounts(ctx context.Context) (map[state.JobState]int, error) {
	counts := make(map[state.JobState]int)
	err := retryOnBusy(ctx, func() error {
		clear(counts)
		rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM lipsync_jobs GROUP BY state`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				st    string
				count int
			)
			if err := rows.Scan(&st, &count); err != nil {
				return err
			}
			counts[state.JobState(st)] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return counts, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func loadWorkflow(ctx context.Context, q querier, id string) (state.WorkflowState, error) {
	var (
		ws                             state.WorkflowState
		videoURL, audioURL, transcript sql.NullString
		durationMS                     int64
		defaulted                      int
		createdRaw, updatedRaw         string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, video_url, audio_url, video_duration_ms, duration_defaulted, transcript, created_at, updated_at
		 FROM workflows WHERE id = ?`, id,
	).Scan(&ws.ID, &videoURL, &audioURL, &durationMS, &defaulted, &transcript, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return state.WorkflowState{}, fmt.Errorf("%w: %s", state.ErrNotFound, id)
	}
	if err != nil {
		return state.WorkflowState{}, fmt.Errorf("load workflow %s: %w", id, err)
	}
	ws.VideoURL = videoURL.String
	ws.AudioURL = audioURL.String
	ws.Transcript = transcript.String
	ws.VideoDuration = time.Duration(durationMS) * time.Millisecond
	ws.DurationDefaulted = defaulted != 0
	ws.CreatedAt, _ = parseTimeString(createdRaw)
	ws.UpdatedAt, _ = parseTimeString(updatedRaw)

	if ws.Translations, err = loadTextMap(ctx, q, `SELECT language, text FROM translations WHERE workflow_id = ?`, id); err != nil {
		return state.WorkflowState{}, fmt.Errorf("load translations: %w", err)
	}
	if ws.SynthesizedAudio, err = loadTextMap(ctx, q, `SELECT language, uri FROM synthesized_audio WHERE workflow_id = ?`, id); err != nil {
		return state.WorkflowState{}, fmt.Errorf("load synthesized audio: %w", err)
	}

	ws.LipSyncJobs = make(map[language.Code]state.JobRecord)
	rows, err := q.QueryContext(ctx, `SELECT workflow_id, `+jobColumns+` FROM lipsync_jobs WHERE workflow_id = ?`, id)
	if err != nil {
		return state.WorkflowState{}, fmt.Errorf("load lip-sync jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var workflowID string
		rec, err := scanJob(rows, &workflowID)
		if err != nil {
			return state.WorkflowState{}, fmt.Errorf("scan lip-sync job: %w", err)
		}
		ws.LipSyncJobs[rec.Language] = rec
	}
	if err := rows.Err(); err != nil {
		return state.WorkflowState{}, err
	}
	return ws, nil
}

func loadTextMap(ctx context.Context, q querier, query, id string) (map[language.Code]string, error) {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[language.Code]string)
	for rows.Next() {
		var lang, value string
		if err := rows.Scan(&lang, &value); err != nil {
			return nil, err
		}
		out[language.Code(lang)] = value
	}
	return out, rows.Err()
}

// saveWorkflow rewrites the workflow row and replaces its child rows.
func saveWorkflow(ctx context.Context, tx execer, ws state.WorkflowState) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE workflows SET video_url = ?, audio_url = ?, video_duration_ms = ?, duration_defaulted = ?, transcript = ?, updated_at = ?
		 WHERE id = ?`,
		nullableString(ws.VideoURL), nullableString(ws.AudioURL), ws.VideoDuration.Milliseconds(),
		boolToInt(ws.DurationDefaulted), nullableString(ws.Transcript), formatTime(ws.UpdatedAt), ws.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	for _, table := range []string{"translations", "synthesized_audio", "lipsync_jobs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE workflow_id = ?`, ws.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for lang, text := range ws.Translations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO translations (workflow_id, language, text) VALUES (?, ?, ?)`, ws.ID, string(lang), text); err != nil {
			return fmt.Errorf("insert translation %s: %w", lang, err)
		}
	}
	for lang, uri := range ws.SynthesizedAudio {
		if _, err := tx.ExecContext(ctx, `INSERT INTO synthesized_audio (workflow_id, language, uri) VALUES (?, ?, ?)`, ws.ID, string(lang), uri); err != nil {
			return fmt.Errorf("insert synthesized audio %s: %w", lang, err)
		}
	}
	for lang, rec := range ws.LipSyncJobs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lipsync_jobs (workflow_id, language, job_id, state, output_url, error, attempts, submitted_at, last_polled_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ws.ID, string(lang), nullableString(rec.JobID), string(rec.State), nullableString(rec.OutputURL),
			nullableString(rec.Error), rec.Attempts, formatTime(rec.SubmittedAt), nullableTime(rec.LastPolledAt), formatTime(rec.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert lip-sync job %s: %w", lang, err)
		}
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
