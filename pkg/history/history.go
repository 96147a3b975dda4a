// Package history keeps a SQLite log of transcription runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
)

// Outcomes stored in Run.Outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Run is one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	AudioPath  string
	OutputPath string
	Language   string
	Engine     string
	Model      string
	Outcome    string
	ErrorCode  string
	Message    string
	Chars      int
}

// Store persists runs.
type Store struct {
	DB     *sql.DB
	DBPath string
	Logger *logging.Logger
}

// retryDelay is the pause between open attempts; a locked database file
// usually frees up quickly.
var retryDelay = 500 * time.Millisecond

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		audio_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		language TEXT NOT NULL,
		engine TEXT NOT NULL,
		model TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		chars INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// InitializeDatabase opens the SQLite database at dbPath and creates the
// runs table, retrying a few times.
func InitializeDatabase(dbPath string, logger *logging.Logger) (*sql.DB, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, err := openDatabase(dbPath)
		if err == nil {
			logger.Debug("history database ready", "path", dbPath, "attempt", attempt)
			return db, nil
		}
		lastErr = err
		logger.Warn("failed to initialize history database", "path", dbPath, "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to initialize database after %d attempts: %w", maxAttempts, lastErr)
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return db, nil
}

// Open returns a store at path, creating its parent directory.
func Open(fs afero.Fs, path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if path != MemoryPath {
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := InitializeDatabase(path, logger)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, DBPath: path, Logger: logger}, nil
}

// Record inserts or replaces run.
func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, duration_ms, audio_path, output_path, language, engine, model, outcome, error_code, message, chars)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(),
		run.AudioPath, run.OutputPath, run.Language, run.Engine, run.Model,
		run.Outcome, run.ErrorCode, run.Message, run.Chars,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	s.Logger.Debug("run recorded", "run_id", run.ID, "outcome", run.Outcome)
	return nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, audio_path, output_path, language, engine, model, outcome, error_code, message, chars
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedMs int64
			durMs     int64
		)
		if err := rows.Scan(&r.ID, &startedMs, &durMs, &r.AudioPath, &r.OutputPath, &r.Language,
			&r.Engine, &r.Model, &r.Outcome, &r.ErrorCode, &r.Message, &r.Chars); err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
