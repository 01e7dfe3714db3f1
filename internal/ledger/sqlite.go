package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the ledger database, relative to the campaign root.
const DBFileName = "deposition.db"

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    settings_path TEXT,
    started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS iterations (
    iteration INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    outcome TEXT NOT NULL,
    reason TEXT,
    particles INTEGER NOT NULL DEFAULT 0,
    state_path TEXT,
    archive_path TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_iterations_outcome ON iterations(outcome);
CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// SQLiteLedger implements Ledger on a SQLite database.
type SQLiteLedger struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the ledger database at path.
func OpenSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := initSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// initSchema creates the tables and records the schema version.
func initSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		return createSchema(ctx, db)
	}
	if currentVersion < SchemaVersion {
		return migrateSchema(ctx, db, currentVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	// Only one version so far; migrations go here when v2 lands
	_ = currentVersion
	return nil
}

// AddRun registers a controller invocation.
func (l *SQLiteLedger) AddRun(ctx context.Context, run Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, settings_path, started_at)
		VALUES (?, ?, ?)`,
		run.ID,
		run.SettingsPath,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// Add records an iteration, replacing any previous record for the same
// iteration number.
func (l *SQLiteLedger) Add(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Iteration < 1 {
		return fmt.Errorf("iteration number must be at least 1, got %d", rec.Iteration)
	}
	if rec.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	if rec.Outcome != OutcomeSuccess && rec.Outcome != OutcomeFailure {
		return fmt.Errorf("unknown outcome %q", rec.Outcome)
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO iterations
		(iteration, run_id, outcome, reason, particles, state_path, archive_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Iteration,
		rec.RunID,
		rec.Outcome,
		rec.Reason,
		rec.Particles,
		rec.StatePath,
		rec.ArchivePath,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording iteration %d: %w", rec.Iteration, err)
	}
	return nil
}

// List returns records ordered newest first.
func (l *SQLiteLedger) List(ctx context.Context, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	query := `
		SELECT iteration, run_id, outcome, reason, particles, state_path, archive_path, started_at, finished_at
		FROM iterations ORDER BY iteration DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying iterations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var started, finished string
		if err := rows.Scan(&rec.Iteration, &rec.RunID, &rec.Outcome, &rec.Reason, &rec.Particles,
			&rec.StatePath, &rec.ArchivePath, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning iteration: %w", err)
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary aggregates the recorded history.
func (l *SQLiteLedger) Summary(ctx context.Context) (Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Summary
	var lastFinished string
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(outcome = ?), 0),
		       COALESCE(SUM(outcome = ?), 0),
		       COALESCE(MAX(iteration), 0),
		       COALESCE(MAX(finished_at), '')
		FROM iterations`,
		OutcomeSuccess, OutcomeFailure,
	).Scan(&s.Iterations, &s.Successes, &s.Failures, &s.LastIteration, &lastFinished)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing iterations: %w", err)
	}
	if lastFinished != "" {
		if s.LastFinished, err = time.Parse(time.RFC3339Nano, lastFinished); err != nil {
			return Summary{}, fmt.Errorf("parsing last finished time: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
