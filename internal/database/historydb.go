package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkcrawl/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "linkcrawl.db"

// timestampLayout is fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02 15:04:05.000"

var (
	// ErrRunNotFound is returned when no archived run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNotEnoughRuns is returned when a comparison needs two archived runs
	// of a target and fewer exist.
	ErrNotEnoughRuns = errors.New("not enough archived runs to compare")
)

// HistoryDB stores archived crawl results in a SQLite database.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run collect with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

func (hdb *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	-- One row per archived crawl
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		archived_at TEXT NOT NULL,
		depth INTEGER NOT NULL,
		collected INTEGER NOT NULL,
		scanned INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error_summary TEXT,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON crawl_runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_archived ON crawl_runs(archived_at);

	-- Collected URL set of each run, used for comparisons
	CREATE TABLE IF NOT EXISTS run_urls (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (run_id, url)
	);
	`

	_, err := hdb.db.ExecContext(ctx, schema)
	return err
}

// RunMetadata summarizes an archived run without loading the full result.
type RunMetadata struct {
	// RunID is the UUID assigned when the run was archived.
	RunID string `json:"runId"`

	// Target is the seed URL of the crawl.
	Target string `json:"target"`

	// ArchivedAt is when the crawl finished (or was archived, if the
	// result carries no end time).
	ArchivedAt time.Time `json:"archivedAt"`

	Depth      int   `json:"depth"`
	Collected  int   `json:"collected"`
	Scanned    int   `json:"scanned"`
	DurationMs int64 `json:"durationMs"`

	// ErrorSummary counts recorded errors by type.
	ErrorSummary map[model.ErrorType]int `json:"errorSummary"`
}

// Run is an archived crawl result together with its metadata.
type Run struct {
	RunMetadata

	Result *model.CrawlResult
}

// SaveResult archives a finished crawl and returns its metadata.
// The run and its URL set are written in one transaction.
func (hdb *HistoryDB) SaveResult(ctx context.Context, result *model.CrawlResult) (*RunMetadata, error) {
	if result == nil {
		return nil, errors.New("cannot archive a nil result")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}

	archivedAt := result.Stats.EndTime
	if archivedAt.IsZero() {
		archivedAt = hdb.now()
	}

	meta := &RunMetadata{
		RunID:        id.String(),
		Target:       result.InitialURL,
		ArchivedAt:   archivedAt.UTC().Truncate(time.Millisecond),
		Depth:        result.Depth,
		Collected:    len(result.AllCollectedURLs),
		Scanned:      result.Stats.TotalURLsScanned,
		DurationMs:   result.Stats.DurationMs,
		ErrorSummary: result.ErrorCounts(),
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %w", err)
	}
	summaryJSON, err := json.Marshal(meta.ErrorSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize error summary: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (run_id, target, archived_at, depth, collected, scanned, duration_ms, error_summary, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		meta.RunID,
		meta.Target,
		meta.ArchivedAt.Format(timestampLayout),
		meta.Depth,
		meta.Collected,
		meta.Scanned,
		meta.DurationMs,
		string(summaryJSON),
		string(resultJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO run_urls (run_id, position, url) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare url insert: %w", err)
	}
	defer stmt.Close()

	for i, u := range result.AllCollectedURLs {
		if _, err := stmt.ExecContext(ctx, meta.RunID, i, u); err != nil {
			return nil, fmt.Errorf("failed to save collected url: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return meta, nil
}

// GetRun retrieves an archived run by its run ID.
// It returns ErrRunNotFound when no such run exists.
func (hdb *HistoryDB) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
	SELECT run_id, target, archived_at, depth, collected, scanned, duration_ms, error_summary, result_json
	FROM crawl_runs
	WHERE run_id = ?
	`

	var (
		run        Run
		archivedAt string
		summary    sql.NullString
		resultJSON string
	)
	err := hdb.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID,
		&run.Target,
		&archivedAt,
		&run.Depth,
		&run.Collected,
		&run.Scanned,
		&run.DurationMs,
		&summary,
		&resultJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.ArchivedAt = parseTimestamp(archivedAt)
	run.ErrorSummary = parseErrorSummary(summary)

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	run.Result = &result

	return &run, nil
}

// History returns the metadata of every archived run of target,
// newest first. An empty target lists the runs of all targets.
func (hdb *HistoryDB) History(ctx context.Context, target string) ([]RunMetadata, error) {
	return hdb.listRuns(ctx, target, 0)
}

// LatestRuns returns the metadata of at most n archived runs of target,
// newest first.
func (hdb *HistoryDB) LatestRuns(ctx context.Context, target string, n int) ([]RunMetadata, error) {
	if n <= 0 {
		return []RunMetadata{}, nil
	}
	return hdb.listRuns(ctx, target, n)
}

func (hdb *HistoryDB) listRuns(ctx context.Context, target string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT run_id, target, archived_at, depth, collected, scanned, duration_ms, error_summary
	FROM crawl_runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}

	query += " ORDER BY archived_at DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunMetadata, 0)
	for rows.Next() {
		var (
			meta       RunMetadata
			archivedAt string
			summary    sql.NullString
		)
		if err := rows.Scan(
			&meta.RunID,
			&meta.Target,
			&archivedAt,
			&meta.Depth,
			&meta.Collected,
			&meta.Scanned,
			&meta.DurationMs,
			&summary,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.ArchivedAt = parseTimestamp(archivedAt)
		meta.ErrorSummary = parseErrorSummary(summary)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListTargets returns every target that has at least one archived run,
// sorted alphabetically.
func (hdb *HistoryDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM crawl_runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	targets := make([]string, 0)
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// parseTimestamp parses a stored timestamp as UTC.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseErrorSummary(s sql.NullString) map[model.ErrorType]int {
	summary := make(map[model.ErrorType]int)
	if !s.Valid || s.String == "" {
		return summary
	}
	if err := json.Unmarshal([]byte(s.String), &summary); err != nil {
		return make(map[model.ErrorType]int)
	}
	return summary
}
