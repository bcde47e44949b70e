package record

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/repel/internal/pathutil"
	"github.com/nvandessel/repel/internal/sim"
)

// RunInfo describes a run at the moment it starts.
type RunInfo struct {
	Circles    int
	Iterations int
	Backend    string
	Seed       int64
}

// Run is a recorded run header.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Circles       int
	Iterations    int
	Backend       string
	Seed          int64
	TotalOverlaps int64
	Elapsed       time.Duration
	Finished      bool
}

// IterationStat is one recorded iteration of a run.
type IterationStat struct {
	Iteration int
	Overlaps  int
	Elapsed   time.Duration
}

// Recorder persists run metrics to a SQLite database.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the metrics database at path.
func Open(path string) (*Recorder, error) {
	if err := pathutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Recorder{db: db, dbPath: path}, nil
}

// BeginRun inserts a run header and returns its generated id.
func (r *Recorder) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("r-%d", time.Now().UnixNano())
	startedAt := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, circles, iterations, backend, seed) VALUES (?, ?, ?, ?, ?, ?)`,
		id, startedAt, info.Circles, info.Iterations, info.Backend, info.Seed)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	return id, nil
}

// RecordIteration appends one iteration's metrics to a run.
func (r *Recorder) RecordIteration(ctx context.Context, runID string, iteration, overlaps int, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_iterations (run_id, iteration, overlaps, elapsed_seconds) VALUES (?, ?, ?, ?)`,
		runID, iteration, overlaps, elapsed.Seconds())
	if err != nil {
		return fmt.Errorf("failed to insert iteration %d: %w", iteration, err)
	}
	return nil
}

// FinishRun closes out a run header with its totals.
func (r *Recorder) FinishRun(ctx context.Context, runID string, totalOverlaps int64, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	finishedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total_overlaps = ?, elapsed_seconds = ? WHERE id = ?`,
		finishedAt, totalOverlaps, elapsed.Seconds(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finish result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

// ListRuns returns up to limit run headers, most recent first.
// limit <= 0 returns all runs.
func (r *Recorder) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `SELECT id, started_at, finished_at, circles, iterations, backend, seed,
	       COALESCE(total_overlaps, 0), COALESCE(elapsed_seconds, 0)
	FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
			seconds    float64
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Circles, &run.Iterations,
			&run.Backend, &run.Seed, &run.TotalOverlaps, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
			run.Finished = true
		}
		run.Elapsed = time.Duration(seconds * float64(time.Second))
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Iterations returns the per-iteration metrics of a run in order.
func (r *Recorder) Iterations(ctx context.Context, runID string) ([]IterationStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT iteration, overlaps, elapsed_seconds FROM run_iterations WHERE run_id = ? ORDER BY iteration`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var stats []IterationStat
	for rows.Next() {
		var (
			stat    IterationStat
			seconds float64
		)
		if err := rows.Scan(&stat.Iteration, &stat.Overlaps, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		stat.Elapsed = time.Duration(seconds * float64(time.Second))
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate iterations: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// RunObserver feeds driver callbacks into a Recorder. It is bound to
// one run id for the lifetime of that run.
type RunObserver struct {
	ctx   context.Context
	rec   *Recorder
	runID string
}

// Observer returns a simulation observer that records every iteration
// of the run identified by runID.
func (r *Recorder) Observer(ctx context.Context, runID string) *RunObserver {
	return &RunObserver{ctx: ctx, rec: r, runID: runID}
}

// OnFrame implements sim.Observer. Frames are not recorded.
func (o *RunObserver) OnFrame(frame int, s *sim.State) error {
	return nil
}

// OnIteration implements sim.Observer.
func (o *RunObserver) OnIteration(iter, overlaps int, elapsed time.Duration) error {
	return o.rec.RecordIteration(o.ctx, o.runID, iter, overlaps, elapsed)
}
