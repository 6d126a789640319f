package irrigation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the persistence needed by the irrigation engine:
// last run restore and the run history.
type Repository interface {
	RestoreStore
	RunLog

	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, programID string, limit int) ([]Run, error)
}

// Run history limits for ListRuns, shared by every caller.
const (
	DefaultRunLimit = 20
	MaxRunLimit     = 500
)

// runColumns is the SELECT column list for run queries.
const runColumns = `id, program_id, trigger_type, status, started_at, completed_at,
			zones_watered, zones_skipped, duration_ms`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewSQLiteRepository creates a new SQLite-backed repository. Last run
// dates are interpreted as calendar days in loc (time.Local when nil).
func NewSQLiteRepository(db *sql.DB, loc *time.Location) *SQLiteRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SQLiteRepository{db: db, loc: loc}
}

// LoadLastRun returns the persisted last run date of a program.
// Returns ErrProgramNotFound when no date has been stored.
func (r *SQLiteRepository) LoadLastRun(ctx context.Context, programID string) (time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT last_run_date FROM irrigation_program_state WHERE program_id = ?`,
		programID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrProgramNotFound
		}
		return time.Time{}, fmt.Errorf("querying last run date: %w", err)
	}

	date, err := ParseDate(raw, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last run date %q: %w", raw, err)
	}
	return date, nil
}

// SaveLastRun upserts the last run date of a program.
func (r *SQLiteRepository) SaveLastRun(ctx context.Context, programID string, date time.Time) error {
	query := `
		INSERT INTO irrigation_program_state (program_id, last_run_date, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(program_id) DO UPDATE SET
			last_run_date = excluded.last_run_date,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		programID,
		date.In(r.loc).Format(dateLayout),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving last run date: %w", err)
	}
	return nil
}

// CreateRun inserts a new run record.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO irrigation_runs (
			id, program_id, trigger_type, status, started_at, completed_at,
			zones_watered, zones_skipped, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.ProgramID,
		string(run.Trigger),
		string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339),
		nullableTime(run.CompletedAt),
		run.ZonesWatered,
		run.ZonesSkipped,
		nullableInt(run.DurationMS),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRun stores the outcome of a run.
func (r *SQLiteRepository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE irrigation_runs SET
			status = ?, completed_at = ?, zones_watered = ?, zones_skipped = ?, duration_ms = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(run.Status),
		nullableTime(run.CompletedAt),
		run.ZonesWatered,
		run.ZonesSkipped,
		nullableInt(run.DurationMS),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM irrigation_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs of a program, newest first.
// limit is clamped to MaxRunLimit and defaults to DefaultRunLimit.
func (r *SQLiteRepository) ListRuns(ctx context.Context, programID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	if limit > MaxRunLimit {
		limit = MaxRunLimit
	}

	query := `SELECT ` + runColumns + `
		FROM irrigation_runs
		WHERE program_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning run: %w", scanErr)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// rowScanner abstracts sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Run, error) {
	var run Run
	var trigger, status, startedAt string
	var completedAt sql.NullString
	var durationMS sql.NullInt64

	err := scanner.Scan(
		&run.ID,
		&run.ProgramID,
		&trigger,
		&status,
		&startedAt,
		&completedAt,
		&run.ZonesWatered,
		&run.ZonesSkipped,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}

	run.Trigger = Trigger(trigger)
	run.Status = RunStatus(status)
	if t, parseErr := time.Parse(time.RFC3339, startedAt); parseErr == nil {
		run.StartedAt = t
	}
	if completedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, completedAt.String); parseErr == nil {
			run.CompletedAt = &t
		}
	}
	if durationMS.Valid {
		d := int(durationMS.Int64)
		run.DurationMS = &d
	}
	return &run, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
