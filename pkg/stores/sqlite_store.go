package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens its own empty database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// StartRun records the start of a run
func (s *SQLiteStore) StartRun(ctx context.Context, runID, network string, startedAt time.Time) error {
	query := `
		INSERT INTO runs (id, network, status, started_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, runID, network, RunStatusRunning, startedAt.UTC()); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run. An empty errMsg stores NULL.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status, errMsg string, completedAt time.Time) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}

	result, err := s.db.ExecContext(ctx, query, status, errVal, completedAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, network, status, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Network,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs, newest first, optionally restricted to a network
func (s *SQLiteStore) ListRuns(ctx context.Context, network *string, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, network, status, started_at, completed_at, error
		FROM runs
		WHERE (? IS NULL OR network = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, network, network, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(
			&run.ID,
			&run.Network,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// LoadRecord returns the deployment record stored for network. A network
// without entries yields an empty record.
func (s *SQLiteStore) LoadRecord(ctx context.Context, network string) (map[string]common.Address, error) {
	deployments, err := s.ListDeployments(ctx, network)
	if err != nil {
		return nil, err
	}

	record := make(map[string]common.Address, len(deployments))
	for _, d := range deployments {
		if !common.IsHexAddress(d.Address) {
			return nil, fmt.Errorf("stored address for %s/%s is malformed: %q", network, d.ResourceID, d.Address)
		}
		record[d.ResourceID] = common.HexToAddress(d.Address)
	}
	return record, nil
}

// SaveRecord upserts every entry of record for network in one transaction
func (s *SQLiteStore) SaveRecord(ctx context.Context, network string, record map[string]common.Address) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO deployments (network, resource_id, address, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(network, resource_id) DO UPDATE SET
			address = excluded.address,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	for id, addr := range record {
		if _, err := tx.ExecContext(ctx, query, network, id, addr.Hex(), now); err != nil {
			return fmt.Errorf("failed to save deployment %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deployment record: %w", err)
	}
	return nil
}

// ListDeployments lists the deployment entries of network ordered by resource ID
func (s *SQLiteStore) ListDeployments(ctx context.Context, network string) ([]*Deployment, error) {
	query := `
		SELECT network, resource_id, address, updated_at
		FROM deployments
		WHERE network = ?
		ORDER BY resource_id
	`

	rows, err := s.db.QueryContext(ctx, query, network)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*Deployment{}
	for rows.Next() {
		d := &Deployment{}
		if err := rows.Scan(&d.Network, &d.ResourceID, &d.Address, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	return deployments, nil
}

// ListNetworks lists every network with a stored record
func (s *SQLiteStore) ListNetworks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT network FROM deployments ORDER BY network`)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	defer rows.Close()

	networks := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan network: %w", err)
		}
		networks = append(networks, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating networks: %w", err)
	}

	return networks, nil
}

// PhaseApplied reports whether phase is recorded as applied to resource
func (s *SQLiteStore) PhaseApplied(ctx context.Context, network string, resource common.Address, phase string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM phase_ledger
		WHERE network = ? AND resource = ? AND phase = ?
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, network, resource.Hex(), phase).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to read phase ledger: %w", err)
	}
	return count > 0, nil
}

// MarkPhaseApplied records phase as applied to resource. Marking twice is a no-op.
func (s *SQLiteStore) MarkPhaseApplied(ctx context.Context, network string, resource common.Address, phase string) error {
	query := `
		INSERT INTO phase_ledger (network, resource, phase, applied_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(network, resource, phase) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, network, resource.Hex(), phase, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark phase applied: %w", err)
	}
	return nil
}

// ListAppliedPhases lists the phases recorded for network in application order
func (s *SQLiteStore) ListAppliedPhases(ctx context.Context, network string) ([]*AppliedPhase, error) {
	query := `
		SELECT network, resource, phase, applied_at
		FROM phase_ledger
		WHERE network = ?
		ORDER BY applied_at, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, network)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied phases: %w", err)
	}
	defer rows.Close()

	phases := []*AppliedPhase{}
	for rows.Next() {
		p := &AppliedPhase{}
		if err := rows.Scan(&p.Network, &p.Resource, &p.Phase, &p.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan applied phase: %w", err)
		}
		phases = append(phases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applied phases: %w", err)
	}

	return phases, nil
}

// LoadCursor returns the next wiring step for controller, 0 when none is stored
func (s *SQLiteStore) LoadCursor(ctx context.Context, network string, controller common.Address) (int, error) {
	query := `
		SELECT next_step
		FROM wiring_progress
		WHERE network = ? AND controller = ?
	`

	var next int
	err := s.db.QueryRowContext(ctx, query, network, controller.Hex()).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load wiring cursor: %w", err)
	}
	return next, nil
}

// SaveCursor stores the next wiring step for controller
func (s *SQLiteStore) SaveCursor(ctx context.Context, network string, controller common.Address, next int) error {
	query := `
		INSERT INTO wiring_progress (network, controller, next_step, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(network, controller) DO UPDATE SET
			next_step = excluded.next_step,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, network, controller.Hex(), next, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save wiring cursor: %w", err)
	}
	return nil
}

// ClearCursor removes the wiring cursor for controller
func (s *SQLiteStore) ClearCursor(ctx context.Context, network string, controller common.Address) error {
	query := `DELETE FROM wiring_progress WHERE network = ? AND controller = ?`

	if _, err := s.db.ExecContext(ctx, query, network, controller.Hex()); err != nil {
		return fmt.Errorf("failed to clear wiring cursor: %w", err)
	}
	return nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (run_id, type, resource_id, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.RunID,
		event.Type,
		event.ResourceID,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents retrieves events in insertion order with optional filters and pagination
func (s *SQLiteStore) GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, run_id, type, resource_id, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, runID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		if err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Type,
			&event.ResourceID,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
