package stores

import (
	"context"
	"database/sql"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RunStatus represents the status of a provisioning run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents a provisioning run
type Run struct {
	ID          string     `json:"id"`
	Network     string     `json:"network"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Deployment is one entry of a network's deployment record
type Deployment struct {
	Network    string    `json:"network"`
	ResourceID string    `json:"resource_id"`
	Address    string    `json:"address"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AppliedPhase is an initialization phase recorded as applied
type AppliedPhase struct {
	Network   string    `json:"network"`
	Resource  string    `json:"resource"`
	Phase     string    `json:"phase"`
	AppliedAt time.Time `json:"applied_at"`
}

// Event represents an append-only log event
type Event struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Type       string     `json:"type"`
	ResourceID *string    `json:"resource_id,omitempty"`
	Level      EventLevel `json:"level"`
	Message    string     `json:"message"`
	Details    *string    `json:"details,omitempty"` // JSON blob
	Timestamp  time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Run operations
	StartRun(ctx context.Context, runID, network string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID, status, errMsg string, completedAt time.Time) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, network *string, limit, offset int) ([]*Run, error)

	// Deployment record operations
	LoadRecord(ctx context.Context, network string) (map[string]common.Address, error)
	SaveRecord(ctx context.Context, network string, record map[string]common.Address) error
	ListDeployments(ctx context.Context, network string) ([]*Deployment, error)
	ListNetworks(ctx context.Context) ([]string, error)

	// Phase ledger operations
	PhaseApplied(ctx context.Context, network string, resource common.Address, phase string) (bool, error)
	MarkPhaseApplied(ctx context.Context, network string, resource common.Address, phase string) error
	ListAppliedPhases(ctx context.Context, network string) ([]*AppliedPhase, error)

	// Wiring cursor operations
	LoadCursor(ctx context.Context, network string, controller common.Address) (int, error)
	SaveCursor(ctx context.Context, network string, controller common.Address, next int) error
	ClearCursor(ctx context.Context, network string, controller common.Address) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
