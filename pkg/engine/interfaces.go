package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openfroyo/tokenbridge/pkg/artifacts"
)

// Ledger issues mutating calls from the deployer account.
type Ledger interface {
	// Deploy submits a creation call with the given init code and returns
	// the created address. A zero address means no resource was created.
	Deploy(ctx context.Context, code []byte) (common.Address, error)

	// Send submits a mutating call. ok is false when the call was mined but
	// rejected by the target. err is reserved for transport failures.
	Send(ctx context.Context, to common.Address, payload []byte) (ok bool, ret []byte, err error)
}

// StaticCaller issues read-only calls.
type StaticCaller interface {
	// StaticCall executes payload against to without changing state. ok is
	// false when the call reverted.
	StaticCall(ctx context.Context, to common.Address, payload []byte) (ok bool, ret []byte, err error)
}

// AccountLister lists the accounts the transport can send from.
type AccountLister interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// ArtifactSource resolves contract names to compiled artifacts.
type ArtifactSource interface {
	Lookup(ctx context.Context, name string) (*artifacts.Artifact, error)
}

// RecordReader loads the deployment record persisted for a network.
type RecordReader interface {
	LoadRecord(ctx context.Context, network string) (map[string]common.Address, error)
}

// LedgerWriter persists the deployment record for a network.
type LedgerWriter interface {
	SaveRecord(ctx context.Context, network string, record map[string]common.Address) error
}

// PhaseLedger remembers which initialization phases have been applied to a
// resource.
type PhaseLedger interface {
	PhaseApplied(ctx context.Context, network string, resource common.Address, phase string) (bool, error)
	MarkPhaseApplied(ctx context.Context, network string, resource common.Address, phase string) error
}

// WiringCursor persists the index of the next role wiring step.
type WiringCursor interface {
	LoadCursor(ctx context.Context, network string, controller common.Address) (int, error)
	SaveCursor(ctx context.Context, network string, controller common.Address, next int) error
	ClearCursor(ctx context.Context, network string, controller common.Address) error
}

// RunRecorder keeps the run history.
type RunRecorder interface {
	StartRun(ctx context.Context, runID, network string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID, status, errMsg string, completedAt time.Time) error
}

// EventPublisher receives run timeline events.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// MetricsRecorder receives counters for calls and stage outcomes.
type MetricsRecorder interface {
	RecordCall(kind, outcome string)
	RecordDeployment(resource, action string)
	RecordPhase(phase, outcome string)
	RecordWiringStep(step, outcome string)
	RecordRun(status string, duration time.Duration)
}

// Preflight checks resolved settings before any call is issued.
type Preflight interface {
	Preflight(ctx context.Context, settings Settings) error
}

// allowanceOrZero returns the allowance to grant, never nil.
func allowanceOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
