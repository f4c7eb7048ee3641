package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// ProbeState classifies the answer to a read-only probe.
type ProbeState int

const (
	// ProbeValue means the accessor answered with a decodable value.
	ProbeValue ProbeState = iota

	// ProbeUnsupported means the call reverted or returned nothing
	// decodable. The accessor is treated as not available.
	ProbeUnsupported

	// ProbeFailed means the transport could not complete the call.
	ProbeFailed
)

// String returns the state name used in logs.
func (s ProbeState) String() string {
	switch s {
	case ProbeValue:
		return "value"
	case ProbeUnsupported:
		return "unsupported"
	case ProbeFailed:
		return "failed"
	default:
		return fmt.Sprintf("ProbeState(%d)", int(s))
	}
}

// ProbeResult is the typed outcome of an address probe.
type ProbeResult struct {
	State   ProbeState
	Address common.Address
	Err     error
}

// Is reports whether the probe answered with addr.
func (r ProbeResult) Is(addr common.Address) bool {
	return r.State == ProbeValue && r.Address == addr
}

// IsZero reports whether the probe answered with the zero address.
func (r ProbeResult) IsZero() bool {
	return r.Is(common.Address{})
}

// Guard reads remote state before a mutation is issued.
type Guard struct {
	caller  StaticCaller
	logger  zerolog.Logger
	metrics MetricsRecorder
}

// NewGuard creates a guard issuing probes through caller.
func NewGuard(caller StaticCaller, logger zerolog.Logger, metrics MetricsRecorder) *Guard {
	return &Guard{caller: caller, logger: logger, metrics: metrics}
}

// ProbeAddress calls an address-returning accessor of contract at target.
func (g *Guard) ProbeAddress(ctx context.Context, contract *evm.Contract, target common.Address, method string) ProbeResult {
	payload, err := contract.Pack(method)
	if err != nil {
		return ProbeResult{State: ProbeFailed, Err: err}
	}

	ok, ret, err := g.caller.StaticCall(ctx, target, payload)
	if err != nil {
		g.record("probe", "failed")
		return ProbeResult{
			State: ProbeFailed,
			Err:   fmt.Errorf("failed to call %s.%s at %s: %w", contract.Name, method, target.Hex(), err),
		}
	}
	if !ok {
		g.record("probe", "reverted")
		return ProbeResult{State: ProbeUnsupported}
	}

	addr, err := contract.UnpackAddress(method, ret)
	if err != nil {
		g.logger.Debug().
			Str("method", method).
			Str("address", target.Hex()).
			Err(err).
			Msg("Probe returned undecodable data")
		g.record("probe", "undecodable")
		return ProbeResult{State: ProbeUnsupported, Err: err}
	}

	g.record("probe", "ok")
	return ProbeResult{State: ProbeValue, Address: addr}
}

func (g *Guard) record(kind, outcome string) {
	if g.metrics != nil {
		g.metrics.RecordCall(kind, outcome)
	}
}
