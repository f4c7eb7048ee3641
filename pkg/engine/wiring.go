package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// WiringInput is what the role wiring steps act on.
type WiringInput struct {
	Deployer   common.Address
	Consumer   common.Address
	Governance common.Address
	Allowance  *big.Int
}

// WiringStep is one controller mutation.
type WiringStep struct {
	Name string
	Args func(in WiringInput) []interface{}
}

// ControllerSteps returns the four controller mutations in order.
func ControllerSteps() []WiringStep {
	return []WiringStep{
		{
			Name: "configureController",
			Args: func(in WiringInput) []interface{} { return []interface{}{in.Deployer, in.Consumer} },
		},
		{
			Name: "configureMinter",
			Args: func(in WiringInput) []interface{} { return []interface{}{allowanceOrZero(in.Allowance)} },
		},
		{
			Name: "removeController",
			Args: func(in WiringInput) []interface{} { return []interface{}{in.Deployer} },
		},
		{
			Name: "transferOwnership",
			Args: func(in WiringInput) []interface{} { return []interface{}{in.Governance} },
		},
	}
}

// WiringEngine hands the minter controller over to governance.
type WiringEngine struct {
	ledger  Ledger
	guard   *Guard
	cursor  WiringCursor
	logger  zerolog.Logger
	metrics MetricsRecorder
}

// NewWiringEngine creates a wiring engine. cursor may be nil, in which case
// every run starts at the first step.
func NewWiringEngine(ledger Ledger, guard *Guard, cursor WiringCursor, logger zerolog.Logger, metrics MetricsRecorder) *WiringEngine {
	return &WiringEngine{
		ledger:  ledger,
		guard:   guard,
		cursor:  cursor,
		logger:  logger,
		metrics: metrics,
	}
}

// Wire runs the controller steps against controller unless governance
// already owns it.
func (w *WiringEngine) Wire(ctx context.Context, network string, controller common.Address, in WiringInput) (*WiringReport, error) {
	ctx, span := tracer.Start(ctx, "wire "+controller.Hex())
	defer span.End()

	logger := w.logger.With().Str("address", controller.Hex()).Logger()

	owner := w.guard.ProbeAddress(ctx, evm.MasterMinter, controller, "owner")
	if owner.State != ProbeValue {
		return nil, NewProbeUnavailableError("failed to read controller owner", owner.Err).
			WithResource(ResourceMasterMinter).
			WithOperation("owner").
			WithDetail("probe", owner.State.String())
	}

	report := &WiringReport{}
	if owner.Address == in.Governance {
		logger.Info().Str("owner", owner.Address.Hex()).Msg("Controller already owned by governance")
		report.AlreadyWired = true
		span.SetAttributes(attribute.Bool("wiring.already_wired", true))
		return report, w.clear(ctx, network, controller)
	}

	steps := ControllerSteps()
	start := 0
	if w.cursor != nil {
		next, err := w.cursor.LoadCursor(ctx, network, controller)
		if err != nil {
			return nil, NewPermanentError("failed to read wiring cursor", err).
				WithCode(ErrCodePersistence).
				WithResource(ResourceMasterMinter)
		}
		if next < 0 || next >= len(steps) {
			logger.Warn().Int("cursor", next).Msg("Wiring cursor out of range, starting over")
			next = 0
		}
		start = next
	}
	report.ResumedFrom = start
	if start > 0 {
		logger.Info().Int("step", start).Str("name", steps[start].Name).Msg("Resuming role wiring")
	}

	for i := start; i < len(steps); i++ {
		step := steps[i]
		if err := w.runStep(ctx, controller, i, step, in); err != nil {
			if w.metrics != nil {
				w.metrics.RecordWiringStep(step.Name, "failed")
			}
			return report, err
		}
		if w.metrics != nil {
			w.metrics.RecordWiringStep(step.Name, "ok")
		}
		report.Executed = append(report.Executed, step.Name)
		logger.Info().Int("step", i).Str("name", step.Name).Msg("Wiring step applied")

		if w.cursor != nil && i+1 < len(steps) {
			if err := w.cursor.SaveCursor(ctx, network, controller, i+1); err != nil {
				return report, NewPermanentError("failed to save wiring cursor", err).
					WithCode(ErrCodePersistence).
					WithResource(ResourceMasterMinter).
					WithDetail("step_index", i+1)
			}
		}
	}

	span.SetAttributes(attribute.Int("wiring.executed", len(report.Executed)))
	return report, w.clear(ctx, network, controller)
}

func (w *WiringEngine) runStep(ctx context.Context, controller common.Address, index int, step WiringStep, in WiringInput) error {
	payload, err := evm.MasterMinter.Pack(step.Name, step.Args(in)...)
	if err != nil {
		return NewPermanentError("failed to encode wiring step", err).
			WithCode(ErrCodeEncoding).
			WithOperation(step.Name)
	}

	ok, _, err := w.ledger.Send(ctx, controller, payload)
	if err != nil {
		w.recordCall("send", "error")
		return NewWiringPartialFailure(fmt.Sprintf("wiring step %d failed", index), err).
			WithResource(ResourceMasterMinter).
			WithOperation(step.Name).
			WithDetail("step_index", index).
			WithDetail("step", step.Name)
	}
	if !ok {
		w.recordCall("send", "rejected")
		return NewWiringPartialFailure(fmt.Sprintf("wiring step %d rejected", index), nil).
			WithResource(ResourceMasterMinter).
			WithOperation(step.Name).
			WithDetail("step_index", index).
			WithDetail("step", step.Name)
	}
	w.recordCall("send", "ok")
	return nil
}

func (w *WiringEngine) clear(ctx context.Context, network string, controller common.Address) error {
	if w.cursor == nil {
		return nil
	}
	if err := w.cursor.ClearCursor(ctx, network, controller); err != nil {
		return NewPermanentError("failed to clear wiring cursor", err).
			WithCode(ErrCodePersistence).
			WithResource(ResourceMasterMinter)
	}
	return nil
}

func (w *WiringEngine) recordCall(kind, outcome string) {
	if w.metrics != nil {
		w.metrics.RecordCall(kind, outcome)
	}
}
