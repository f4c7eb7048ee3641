package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// Phase names, in order.
const (
	PhaseInitialize     = "initialize"
	PhaseNameUpdate     = "name-update"
	PhaseLostAndFound   = "lost-and-found-update"
	PhaseBlacklistMerge = "blacklist-migration-and-symbol-update"
)

// Phase is one initializer of the token.
type Phase struct {
	Name string

	// Method is the initializer called on the token.
	Method string

	// Gated phases only run when the token reads as unconfigured. Their
	// rejection aborts the run.
	Gated bool

	// Required reports whether the settings carry the phase's input.
	Required func(s Settings) bool

	// Args builds the call arguments.
	Args func(s Settings, record DeploymentRecord) []interface{}
}

// TokenPhases returns the token initializers in their fixed order.
func TokenPhases() []Phase {
	return []Phase{
		{
			Name:   PhaseInitialize,
			Method: "initialize",
			Gated:  true,
			Required: func(s Settings) bool {
				return s.Token.Name != "" && s.Token.Symbol != "" && s.Token.Currency != ""
			},
			Args: func(s Settings, record DeploymentRecord) []interface{} {
				minter, _ := record.Resolve(ResourceMasterMinter)
				return []interface{}{
					s.Token.Name,
					s.Token.Symbol,
					s.Token.Currency,
					s.Token.Decimals,
					minter,
					s.Token.Pauser,
					s.Token.Blacklister,
					s.Token.Owner,
				}
			},
		},
		{
			Name:     PhaseNameUpdate,
			Method:   "initializeV2",
			Required: func(s Settings) bool { return s.Token.Name != "" },
			Args: func(s Settings, _ DeploymentRecord) []interface{} {
				return []interface{}{s.Token.Name}
			},
		},
		{
			Name:     PhaseLostAndFound,
			Method:   "initializeV2_1",
			Required: func(s Settings) bool { return s.Token.LostAndFound != (common.Address{}) },
			Args: func(s Settings, _ DeploymentRecord) []interface{} {
				return []interface{}{s.Token.LostAndFound}
			},
		},
		{
			Name:     PhaseBlacklistMerge,
			Method:   "initializeV2_2",
			Required: func(s Settings) bool { return s.Token.Symbol != "" },
			Args: func(s Settings, _ DeploymentRecord) []interface{} {
				blacklist := s.Token.Blacklist
				if blacklist == nil {
					blacklist = []common.Address{}
				}
				return []interface{}{blacklist, s.Token.Symbol}
			},
		},
	}
}

// Sequencer runs initialization phases against a token in order.
type Sequencer struct {
	ledger  Ledger
	guard   *Guard
	applied PhaseLedger
	logger  zerolog.Logger
	metrics MetricsRecorder
}

// NewSequencer creates a sequencer. applied may be nil, in which case every
// phase with input is attempted and rejections are reported as already applied.
func NewSequencer(ledger Ledger, guard *Guard, applied PhaseLedger, logger zerolog.Logger, metrics MetricsRecorder) *Sequencer {
	return &Sequencer{
		ledger:  ledger,
		guard:   guard,
		applied: applied,
		logger:  logger,
		metrics: metrics,
	}
}

// Run attempts phases against token. Only a failed gated phase, a transport
// failure or an unreadable phase ledger returns an error.
func (s *Sequencer) Run(ctx context.Context, network string, token common.Address, phases []Phase, settings Settings, record DeploymentRecord) ([]PhaseReport, error) {
	reports := make([]PhaseReport, 0, len(phases))

	for _, phase := range phases {
		report, err := s.runPhase(ctx, network, token, phase, settings, record)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
		if s.metrics != nil {
			s.metrics.RecordPhase(phase.Name, string(report.Outcome))
		}
	}

	return reports, nil
}

func (s *Sequencer) runPhase(ctx context.Context, network string, token common.Address, phase Phase, settings Settings, record DeploymentRecord) (PhaseReport, error) {
	ctx, span := tracer.Start(ctx, "phase "+phase.Name)
	defer span.End()

	logger := s.logger.With().Str("phase", phase.Name).Str("address", token.Hex()).Logger()
	report := PhaseReport{Phase: phase.Name}

	if !phase.Required(settings) {
		logger.Debug().Msg("Phase has no input, skipping")
		report.Outcome = PhaseSkipped
		span.SetAttributes(attribute.String("phase.outcome", string(report.Outcome)))
		return report, nil
	}

	if s.applied != nil {
		done, err := s.applied.PhaseApplied(ctx, network, token, phase.Name)
		if err != nil {
			return report, NewPermanentError("failed to read phase ledger", err).
				WithCode(ErrCodePersistence).
				WithOperation(phase.Name)
		}
		if done {
			logger.Info().Msg("Phase recorded as applied")
			report.Outcome = PhaseAlreadyApplied
			report.Reason = "recorded in phase ledger"
			span.SetAttributes(attribute.String("phase.outcome", string(report.Outcome)))
			return report, nil
		}
	}

	mustSucceed := false
	if phase.Gated {
		probe := s.guard.ProbeAddress(ctx, evm.FiatToken, token, "masterMinter")
		switch probe.State {
		case ProbeFailed:
			return report, NewProbeUnavailableError("failed to read master minter", probe.Err).
				WithOperation(phase.Name)
		case ProbeValue:
			if !probe.IsZero() {
				logger.Info().
					Str("master_minter", probe.Address.Hex()).
					Msg("Token already configured")
				report.Outcome = PhaseAlreadyApplied
				report.Reason = "master minter already set"
				if err := s.markApplied(ctx, network, token, phase.Name); err != nil {
					return report, err
				}
				span.SetAttributes(attribute.String("phase.outcome", string(report.Outcome)))
				return report, nil
			}
			mustSucceed = true
		case ProbeUnsupported:
			logger.Warn().Msg("Master minter not readable, attempting initializer best effort")
		}
	}

	payload, err := evm.FiatToken.Pack(phase.Method, phase.Args(settings, record)...)
	if err != nil {
		return report, NewPermanentError("failed to encode initializer", err).
			WithCode(ErrCodeEncoding).
			WithOperation(phase.Name)
	}

	ok, _, err := s.ledger.Send(ctx, token, payload)
	if err != nil {
		s.recordCall("send", "error")
		return report, NewTransientError("failed to send initializer", err).
			WithCode(ErrCodeTransport).
			WithOperation(phase.Name)
	}
	if !ok {
		s.recordCall("send", "rejected")
		if mustSucceed {
			return report, NewPermanentError("token rejected initialization", nil).
				WithCode(ErrCodeInitializeFailed).
				WithOperation(phase.Name)
		}
		revert := NewRecoverableRevert("already applied or not applicable", nil).WithOperation(phase.Name)
		logger.Warn().Str("code", revert.Code).Msg(revert.Message)
		report.Outcome = PhaseAlreadyApplied
		report.Reason = "call rejected"
		span.SetAttributes(attribute.String("phase.outcome", string(report.Outcome)))
		return report, nil
	}
	s.recordCall("send", "ok")

	if err := s.markApplied(ctx, network, token, phase.Name); err != nil {
		return report, err
	}
	logger.Info().Msg("Phase applied")
	report.Outcome = PhaseApplied
	span.SetAttributes(attribute.String("phase.outcome", string(report.Outcome)))
	return report, nil
}

func (s *Sequencer) markApplied(ctx context.Context, network string, token common.Address, phase string) error {
	if s.applied == nil {
		return nil
	}
	if err := s.applied.MarkPhaseApplied(ctx, network, token, phase); err != nil {
		return NewPermanentError("failed to record applied phase", err).
			WithCode(ErrCodePersistence).
			WithOperation(phase)
	}
	return nil
}

func (s *Sequencer) recordCall(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCall(kind, outcome)
	}
}
