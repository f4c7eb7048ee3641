package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// AdminTransfer makes sure a proxy ends up with the desired admin.
type AdminTransfer struct {
	ledger  Ledger
	guard   *Guard
	logger  zerolog.Logger
	metrics MetricsRecorder
}

// NewAdminTransfer creates an AdminTransfer.
func NewAdminTransfer(ledger Ledger, guard *Guard, logger zerolog.Logger, metrics MetricsRecorder) *AdminTransfer {
	return &AdminTransfer{ledger: ledger, guard: guard, logger: logger, metrics: metrics}
}

// Ensure probes the admin of proxy and changes it to desired when needed.
//
// A probe that reverts usually means the caller is not the admin and the
// accessor was forwarded to the implementation. In that case the change is
// issued anyway; a rejection then means the admin is out of the caller's
// hands and is reported as AdminNotApplicable.
func (a *AdminTransfer) Ensure(ctx context.Context, contract *evm.Contract, proxy, desired common.Address) (AdminOutcome, error) {
	ctx, span := tracer.Start(ctx, "admin "+proxy.Hex())
	defer span.End()

	logger := a.logger.With().Str("address", proxy.Hex()).Str("admin", desired.Hex()).Logger()

	probe := a.guard.ProbeAddress(ctx, contract, proxy, "admin")
	switch probe.State {
	case ProbeFailed:
		return "", NewProbeUnavailableError("failed to read proxy admin", probe.Err).
			WithOperation("admin")

	case ProbeValue:
		if probe.Address == desired {
			logger.Info().Msg("Proxy admin already set")
			return AdminUnchanged, nil
		}
		ok, err := a.change(ctx, contract, proxy, desired)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", NewPermanentError("proxy rejected admin change", nil).
				WithCode(ErrCodeAdminTransfer).
				WithOperation("changeAdmin").
				WithDetail("current_admin", probe.Address.Hex())
		}
		logger.Info().Str("previous", probe.Address.Hex()).Msg("Proxy admin changed")
		return AdminChanged, nil

	default:
		unavailable := NewProbeUnavailableError("admin accessor not available", probe.Err).WithOperation("admin")
		logger.Info().Str("code", unavailable.Code).Msg("Admin not readable, setting it unconditionally")

		ok, err := a.change(ctx, contract, proxy, desired)
		if err != nil {
			return "", err
		}
		if !ok {
			logger.Warn().Msg("Admin change rejected, admin is not held by the deployer")
			return AdminNotApplicable, nil
		}
		logger.Info().Msg("Proxy admin set")
		return AdminAssumedAndSet, nil
	}
}

func (a *AdminTransfer) change(ctx context.Context, contract *evm.Contract, proxy, desired common.Address) (bool, error) {
	payload, err := contract.Pack("changeAdmin", desired)
	if err != nil {
		return false, NewPermanentError("failed to encode admin change", err).
			WithCode(ErrCodeEncoding).
			WithOperation("changeAdmin")
	}

	ok, _, err := a.ledger.Send(ctx, proxy, payload)
	if err != nil {
		a.recordCall("send", "error")
		return false, NewTransientError("failed to send admin change", err).
			WithCode(ErrCodeTransport).
			WithOperation("changeAdmin")
	}
	if ok {
		a.recordCall("send", "ok")
	} else {
		a.recordCall("send", "rejected")
	}
	return ok, nil
}

func (a *AdminTransfer) recordCall(kind, outcome string) {
	if a.metrics != nil {
		a.metrics.RecordCall(kind, outcome)
	}
}
