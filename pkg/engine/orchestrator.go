package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// Options are the collaborators of an Orchestrator. Source, Ledger and
// Caller are required; everything else may be nil.
type Options struct {
	Source   ArtifactSource
	Ledger   Ledger
	Caller   StaticCaller
	Accounts AccountLister

	Records     RecordReader
	Writer      LedgerWriter
	PhaseLedger PhaseLedger
	Cursor      WiringCursor
	Runs        RunRecorder

	Preflight Preflight
	Events    EventPublisher
	Metrics   MetricsRecorder
	Logger    zerolog.Logger
}

// Orchestrator runs the provisioning stages in order and persists the
// resulting record.
type Orchestrator struct {
	opts        Options
	provisioner *Provisioner
	sequencer   *Sequencer
	wiring      *WiringEngine
	admin       *AdminTransfer
}

// NewOrchestrator creates an orchestrator from opts.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("artifact source is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if opts.Caller == nil {
		return nil, fmt.Errorf("static caller is required")
	}

	guard := NewGuard(opts.Caller, opts.Logger.With().Str("component", "guard").Logger(), opts.Metrics)

	return &Orchestrator{
		opts: opts,
		provisioner: NewProvisioner(opts.Source, opts.Ledger,
			opts.Logger.With().Str("component", "provisioner").Logger(), opts.Metrics),
		sequencer: NewSequencer(opts.Ledger, guard, opts.PhaseLedger,
			opts.Logger.With().Str("component", "sequencer").Logger(), opts.Metrics),
		wiring: NewWiringEngine(opts.Ledger, guard, opts.Cursor,
			opts.Logger.With().Str("component", "wiring").Logger(), opts.Metrics),
		admin: NewAdminTransfer(opts.Ledger, guard,
			opts.Logger.With().Str("component", "admin").Logger(), opts.Metrics),
	}, nil
}

// Run executes one provisioning run for settings. The record is persisted
// as soon as provisioning returns, so a run that fails in a later stage
// leaves addresses a rerun can resume from.
func (o *Orchestrator) Run(ctx context.Context, settings Settings) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.New().String(),
		Network:   settings.Network,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
	logger := o.opts.Logger.With().Str("run_id", result.RunID).Str("network", settings.Network).Logger()

	ctx, span := tracer.Start(ctx, "run")
	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("run.network", settings.Network),
	)
	defer span.End()

	if o.opts.Runs != nil {
		if err := o.opts.Runs.StartRun(ctx, result.RunID, settings.Network, result.StartedAt); err != nil {
			return nil, NewPermanentError("failed to record run start", err).WithCode(ErrCodePersistence)
		}
	}
	o.publish(ctx, result.RunID, EventTypeRunStarted, "", "Run started", "info", nil)
	logger.Info().Msg("Run started")

	err := o.run(ctx, settings, result, logger)

	result.CompletedAt = time.Now()
	errMsg := ""
	if err != nil {
		result.Status = RunStatusFailed
		errMsg = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, errMsg)
		logger.Error().Err(err).Str("code", CodeOf(err)).Msg("Run failed")
		o.publish(ctx, result.RunID, EventTypeRunFailed, "", errMsg, "error",
			map[string]interface{}{"code": CodeOf(err)})
	} else {
		result.Status = RunStatusSucceeded
		logger.Info().Int("resources", len(result.Record)).Msg("Run completed")
		o.publish(ctx, result.RunID, EventTypeRunCompleted, "", "Run completed", "info",
			map[string]interface{}{"resources": len(result.Record)})
	}

	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordRun(string(result.Status), result.CompletedAt.Sub(result.StartedAt))
	}
	if o.opts.Runs != nil {
		if ferr := o.opts.Runs.FinishRun(ctx, result.RunID, string(result.Status), errMsg, result.CompletedAt); ferr != nil {
			logger.Warn().Err(ferr).Msg("Failed to record run completion")
		}
	}

	return result, err
}

func (o *Orchestrator) run(ctx context.Context, settings Settings, result *RunResult, logger zerolog.Logger) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	if o.opts.Preflight != nil {
		if err := o.opts.Preflight.Preflight(ctx, settings); err != nil {
			return err
		}
	}
	if err := o.checkDeployer(ctx, settings.Deployer); err != nil {
		return err
	}

	overrides, err := o.mergeOverrides(ctx, settings)
	if err != nil {
		return err
	}
	settings.Overrides = overrides

	plan, err := BuildPlan(settings)
	if err != nil {
		return err
	}

	record, resources, err := o.provisioner.Provision(ctx, plan, settings)
	result.Record = record
	result.Resources = resources
	if perr := o.persist(ctx, settings.Network, record, logger); perr != nil {
		if err != nil {
			logger.Error().Err(perr).Msg("Failed to persist partial record")
			return err
		}
		return perr
	}
	for _, r := range resources {
		switch r.Action {
		case ResourceDeployed:
			o.publish(ctx, result.RunID, EventTypeResourceDeployed, r.ID, "Resource deployed", "info",
				map[string]interface{}{"address": r.Address.Hex()})
		case ResourceReused:
			o.publish(ctx, result.RunID, EventTypeResourceReused, r.ID, "Override adopted", "warning",
				map[string]interface{}{"address": r.Address.Hex()})
		}
	}
	if err != nil {
		return err
	}

	token := record[ResourceTokenProxy]
	phases, err := o.sequencer.Run(ctx, settings.Network, token, TokenPhases(), settings, record)
	result.Phases = phases
	for _, p := range phases {
		o.publish(ctx, result.RunID, EventTypePhaseCompleted, ResourceTokenProxy, p.Phase, "info",
			map[string]interface{}{"outcome": string(p.Outcome)})
	}
	if err != nil {
		return err
	}

	consumer, ok := record.Resolve(ResourceBridgeProxy)
	if !ok {
		consumer = record[ResourceBridgeImpl]
	}
	wiring, err := o.wiring.Wire(ctx, settings.Network, record[ResourceMasterMinter], WiringInput{
		Deployer:   settings.Deployer,
		Consumer:   consumer,
		Governance: settings.Governance,
		Allowance:  settings.MinterAllowance,
	})
	result.Wiring = wiring
	if wiring != nil {
		for _, step := range wiring.Executed {
			o.publish(ctx, result.RunID, EventTypeWiringStep, ResourceMasterMinter, step, "info", nil)
		}
	}
	if err != nil {
		return err
	}

	outcome, err := o.admin.Ensure(ctx, evm.FiatTokenProxy, token, settings.ProxyAdmin)
	if err != nil {
		return err
	}
	result.Admin = outcome
	o.publish(ctx, result.RunID, EventTypeAdminEnsured, ResourceTokenProxy, string(outcome), "info", nil)

	return nil
}

// persist saves the resolved entries of record. Resources that failed or
// were never reached are absent from it.
func (o *Orchestrator) persist(ctx context.Context, network string, record DeploymentRecord, logger zerolog.Logger) error {
	if o.opts.Writer == nil || len(record) == 0 {
		return nil
	}
	if err := o.opts.Writer.SaveRecord(ctx, network, record); err != nil {
		return NewPermanentError("failed to persist deployment record", err).WithCode(ErrCodePersistence)
	}
	logger.Info().Int("resources", len(record)).Msg("Deployment record persisted")
	return nil
}

// checkDeployer makes sure the transport can send from the configured
// deployer before anything is sent.
func (o *Orchestrator) checkDeployer(ctx context.Context, deployer common.Address) error {
	if o.opts.Accounts == nil {
		return nil
	}
	accounts, err := o.opts.Accounts.Accounts(ctx)
	if err != nil {
		return NewConfigError("failed to list transport accounts", err)
	}
	for _, a := range accounts {
		if a == deployer {
			return nil
		}
	}
	return NewConfigError(
		fmt.Sprintf("deployer %s is not an account of the transport", deployer.Hex()), nil,
	).WithDetail("accounts", len(accounts))
}

// mergeOverrides lays the configured overrides over the stored record.
func (o *Orchestrator) mergeOverrides(ctx context.Context, settings Settings) (map[string]common.Address, error) {
	merged := make(map[string]common.Address)

	if o.opts.Records != nil {
		stored, err := o.opts.Records.LoadRecord(ctx, settings.Network)
		if err != nil {
			return nil, NewPermanentError("failed to load stored record", err).WithCode(ErrCodePersistence)
		}
		for id, addr := range stored {
			merged[id] = addr
		}
	}
	for id, addr := range settings.Overrides {
		merged[id] = addr
	}

	return merged, nil
}

func (o *Orchestrator) publish(ctx context.Context, runID string, typ EventType, resourceID, msg, level string, details map[string]interface{}) {
	if o.opts.Events == nil {
		return
	}
	event := &Event{
		Type:       typ,
		Timestamp:  time.Now(),
		RunID:      runID,
		ResourceID: resourceID,
		Message:    msg,
		Level:      level,
		Details:    details,
	}
	if err := o.opts.Events.Publish(ctx, event); err != nil {
		o.opts.Logger.Debug().Err(err).Str("event", string(typ)).Msg("Failed to publish event")
	}
}

// ValidateSettings checks the values every run needs. It does not issue
// any call.
func ValidateSettings(s Settings) error {
	required := []struct {
		name  string
		value common.Address
	}{
		{"deployer", s.Deployer},
		{"governance", s.Governance},
		{"proxy_admin", s.ProxyAdmin},
		{"l1_token", s.L1Token},
		{"l1_bridge_proxy", s.L1BridgeProxy},
	}
	for _, r := range required {
		if r.value == (common.Address{}) {
			return NewConfigError(fmt.Sprintf("%s is required", r.name), nil).WithDetail("field", r.name)
		}
	}

	if s.Network == "" {
		return NewConfigError("network is required", nil).WithDetail("field", "network")
	}
	if s.Token.Name == "" || s.Token.Symbol == "" || s.Token.Currency == "" {
		return NewConfigError("token name, symbol and currency are required", nil).WithDetail("field", "token")
	}
	if s.MinterAllowance != nil && s.MinterAllowance.Sign() < 0 {
		return NewConfigError("minter allowance must not be negative", nil).WithDetail("field", "minter_allowance")
	}
	for id := range s.Overrides {
		if !isResourceID(id) {
			return NewConfigError(fmt.Sprintf("override for unknown resource %s", id), nil).WithDetail("field", "overrides")
		}
	}

	return nil
}

func isResourceID(id string) bool {
	for _, known := range ResourceIDs {
		if id == known {
			return true
		}
	}
	return false
}
