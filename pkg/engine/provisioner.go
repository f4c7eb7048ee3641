package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openfroyo/tokenbridge/pkg/linker"
)

var tracer = otel.Tracer("github.com/openfroyo/tokenbridge/pkg/engine")

// Provisioner resolves every resource of a plan to an address, adopting
// overrides and deploying the rest.
type Provisioner struct {
	source  ArtifactSource
	ledger  Ledger
	logger  zerolog.Logger
	metrics MetricsRecorder
}

// NewProvisioner creates a provisioner that reads artifacts from source and
// deploys through ledger.
func NewProvisioner(source ArtifactSource, ledger Ledger, logger zerolog.Logger, metrics MetricsRecorder) *Provisioner {
	return &Provisioner{
		source:  source,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
	}
}

// Provision walks plan in order and returns the resulting record. On error
// the partial record holds every resource resolved before the failure.
func (p *Provisioner) Provision(ctx context.Context, plan *Plan, settings Settings) (DeploymentRecord, []ResourceResult, error) {
	record := make(DeploymentRecord, len(plan.Resources))
	results := make([]ResourceResult, 0, len(plan.Resources))

	for i := range plan.Resources {
		spec := &plan.Resources[i]

		res, err := p.provisionOne(ctx, spec, record, settings)
		if err != nil {
			return record, results, err
		}
		if res.Action != ResourceSkipped {
			record[spec.ID] = res.Address
		}
		results = append(results, res)
		if p.metrics != nil {
			p.metrics.RecordDeployment(spec.ID, string(res.Action))
		}
	}

	return record, results, nil
}

func (p *Provisioner) provisionOne(ctx context.Context, spec *ResourceSpec, record DeploymentRecord, settings Settings) (ResourceResult, error) {
	ctx, span := tracer.Start(ctx, "provision "+spec.ID)
	defer span.End()

	logger := p.logger.With().Str("resource", spec.ID).Logger()

	if spec.Override != nil {
		logger.Warn().
			Str("address", spec.Override.Hex()).
			Msg("Adopting override address without verification")
		span.SetAttributes(attribute.String("resource.action", string(ResourceReused)))
		return ResourceResult{ID: spec.ID, Action: ResourceReused, Address: *spec.Override}, nil
	}

	if spec.Optional && !spec.Enabled {
		logger.Info().Msg("Optional resource not requested, skipping")
		span.SetAttributes(attribute.String("resource.action", string(ResourceSkipped)))
		return ResourceResult{ID: spec.ID, Action: ResourceSkipped}, nil
	}

	addr, err := p.deploy(ctx, spec, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ResourceResult{}, err
	}
	logger.Info().Str("address", addr.Hex()).Msg("Resource deployed")

	if spec.Proxy {
		if err := p.handOverAdmin(ctx, spec, addr, settings); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return ResourceResult{}, err
		}
	}

	span.SetAttributes(
		attribute.String("resource.action", string(ResourceDeployed)),
		attribute.String("resource.address", addr.Hex()),
	)
	return ResourceResult{ID: spec.ID, Action: ResourceDeployed, Address: addr}, nil
}

func (p *Provisioner) deploy(ctx context.Context, spec *ResourceSpec, record DeploymentRecord) (common.Address, error) {
	art, err := p.source.Lookup(ctx, spec.Artifact)
	if err != nil {
		return common.Address{}, NewPermanentError("failed to look up artifact", err).
			WithCode(ErrCodeArtifact).
			WithResource(spec.ID).
			WithDetail("artifact", spec.Artifact)
	}

	var refs []linker.Reference
	for _, lib := range art.Libraries() {
		providerID, ok := spec.Libraries[lib]
		if !ok {
			return common.Address{}, NewConfigError(
				fmt.Sprintf("artifact links library %s, which no resource provides", lib), nil,
			).WithResource(spec.ID)
		}
		target, ok := record.Resolve(providerID)
		if !ok {
			return common.Address{}, NewConfigError(
				fmt.Sprintf("library %s is not resolved yet", providerID), nil,
			).WithResource(spec.ID).WithDetail("library", lib)
		}
		refs = append(refs, linker.Resolve(art.References(lib), target)...)
	}

	linked, err := linker.Link(art.Bytecode, refs)
	if err != nil {
		if errors.Is(err, linker.ErrLinkOverflow) {
			return common.Address{}, NewLinkOverflowError("failed to link object code", err).
				WithResource(spec.ID)
		}
		return common.Address{}, NewPermanentError("failed to link object code", err).
			WithCode(ErrCodeInvalidLink).
			WithResource(spec.ID)
	}
	if linker.Unresolved(linked) {
		return common.Address{}, NewPermanentError("object code still contains library placeholders", nil).
			WithCode(ErrCodeUnresolvedLink).
			WithResource(spec.ID)
	}

	code, err := hexutil.Decode(linked)
	if err != nil {
		return common.Address{}, NewPermanentError("failed to decode object code", err).
			WithCode(ErrCodeArtifact).
			WithResource(spec.ID)
	}

	args, err := resolveArgs(spec, record)
	if err != nil {
		return common.Address{}, err
	}
	ctorData, err := spec.Contract.Constructor(args...)
	if err != nil {
		return common.Address{}, NewPermanentError("failed to encode constructor arguments", err).
			WithCode(ErrCodeEncoding).
			WithResource(spec.ID)
	}

	initCode := make([]byte, 0, len(code)+len(ctorData))
	initCode = append(initCode, code...)
	initCode = append(initCode, ctorData...)

	addr, err := p.ledger.Deploy(ctx, initCode)
	if err != nil {
		p.recordCall("deploy", "error")
		return common.Address{}, NewDeploymentFailedError("creation call failed", err).
			WithResource(spec.ID)
	}
	if addr == (common.Address{}) {
		p.recordCall("deploy", "rejected")
		return common.Address{}, NewDeploymentFailedError("creation call returned the zero address", nil).
			WithResource(spec.ID)
	}
	p.recordCall("deploy", "ok")

	return addr, nil
}

// handOverAdmin moves a freshly created proxy from its creator to the
// configured proxy admin.
func (p *Provisioner) handOverAdmin(ctx context.Context, spec *ResourceSpec, proxy common.Address, settings Settings) error {
	desired := settings.ProxyAdmin
	if desired == (common.Address{}) || desired == settings.Deployer {
		return nil
	}

	payload, err := spec.Contract.Pack("changeAdmin", desired)
	if err != nil {
		return NewPermanentError("failed to encode admin change", err).
			WithCode(ErrCodeEncoding).
			WithResource(spec.ID)
	}

	ok, _, err := p.ledger.Send(ctx, proxy, payload)
	if err != nil {
		p.recordCall("send", "error")
		return NewTransientError("failed to send admin change", err).
			WithCode(ErrCodeTransport).
			WithResource(spec.ID).
			WithOperation("changeAdmin")
	}
	if !ok {
		p.recordCall("send", "rejected")
		return NewPermanentError("fresh proxy rejected admin change from its creator", nil).
			WithCode(ErrCodeAdminTransfer).
			WithResource(spec.ID).
			WithOperation("changeAdmin")
	}
	p.recordCall("send", "ok")

	p.logger.Info().
		Str("resource", spec.ID).
		Str("admin", desired.Hex()).
		Msg("Proxy admin handed over")
	return nil
}

func (p *Provisioner) recordCall(kind, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordCall(kind, outcome)
	}
}

// resolveArgs replaces resource references with their recorded addresses.
func resolveArgs(spec *ResourceSpec, record DeploymentRecord) ([]interface{}, error) {
	args := make([]interface{}, 0, len(spec.Args))
	for i, a := range spec.Args {
		if a.Ref == "" {
			args = append(args, a.Value)
			continue
		}
		addr, ok := record.Resolve(a.Ref)
		if !ok {
			return nil, NewConfigError(
				fmt.Sprintf("constructor argument %d references unresolved resource %s", i, a.Ref), nil,
			).WithResource(spec.ID)
		}
		args = append(args, addr)
	}
	return args, nil
}
