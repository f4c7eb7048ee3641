package engine

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// Resource identifiers, in plan order.
const (
	ResourceSignatureChecker = "SignatureChecker"
	ResourceTokenImpl        = "FiatTokenV2_2"
	ResourceTokenProxy       = "FiatTokenProxy"
	ResourceMasterMinter     = "MasterMinter"
	ResourceBridgeImpl       = "L2BridgeImplementation"
	ResourceBridgeProxy      = "L2BridgeProxy"
)

// ResourceIDs lists every resource identifier in plan order.
var ResourceIDs = []string{
	ResourceSignatureChecker,
	ResourceTokenImpl,
	ResourceTokenProxy,
	ResourceMasterMinter,
	ResourceBridgeImpl,
	ResourceBridgeProxy,
}

// Arg is a constructor argument: either a literal value or a reference to
// the resolved address of an earlier resource.
type Arg struct {
	// Ref is the ID of the resource whose address is passed.
	Ref string `json:"ref,omitempty"`

	// Value is the literal value, used when Ref is empty.
	Value interface{} `json:"value,omitempty"`
}

// Ref returns an argument resolved from the deployment record.
func Ref(resourceID string) Arg { return Arg{Ref: resourceID} }

// Lit returns a literal argument.
func Lit(v interface{}) Arg { return Arg{Value: v} }

// ResourceSpec describes one resource of the plan.
type ResourceSpec struct {
	// ID is the unique identifier of the resource within the record.
	ID string `json:"id"`

	// Artifact is the contract name to look the object code up by.
	Artifact string `json:"artifact"`

	// Contract carries the constructor ABI.
	Contract *evm.Contract `json:"-"`

	// Override is an existing address to adopt instead of deploying.
	Override *common.Address `json:"override,omitempty"`

	// Args are the constructor arguments, in order.
	Args []Arg `json:"args,omitempty"`

	// Libraries maps an artifact library name to the resource ID that
	// provides its address.
	Libraries map[string]string `json:"libraries,omitempty"`

	// Proxy marks a proxy whose admin starts out as the creator and
	// must be handed to the configured proxy admin after creation.
	Proxy bool `json:"proxy,omitempty"`

	// Optional marks a resource that is only deployed when Enabled is set.
	Optional bool `json:"optional,omitempty"`

	// Enabled requests deployment of an optional resource.
	Enabled bool `json:"enabled,omitempty"`
}

// Dependencies returns every resource ID this spec needs resolved first.
func (r *ResourceSpec) Dependencies() []string {
	var deps []string
	for _, a := range r.Args {
		if a.Ref != "" {
			deps = append(deps, a.Ref)
		}
	}
	for _, id := range r.Libraries {
		deps = append(deps, id)
	}
	sort.Strings(deps)
	return deps
}

// Plan is the ordered provisioning plan.
type Plan struct {
	Resources []ResourceSpec `json:"resources"`
}

// Get returns the spec with id.
func (p *Plan) Get(id string) (*ResourceSpec, bool) {
	for i := range p.Resources {
		if p.Resources[i].ID == id {
			return &p.Resources[i], true
		}
	}
	return nil, false
}

// DeploymentRecord maps resource IDs to resolved addresses.
type DeploymentRecord map[string]common.Address

// Resolve returns the address of id if it has been resolved.
func (r DeploymentRecord) Resolve(id string) (common.Address, bool) {
	addr, ok := r[id]
	return addr, ok && addr != (common.Address{})
}

// IDs returns the recorded resource IDs, sorted.
func (r DeploymentRecord) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TokenParams configures the token initializers.
type TokenParams struct {
	Name         string
	Symbol       string
	Currency     string
	Decimals     uint8
	Pauser       common.Address
	Blacklister  common.Address
	Owner        common.Address
	LostAndFound common.Address
	Blacklist    []common.Address
}

// Settings is everything a run needs besides its collaborators.
type Settings struct {
	// Network keys the persisted record, phase ledger and wiring cursor.
	Network string

	// Deployer is the account issuing every call.
	Deployer common.Address

	// Governance receives ownership of the minter controller.
	Governance common.Address

	// ProxyAdmin is the desired admin of both proxies.
	ProxyAdmin common.Address

	// L1Token and L1BridgeProxy are the counterparts the bridge is bound to.
	L1Token       common.Address
	L1BridgeProxy common.Address

	Token TokenParams

	// MinterAllowance is the allowance granted to the bridge. Nil means zero.
	MinterAllowance *big.Int

	// DeployBridgeProxy enables the optional bridge proxy.
	DeployBridgeProxy bool

	// Overrides are operator-supplied addresses keyed by resource ID.
	Overrides map[string]common.Address
}

// ResourceResult reports what happened to one resource.
type ResourceResult struct {
	ID      string         `json:"id"`
	Action  ResourceAction `json:"action"`
	Address common.Address `json:"address"`
}

// PhaseReport reports the outcome of one initialization phase.
type PhaseReport struct {
	Phase   string       `json:"phase"`
	Outcome PhaseOutcome `json:"outcome"`
	Reason  string       `json:"reason,omitempty"`
}

// WiringReport reports what the role wiring did.
type WiringReport struct {
	// AlreadyWired is set when governance already owned the controller.
	AlreadyWired bool `json:"already_wired"`

	// ResumedFrom is the step index the run started at.
	ResumedFrom int `json:"resumed_from"`

	// Executed lists the steps issued during this run.
	Executed []string `json:"executed,omitempty"`
}

// RunResult is the outcome of an orchestration run.
type RunResult struct {
	RunID       string           `json:"run_id"`
	Network     string           `json:"network"`
	Status      RunStatus        `json:"status"`
	Record      DeploymentRecord `json:"record"`
	Resources   []ResourceResult `json:"resources"`
	Phases      []PhaseReport    `json:"phases,omitempty"`
	Wiring      *WiringReport    `json:"wiring,omitempty"`
	Admin       AdminOutcome     `json:"admin,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Event represents a timeline event during a run.
type Event struct {
	// Type is the type of event.
	Type EventType `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// RunID is the ID of the run this event belongs to.
	RunID string `json:"run_id"`

	// ResourceID is the ID of the resource, if applicable.
	ResourceID string `json:"resource_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the log level (info, warning, error).
	Level string `json:"level"`

	// Details contains additional event-specific data.
	Details map[string]interface{} `json:"details,omitempty"`
}

// EventType represents the type of a run event.
type EventType string

const (
	EventTypeRunStarted       EventType = "run.started"
	EventTypeRunCompleted     EventType = "run.completed"
	EventTypeRunFailed        EventType = "run.failed"
	EventTypeResourceReused   EventType = "resource.reused"
	EventTypeResourceDeployed EventType = "resource.deployed"
	EventTypePhaseCompleted   EventType = "phase.completed"
	EventTypeWiringStep       EventType = "wiring.step"
	EventTypeAdminEnsured     EventType = "admin.ensured"
)
