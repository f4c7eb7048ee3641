package policy

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openfroyo/tokenbridge/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that are reported but do not block a run.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the run before any ledger call.
	SeverityError Severity = "error"
)

// Blocking reports whether violations of this severity stop a run.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Policy represents a policy rule with its Rego code. The module must define
// a `deny` set in its package.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is used for violations that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from; empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single finding of a policy.
type Violation struct {
	Policy   string   `json:"policy"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty"`

	EvaluatedPolicies []string      `json:"evaluated_policies"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
	Duration          time.Duration `json:"duration"`
}

// Input is the document policies see as `input`. Addresses are lower-case
// hex so rules can compare them directly.
type Input struct {
	Deployment DeploymentInput `json:"deployment"`
}

// DeploymentInput mirrors the run settings.
type DeploymentInput struct {
	Network           string            `json:"network"`
	Deployer          string            `json:"deployer"`
	Governance        string            `json:"governance"`
	ProxyAdmin        string            `json:"proxy_admin"`
	L1Token           string            `json:"l1_token"`
	L1BridgeProxy     string            `json:"l1_bridge_proxy"`
	Token             TokenInput        `json:"token"`
	MinterAllowance   string            `json:"minter_allowance"`
	DeployBridgeProxy bool              `json:"deploy_bridge_proxy"`
	Overrides         map[string]string `json:"overrides"`
}

// TokenInput mirrors the token parameters.
type TokenInput struct {
	Name         string   `json:"name"`
	Symbol       string   `json:"symbol"`
	Currency     string   `json:"currency"`
	Decimals     int      `json:"decimals"`
	Pauser       string   `json:"pauser"`
	Blacklister  string   `json:"blacklister"`
	Owner        string   `json:"owner"`
	LostAndFound string   `json:"lost_and_found"`
	Blacklist    []string `json:"blacklist"`
}

// ZeroAddress is the lower-case hex form of the zero address as rules see it.
var ZeroAddress = hexOf(common.Address{})

// NewInput builds the policy input for a run.
func NewInput(s engine.Settings) Input {
	in := Input{
		Deployment: DeploymentInput{
			Network:       s.Network,
			Deployer:      hexOf(s.Deployer),
			Governance:    hexOf(s.Governance),
			ProxyAdmin:    hexOf(s.ProxyAdmin),
			L1Token:       hexOf(s.L1Token),
			L1BridgeProxy: hexOf(s.L1BridgeProxy),
			Token: TokenInput{
				Name:         s.Token.Name,
				Symbol:       s.Token.Symbol,
				Currency:     s.Token.Currency,
				Decimals:     int(s.Token.Decimals),
				Pauser:       hexOf(s.Token.Pauser),
				Blacklister:  hexOf(s.Token.Blacklister),
				Owner:        hexOf(s.Token.Owner),
				LostAndFound: hexOf(s.Token.LostAndFound),
				Blacklist:    make([]string, 0, len(s.Token.Blacklist)),
			},
			MinterAllowance:   "0",
			DeployBridgeProxy: s.DeployBridgeProxy,
			Overrides:         make(map[string]string, len(s.Overrides)),
		},
	}
	for _, a := range s.Token.Blacklist {
		in.Deployment.Token.Blacklist = append(in.Deployment.Token.Blacklist, hexOf(a))
	}
	if s.MinterAllowance != nil {
		in.Deployment.MinterAllowance = s.MinterAllowance.String()
	}
	for id, a := range s.Overrides {
		in.Deployment.Overrides[id] = hexOf(a)
	}
	return in
}

func hexOf(a common.Address) string {
	return strings.ToLower(a.Hex())
}
