package engine

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openfroyo/tokenbridge/pkg/evm"
)

// BuildPlan returns the provisioning plan for settings in its fixed
// dependency order: library, token implementation, token proxy, controller,
// bridge implementation, bridge proxy.
func BuildPlan(settings Settings) (*Plan, error) {
	bridgeInit, err := evm.L2Bridge.Pack("initialize", settings.Governance)
	if err != nil {
		return nil, NewConfigError("failed to encode bridge initializer", err).
			WithResource(ResourceBridgeProxy)
	}

	plan := &Plan{Resources: []ResourceSpec{
		{
			ID:       ResourceSignatureChecker,
			Artifact: "SignatureChecker",
			Contract: evm.SignatureChecker,
		},
		{
			ID:        ResourceTokenImpl,
			Artifact:  "FiatTokenV2_2",
			Contract:  evm.FiatToken,
			Libraries: map[string]string{"SignatureChecker": ResourceSignatureChecker},
		},
		{
			ID:       ResourceTokenProxy,
			Artifact: "FiatTokenProxy",
			Contract: evm.FiatTokenProxy,
			Args:     []Arg{Ref(ResourceTokenImpl)},
			Proxy:    true,
		},
		{
			ID:       ResourceMasterMinter,
			Artifact: "MasterMinter",
			Contract: evm.MasterMinter,
			Args:     []Arg{Ref(ResourceTokenProxy)},
		},
		{
			ID:       ResourceBridgeImpl,
			Artifact: "L2Bridge",
			Contract: evm.L2Bridge,
			Args: []Arg{
				Lit(settings.L1Token),
				Ref(ResourceTokenProxy),
				Lit(settings.L1BridgeProxy),
			},
		},
		{
			ID:       ResourceBridgeProxy,
			Artifact: "TransparentUpgradeableProxy",
			Contract: evm.TransparentProxy,
			Args: []Arg{
				Ref(ResourceBridgeImpl),
				Lit(settings.ProxyAdmin),
				Lit(bridgeInit),
			},
			Optional: true,
			Enabled:  settings.DeployBridgeProxy,
		},
	}}

	for i := range plan.Resources {
		spec := &plan.Resources[i]
		if addr, ok := settings.Overrides[spec.ID]; ok && addr != (common.Address{}) {
			a := addr
			spec.Override = &a
		}
	}

	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ValidatePlan checks that every resource ID is unique and that every
// dependency names a resource appearing earlier in the plan.
func ValidatePlan(plan *Plan) error {
	seen := make(map[string]int, len(plan.Resources))

	for i := range plan.Resources {
		spec := &plan.Resources[i]
		if spec.ID == "" {
			return NewConfigError(fmt.Sprintf("plan entry %d has empty ID", i), nil)
		}
		if _, exists := seen[spec.ID]; exists {
			return NewConfigError(fmt.Sprintf("duplicate resource ID: %s", spec.ID), nil).
				WithResource(spec.ID)
		}
		if spec.Override == nil && spec.Contract == nil {
			return NewConfigError("resource has neither override nor contract", nil).
				WithResource(spec.ID)
		}

		for _, dep := range spec.Dependencies() {
			if _, ok := seen[dep]; !ok {
				return NewConfigError(
					fmt.Sprintf("resource %s depends on %s, which does not precede it", spec.ID, dep),
					nil,
				).WithResource(spec.ID).WithDetail("dependency", dep)
			}
		}
		seen[spec.ID] = i
	}

	return nil
}

// ToDOT renders the plan as a Graphviz digraph. Resources to be reused are
// drawn grey, resources to be deployed green and disabled optional ones dashed.
func (p *Plan) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph ProvisioningPlan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for i := range p.Resources {
		spec := &p.Resources[i]
		label := spec.ID
		color := "lightgreen"
		style := "filled,rounded"

		switch {
		case spec.Override != nil:
			label = fmt.Sprintf("%s\\nreuse %s", spec.ID, spec.Override.Hex())
			color = "lightgray"
		case spec.Optional && !spec.Enabled:
			label = fmt.Sprintf("%s\\nskipped", spec.ID)
			color = "white"
			style = "dashed,rounded"
		}

		sb.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"%s\"];\n",
			spec.ID, label, color, style))
	}
	sb.WriteString("\n")

	for i := range p.Resources {
		spec := &p.Resources[i]
		for _, dep := range spec.Dependencies() {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", dep, spec.ID))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}
