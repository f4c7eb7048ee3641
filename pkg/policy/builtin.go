package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		roleSeparationPolicy(),
		requiredAddressesPolicy(),
		tokenMetadataPolicy(),
		minterAllowancePolicy(),
		overridesPolicy(),
	}
}

// roleSeparationPolicy keeps the deployer out of the long-lived roles.
func roleSeparationPolicy() Policy {
	return Policy{
		Name:        "role-separation",
		Description: "The deployer must not be the proxy admin or governance",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"roles"},
		Rego: `package tokenbridge.policies.roles

import rego.v1

deny contains violation if {
	d := input.deployment
	d.proxy_admin == d.deployer
	violation := {
		"field": "proxy_admin",
		"message": "proxy_admin must differ from deployer: the proxy admin cannot call through to the token implementation",
	}
}

deny contains violation if {
	d := input.deployment
	d.governance == d.deployer
	violation := {
		"field": "governance",
		"message": "governance must differ from deployer: the minter controller would look already wired",
	}
}

deny contains violation if {
	d := input.deployment
	d.governance == d.proxy_admin
	violation := {
		"field": "proxy_admin",
		"message": "proxy_admin equals governance: governance will not be able to call the token through its proxy",
		"severity": "warning",
	}
}
`,
	}
}

// requiredAddressesPolicy rejects zero addresses for roles and counterparts.
func requiredAddressesPolicy() Policy {
	return Policy{
		Name:        "required-addresses",
		Description: "Governance, proxy admin and L1 counterparts must be non-zero",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"addresses"},
		Rego: `package tokenbridge.policies.addresses

import rego.v1

zero := "0x0000000000000000000000000000000000000000"

required_fields := ["deployer", "governance", "proxy_admin", "l1_token", "l1_bridge_proxy"]

deny contains violation if {
	some field in required_fields
	input.deployment[field] == zero
	violation := {
		"field": field,
		"message": sprintf("%s must not be the zero address", [field]),
	}
}

deny contains violation if {
	some role in ["pauser", "blacklister", "owner"]
	input.deployment.token[role] == zero
	violation := {
		"field": sprintf("roles.%s", [role]),
		"message": sprintf("token %s must not be the zero address", [role]),
	}
}
`,
	}
}

// tokenMetadataPolicy checks the token parameters used by initialization.
func tokenMetadataPolicy() Policy {
	return Policy{
		Name:        "token-metadata",
		Description: "Token decimals, symbol and currency follow the bridged token conventions",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"token"},
		Rego: `package tokenbridge.policies.token

import rego.v1

deny contains violation if {
	input.deployment.token.decimals > 18
	violation := {
		"field": "token.decimals",
		"message": sprintf("token decimals %d exceed 18", [input.deployment.token.decimals]),
	}
}

deny contains violation if {
	count(input.deployment.token.symbol) > 11
	violation := {
		"field": "token.symbol",
		"message": sprintf("token symbol '%s' is longer than 11 characters", [input.deployment.token.symbol]),
		"severity": "warning",
	}
}

deny contains violation if {
	not regex.match("^[A-Z]{3}$", input.deployment.token.currency)
	violation := {
		"field": "token.currency",
		"message": sprintf("token currency '%s' is not an ISO 4217 code", [input.deployment.token.currency]),
		"severity": "warning",
	}
}

deny contains violation if {
	input.deployment.token.lost_and_found == "0x0000000000000000000000000000000000000000"
	violation := {
		"field": "roles.lost_and_found",
		"message": "no lost-and-found account: the lost-and-found phase will be skipped",
		"severity": "info",
	}
}

deny contains violation if {
	d := input.deployment
	some account in d.token.blacklist
	account in {d.governance, d.token.pauser, d.token.blacklister, d.token.owner}
	violation := {
		"field": "blacklist_migration",
		"message": sprintf("blacklist migration includes role account %s", [account]),
		"severity": "warning",
	}
}
`,
	}
}

// minterAllowancePolicy flags a bridge that could not mint after wiring.
func minterAllowancePolicy() Policy {
	return Policy{
		Name:        "minter-allowance",
		Description: "The bridge should receive a non-zero minter allowance",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"roles"},
		Rego: `package tokenbridge.policies.allowance

import rego.v1

deny contains violation if {
	input.deployment.minter_allowance == "0"
	violation := {
		"field": "minter_allowance",
		"message": "minter allowance is zero: the bridge cannot mint until it is raised",
	}
}
`,
	}
}

// overridesPolicy reports every operator-pinned resource.
func overridesPolicy() Policy {
	return Policy{
		Name:        "overrides",
		Description: "Resource overrides are trusted without on-chain verification",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"overrides"},
		Rego: `package tokenbridge.policies.overrides

import rego.v1

deny contains violation if {
	some id, address in input.deployment.overrides
	address != "0x0000000000000000000000000000000000000000"
	violation := {
		"field": sprintf("overrides[%s]", [id]),
		"message": sprintf("%s is pinned to %s and will not be verified", [id, address]),
	}
}

deny contains violation if {
	some id, address in input.deployment.overrides
	address == "0x0000000000000000000000000000000000000000"
	violation := {
		"field": sprintf("overrides[%s]", [id]),
		"message": sprintf("override for %s is the zero address", [id]),
		"severity": "error",
	}
}
`,
	}
}
