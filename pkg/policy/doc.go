// Package policy evaluates Rego pre-flight policies against run settings.
//
// The Engine compiles built-in and user-supplied policies with the Open
// Policy Agent and evaluates them before any ledger call. Each policy module
// defines a `deny` set; an entry is either a message string or an object:
//
//	package tokenbridge.custom.networks
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.deployment.network == "mainnet"
//	    violation := {"field": "network", "message": "mainnet is provisioned elsewhere", "severity": "error"}
//	}
//
// The input document is Input: the run settings with addresses in lower-case
// hex. Violations with severity "error" block the run; Preflight turns the
// first one into an engine config error. Warnings and info findings are
// logged.
//
// Built-in policies:
//
//   - role-separation: deployer differs from proxy admin and governance
//   - required-addresses: roles and L1 counterparts are non-zero
//   - token-metadata: decimals, symbol length, currency code, blacklist
//   - minter-allowance: the bridge gets a non-zero allowance
//   - overrides: pinned resources are reported
//
// Loader reads .rego and .json policy files. A leading "# severity: error"
// comment sets a .rego policy's default severity. Watch re-runs a callback
// when watched files change.
package policy
