// Package engine provisions the bridged token resource graph and drives it
// from freshly deployed to governance controlled.
//
// A run moves through four stages, strictly in sequence:
//
//	Provision -> Initialize -> Wire roles -> Transfer admin
//
// # Provision
//
// The Provisioner walks the Plan in its fixed dependency order. A resource
// with an override address is adopted as is. Every other resource has its
// artifact looked up, its library references linked, its constructor
// arguments encoded and is then created on the ledger. Proxies that take
// their admin from the creator get the configured admin right after creation.
//
// # Initialize
//
// The Sequencer attempts the token initializers in order. Phases without
// input are skipped. The base initializer only runs when the token reads as
// unconfigured; every later phase is best effort and a rejected call is
// reported as already applied. With a PhaseLedger attached, phases already
// recorded as applied are not attempted again.
//
// # Wire roles
//
// The WiringEngine hands the minter controller over to governance. It does
// nothing when governance already owns the controller. Otherwise it runs
// four mutations in order, saving a cursor after each so an aborted run
// resumes at the failed step.
//
// # Transfer admin
//
// AdminTransfer probes the proxy admin and changes it when it differs from
// the desired admin. A probe that reverts is treated as "accessor not
// available" and the change is issued anyway.
//
// # Errors
//
// All failures are EngineErrors carrying a class and a code. Fatal codes
// abort the run and nothing is persisted; RECOVERABLE_REVERT is only logged.
package engine
