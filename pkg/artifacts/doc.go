// Package artifacts reads compiled contract artifacts produced by Foundry or
// Hardhat and exposes their unlinked object code together with the complete
// set of library link references.
package artifacts
