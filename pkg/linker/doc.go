// Package linker resolves library link references inside unlinked contract
// object code.
//
// Compilers leave a placeholder window for every call into an external
// library. Before the code can be deployed each window has to be overwritten
// with the 20-byte address of the deployed library. Link performs that patch
// on the hex form of the object code and never returns a partially patched
// result.
package linker
