package linker

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Probe returns the reference stored at index, or false when there is none.
type Probe func(index int) (LinkReference, bool)

// DiscoverReferences collects references by probing sequential indexes from
// zero. The first missing index ends the scan, so the underlying collection
// must be densely packed.
func DiscoverReferences(probe Probe) []LinkReference {
	var refs []LinkReference
	for i := 0; ; i++ {
		ref, ok := probe(i)
		if !ok {
			return refs
		}
		refs = append(refs, ref)
	}
}

// SliceProbe adapts a slice to a Probe.
func SliceProbe(refs []LinkReference) Probe {
	return func(index int) (LinkReference, bool) {
		if index < 0 || index >= len(refs) {
			return LinkReference{}, false
		}
		return refs[index], true
	}
}

// Resolve pairs every reference with target, ordered by start offset.
func Resolve(refs []LinkReference, target common.Address) []Reference {
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		out = append(out, Reference{LinkReference: r, Target: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
