package artifacts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openfroyo/tokenbridge/pkg/linker"
)

// Artifact is the deployable part of a compiled contract.
type Artifact struct {
	// Name is the contract name the artifact was looked up by.
	Name string `json:"name"`

	// Bytecode is the 0x-prefixed, possibly unlinked, creation code.
	Bytecode string `json:"bytecode"`

	// LinkReferences maps a library name to every placeholder window that
	// must receive its address. Source file keys are flattened away.
	LinkReferences map[string][]linker.LinkReference `json:"link_references,omitempty"`
}

// Libraries returns the library names referenced by the artifact, sorted.
func (a *Artifact) Libraries() []string {
	names := make([]string, 0, len(a.LinkReferences))
	for name := range a.LinkReferences {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// References returns all windows for library. A library absent from the
// artifact has zero references.
func (a *Artifact) References(library string) []linker.LinkReference {
	return a.LinkReferences[library]
}

// rawLinkReferences is the on-disk shape shared by Foundry and Hardhat:
// source file -> library -> windows.
type rawLinkReferences map[string]map[string][]linker.LinkReference

type foundryArtifact struct {
	Bytecode struct {
		Object         string            `json:"object"`
		LinkReferences rawLinkReferences `json:"linkReferences"`
	} `json:"bytecode"`
}

type hardhatArtifact struct {
	ContractName   string            `json:"contractName"`
	Bytecode       string            `json:"bytecode"`
	LinkReferences rawLinkReferences `json:"linkReferences"`
}

// Parse decodes a Foundry or Hardhat artifact document.
func Parse(name string, data []byte) (*Artifact, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", name, err)
	}

	raw, ok := probe["bytecode"]
	if !ok {
		return nil, fmt.Errorf("artifact %s has no bytecode", name)
	}

	var (
		code  string
		links rawLinkReferences
	)
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		var fa foundryArtifact
		if err := json.Unmarshal(data, &fa); err != nil {
			return nil, fmt.Errorf("failed to parse foundry artifact %s: %w", name, err)
		}
		code, links = fa.Bytecode.Object, fa.Bytecode.LinkReferences
	} else {
		var ha hardhatArtifact
		if err := json.Unmarshal(data, &ha); err != nil {
			return nil, fmt.Errorf("failed to parse hardhat artifact %s: %w", name, err)
		}
		code, links = ha.Bytecode, ha.LinkReferences
	}

	if code == "" || code == "0x" {
		return nil, fmt.Errorf("artifact %s has empty bytecode (abstract contract or interface?)", name)
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}

	art := &Artifact{
		Name:           name,
		Bytecode:       code,
		LinkReferences: make(map[string][]linker.LinkReference),
	}
	for _, libs := range links {
		for lib, refs := range libs {
			art.LinkReferences[lib] = append(art.LinkReferences[lib], refs...)
		}
	}
	return art, nil
}
