package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const foundryDoc = `{
  "abi": [],
  "bytecode": {
    "object": "0x6080__$0123456789abcdef0123456789abcdef01$__6000",
    "linkReferences": {
      "src/util/SignatureChecker.sol": {
        "SignatureChecker": [{"start": 2, "length": 20}, {"start": 40, "length": 20}]
      }
    }
  }
}`

const hardhatDoc = `{
  "contractName": "MasterMinter",
  "bytecode": "0x60806040",
  "linkReferences": {}
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestParse_Foundry(t *testing.T) {
	art, err := Parse("FiatTokenV2_2", []byte(foundryDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	refs := art.References("SignatureChecker")
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[1].Start != 40 || refs[1].Length != 20 {
		t.Errorf("unexpected second reference %+v", refs[1])
	}
	if libs := art.Libraries(); len(libs) != 1 || libs[0] != "SignatureChecker" {
		t.Errorf("unexpected libraries %v", libs)
	}
	if len(art.References("Missing")) != 0 {
		t.Error("expected no references for an unknown library")
	}
}

func TestParse_Hardhat(t *testing.T) {
	art, err := Parse("MasterMinter", []byte(hardhatDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if art.Bytecode != "0x60806040" {
		t.Errorf("unexpected bytecode %s", art.Bytecode)
	}
	if len(art.LinkReferences) != 0 {
		t.Errorf("expected no link references, got %d", len(art.LinkReferences))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid json":   `{`,
		"no bytecode":    `{"abi": []}`,
		"empty bytecode": `{"bytecode": {"object": "0x"}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse("X", []byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDirSource_LookupLayouts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "FiatTokenV2_2.sol", "FiatTokenV2_2.json"), foundryDoc)
	writeFile(t, filepath.Join(root, "contracts", "minting", "MasterMinter.json"), hardhatDoc)

	src, err := NewDirSource(root, 0)
	if err != nil {
		t.Fatalf("NewDirSource failed: %v", err)
	}

	ctx := context.Background()
	if _, err := src.Lookup(ctx, "FiatTokenV2_2"); err != nil {
		t.Errorf("foundry lookup failed: %v", err)
	}
	if _, err := src.Lookup(ctx, "MasterMinter"); err != nil {
		t.Errorf("hardhat lookup failed: %v", err)
	}

	_, err = src.Lookup(ctx, "Missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirSource_CachesParsedArtifacts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "MasterMinter.sol", "MasterMinter.json")
	writeFile(t, path, hardhatDoc)

	src, err := NewDirSource(root, 4)
	if err != nil {
		t.Fatalf("NewDirSource failed: %v", err)
	}

	ctx := context.Background()
	first, err := src.Lookup(ctx, "MasterMinter")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove artifact: %v", err)
	}

	second, err := src.Lookup(ctx, "MasterMinter")
	if err != nil {
		t.Fatalf("expected cached artifact, got %v", err)
	}
	if first != second {
		t.Error("expected the same cached artifact")
	}
}

func TestFoundryOutDir(t *testing.T) {
	root := t.TempDir()

	dir, err := FoundryOutDir(root, "")
	if err != nil {
		t.Fatalf("FoundryOutDir failed: %v", err)
	}
	if dir != filepath.Join(root, "out") {
		t.Errorf("expected default out dir, got %s", dir)
	}

	writeFile(t, filepath.Join(root, "foundry.toml"), `
[profile.default]
src = "src"
out = "build"

[profile.ci]
out = "ci-out"
`)

	dir, err = FoundryOutDir(root, "")
	if err != nil {
		t.Fatalf("FoundryOutDir failed: %v", err)
	}
	if dir != filepath.Join(root, "build") {
		t.Errorf("expected build dir, got %s", dir)
	}

	dir, err = FoundryOutDir(root, "ci")
	if err != nil {
		t.Fatalf("FoundryOutDir failed: %v", err)
	}
	if dir != filepath.Join(root, "ci-out") {
		t.Errorf("expected ci-out dir, got %s", dir)
	}

	dir, err = FoundryOutDir(root, "unknown")
	if err != nil {
		t.Fatalf("FoundryOutDir failed: %v", err)
	}
	if dir != filepath.Join(root, "build") {
		t.Errorf("expected fallback to default profile, got %s", dir)
	}
}
