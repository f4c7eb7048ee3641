package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned when no artifact exists for a contract name.
var ErrNotFound = errors.New("artifact not found")

// DefaultCacheSize bounds the number of parsed artifacts kept in memory.
const DefaultCacheSize = 64

// DirSource looks artifacts up under a build output directory.
type DirSource struct {
	root  string
	cache *lru.Cache[string, *Artifact]
}

// NewDirSource creates a source rooted at dir (Foundry "out" or Hardhat "artifacts").
func NewDirSource(dir string, cacheSize int) (*DirSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Artifact](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact cache: %w", err)
	}
	return &DirSource{root: dir, cache: cache}, nil
}

// Lookup returns the artifact for contract name.
func (s *DirSource) Lookup(ctx context.Context, name string) (*Artifact, error) {
	if art, ok := s.cache.Get(name); ok {
		return art, nil
	}

	path, err := s.locate(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	art, err := Parse(name, data)
	if err != nil {
		return nil, err
	}

	s.cache.Add(name, art)
	return art, nil
}

// locate prefers the Foundry layout <root>/<Name>.sol/<Name>.json and falls
// back to searching the tree for <Name>.json, which covers Hardhat.
func (s *DirSource) locate(ctx context.Context, name string) (string, error) {
	direct := filepath.Join(s.root, name+".sol", name+".json")
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	var found string
	target := name + ".json"
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() && d.Name() == "build-info" {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == target {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search artifacts for %s: %w", name, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s under %s", ErrNotFound, name, s.root)
	}
	return found, nil
}

// MemorySource serves artifacts from memory.
type MemorySource map[string]*Artifact

// Lookup returns the artifact registered under name.
func (m MemorySource) Lookup(_ context.Context, name string) (*Artifact, error) {
	art, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return art, nil
}

type foundryConfig struct {
	Profile map[string]struct {
		Out string `toml:"out"`
	} `toml:"profile"`
}

// FoundryOutDir resolves the build output directory of a Foundry project
// from its foundry.toml. It falls back to "<root>/out" when the file or the
// setting is missing.
func FoundryOutDir(projectRoot, profile string) (string, error) {
	if profile == "" {
		profile = "default"
	}
	fallback := filepath.Join(projectRoot, "out")

	path := filepath.Join(projectRoot, "foundry.toml")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}

	var cfg foundryConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	p, ok := cfg.Profile[profile]
	if !ok || p.Out == "" {
		if def, ok := cfg.Profile["default"]; ok && def.Out != "" {
			return filepath.Join(projectRoot, def.Out), nil
		}
		return fallback, nil
	}
	return filepath.Join(projectRoot, p.Out), nil
}
