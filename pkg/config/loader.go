package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/tokenbridge/pkg/artifacts"
	"github.com/openfroyo/tokenbridge/pkg/engine"
)

// Load reads a deployment file. The format follows the extension: .yaml and
// .yml are decoded strictly, .cue is checked against the deployment schema.
// Defaults are applied; call Validate after any environment overlay.
func Load(path string) (*Deployment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var d *Deployment
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		d, err = parseYAML(content)
		if err != nil {
			return nil, engine.NewConfigError(fmt.Sprintf("invalid config %s", path), err)
		}
	case ".cue":
		parser, err := NewCUEParser()
		if err != nil {
			return nil, err
		}
		var problems []ValidationError
		d, problems = parser.Parse(path, content)
		if len(problems) > 0 {
			errs := make([]error, len(problems))
			for i, p := range problems {
				errs[i] = p
			}
			return nil, engine.NewConfigError(fmt.Sprintf("invalid config %s", path), errors.Join(errs...)).
				WithDetail("problems", len(problems))
		}
	default:
		return nil, engine.NewConfigError(fmt.Sprintf("unsupported config format %q", ext), nil)
	}

	applyDefaults(d)
	return d, nil
}

func parseYAML(content []byte) (*Deployment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var d Deployment
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func applyDefaults(d *Deployment) {
	if d.Store.Path == "" {
		d.Store.Path = DefaultStorePath
	}
	if d.Artifacts.CacheSize == 0 {
		d.Artifacts.CacheSize = DefaultCacheSize
	}
	if d.Artifacts.ProjectRoot == "" {
		d.Artifacts.ProjectRoot = "."
	}
}

// ArtifactDir resolves where compiled artifacts live: the explicit directory,
// or the output directory named by the project's foundry.toml.
func (d *Deployment) ArtifactDir() (string, error) {
	if d.Artifacts.Dir != "" {
		return d.Artifacts.Dir, nil
	}
	return artifacts.FoundryOutDir(d.Artifacts.ProjectRoot, d.Artifacts.Profile)
}

// Save writes the deployment as YAML.
func (d *Deployment) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
