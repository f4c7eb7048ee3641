package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openfroyo/tokenbridge/pkg/config"
	"github.com/openfroyo/tokenbridge/pkg/engine"
	"github.com/openfroyo/tokenbridge/pkg/policy"
	"github.com/openfroyo/tokenbridge/pkg/stores"
)

// loadDeployment reads the config file, overlays the environment and
// validates the result.
func loadDeployment() (*config.Deployment, engine.Settings, error) {
	d, err := config.Load(configPath)
	if err != nil {
		return nil, engine.Settings{}, err
	}
	if err := config.ApplyEnv(d, envFile); err != nil {
		return nil, engine.Settings{}, err
	}
	if dbPath != "" {
		d.Store.Path = dbPath
	}
	if err := config.Validate(d); err != nil {
		return nil, engine.Settings{}, err
	}

	settings, err := d.Settings()
	if err != nil {
		return nil, engine.Settings{}, err
	}
	return d, settings, nil
}

// openStore opens and migrates the ledger database at path.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newPolicyEngine builds the policy engine with the built-in policies plus
// any given on the command line.
func newPolicyEngine(ctx context.Context, logger zerolog.Logger) (*policy.Engine, error) {
	eng, err := policy.NewEngine(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(policyPaths) > 0 {
		if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// withStoredRecord lays the configured overrides over the record stored for
// the network, the same way a run does before planning.
func withStoredRecord(ctx context.Context, store engine.RecordReader, settings engine.Settings) (engine.Settings, error) {
	stored, err := store.LoadRecord(ctx, settings.Network)
	if err != nil {
		return settings, fmt.Errorf("failed to load stored record: %w", err)
	}

	merged := make(map[string]common.Address, len(stored)+len(settings.Overrides))
	for id, addr := range stored {
		merged[id] = addr
	}
	for id, addr := range settings.Overrides {
		merged[id] = addr
	}
	settings.Overrides = merged
	return settings, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
