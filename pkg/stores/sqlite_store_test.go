package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

var (
	tokenAddr  = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	minterAddr = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"runs", "deployments", "phase_ledger", "wiring_progress", "events"}
	for _, table := range tables {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Migrating again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

func TestRunHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)

	if err := store.StartRun(ctx, "run-001", "testnet", started); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}

	run, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != RunStatusRunning || run.Network != "testnet" {
		t.Errorf("run = %+v, want running on testnet", run)
	}
	if run.CompletedAt != nil || run.Error != nil {
		t.Errorf("fresh run has completion data: %+v", run)
	}

	if err := store.FinishRun(ctx, "run-001", string(RunStatusFailed), "wiring step 2 rejected", time.Now()); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	run, err = store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != RunStatusFailed {
		t.Errorf("Status = %s, want %s", run.Status, RunStatusFailed)
	}
	if run.Error == nil || *run.Error != "wiring step 2 rejected" {
		t.Errorf("Error = %v", run.Error)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	if err := store.StartRun(ctx, "run-002", "mainnet", time.Now()); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	network := "testnet"
	runs, err := store.ListRuns(ctx, &network, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-001" {
		t.Errorf("ListRuns(testnet) = %d runs", len(runs))
	}
	all, err := store.ListRuns(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListRuns(nil) = %d runs, want 2", len(all))
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.FinishRun(ctx, "missing", "failed", "", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeploymentRecord(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	empty, err := store.LoadRecord(ctx, "testnet")
	if err != nil {
		t.Fatalf("failed to load empty record: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty record has %d entries", len(empty))
	}

	record := map[string]common.Address{
		"FiatTokenProxy": tokenAddr,
		"MasterMinter":   minterAddr,
	}
	if err := store.SaveRecord(ctx, "testnet", record); err != nil {
		t.Fatalf("failed to save record: %v", err)
	}

	loaded, err := store.LoadRecord(ctx, "testnet")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if len(loaded) != 2 || loaded["FiatTokenProxy"] != tokenAddr || loaded["MasterMinter"] != minterAddr {
		t.Errorf("loaded record = %v", loaded)
	}

	// Saving again updates existing entries in place.
	replacement := common.HexToAddress("0x0000000000000000000000000000000000000C0C")
	if err := store.SaveRecord(ctx, "testnet", map[string]common.Address{"MasterMinter": replacement}); err != nil {
		t.Fatalf("failed to update record: %v", err)
	}
	loaded, err = store.LoadRecord(ctx, "testnet")
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if loaded["MasterMinter"] != replacement || loaded["FiatTokenProxy"] != tokenAddr {
		t.Errorf("updated record = %v", loaded)
	}

	// Records are kept per network.
	if err := store.SaveRecord(ctx, "mainnet", map[string]common.Address{"FiatTokenProxy": minterAddr}); err != nil {
		t.Fatalf("failed to save record: %v", err)
	}
	networks, err := store.ListNetworks(ctx)
	if err != nil {
		t.Fatalf("failed to list networks: %v", err)
	}
	if len(networks) != 2 || networks[0] != "mainnet" || networks[1] != "testnet" {
		t.Errorf("networks = %v", networks)
	}

	deployments, err := store.ListDeployments(ctx, "testnet")
	if err != nil {
		t.Fatalf("failed to list deployments: %v", err)
	}
	if len(deployments) != 2 || deployments[0].ResourceID != "FiatTokenProxy" {
		t.Errorf("deployments = %v", deployments)
	}
	if deployments[0].Address != tokenAddr.Hex() {
		t.Errorf("stored address = %s, want %s", deployments[0].Address, tokenAddr.Hex())
	}
}

func TestPhaseLedger(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	applied, err := store.PhaseApplied(ctx, "testnet", tokenAddr, "initialize")
	if err != nil {
		t.Fatalf("failed to read phase ledger: %v", err)
	}
	if applied {
		t.Error("phase applied before being marked")
	}

	for i := 0; i < 2; i++ {
		if err := store.MarkPhaseApplied(ctx, "testnet", tokenAddr, "initialize"); err != nil {
			t.Fatalf("mark %d failed: %v", i, err)
		}
	}
	if err := store.MarkPhaseApplied(ctx, "testnet", tokenAddr, "name-update"); err != nil {
		t.Fatalf("failed to mark phase: %v", err)
	}

	applied, err = store.PhaseApplied(ctx, "testnet", tokenAddr, "initialize")
	if err != nil {
		t.Fatalf("failed to read phase ledger: %v", err)
	}
	if !applied {
		t.Error("phase not recorded")
	}

	other, err := store.PhaseApplied(ctx, "mainnet", tokenAddr, "initialize")
	if err != nil {
		t.Fatalf("failed to read phase ledger: %v", err)
	}
	if other {
		t.Error("phase leaked across networks")
	}

	phases, err := store.ListAppliedPhases(ctx, "testnet")
	if err != nil {
		t.Fatalf("failed to list phases: %v", err)
	}
	if len(phases) != 2 || phases[0].Phase != "initialize" || phases[1].Phase != "name-update" {
		t.Errorf("phases = %v", phases)
	}
}

func TestWiringCursor(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	next, err := store.LoadCursor(ctx, "testnet", minterAddr)
	if err != nil {
		t.Fatalf("failed to load cursor: %v", err)
	}
	if next != 0 {
		t.Errorf("missing cursor = %d, want 0", next)
	}

	for _, step := range []int{1, 2} {
		if err := store.SaveCursor(ctx, "testnet", minterAddr, step); err != nil {
			t.Fatalf("failed to save cursor %d: %v", step, err)
		}
	}
	next, err = store.LoadCursor(ctx, "testnet", minterAddr)
	if err != nil {
		t.Fatalf("failed to load cursor: %v", err)
	}
	if next != 2 {
		t.Errorf("cursor = %d, want 2", next)
	}

	if err := store.ClearCursor(ctx, "testnet", minterAddr); err != nil {
		t.Fatalf("failed to clear cursor: %v", err)
	}
	next, err = store.LoadCursor(ctx, "testnet", minterAddr)
	if err != nil {
		t.Fatalf("failed to load cursor: %v", err)
	}
	if next != 0 {
		t.Errorf("cleared cursor = %d, want 0", next)
	}
}

func TestEventLog(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	resource := "MasterMinter"
	details := `{"step":"configureMinter"}`
	events := []*Event{
		{RunID: "run-001", Type: "run.started", Level: EventLevelInfo, Message: "Run started", Timestamp: time.Now()},
		{RunID: "run-001", Type: "wiring.step", ResourceID: &resource, Level: EventLevelInfo, Message: "configureMinter", Details: &details, Timestamp: time.Now()},
		{RunID: "run-001", Type: "run.failed", Level: EventLevelError, Message: "boom", Timestamp: time.Now()},
		{RunID: "run-002", Type: "run.started", Level: EventLevelInfo, Message: "Run started", Timestamp: time.Now()},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("event ID not assigned")
		}
	}

	runID := "run-001"
	got, err := store.GetEvents(ctx, &runID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetEvents(run-001) = %d events, want 3", len(got))
	}
	if got[1].ResourceID == nil || *got[1].ResourceID != resource {
		t.Errorf("ResourceID = %v, want %s", got[1].ResourceID, resource)
	}
	if got[1].Details == nil || *got[1].Details != details {
		t.Errorf("Details = %v", got[1].Details)
	}

	level := EventLevelError
	errs, err := store.GetEvents(ctx, nil, &level, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(errs) != 1 || errs[0].Message != "boom" {
		t.Errorf("GetEvents(error) = %v", errs)
	}
}
