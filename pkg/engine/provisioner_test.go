package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openfroyo/tokenbridge/pkg/artifacts"
	"github.com/openfroyo/tokenbridge/pkg/evm"
	"github.com/openfroyo/tokenbridge/pkg/linker"
)

func TestProvisionerDeploysInPlanOrder(t *testing.T) {
	chain := newFakeChain()
	p := NewProvisioner(testArtifacts(), chain, zerolog.Nop(), nil)

	plan, err := BuildPlan(testSettings())
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}

	record, results, err := p.Provision(context.Background(), plan, testSettings())
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if len(chain.deployed) != 5 {
		t.Fatalf("deployed %d resources, want 5", len(chain.deployed))
	}
	wantKinds := []byte{kindLibrary, kindToken, kindTokenProxy, kindMasterMinter, kindBridge}
	for i, addr := range chain.deployed {
		if got := chain.contracts[addr].kind; got != wantKinds[i] {
			t.Errorf("deployment %d kind = %#x, want %#x", i, got, wantKinds[i])
		}
	}

	if len(record) != 5 {
		t.Errorf("record has %d entries, want 5", len(record))
	}
	if results[5].Action != ResourceSkipped {
		t.Errorf("bridge proxy action = %s, want %s", results[5].Action, ResourceSkipped)
	}
	if _, ok := record[ResourceBridgeProxy]; ok {
		t.Error("skipped bridge proxy should not be recorded")
	}

	// The library address is linked into the token implementation.
	token := chain.contracts[record[ResourceTokenImpl]]
	if token.kind != kindToken {
		t.Fatalf("token implementation kind = %#x", token.kind)
	}
	linked := common.BytesToAddress(token.args[1:21])
	if linked != record[ResourceSignatureChecker] {
		t.Errorf("linked library = %s, want %s", linked.Hex(), record[ResourceSignatureChecker].Hex())
	}

	// The proxy takes the implementation as its constructor argument and
	// the controller takes the proxy.
	proxy := chain.contracts[record[ResourceTokenProxy]]
	if got := common.BytesToAddress(proxy.args[:32]); got != record[ResourceTokenImpl] {
		t.Errorf("proxy implementation = %s, want %s", got.Hex(), record[ResourceTokenImpl].Hex())
	}
	minter := chain.contracts[record[ResourceMasterMinter]]
	if got := common.BytesToAddress(minter.args[:32]); got != record[ResourceTokenProxy] {
		t.Errorf("controller token = %s, want %s", got.Hex(), record[ResourceTokenProxy].Hex())
	}

	// A fresh token proxy is handed to the proxy admin right away.
	if proxy.admin != testProxyAdmin {
		t.Errorf("token proxy admin = %s, want %s", proxy.admin.Hex(), testProxyAdmin.Hex())
	}
}

func TestProvisionerOverrideTakesPrecedence(t *testing.T) {
	chain := newFakeChain()
	source := &countingSource{inner: testArtifacts()}
	p := NewProvisioner(source, chain, zerolog.Nop(), nil)

	settings := testSettings()
	override := common.HexToAddress("0x00000000000000000000000000000000000000EE")
	settings.Overrides = map[string]common.Address{ResourceTokenImpl: override}

	plan, err := BuildPlan(settings)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	record, results, err := p.Provision(context.Background(), plan, settings)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	for _, name := range source.lookups {
		if name == "FiatTokenV2_2" {
			t.Error("overridden resource artifact was looked up")
		}
	}
	if len(chain.deployed) != 4 {
		t.Errorf("deployed %d resources, want 4", len(chain.deployed))
	}
	if record[ResourceTokenImpl] != override {
		t.Errorf("record[%s] = %s, want override", ResourceTokenImpl, record[ResourceTokenImpl].Hex())
	}
	if results[1].Action != ResourceReused {
		t.Errorf("token implementation action = %s, want %s", results[1].Action, ResourceReused)
	}

	proxy := chain.contracts[record[ResourceTokenProxy]]
	if got := common.BytesToAddress(proxy.args[:32]); got != override {
		t.Errorf("proxy implementation = %s, want override %s", got.Hex(), override.Hex())
	}
}

func TestProvisionerFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(chain *fakeChain, source artifacts.MemorySource)
		wantCode string
	}{
		{
			name:     "zero address",
			setup:    func(chain *fakeChain, _ artifacts.MemorySource) { chain.zeroDeploy = true },
			wantCode: ErrCodeDeploymentFailed,
		},
		{
			name:     "transport error",
			setup:    func(chain *fakeChain, _ artifacts.MemorySource) { chain.deployErr = errors.New("connection reset") },
			wantCode: ErrCodeDeploymentFailed,
		},
		{
			name: "link overflow",
			setup: func(_ *fakeChain, source artifacts.MemorySource) {
				source["FiatTokenV2_2"].LinkReferences["SignatureChecker"] = []linker.LinkReference{{Start: 20, Length: 20}}
			},
			wantCode: ErrCodeLinkOverflow,
		},
		{
			name: "placeholder left behind",
			setup: func(_ *fakeChain, source artifacts.MemorySource) {
				source["FiatTokenV2_2"].LinkReferences = nil
			},
			wantCode: ErrCodeUnresolvedLink,
		},
		{
			name: "library without provider",
			setup: func(_ *fakeChain, source artifacts.MemorySource) {
				source["FiatTokenV2_2"].LinkReferences["Unknown"] = []linker.LinkReference{{Start: 2, Length: 20}}
			},
			wantCode: ErrCodeConfig,
		},
		{
			name: "missing artifact",
			setup: func(_ *fakeChain, source artifacts.MemorySource) {
				delete(source, "MasterMinter")
			},
			wantCode: ErrCodeArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			source := testArtifacts()
			tt.setup(chain, source)

			p := NewProvisioner(source, chain, zerolog.Nop(), nil)
			plan, err := BuildPlan(testSettings())
			if err != nil {
				t.Fatalf("BuildPlan() error = %v", err)
			}

			_, _, err = p.Provision(context.Background(), plan, testSettings())
			if err == nil {
				t.Fatal("Provision() expected error")
			}
			if !HasCode(err, tt.wantCode) {
				t.Errorf("Provision() error code = %q, want %q (err: %v)", CodeOf(err), tt.wantCode, err)
			}
			if !IsPermanent(err) {
				t.Errorf("Provision() error should be permanent: %v", err)
			}
		})
	}
}

func TestProvisionerUnresolvedReference(t *testing.T) {
	chain := newFakeChain()
	p := NewProvisioner(testArtifacts(), chain, zerolog.Nop(), nil)

	plan := &Plan{Resources: []ResourceSpec{
		{ID: ResourceTokenProxy, Artifact: "FiatTokenProxy", Contract: evm.FiatTokenProxy, Args: []Arg{Ref(ResourceTokenImpl)}},
	}}

	_, _, err := p.Provision(context.Background(), plan, testSettings())
	if !HasCode(err, ErrCodeConfig) {
		t.Fatalf("Provision() error = %v, want %s", err, ErrCodeConfig)
	}
	if len(chain.deployed) != 0 {
		t.Errorf("deployed %d resources before failing", len(chain.deployed))
	}
}

func TestProvisionerBridgeProxy(t *testing.T) {
	chain := newFakeChain()
	p := NewProvisioner(testArtifacts(), chain, zerolog.Nop(), nil)

	settings := testSettings()
	settings.DeployBridgeProxy = true
	plan, err := BuildPlan(settings)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}

	record, _, err := p.Provision(context.Background(), plan, settings)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(record) != 6 {
		t.Fatalf("record has %d entries, want 6", len(record))
	}

	bridgeProxy := chain.contracts[record[ResourceBridgeProxy]]
	if bridgeProxy.admin != testProxyAdmin {
		t.Errorf("bridge proxy admin = %s, want %s", bridgeProxy.admin.Hex(), testProxyAdmin.Hex())
	}
	if got := common.BytesToAddress(bridgeProxy.args[:32]); got != record[ResourceBridgeImpl] {
		t.Errorf("bridge proxy logic = %s, want %s", got.Hex(), record[ResourceBridgeImpl].Hex())
	}
}

func TestProvisionerSkipsAdminHandOverForDeployerAdmin(t *testing.T) {
	chain := newFakeChain()
	p := NewProvisioner(testArtifacts(), chain, zerolog.Nop(), nil)

	settings := testSettings()
	settings.ProxyAdmin = testDeployer
	plan, err := BuildPlan(settings)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if _, _, err := p.Provision(context.Background(), plan, settings); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(chain.sent) != 0 {
		t.Errorf("sent %v, want no calls", chain.methods())
	}
}
