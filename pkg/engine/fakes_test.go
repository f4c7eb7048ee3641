package engine

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openfroyo/tokenbridge/pkg/artifacts"
	"github.com/openfroyo/tokenbridge/pkg/evm"
	"github.com/openfroyo/tokenbridge/pkg/linker"
)

// Contract kinds, taken from the first byte of the fake object code.
const (
	kindLibrary      byte = 0x01
	kindToken        byte = 0x02
	kindTokenProxy   byte = 0x03
	kindMasterMinter byte = 0x04
	kindBridge       byte = 0x05
	kindBridgeProxy  byte = 0x06
)

var (
	testDeployer   = common.HexToAddress("0xD000000000000000000000000000000000000001")
	testGovernance = common.HexToAddress("0x6000000000000000000000000000000000000002")
	testProxyAdmin = common.HexToAddress("0xAD00000000000000000000000000000000000003")
	testL1Token    = common.HexToAddress("0x1100000000000000000000000000000000000004")
	testL1Bridge   = common.HexToAddress("0x1B00000000000000000000000000000000000005")
)

func testSettings() Settings {
	return Settings{
		Network:       "testnet",
		Deployer:      testDeployer,
		Governance:    testGovernance,
		ProxyAdmin:    testProxyAdmin,
		L1Token:       testL1Token,
		L1BridgeProxy: testL1Bridge,
		Token: TokenParams{
			Name:         "Bridged USDC",
			Symbol:       "USDC.e",
			Currency:     "USD",
			Decimals:     6,
			Pauser:       testGovernance,
			Blacklister:  testGovernance,
			Owner:        testGovernance,
			LostAndFound: testGovernance,
		},
		MinterAllowance: big.NewInt(1_000_000),
	}
}

// tokenPlaceholder is a 20-byte library placeholder window.
var tokenPlaceholder = "__$" + strings.Repeat("ab", 17) + "$__"

func testArtifacts() artifacts.MemorySource {
	return artifacts.MemorySource{
		"SignatureChecker": {Name: "SignatureChecker", Bytecode: "0x01"},
		"FiatTokenV2_2": {
			Name:     "FiatTokenV2_2",
			Bytecode: "0x0273" + tokenPlaceholder + "5f",
			LinkReferences: map[string][]linker.LinkReference{
				"SignatureChecker": {{Start: 2, Length: 20}},
			},
		},
		"FiatTokenProxy":              {Name: "FiatTokenProxy", Bytecode: "0x03"},
		"MasterMinter":                {Name: "MasterMinter", Bytecode: "0x04"},
		"L2Bridge":                    {Name: "L2Bridge", Bytecode: "0x05"},
		"TransparentUpgradeableProxy": {Name: "TransparentUpgradeableProxy", Bytecode: "0x06"},
	}
}

// countingSource records every lookup.
type countingSource struct {
	inner   ArtifactSource
	lookups []string
}

func (s *countingSource) Lookup(ctx context.Context, name string) (*artifacts.Artifact, error) {
	s.lookups = append(s.lookups, name)
	return s.inner.Lookup(ctx, name)
}

type fakeContract struct {
	kind         byte
	args         []byte
	admin        common.Address
	masterMinter common.Address
	owner        common.Address
	applied      map[string]bool
	controllers  map[common.Address]common.Address
	allowance    *big.Int
}

type sentCall struct {
	To     common.Address
	Method string
}

// fakeChain is an in-memory ledger that mimics the access rules of the
// token proxy, the minter controller and the bridge proxy. Every call is
// sent from the deployer.
type fakeChain struct {
	mu        sync.Mutex
	deployer  common.Address
	nextAddr  int64
	contracts map[common.Address]*fakeContract
	deployed  []common.Address
	sent      []sentCall

	deployErr  error
	zeroDeploy bool
	reject     map[string]bool
	sendErr    map[string]error
	callErr    map[string]error
	revertCall map[string]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		deployer:   testDeployer,
		contracts:  make(map[common.Address]*fakeContract),
		reject:     make(map[string]bool),
		sendErr:    make(map[string]error),
		callErr:    make(map[string]error),
		revertCall: make(map[string]bool),
	}
}

var fakeABIs = []*evm.Contract{evm.FiatToken, evm.FiatTokenProxy, evm.MasterMinter, evm.L2Bridge}

func lookupMethod(payload []byte) (*abi.Method, error) {
	if len(payload) < 4 {
		return nil, errors.New("payload too short")
	}
	for _, c := range fakeABIs {
		if m, err := c.ABI.MethodById(payload[:4]); err == nil {
			return m, nil
		}
	}
	return nil, errors.New("unknown selector")
}

func (c *fakeChain) install(kind byte) (common.Address, *fakeContract) {
	c.nextAddr++
	addr := common.BigToAddress(big.NewInt(0x1000 + c.nextAddr))
	fc := &fakeContract{
		kind:        kind,
		applied:     make(map[string]bool),
		controllers: make(map[common.Address]common.Address),
	}
	c.contracts[addr] = fc
	return addr, fc
}

func (c *fakeChain) Deploy(_ context.Context, code []byte) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deployErr != nil {
		return common.Address{}, c.deployErr
	}
	if c.zeroDeploy {
		return common.Address{}, nil
	}
	if len(code) == 0 {
		return common.Address{}, errors.New("empty init code")
	}

	addr, fc := c.install(code[0])
	fc.args = append([]byte(nil), code[1:]...)
	switch fc.kind {
	case kindTokenProxy:
		fc.admin = c.deployer
	case kindMasterMinter:
		fc.owner = c.deployer
	case kindBridgeProxy:
		fc.admin = common.BytesToAddress(fc.args[32:64])
	}
	c.deployed = append(c.deployed, addr)
	return addr, nil
}

func (c *fakeChain) Send(_ context.Context, to common.Address, payload []byte) (bool, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := lookupMethod(payload)
	if err != nil {
		return false, nil, err
	}
	c.sent = append(c.sent, sentCall{To: to, Method: m.Name})

	if err := c.sendErr[m.Name]; err != nil {
		return false, nil, err
	}
	if c.reject[m.Name] {
		return false, nil, nil
	}
	fc, ok := c.contracts[to]
	if !ok {
		return false, nil, nil
	}
	args, err := m.Inputs.Unpack(payload[4:])
	if err != nil {
		return false, nil, err
	}

	switch fc.kind {
	case kindTokenProxy:
		return c.sendTokenProxy(fc, m.Name, args), nil, nil
	case kindMasterMinter:
		return c.sendMasterMinter(fc, m.Name, args), nil, nil
	case kindBridgeProxy:
		if m.Name == "changeAdmin" && fc.admin == c.deployer {
			fc.admin = args[0].(common.Address)
			return true, nil, nil
		}
	}
	return false, nil, nil
}

func (c *fakeChain) sendTokenProxy(fc *fakeContract, method string, args []interface{}) bool {
	if method == "changeAdmin" {
		if fc.admin != c.deployer {
			return false
		}
		fc.admin = args[0].(common.Address)
		return true
	}
	// The admin cannot reach the implementation.
	if fc.admin == c.deployer {
		return false
	}

	prev := map[string]string{
		"initializeV2":   "initialize",
		"initializeV2_1": "initializeV2",
		"initializeV2_2": "initializeV2_1",
	}
	switch method {
	case "initialize":
		if fc.masterMinter != (common.Address{}) {
			return false
		}
		fc.masterMinter = args[4].(common.Address)
	case "initializeV2", "initializeV2_1", "initializeV2_2":
		if !fc.applied[prev[method]] || fc.applied[method] {
			return false
		}
	default:
		return false
	}
	fc.applied[method] = true
	return true
}

func (c *fakeChain) sendMasterMinter(fc *fakeContract, method string, args []interface{}) bool {
	switch method {
	case "configureController":
		if fc.owner != c.deployer {
			return false
		}
		fc.controllers[args[0].(common.Address)] = args[1].(common.Address)
	case "configureMinter":
		if _, ok := fc.controllers[c.deployer]; !ok {
			return false
		}
		fc.allowance = args[0].(*big.Int)
	case "removeController":
		if fc.owner != c.deployer {
			return false
		}
		if _, ok := fc.controllers[args[0].(common.Address)]; !ok {
			return false
		}
		delete(fc.controllers, args[0].(common.Address))
	case "transferOwnership":
		if fc.owner != c.deployer {
			return false
		}
		fc.owner = args[0].(common.Address)
	default:
		return false
	}
	return true
}

func (c *fakeChain) StaticCall(_ context.Context, to common.Address, payload []byte) (bool, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := lookupMethod(payload)
	if err != nil {
		return false, nil, err
	}
	if err := c.callErr[m.Name]; err != nil {
		return false, nil, err
	}
	if c.revertCall[m.Name] {
		return false, nil, nil
	}
	fc, ok := c.contracts[to]
	if !ok {
		// No code at the address: the call succeeds with no data.
		return true, nil, nil
	}

	var value common.Address
	switch {
	case fc.kind == kindTokenProxy && m.Name == "admin":
		if fc.admin != c.deployer {
			return false, nil, nil
		}
		value = fc.admin
	case fc.kind == kindTokenProxy && m.Name == "masterMinter":
		if fc.admin == c.deployer {
			return false, nil, nil
		}
		value = fc.masterMinter
	case fc.kind == kindMasterMinter && m.Name == "owner":
		value = fc.owner
	case fc.kind == kindBridgeProxy && m.Name == "admin":
		if fc.admin != c.deployer {
			return false, nil, nil
		}
		value = fc.admin
	default:
		return false, nil, nil
	}

	ret, err := m.Outputs.Pack(value)
	if err != nil {
		return false, nil, err
	}
	return true, ret, nil
}

func (c *fakeChain) Accounts(_ context.Context) ([]common.Address, error) {
	return []common.Address{c.deployer}, nil
}

func (c *fakeChain) methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, s := range c.sent {
		out[i] = s.Method
	}
	return out
}

func (c *fakeChain) resetSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.deployed = nil
}

// memoryStore implements the persistence interfaces in memory.
type memoryStore struct {
	records map[string]map[string]common.Address
	phases  map[string]bool
	cursors map[string]int
	runs    map[string]string
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: make(map[string]map[string]common.Address),
		phases:  make(map[string]bool),
		cursors: make(map[string]int),
		runs:    make(map[string]string),
	}
}

func (s *memoryStore) LoadRecord(_ context.Context, network string) (map[string]common.Address, error) {
	out := make(map[string]common.Address)
	for k, v := range s.records[network] {
		out[k] = v
	}
	return out, nil
}

func (s *memoryStore) SaveRecord(_ context.Context, network string, record map[string]common.Address) error {
	s.saves++
	s.records[network] = make(map[string]common.Address)
	for k, v := range record {
		s.records[network][k] = v
	}
	return nil
}

func phaseKey(network string, resource common.Address, phase string) string {
	return network + "/" + resource.Hex() + "/" + phase
}

func (s *memoryStore) PhaseApplied(_ context.Context, network string, resource common.Address, phase string) (bool, error) {
	return s.phases[phaseKey(network, resource, phase)], nil
}

func (s *memoryStore) MarkPhaseApplied(_ context.Context, network string, resource common.Address, phase string) error {
	s.phases[phaseKey(network, resource, phase)] = true
	return nil
}

func (s *memoryStore) LoadCursor(_ context.Context, network string, controller common.Address) (int, error) {
	return s.cursors[network+"/"+controller.Hex()], nil
}

func (s *memoryStore) SaveCursor(_ context.Context, network string, controller common.Address, next int) error {
	s.cursors[network+"/"+controller.Hex()] = next
	return nil
}

func (s *memoryStore) ClearCursor(_ context.Context, network string, controller common.Address) error {
	delete(s.cursors, network+"/"+controller.Hex())
	return nil
}

func (s *memoryStore) StartRun(_ context.Context, runID, _ string, _ time.Time) error {
	s.runs[runID] = string(RunStatusRunning)
	return nil
}

func (s *memoryStore) FinishRun(_ context.Context, runID, status, _ string, _ time.Time) error {
	s.runs[runID] = status
	return nil
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	events []*Event
}

func (p *recordingPublisher) Publish(_ context.Context, event *Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []EventType {
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
