// Package evm holds the contract interfaces the provisioner talks to and the
// ABI encoding of every constructor and call it issues.
package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract couples a contract name with its parsed ABI.
type Contract struct {
	Name string
	ABI  abi.ABI
}

const fiatTokenJSON = `[
	{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
		{"name":"tokenName","type":"string"},
		{"name":"tokenSymbol","type":"string"},
		{"name":"tokenCurrency","type":"string"},
		{"name":"tokenDecimals","type":"uint8"},
		{"name":"newMasterMinter","type":"address"},
		{"name":"newPauser","type":"address"},
		{"name":"newBlacklister","type":"address"},
		{"name":"newOwner","type":"address"}],"outputs":[]},
	{"type":"function","name":"initializeV2","stateMutability":"nonpayable","inputs":[
		{"name":"newName","type":"string"}],"outputs":[]},
	{"type":"function","name":"initializeV2_1","stateMutability":"nonpayable","inputs":[
		{"name":"lostAndFound","type":"address"}],"outputs":[]},
	{"type":"function","name":"initializeV2_2","stateMutability":"nonpayable","inputs":[
		{"name":"accountsToBlacklist","type":"address[]"},
		{"name":"newSymbol","type":"string"}],"outputs":[]},
	{"type":"function","name":"masterMinter","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"address"}]}
]`

const fiatTokenProxyJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"implementationContract","type":"address"}]},
	{"type":"function","name":"admin","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"address"}]},
	{"type":"function","name":"changeAdmin","stateMutability":"nonpayable","inputs":[
		{"name":"newAdmin","type":"address"}],"outputs":[]}
]`

const masterMinterJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"_minterManager","type":"address"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"address"}]},
	{"type":"function","name":"configureController","stateMutability":"nonpayable","inputs":[
		{"name":"_controller","type":"address"},
		{"name":"_worker","type":"address"}],"outputs":[]},
	{"type":"function","name":"configureMinter","stateMutability":"nonpayable","inputs":[
		{"name":"_newAllowance","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"removeController","stateMutability":"nonpayable","inputs":[
		{"name":"_controller","type":"address"}],"outputs":[]},
	{"type":"function","name":"transferOwnership","stateMutability":"nonpayable","inputs":[
		{"name":"newOwner","type":"address"}],"outputs":[]}
]`

const l2BridgeJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"l1Token","type":"address"},
		{"name":"l2Token","type":"address"},
		{"name":"l1Bridge","type":"address"}]},
	{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
		{"name":"owner","type":"address"}],"outputs":[]}
]`

const transparentProxyJSON = `[
	{"type":"constructor","stateMutability":"payable","inputs":[
		{"name":"_logic","type":"address"},
		{"name":"admin_","type":"address"},
		{"name":"_data","type":"bytes"}]},
	{"type":"function","name":"admin","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"address"}]},
	{"type":"function","name":"changeAdmin","stateMutability":"nonpayable","inputs":[
		{"name":"newAdmin","type":"address"}],"outputs":[]}
]`

// Contracts deployed or called during provisioning.
var (
	SignatureChecker = &Contract{Name: "SignatureChecker", ABI: abi.ABI{}}
	FiatToken        = mustContract("FiatTokenV2_2", fiatTokenJSON)
	FiatTokenProxy   = mustContract("FiatTokenProxy", fiatTokenProxyJSON)
	MasterMinter     = mustContract("MasterMinter", masterMinterJSON)
	L2Bridge         = mustContract("L2Bridge", l2BridgeJSON)
	TransparentProxy = mustContract("TransparentUpgradeableProxy", transparentProxyJSON)
)

func mustContract(name, raw string) *Contract {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("evm: invalid ABI for %s: %v", name, err))
	}
	return &Contract{Name: name, ABI: parsed}
}

// Pack encodes a call to method with args.
func (c *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s.%s: %w", c.Name, method, err)
	}
	return data, nil
}

// Constructor encodes constructor arguments. A contract without a
// constructor accepts no arguments and encodes to nothing.
func (c *Contract) Constructor(args ...interface{}) ([]byte, error) {
	if len(c.ABI.Constructor.Inputs) == 0 {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s has no constructor arguments, got %d", c.Name, len(args))
		}
		return nil, nil
	}
	data, err := c.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s constructor: %w", c.Name, err)
	}
	return data, nil
}

// UnpackAddress decodes the single address returned by method.
func (c *Contract) UnpackAddress(method string, ret []byte) (common.Address, error) {
	values, err := c.ABI.Unpack(method, ret)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode %s.%s: %w", c.Name, method, err)
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("%s.%s returned %d values", c.Name, method, len(values))
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s.%s returned %T, want address", c.Name, method, values[0])
	}
	return addr, nil
}
