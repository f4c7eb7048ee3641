// Package rpc provides the JSON-RPC transport the provisioning engine sends
// through. Transactions are signed by the node (eth_sendTransaction) from a
// node-managed account; no key material passes through this package.
package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/openfroyo/tokenbridge/pkg/engine"
)

// Client is a JSON-RPC ledger transport.
type Client struct {
	rpc    *gethrpc.Client
	eth    *ethclient.Client
	config *Config
	logger zerolog.Logger
}

var (
	_ engine.Ledger        = (*Client)(nil)
	_ engine.StaticCaller  = (*Client)(nil)
	_ engine.AccountLister = (*Client)(nil)
)

// Dial connects to the node at config.URL. When config.ChainID is set the
// node's chain ID must match it.
func Dial(ctx context.Context, config *Config, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rpc config: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	rc, err := gethrpc.DialContext(dialCtx, config.URL)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err, IsTemporary: true}
	}

	c := NewClient(rc, config, logger)
	if config.ChainID != 0 {
		chainID, err := c.eth.ChainID(dialCtx)
		if err != nil {
			c.Close()
			return nil, &TransportError{Op: "chain-id", Err: err, IsTemporary: true}
		}
		if chainID.Cmp(new(big.Int).SetUint64(config.ChainID)) != 0 {
			c.Close()
			return nil, fmt.Errorf("node reports chain %s, expected %d", chainID, config.ChainID)
		}
	}

	c.logger.Info().Str("url", config.URL).Str("from", config.From.Hex()).Msg("Connected to node")
	return c, nil
}

// NewClient wraps an established RPC client.
func NewClient(rc *gethrpc.Client, config *Config, logger zerolog.Logger) *Client {
	return &Client{
		rpc:    rc,
		eth:    ethclient.NewClient(rc),
		config: config,
		logger: logger.With().Str("component", "rpc").Logger(),
	}
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Deploy sends a creation transaction with code as its data and returns the
// created address. A mined but failed creation returns the zero address.
func (c *Client) Deploy(ctx context.Context, code []byte) (common.Address, error) {
	ok, receipt, err := c.transact(ctx, "deploy", nil, code)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, nil
	}

	c.logger.Debug().
		Str("tx", receipt.TxHash.Hex()).
		Str("address", receipt.ContractAddress.Hex()).
		Uint64("gas_used", receipt.GasUsed).
		Msg("Creation mined")
	return receipt.ContractAddress, nil
}

// Send sends a transaction to `to`. ok is false when the node refused the
// call as a revert or the mined transaction failed.
func (c *Client) Send(ctx context.Context, to common.Address, payload []byte) (bool, []byte, error) {
	ok, _, err := c.transact(ctx, "send", &to, payload)
	if err != nil {
		return false, nil, err
	}
	return ok, nil, nil
}

// StaticCall executes payload against `to` at the latest block.
func (c *Client) StaticCall(ctx context.Context, to common.Address, payload []byte) (bool, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	ret, err := c.eth.CallContract(callCtx, ethereum.CallMsg{
		From: c.config.From,
		To:   &to,
		Data: payload,
	}, nil)
	if err != nil {
		if data, reverted := asRevert(err); reverted {
			c.logger.Debug().Str("to", to.Hex()).Err(err).Msg("Static call reverted")
			return false, data, nil
		}
		return false, nil, &TransportError{Op: "call", Err: err, IsTemporary: true}
	}
	return true, ret, nil
}

// Accounts lists the accounts the node can send from.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	var accounts []common.Address
	if err := c.rpc.CallContext(callCtx, &accounts, "eth_accounts"); err != nil {
		return nil, &TransportError{Op: "accounts", Err: err, IsTemporary: true}
	}
	return accounts, nil
}

// txArgs is the eth_sendTransaction parameter object.
type txArgs struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to,omitempty"`
	Gas  *hexutil.Uint64 `json:"gas,omitempty"`
	Data hexutil.Bytes   `json:"data"`
}

func (c *Client) transact(ctx context.Context, op string, to *common.Address, data []byte) (bool, *types.Receipt, error) {
	args := txArgs{From: c.config.From, To: to, Data: data}
	if c.config.GasLimit != 0 {
		gas := hexutil.Uint64(c.config.GasLimit)
		args.Gas = &gas
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	var hash common.Hash
	err := c.rpc.CallContext(callCtx, &hash, "eth_sendTransaction", args)
	cancel()
	if err != nil {
		if _, reverted := asRevert(err); reverted {
			c.logger.Debug().Str("op", op).Err(err).Msg("Transaction refused as revert")
			return false, nil, nil
		}
		return false, nil, &TransportError{Op: op, Err: err, IsTemporary: true}
	}

	receipt, err := c.waitReceipt(ctx, hash)
	if err != nil {
		return false, nil, &TransportError{Op: op, Err: err, IsTemporary: true}
	}

	ok := receipt.Status == types.ReceiptStatusSuccessful
	if !ok {
		c.logger.Debug().Str("op", op).Str("tx", hash.Hex()).Msg("Transaction mined with failed status")
	}
	return ok, receipt, nil
}

// waitReceipt waits for the receipt of hash until it is mined or the
// receipt timeout elapses.
func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, c.eth, hash)
	if err != nil {
		return nil, fmt.Errorf("receipt for %s not available: %w", hash.Hex(), err)
	}
	return receipt, nil
}
