package rpc

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds JSON-RPC connection configuration.
type Config struct {
	// URL is the node endpoint (http, https, ws or wss)
	URL string

	// From is the node-managed account every transaction is sent from
	From common.Address

	// ChainID, when non-zero, must match the chain the node reports
	ChainID uint64

	// GasLimit is attached to every transaction. Zero lets the node estimate.
	GasLimit uint64

	// DialTimeout bounds the initial connection and chain ID check
	DialTimeout time.Duration

	// CallTimeout bounds a single request
	CallTimeout time.Duration

	// ReceiptTimeout bounds the wait for a transaction to be mined
	ReceiptTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(endpoint string, from common.Address) *Config {
	return &Config{
		URL:            endpoint,
		From:           from,
		DialTimeout:    15 * time.Second,
		CallTimeout:    30 * time.Second,
		ReceiptTimeout: 5 * time.Minute,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	if c.From == (common.Address{}) {
		return fmt.Errorf("from account is required")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	if c.ReceiptTimeout <= 0 {
		return fmt.Errorf("receipt timeout must be positive")
	}

	return nil
}
