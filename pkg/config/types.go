package config

import "fmt"

// Deployment is the operator-supplied description of one network's rollout.
// The same shape is read from YAML and CUE files.
type Deployment struct {
	// Network keys the persisted record, e.g. "base-sepolia".
	Network string `yaml:"network" json:"network" validate:"required"`

	// RPCURL is the JSON-RPC endpoint of the ledger.
	RPCURL string `yaml:"rpc_url,omitempty" json:"rpc_url,omitempty" validate:"omitempty,url"`

	// Deployer is the managed account every call is sent from.
	Deployer string `yaml:"deployer" json:"deployer" validate:"required,eth_addr"`

	Governance    string `yaml:"governance" json:"governance" validate:"required,eth_addr"`
	ProxyAdmin    string `yaml:"proxy_admin" json:"proxy_admin" validate:"required,eth_addr"`
	L1Token       string `yaml:"l1_token" json:"l1_token" validate:"required,eth_addr"`
	L1BridgeProxy string `yaml:"l1_bridge_proxy" json:"l1_bridge_proxy" validate:"required,eth_addr"`

	Token TokenConfig `yaml:"token" json:"token"`
	Roles RoleConfig  `yaml:"roles,omitempty" json:"roles,omitempty"`

	// BlacklistMigration lists accounts carried over by the last token phase.
	BlacklistMigration []string `yaml:"blacklist_migration,omitempty" json:"blacklist_migration,omitempty" validate:"dive,eth_addr"`

	// MinterAllowance is a base-10 integer in token base units.
	MinterAllowance string `yaml:"minter_allowance,omitempty" json:"minter_allowance,omitempty" validate:"omitempty,numeric"`

	DeployBridgeProxy bool `yaml:"deploy_bridge_proxy,omitempty" json:"deploy_bridge_proxy,omitempty"`

	// Overrides pins resources to existing addresses, keyed by resource ID.
	Overrides map[string]string `yaml:"overrides,omitempty" json:"overrides,omitempty" validate:"dive,keys,required,endkeys,eth_addr"`

	Artifacts ArtifactsConfig `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty" json:"store,omitempty"`
}

// TokenConfig holds the token metadata used by the initialization phases.
type TokenConfig struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Symbol   string `yaml:"symbol" json:"symbol" validate:"required"`
	Currency string `yaml:"currency" json:"currency" validate:"required"`
	Decimals *uint8 `yaml:"decimals" json:"decimals" validate:"required,lte=18"`
}

// RoleConfig holds the token role accounts. Empty roles fall back to governance,
// except lost-and-found which disables its phase when empty.
type RoleConfig struct {
	Pauser       string `yaml:"pauser,omitempty" json:"pauser,omitempty" validate:"omitempty,eth_addr"`
	Blacklister  string `yaml:"blacklister,omitempty" json:"blacklister,omitempty" validate:"omitempty,eth_addr"`
	Owner        string `yaml:"owner,omitempty" json:"owner,omitempty" validate:"omitempty,eth_addr"`
	LostAndFound string `yaml:"lost_and_found,omitempty" json:"lost_and_found,omitempty" validate:"omitempty,eth_addr"`
}

// ArtifactsConfig locates compiled contract artifacts. Dir wins over the
// foundry project lookup.
type ArtifactsConfig struct {
	Dir         string `yaml:"dir,omitempty" json:"dir,omitempty"`
	ProjectRoot string `yaml:"project_root,omitempty" json:"project_root,omitempty"`
	Profile     string `yaml:"profile,omitempty" json:"profile,omitempty"`
	CacheSize   int    `yaml:"cache_size,omitempty" json:"cache_size,omitempty" validate:"gte=0"`
}

// StoreConfig locates the SQLite ledger.
type StoreConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Defaults applied by Load.
const (
	DefaultStorePath = ".tokenbridge/ledger.db"
	DefaultCacheSize = 32
)

// ValidationError describes one problem found while loading a file.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}
