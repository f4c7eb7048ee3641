package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/openfroyo/tokenbridge/pkg/engine"
)

// EnvPrefix prefixes every environment variable the overlay reads.
const EnvPrefix = "TOKENBRIDGE_"

type envBinding struct {
	key string
	set func(d *Deployment, v string) error
}

func str(field func(d *Deployment) *string) func(*Deployment, string) error {
	return func(d *Deployment, v string) error {
		*field(d) = v
		return nil
	}
}

var envBindings = []envBinding{
	{"NETWORK", str(func(d *Deployment) *string { return &d.Network })},
	{"RPC_URL", str(func(d *Deployment) *string { return &d.RPCURL })},
	{"DEPLOYER", str(func(d *Deployment) *string { return &d.Deployer })},
	{"GOVERNANCE", str(func(d *Deployment) *string { return &d.Governance })},
	{"PROXY_ADMIN", str(func(d *Deployment) *string { return &d.ProxyAdmin })},
	{"L1_TOKEN", str(func(d *Deployment) *string { return &d.L1Token })},
	{"L1_BRIDGE_PROXY", str(func(d *Deployment) *string { return &d.L1BridgeProxy })},
	{"TOKEN_NAME", str(func(d *Deployment) *string { return &d.Token.Name })},
	{"TOKEN_SYMBOL", str(func(d *Deployment) *string { return &d.Token.Symbol })},
	{"TOKEN_CURRENCY", str(func(d *Deployment) *string { return &d.Token.Currency })},
	{"TOKEN_DECIMALS", func(d *Deployment, v string) error {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return err
		}
		dec := uint8(n)
		d.Token.Decimals = &dec
		return nil
	}},
	{"MINTER_ALLOWANCE", str(func(d *Deployment) *string { return &d.MinterAllowance })},
	{"DEPLOY_BRIDGE_PROXY", func(d *Deployment, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		d.DeployBridgeProxy = b
		return nil
	}},
	{"ARTIFACTS_DIR", str(func(d *Deployment) *string { return &d.Artifacts.Dir })},
	{"DB_PATH", str(func(d *Deployment) *string { return &d.Store.Path })},
}

// ApplyEnv loads envFile into the process environment when it exists, then
// overlays every TOKENBRIDGE_* variable onto d. Variables already set in the
// environment win over the file.
func ApplyEnv(d *Deployment, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	for _, b := range envBindings {
		v, ok := os.LookupEnv(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.set(d, strings.TrimSpace(v)); err != nil {
			return engine.NewConfigError(fmt.Sprintf("invalid %s%s", EnvPrefix, b.key), err).
				WithDetail("field", strings.ToLower(b.key))
		}
	}
	return nil
}
