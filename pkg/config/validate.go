package config

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/tokenbridge/pkg/engine"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("eth_addr", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
		})
	})
	return validate
}

// Validate checks the deployment's struct constraints. The first failing
// field is reported as a config error with a "field" detail in file notation,
// e.g. "token.symbol".
func Validate(d *Deployment) error {
	err := structValidator().Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return engine.NewConfigError("invalid deployment config", err)
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	return engine.NewConfigError(fmt.Sprintf("%s: %s", field, describe(fe)), err).
		WithDetail("field", field)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "eth_addr":
		return fmt.Sprintf("%q is not a 0x-prefixed address", fe.Value())
	case "numeric":
		return "must be a base-10 integer"
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Settings converts a validated deployment into engine settings. Pauser,
// blacklister and owner default to governance.
func (d *Deployment) Settings() (engine.Settings, error) {
	governance := common.HexToAddress(d.Governance)

	s := engine.Settings{
		Network:       d.Network,
		Deployer:      common.HexToAddress(d.Deployer),
		Governance:    governance,
		ProxyAdmin:    common.HexToAddress(d.ProxyAdmin),
		L1Token:       common.HexToAddress(d.L1Token),
		L1BridgeProxy: common.HexToAddress(d.L1BridgeProxy),
		Token: engine.TokenParams{
			Name:         d.Token.Name,
			Symbol:       d.Token.Symbol,
			Currency:     d.Token.Currency,
			Pauser:       addressOr(d.Roles.Pauser, governance),
			Blacklister:  addressOr(d.Roles.Blacklister, governance),
			Owner:        addressOr(d.Roles.Owner, governance),
			LostAndFound: addressOr(d.Roles.LostAndFound, common.Address{}),
		},
		DeployBridgeProxy: d.DeployBridgeProxy,
	}
	if d.Token.Decimals != nil {
		s.Token.Decimals = *d.Token.Decimals
	}

	for _, a := range d.BlacklistMigration {
		s.Token.Blacklist = append(s.Token.Blacklist, common.HexToAddress(a))
	}

	if d.MinterAllowance != "" {
		allowance, ok := new(big.Int).SetString(d.MinterAllowance, 10)
		if !ok {
			return engine.Settings{}, engine.NewConfigError(
				fmt.Sprintf("minter_allowance %q is not a base-10 integer", d.MinterAllowance), nil).
				WithDetail("field", "minter_allowance")
		}
		s.MinterAllowance = allowance
	}

	if len(d.Overrides) > 0 {
		s.Overrides = make(map[string]common.Address, len(d.Overrides))
		for id, addr := range d.Overrides {
			s.Overrides[id] = common.HexToAddress(addr)
		}
	}

	return s, nil
}

func addressOr(s string, fallback common.Address) common.Address {
	if s == "" {
		return fallback
	}
	return common.HexToAddress(s)
}
