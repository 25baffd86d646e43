/*

This file contains the deployment descriptor: the JSON document listing every
registered asset, the prime basket, backup configurations, and the deployed
facade addresses the keeper encodes actions against. Component construction
from a parsed deployment happens in cmd/rvm.

*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Collateral kinds accepted in a deployment file.
const (
	KindAsset           = "asset"
	KindFiat            = "fiat"
	KindAppreciating    = "appreciating"
	KindNonFiat         = "nonfiat"
	KindSelfReferential = "selfreferential"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDeployment = errors.New("deployment file is invalid")
)

// DeploymentERC20 identifies one token.
type DeploymentERC20 struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// DeploymentAsset describes one registered asset or collateral plugin.
type DeploymentAsset struct {
	ERC20      DeploymentERC20 `json:"erc20"`
	Kind       string          `json:"kind"`
	TargetName string          `json:"target_name,omitempty"`

	// Oracle wiring. Feeds are Chainlink aggregator addresses.
	PriceFeed           string `json:"price_feed,omitempty"`
	UoAFeed             string `json:"uoa_feed,omitempty"`
	OracleError         string `json:"oracle_error,omitempty"`
	FeedTimeoutSeconds  uint64 `json:"feed_timeout_seconds,omitempty"`
	PriceTimeoutSeconds uint64 `json:"price_timeout_seconds,omitempty"`

	// Default detection.
	DefaultThreshold         string `json:"default_threshold,omitempty"`
	DelayUntilDefaultSeconds uint64 `json:"delay_until_default_seconds,omitempty"`
	RevenueHiding            string `json:"revenue_hiding,omitempty"`

	// Exchange rate source for appreciating collateral.
	RateContract  string `json:"rate_contract,omitempty"`
	RateSignature string `json:"rate_signature,omitempty"`
	RateDecimals  uint8  `json:"rate_decimals,omitempty"`

	MaxTradeVolume string `json:"max_trade_volume,omitempty"`
}

// DeploymentBasketMember is one prime basket entry.
type DeploymentBasketMember struct {
	ERC20        string `json:"erc20"`
	TargetAmount string `json:"target_amount"`
}

// DeploymentBackup is one per-target backup configuration.
type DeploymentBackup struct {
	Target          string   `json:"target"`
	DiversityFactor uint     `json:"diversity_factor"`
	Candidates      []string `json:"candidates"`
}

// DeploymentAddresses are the deployed facade targets.
type DeploymentAddresses struct {
	AssetRegistry  string `json:"asset_registry"`
	BasketHandler  string `json:"basket_handler"`
	BackingManager string `json:"backing_manager"`
	RSRTrader      string `json:"rsr_trader"`
	RTokenTrader   string `json:"rtoken_trader"`
	BackingHolder  string `json:"backing_holder"`
}

// Deployment is the full deployment descriptor.
type Deployment struct {
	RToken      DeploymentERC20          `json:"rtoken"`
	RSR         DeploymentERC20          `json:"rsr"`
	Assets      []DeploymentAsset        `json:"assets"`
	PrimeBasket []DeploymentBasketMember `json:"prime_basket"`
	Backups     []DeploymentBackup       `json:"backups"`
	Addresses   DeploymentAddresses      `json:"addresses"`
}

// LoadDeployment reads and validates a deployment file.
func LoadDeployment(path string) (*Deployment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment file %s: %w", path, err)
	}

	var dep Deployment
	if err := json.Unmarshal(raw, &dep); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDeployment, path, err)
	}
	if err := dep.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDeployment, path, err)
	}

	log.Info().
		Str("file", path).
		Int("assets", len(dep.Assets)).
		Int("primeBasket", len(dep.PrimeBasket)).
		Int("backups", len(dep.Backups)).
		Msg("Deployment loaded")
	return &dep, nil
}

// Validate checks structural requirements without touching the chain.
func (d *Deployment) Validate() error {
	if err := validateERC20(d.RToken, "rtoken"); err != nil {
		return err
	}
	if err := validateERC20(d.RSR, "rsr"); err != nil {
		return err
	}
	if len(d.Assets) == 0 {
		return errors.New("at least one asset is required")
	}
	if len(d.PrimeBasket) == 0 {
		return errors.New("prime basket cannot be empty")
	}

	known := map[string]string{}
	for i, asset := range d.Assets {
		if err := validateERC20(asset.ERC20, fmt.Sprintf("assets[%d]", i)); err != nil {
			return err
		}
		switch asset.Kind {
		case KindAsset, KindFiat, KindAppreciating, KindNonFiat, KindSelfReferential:
		default:
			return fmt.Errorf("assets[%d] (%s): unknown kind %q", i, asset.ERC20.Symbol, asset.Kind)
		}
		if asset.Kind != KindAsset && asset.TargetName == "" {
			return fmt.Errorf("assets[%d] (%s): collateral requires a target name", i, asset.ERC20.Symbol)
		}
		if asset.Kind == KindAppreciating && asset.RateContract == "" {
			return fmt.Errorf("assets[%d] (%s): appreciating collateral requires a rate contract", i, asset.ERC20.Symbol)
		}
		key := common.HexToAddress(asset.ERC20.Address).Hex()
		if prev, dup := known[key]; dup {
			return fmt.Errorf("assets[%d] (%s): duplicate of %s", i, asset.ERC20.Symbol, prev)
		}
		known[key] = asset.ERC20.Symbol
	}

	for i, member := range d.PrimeBasket {
		if !common.IsHexAddress(member.ERC20) {
			return fmt.Errorf("prime_basket[%d]: %q is not an address", i, member.ERC20)
		}
		if _, ok := known[common.HexToAddress(member.ERC20).Hex()]; !ok {
			return fmt.Errorf("prime_basket[%d]: %s is not in the asset list", i, member.ERC20)
		}
	}
	for i, backup := range d.Backups {
		if backup.Target == "" {
			return fmt.Errorf("backups[%d]: target is required", i)
		}
		if len(backup.Candidates) == 0 {
			return fmt.Errorf("backups[%d] (%s): at least one candidate is required", i, backup.Target)
		}
		for _, candidate := range backup.Candidates {
			if _, ok := known[common.HexToAddress(candidate).Hex()]; !ok {
				return fmt.Errorf("backups[%d] (%s): candidate %s is not in the asset list", i, backup.Target, candidate)
			}
		}
	}
	return nil
}

func validateERC20(erc20 DeploymentERC20, field string) error {
	if !common.IsHexAddress(erc20.Address) {
		return fmt.Errorf("%s: %q is not an address", field, erc20.Address)
	}
	if erc20.Symbol == "" {
		return fmt.Errorf("%s: symbol is required", field)
	}
	return nil
}
