/*

This file builds the protocol component graph from a deployment descriptor:
oracle feeds, collateral plugins, registry, basket, traders, backing manager,
and the keeper.

*/

package main

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rtoken-labs/rvm/internal/backing"
	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/basket"
	"github.com/rtoken-labs/rvm/internal/chain"
	"github.com/rtoken-labs/rvm/internal/collateral"
	"github.com/rtoken-labs/rvm/internal/config"
	"github.com/rtoken-labs/rvm/internal/keeper"
	"github.com/rtoken-labs/rvm/internal/oracle"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/revenue"
	"github.com/rtoken-labs/rvm/internal/rtoken"
	"github.com/rtoken-labs/rvm/internal/trading"
	"github.com/rtoken-labs/rvm/internal/types"
)

// components is the fully wired protocol graph.
type components struct {
	registry     *registry.Registry
	basket       *basket.Handler
	rtoken       *rtoken.RToken
	backing      *backing.Manager
	rsrTrader    *revenue.Trader
	rtokenTrader *revenue.Trader
	keeper       *keeper.Keeper
	executor     keeper.Executor
	venue        *trading.MemVenue
	backingAcct  *bank.Account
	addrs        keeper.Addresses
}

// buildComponents wires the whole protocol from a validated deployment.
func buildComponents(dep *config.Deployment, params *types.ProtocolParameters, caller chain.Caller) (*components, error) {
	source, err := chain.NewChainlinkSource(caller)
	if err != nil {
		return nil, err
	}

	rtokenERC20 := toERC20(dep.RToken)
	rsrERC20 := toERC20(dep.RSR)

	// The registry is anchored on the RToken and RSR assets; both must appear
	// in the deployment's asset list so their pricing is configured.
	var rtokenAsset, rsrAsset collateral.Asset
	var others []collateral.Asset
	for _, da := range dep.Assets {
		asset, err := buildAsset(da, source, caller)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", da.ERC20.Symbol, err)
		}
		switch asset.ERC20().Address {
		case rtokenERC20.Address:
			rtokenAsset = asset
		case rsrERC20.Address:
			rsrAsset = asset
		default:
			others = append(others, asset)
		}
	}
	if rtokenAsset == nil {
		return nil, fmt.Errorf("deployment asset list has no entry for RToken %s", rtokenERC20.Symbol)
	}
	if rsrAsset == nil {
		return nil, fmt.Errorf("deployment asset list has no entry for RSR %s", rsrERC20.Symbol)
	}

	reg, err := registry.New(rtokenAsset, rsrAsset)
	if err != nil {
		return nil, err
	}
	for _, asset := range others {
		if err := reg.Register(asset); err != nil {
			return nil, err
		}
	}

	handler := basket.NewHandler(reg)
	var primeERC20s []common.Address
	var primeAmts []sdkmath.LegacyDec
	for _, m := range dep.PrimeBasket {
		amt, err := sdkmath.LegacyNewDecFromStr(m.TargetAmount)
		if err != nil {
			return nil, fmt.Errorf("prime basket target amount %q: %w", m.TargetAmount, err)
		}
		primeERC20s = append(primeERC20s, common.HexToAddress(m.ERC20))
		primeAmts = append(primeAmts, amt)
	}
	if err := handler.SetPrimeBasket(primeERC20s, primeAmts); err != nil {
		return nil, err
	}
	for _, b := range dep.Backups {
		var candidates []common.Address
		for _, c := range b.Candidates {
			candidates = append(candidates, common.HexToAddress(c))
		}
		if err := handler.SetBackupConfig(types.TargetName(b.Target), b.DiversityFactor, candidates); err != nil {
			return nil, err
		}
	}

	venue := trading.NewMemVenue()
	backingAcct := bank.NewAccount("backingManager")
	rtok := rtoken.New(rtokenERC20, handler, backingAcct)

	dist, err := revenue.NewDistributor(revenue.Distribution{
		RTokenDist: params.RTokenDist,
		RSRDist:    params.RSRDist,
	})
	if err != nil {
		return nil, err
	}

	stRSRPool := bank.NewAccount("stRSR")
	rsrTrader, err := revenue.NewTrader(revenue.Config{
		Name:       "rsrTrader",
		Registry:   reg,
		Venue:      venue,
		Account:    bank.NewAccount("rsrTrader"),
		TokenToBuy: rsrERC20,
		Sink:       revenue.NewStRSRSink(stRSRPool),
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}
	rtokenTrader, err := revenue.NewTrader(revenue.Config{
		Name:       "rTokenTrader",
		Registry:   reg,
		Venue:      venue,
		Account:    bank.NewAccount("rTokenTrader"),
		TokenToBuy: rtokenERC20,
		Sink:       revenue.NewFurnaceSink(rtok),
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}

	manager, err := backing.New(backing.Config{
		Registry:     reg,
		Basket:       handler,
		Venue:        venue,
		Account:      backingAcct,
		RToken:       rtok,
		Distributor:  dist,
		RSRTrader:    rsrTrader,
		RTokenTrader: rtokenTrader,
		Parameters:   params,
	})
	if err != nil {
		return nil, err
	}

	addrs := keeper.Addresses{
		AssetRegistry:  common.HexToAddress(dep.Addresses.AssetRegistry),
		BasketHandler:  common.HexToAddress(dep.Addresses.BasketHandler),
		BackingManager: common.HexToAddress(dep.Addresses.BackingManager),
		RSRTrader:      common.HexToAddress(dep.Addresses.RSRTrader),
		RTokenTrader:   common.HexToAddress(dep.Addresses.RTokenTrader),
	}

	k, err := keeper.New(keeper.Config{
		Registry:     reg,
		Basket:       handler,
		Backing:      manager,
		RSRTrader:    rsrTrader,
		RTokenTrader: rtokenTrader,
		Addresses:    addrs,
	})
	if err != nil {
		return nil, err
	}

	var exec keeper.Executor
	if config.Mode == "chain" {
		exec, err = chain.NewCallExecutor(caller)
		if err != nil {
			return nil, err
		}
	} else {
		exec, err = keeper.NewLocalExecutor(handler, manager, rsrTrader, rtokenTrader, addrs)
		if err != nil {
			return nil, err
		}
	}

	return &components{
		registry:     reg,
		basket:       handler,
		rtoken:       rtok,
		backing:      manager,
		rsrTrader:    rsrTrader,
		rtokenTrader: rtokenTrader,
		keeper:       k,
		executor:     exec,
		venue:        venue,
		backingAcct:  backingAcct,
		addrs:        addrs,
	}, nil
}

// seedBackingFromChain snapshots the on-chain balances of the backing holder
// into the in-process backing account so the model starts from reality.
func seedBackingFromChain(ctx context.Context, dep *config.Deployment, caller chain.Caller, acct *bank.Account, reg *registry.Registry) error {
	if dep.Addresses.BackingHolder == "" {
		return nil
	}
	holder := common.HexToAddress(dep.Addresses.BackingHolder)
	ledger, err := chain.NewERC20Ledger(caller, holder, reg.ERC20s())
	if err != nil {
		return err
	}
	if err := ledger.Sync(ctx); err != nil {
		return err
	}
	for _, addr := range ledger.Tokens() {
		bal := ledger.Balance(addr)
		if !bal.IsPositive() {
			continue
		}
		if err := acct.Credit(addr, bal); err != nil {
			return err
		}
	}
	return nil
}

func toERC20(e config.DeploymentERC20) types.ERC20 {
	return types.ERC20{
		Address:  common.HexToAddress(e.Address),
		Symbol:   e.Symbol,
		Decimals: e.Decimals,
	}
}

// buildAsset constructs the plugin for one deployment asset entry.
func buildAsset(da config.DeploymentAsset, source oracle.Source, caller chain.Caller) (collateral.Asset, error) {
	cfg, err := buildCollateralConfig(da, source)
	if err != nil {
		return nil, err
	}

	switch da.Kind {
	case config.KindAsset:
		return collateral.NewSimpleAsset(cfg)
	case config.KindFiat:
		return collateral.NewFiatCollateral(cfg)
	case config.KindSelfReferential:
		return collateral.NewSelfReferentialCollateral(cfg)
	case config.KindNonFiat:
		uoaFeed, err := buildFeed(source, da.UoAFeed, da.FeedTimeoutSeconds)
		if err != nil {
			return nil, fmt.Errorf("uoa feed: %w", err)
		}
		return collateral.NewNonFiatCollateral(cfg, uoaFeed)
	case config.KindAppreciating:
		rate, err := chain.NewContractRateSource(
			caller,
			common.HexToAddress(da.RateContract),
			da.RateSignature,
			da.RateDecimals,
		)
		if err != nil {
			return nil, fmt.Errorf("rate source: %w", err)
		}
		return collateral.NewAppreciatingCollateral(cfg, rate)
	default:
		return nil, fmt.Errorf("unknown asset kind %q", da.Kind)
	}
}

func buildCollateralConfig(da config.DeploymentAsset, source oracle.Source) (collateral.Config, error) {
	feed, err := buildFeed(source, da.PriceFeed, da.FeedTimeoutSeconds)
	if err != nil {
		return collateral.Config{}, fmt.Errorf("price feed: %w", err)
	}

	oracleError, err := decOrZero(da.OracleError)
	if err != nil {
		return collateral.Config{}, fmt.Errorf("oracle error: %w", err)
	}
	maxTradeVolume, err := decOrZero(da.MaxTradeVolume)
	if err != nil {
		return collateral.Config{}, fmt.Errorf("max trade volume: %w", err)
	}
	defaultThreshold, err := decOrZero(da.DefaultThreshold)
	if err != nil {
		return collateral.Config{}, fmt.Errorf("default threshold: %w", err)
	}
	revenueHiding, err := decOrZero(da.RevenueHiding)
	if err != nil {
		return collateral.Config{}, fmt.Errorf("revenue hiding: %w", err)
	}

	return collateral.Config{
		ERC20:             toERC20(da.ERC20),
		TargetName:        types.TargetName(da.TargetName),
		PriceFeed:         feed,
		OracleError:       oracleError,
		MaxTradeVolume:    maxTradeVolume,
		PriceTimeout:      time.Duration(da.PriceTimeoutSeconds) * time.Second,
		DefaultThreshold:  defaultThreshold,
		DelayUntilDefault: time.Duration(da.DelayUntilDefaultSeconds) * time.Second,
		RevenueHiding:     revenueHiding,
	}, nil
}

func buildFeed(source oracle.Source, aggregator string, timeoutSeconds uint64) (*oracle.Feed, error) {
	if aggregator == "" {
		return nil, fmt.Errorf("feed aggregator address is required")
	}
	return oracle.NewFeed(source, aggregator, time.Duration(timeoutSeconds)*time.Second)
}

func decOrZero(s string) (sdkmath.LegacyDec, error) {
	if s == "" {
		return sdkmath.LegacyZeroDec(), nil
	}
	return sdkmath.LegacyNewDecFromStr(s)
}
