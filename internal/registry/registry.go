/*

This file contains the asset registry: the owned store mapping each ERC20 to
its registered Asset or Collateral plugin. The RToken's own ERC20 and RSR are
always present at the two lowest indices by convention. Refresh fans out to
every registered plugin.

*/

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/collateral"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotRegistered  = errors.New("erc20 is not registered")
	ErrNotCollateral  = errors.New("erc20 is registered but is not collateral")
	ErrDuplicateAsset = errors.New("erc20 is already registered")
	ErrNilAsset       = errors.New("asset cannot be nil")
)

// Registry is the erc20 -> asset store. Insertion order is preserved for
// display; it carries no semantic weight beyond the fixed RToken/RSR slots.
type Registry struct {
	log    zerolog.Logger
	order  []common.Address
	assets map[common.Address]collateral.Asset
	rToken types.ERC20
	rsr    types.ERC20
}

// New creates a registry seeded with the RToken and RSR assets at the fixed
// low indices.
func New(rTokenAsset, rsrAsset collateral.Asset) (*Registry, error) {
	if rTokenAsset == nil || rsrAsset == nil {
		return nil, ErrNilAsset
	}
	r := &Registry{
		log:    logger.GetForComponent("asset_registry"),
		assets: make(map[common.Address]collateral.Asset),
		rToken: rTokenAsset.ERC20(),
		rsr:    rsrAsset.ERC20(),
	}
	if err := r.Register(rTokenAsset); err != nil {
		return nil, err
	}
	if err := r.Register(rsrAsset); err != nil {
		return nil, err
	}
	return r, nil
}

// RToken returns the registered RToken identity.
func (r *Registry) RToken() types.ERC20 { return r.rToken }

// RSR returns the registered RSR identity.
func (r *Registry) RSR() types.ERC20 { return r.rsr }

// Register adds a new asset. Registering an already-present ERC20 is an error;
// use SwapRegistered to supersede a plugin.
func (r *Registry) Register(a collateral.Asset) error {
	if a == nil {
		return ErrNilAsset
	}
	addr := a.ERC20().Address
	if _, ok := r.assets[addr]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAsset, a.ERC20().Symbol)
	}
	r.assets[addr] = a
	r.order = append(r.order, addr)
	r.log.Info().
		Str("erc20", a.ERC20().Symbol).
		Bool("collateral", a.IsCollateral()).
		Msg("Asset registered")
	return nil
}

// SwapRegistered replaces the plugin for an ERC20 in place, keeping its index.
// Returns true when an existing entry was replaced.
func (r *Registry) SwapRegistered(a collateral.Asset) (bool, error) {
	if a == nil {
		return false, ErrNilAsset
	}
	addr := a.ERC20().Address
	if _, ok := r.assets[addr]; !ok {
		return false, fmt.Errorf("%w: %s", ErrNotRegistered, a.ERC20().Symbol)
	}
	r.assets[addr] = a
	r.log.Info().Str("erc20", a.ERC20().Symbol).Msg("Asset plugin swapped")
	return true, nil
}

// ToAsset looks up the asset registered for an address.
func (r *Registry) ToAsset(addr common.Address) (collateral.Asset, error) {
	a, ok := r.assets[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, addr.Hex())
	}
	return a, nil
}

// ToColl looks up an address expected to be collateral.
func (r *Registry) ToColl(addr common.Address) (collateral.Collateral, error) {
	a, err := r.ToAsset(addr)
	if err != nil {
		return nil, err
	}
	c, ok := a.(collateral.Collateral)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCollateral, addr.Hex())
	}
	return c, nil
}

// ERC20s returns every registered token identity in registration order.
func (r *Registry) ERC20s() []types.ERC20 {
	out := make([]types.ERC20, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.assets[addr].ERC20())
	}
	return out
}

// Assets returns every registered plugin in registration order.
func (r *Registry) Assets() []collateral.Asset {
	out := make([]collateral.Asset, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.assets[addr])
	}
	return out
}

// Refresh fans out to every registered plugin. Plugins fold their own source
// failures, so the fan-out itself cannot fail.
func (r *Registry) Refresh(ctx context.Context, now time.Time) {
	for _, addr := range r.order {
		r.assets[addr].Refresh(ctx, now)
	}
}
