/*

This file contains the basket handler. It owns the prime basket (target-unit
composition) and per-target backup configs, derives the effective basket when
collateral defaults, and answers the quantity and collateralization queries
everything downstream depends on.

*/

package basket

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidBasketConfig = errors.New("basket configuration is invalid")
	ErrNoValidBasket       = errors.New("no valid basket can be derived")
	ErrEmptyPrimeBasket    = errors.New("prime basket is not set")
)

// BackupConfig lists substitute collateral for one target unit, drawn from in
// candidate order up to the diversity factor when a prime member defaults.
type BackupConfig struct {
	DiversityFactor uint
	Candidates      []common.Address
}

// member is one entry of the effective basket.
type member struct {
	erc20     common.Address
	targetAmt sdkmath.LegacyDec
}

// Handler owns basket state. All mutation goes through the governance-gated
// setters and RefreshBasket; reads are consistent with the last refresh.
type Handler struct {
	log zerolog.Logger
	reg *registry.Registry

	primeOrder      []common.Address
	primeTargetAmts map[common.Address]sdkmath.LegacyDec
	backups         map[types.TargetName]BackupConfig

	current  []member
	disabled bool
	nonce    uint64
	lastSet  time.Time
}

// NewHandler creates a basket handler over the registry. The basket starts
// empty and disabled until the prime basket is set and refreshed.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{
		log:             logger.GetForComponent("basket_handler"),
		reg:             reg,
		primeTargetAmts: make(map[common.Address]sdkmath.LegacyDec),
		backups:         make(map[types.TargetName]BackupConfig),
		disabled:        true,
	}
}

// SetPrimeBasket replaces the target composition. Every entry must be
// registered collateral with a positive target amount.
func (h *Handler) SetPrimeBasket(erc20s []common.Address, targetAmts []sdkmath.LegacyDec) error {
	if len(erc20s) == 0 || len(erc20s) != len(targetAmts) {
		return errors.Join(ErrInvalidBasketConfig, errors.New("erc20s and target amounts must be non-empty and equal length"))
	}
	seen := make(map[common.Address]bool, len(erc20s))
	for i, addr := range erc20s {
		if seen[addr] {
			return errors.Join(ErrInvalidBasketConfig, fmt.Errorf("duplicate prime member %s", addr.Hex()))
		}
		seen[addr] = true
		if _, err := h.reg.ToColl(addr); err != nil {
			return errors.Join(ErrInvalidBasketConfig, err)
		}
		if targetAmts[i].IsNil() || !targetAmts[i].IsPositive() {
			return errors.Join(ErrInvalidBasketConfig, fmt.Errorf("target amount for %s must be positive", addr.Hex()))
		}
	}

	h.primeOrder = append([]common.Address(nil), erc20s...)
	h.primeTargetAmts = make(map[common.Address]sdkmath.LegacyDec, len(erc20s))
	for i, addr := range erc20s {
		h.primeTargetAmts[addr] = targetAmts[i]
	}
	h.log.Info().Int("members", len(erc20s)).Msg("Prime basket set")
	return nil
}

// SetBackupConfig defines the substitutes for one target unit.
func (h *Handler) SetBackupConfig(target types.TargetName, diversityFactor uint, candidates []common.Address) error {
	if target == "" {
		return errors.Join(ErrInvalidBasketConfig, errors.New("target name cannot be empty"))
	}
	if diversityFactor == 0 {
		return errors.Join(ErrInvalidBasketConfig, errors.New("diversity factor must be positive"))
	}
	for _, addr := range candidates {
		coll, err := h.reg.ToColl(addr)
		if err != nil {
			return errors.Join(ErrInvalidBasketConfig, err)
		}
		if coll.TargetName() != target {
			return errors.Join(ErrInvalidBasketConfig,
				fmt.Errorf("candidate %s targets %s, not %s", coll.ERC20().Symbol, coll.TargetName(), target))
		}
	}
	h.backups[target] = BackupConfig{
		DiversityFactor: diversityFactor,
		Candidates:      append([]common.Address(nil), candidates...),
	}
	h.log.Info().
		Str("target", string(target)).
		Uint("diversityFactor", diversityFactor).
		Int("candidates", len(candidates)).
		Msg("Backup config set")
	return nil
}

// selectBasket derives the next effective basket from the prime basket and
// backups, without mutating handler state.
func (h *Handler) selectBasket() ([]member, bool) {
	if len(h.primeOrder) == 0 {
		return nil, false
	}

	var out []member
	index := make(map[common.Address]int)

	add := func(addr common.Address, amt sdkmath.LegacyDec) {
		if i, ok := index[addr]; ok {
			out[i].targetAmt = out[i].targetAmt.Add(amt)
			return
		}
		index[addr] = len(out)
		out = append(out, member{erc20: addr, targetAmt: amt})
	}

	for _, addr := range h.primeOrder {
		coll, err := h.reg.ToColl(addr)
		if err == nil && coll.Status() != types.StatusDisabled {
			add(addr, h.primeTargetAmts[addr])
			continue
		}

		// Prime member is gone: split its target amount across SOUND backups.
		var target types.TargetName
		if err == nil {
			target = coll.TargetName()
		} else {
			// Unregistered members cannot name their target; no replacement.
			return nil, false
		}

		cfg, ok := h.backups[target]
		if !ok {
			return nil, false
		}
		var chosen []common.Address
		for _, cand := range cfg.Candidates {
			if uint(len(chosen)) >= cfg.DiversityFactor {
				break
			}
			backup, err := h.reg.ToColl(cand)
			if err != nil || backup.Status() != types.StatusSound {
				continue
			}
			chosen = append(chosen, cand)
		}
		if len(chosen) == 0 {
			return nil, false
		}
		share := h.primeTargetAmts[addr].QuoInt64(int64(len(chosen)))
		for _, cand := range chosen {
			add(cand, share)
		}
	}
	return out, true
}

// SelectionExists reports whether RefreshBasket would currently succeed.
func (h *Handler) SelectionExists() bool {
	_, ok := h.selectBasket()
	return ok
}

// RefreshBasket recomputes the effective basket. On success the nonce
// increments and the timestamp updates; on failure the previous basket is
// kept but marked disabled so downstream sees "no actionable basket" rather
// than an error state.
func (h *Handler) RefreshBasket(now time.Time) error {
	next, ok := h.selectBasket()
	if !ok {
		h.disabled = true
		h.log.Warn().Msg("No valid basket can be derived from prime and backups")
		return ErrNoValidBasket
	}

	h.current = next
	h.disabled = false
	h.nonce++
	h.lastSet = now

	ev := h.log.Info().Uint64("nonce", h.nonce)
	for _, m := range h.current {
		if coll, err := h.reg.ToColl(m.erc20); err == nil {
			ev = ev.Str(coll.ERC20().Symbol, m.targetAmt.String())
		}
	}
	ev.Msg("Basket set")
	return nil
}

// Nonce returns the current basket nonce; it increments on every switch.
func (h *Handler) Nonce() uint64 { return h.nonce }

// Timestamp returns the time of the last successful basket switch.
func (h *Handler) Timestamp() time.Time { return h.lastSet }

// ERC20s returns the current basket members in order.
func (h *Handler) ERC20s() []common.Address {
	out := make([]common.Address, 0, len(h.current))
	for _, m := range h.current {
		out = append(out, m.erc20)
	}
	return out
}

// Quantity returns the whole-token amount of a basket member needed per
// basket unit: targetAmt / targetPerRef / refPerTok. It decreases as the
// collateral appreciates. Zero for non-members and for a disabled basket.
func (h *Handler) Quantity(addr common.Address) sdkmath.LegacyDec {
	if h.disabled {
		return sdkmath.LegacyZeroDec()
	}
	for _, m := range h.current {
		if m.erc20 != addr {
			continue
		}
		coll, err := h.reg.ToColl(addr)
		if err != nil {
			return sdkmath.LegacyZeroDec()
		}
		refPerTok := coll.RefPerTok()
		targetPerRef := coll.TargetPerRef()
		if !refPerTok.IsPositive() || !targetPerRef.IsPositive() {
			return sdkmath.LegacyZeroDec()
		}
		return m.targetAmt.Quo(targetPerRef).Quo(refPerTok)
	}
	return sdkmath.LegacyZeroDec()
}

// Status aggregates the current members' statuses, worst wins. An unset or
// invalid basket is DISABLED.
func (h *Handler) Status() types.CollateralStatus {
	if h.disabled || len(h.current) == 0 {
		return types.StatusDisabled
	}
	worst := types.StatusSound
	for _, m := range h.current {
		coll, err := h.reg.ToColl(m.erc20)
		if err != nil {
			return types.StatusDisabled
		}
		worst = types.WorstStatus(worst, coll.Status())
	}
	return worst
}

// BasketsHeldBy returns how many whole basket units the ledger's balances can
// back: the minimum over members of balance / quantity.
func (h *Handler) BasketsHeldBy(led bank.Ledger) sdkmath.LegacyDec {
	if h.disabled || len(h.current) == 0 {
		return sdkmath.LegacyZeroDec()
	}
	held := sdkmath.LegacyZeroDec()
	for i, m := range h.current {
		q := h.Quantity(m.erc20)
		if !q.IsPositive() {
			return sdkmath.LegacyZeroDec()
		}
		buys := led.Balance(m.erc20).Quo(q)
		if i == 0 || buys.LT(held) {
			held = buys
		}
	}
	return held
}

// FullyCollateralized reports whether the ledger holds at least basketsNeeded
// of every member's quantity.
func (h *Handler) FullyCollateralized(led bank.Ledger, basketsNeeded sdkmath.LegacyDec) bool {
	if basketsNeeded.IsZero() {
		return true
	}
	if h.disabled || len(h.current) == 0 {
		return false
	}
	return h.BasketsHeldBy(led).GTE(basketsNeeded)
}
