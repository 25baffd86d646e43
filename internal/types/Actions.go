/*

This file contains the keeper action types. The scheduler returns at most one
Action per poll; a nil Action is the "nothing to do" sentinel.

*/

package types

import (
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Action is one executable protocol call: a target contract plus ABI calldata.
type Action struct {
	Name     string         `json:"name"`
	Target   common.Address `json:"target"`
	Calldata []byte         `json:"calldata"`
}

// CalldataHex renders the calldata for logs and persistence.
func (a *Action) CalldataHex() string {
	if a == nil {
		return "0x"
	}
	return "0x" + hex.EncodeToString(a.Calldata)
}

// ActionSnapshot records one keeper cycle for the persistent action log.
type ActionSnapshot struct {
	SnapshotID          int64     `json:"snapshot_id,omitempty"`
	CycleNumber         int       `json:"cycle_number"`
	CycleID             string    `json:"cycle_id"`
	Timestamp           time.Time `json:"timestamp"`
	BasketNonce         uint64    `json:"basket_nonce"`
	BasketStatus        string    `json:"basket_status"`
	FullyCollateralized bool      `json:"fully_collateralized"`
	BasketsHeld         string    `json:"baskets_held"`
	BasketsNeeded       string    `json:"baskets_needed"`
	ActionName          string    `json:"action_name"`
	ActionTarget        string    `json:"action_target"`
	Calldata            string    `json:"calldata"`
	Executed            bool      `json:"executed"`
	Result              string    `json:"result,omitempty"`
	DurationMs          int64     `json:"duration_ms"`
}
