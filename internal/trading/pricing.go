package trading

import (
	sdkmath "cosmossdk.io/math"
)

// MinBuyAmount computes the worst-case acceptable buy amount for a sell order:
// sellAmount x (1 - maxTradeSlippage) x lowSellPrice / highBuyPrice, rounded
// up. Low price of the sale, high price of the purchase: the auction cannot be
// exploited by feeding favorable prices.
func MinBuyAmount(sellAmount, sellLow, buyHigh, maxTradeSlippage sdkmath.LegacyDec) sdkmath.LegacyDec {
	if !sellAmount.IsPositive() || !sellLow.IsPositive() || !buyHigh.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	keep := sdkmath.LegacyOneDec().Sub(maxTradeSlippage)
	return sellAmount.Mul(keep).Mul(sellLow).QuoRoundUp(buyHigh)
}

// CapSellAmount limits a sell amount so its unit-of-account value stays under
// the given volume cap.
func CapSellAmount(sellAmount, sellLow, maxTradeVolume sdkmath.LegacyDec) sdkmath.LegacyDec {
	if !sellLow.IsPositive() {
		return sellAmount
	}
	cap := maxTradeVolume.Quo(sellLow)
	if sellAmount.GT(cap) {
		return cap
	}
	return sellAmount
}
