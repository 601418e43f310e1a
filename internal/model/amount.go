package model

import "github.com/shopspring/decimal"

// weiDecimals is the fixed-point scale of on-chain token values.
const weiDecimals = 18

// FromWei scales an 18-decimal fixed-point value down to whole tokens.
func FromWei(raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(-weiDecimals)
}

// NativeFromGas derives the native-currency amount from gas used:
// gas * 10^9 / 10^18. The upstream system applied the token scaling to a
// gas figure, conflating gwei and wei; the behavior is kept as-is so the
// mirrored ledger matches the system of record. See DESIGN.md.
func NativeFromGas(gasUsed decimal.Decimal) decimal.Decimal {
	return gasUsed.Shift(9 - weiDecimals)
}
