// Package money converts between invoice amounts in major currency units and
// the gateway's integer minor units. Only currencies with a two-digit minor
// unit (INR, USD, EUR, ...) are supported.
package money

import "github.com/shopspring/decimal"

const minorExponent = 2

// ToMinorUnits multiplies by 100 and truncates toward zero: 99.999 becomes
// 9999, never 10000. Callers reject non-positive totals before converting.
func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Shift(minorExponent).Truncate(0).IntPart()
}

// ToMajorUnits divides by 100. ToMajorUnits(ToMinorUnits(x)) drops anything
// below one minor unit.
func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExponent)
}
