package fixedpoint

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InternalDecimals is the number of fractional digits of the ledger's
// internal accounting unit, independent of the underlying asset precision.
const InternalDecimals = 20

// Unit converts between external asset base units and the internal
// accounting unit. The divisor 10^(InternalDecimals-assetDecimals) is fixed
// at construction and both conversions are exact power-of-ten shifts, so no
// precision is lost going in; going out truncates toward zero.
type Unit struct {
	shift int32
}

// New builds a Unit for an asset with the given number of decimal places.
func New(assetDecimals int32) (Unit, error) {
	if assetDecimals < 0 || assetDecimals > InternalDecimals {
		return Unit{}, fmt.Errorf("asset decimals %d out of range [0, %d]", assetDecimals, InternalDecimals)
	}
	return Unit{shift: InternalDecimals - assetDecimals}, nil
}

// ToInternal converts an amount in asset base units to internal units.
func (u Unit) ToInternal(asset decimal.Decimal) decimal.Decimal {
	return asset.Shift(u.shift)
}

// ToAsset converts an internal amount back to asset base units, truncating
// toward zero. The sub-unit remainder stays inside the ledger; it is never
// paid out.
func (u Unit) ToAsset(internal decimal.Decimal) decimal.Decimal {
	return internal.Shift(-u.shift).Truncate(0)
}

// Divisor returns 10^(InternalDecimals-assetDecimals) as a decimal.
func (u Unit) Divisor() decimal.Decimal {
	return decimal.New(1, u.shift)
}
