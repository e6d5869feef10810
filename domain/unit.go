package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ValueUnit describes the transferable balance unit the engine holds custody
// of. This is strictly presentation metadata and carries no quantity.
// Internally every amount is an unsigned integer of base units; ValueUnit
// only governs how amounts are rendered and parsed at the API boundary.
type ValueUnit struct {
	Ticker   string
	Name     string
	Decimals int32
}

var maxUint64Dec = decimal.NewFromUint64(math.MaxUint64)

// ToBaseUnits converts a human-denominated amount into base units. It rejects
// negative values, values with fractional base units, and values that do not
// fit in uint64.
func (u ValueUnit) ToBaseUnits(d decimal.Decimal) (uint64, error) {
	shifted := d.Shift(u.Decimals)
	if shifted.Sign() < 0 {
		return 0, fmt.Errorf("amount %s %s: negative", d, u.Ticker)
	}
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s %s: fractional base units", d, u.Ticker)
	}
	if shifted.Cmp(maxUint64Dec) > 0 {
		return 0, fmt.Errorf("amount %s %s: exceeds maximum representable value", d, u.Ticker)
	}
	return shifted.BigInt().Uint64(), nil
}

// FromBaseUnits renders base units in the unit's human denomination.
func (u ValueUnit) FromBaseUnits(amount uint64) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-u.Decimals)
}
