package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradecore/pkg/tcerr"
)

const maxPrecision = 9

func checkPrecision(precision uint8) error {
	if precision > maxPrecision {
		return fmt.Errorf("%w: precision %d out of range [0,%d]", tcerr.ErrValidation, precision, maxPrecision)
	}
	return nil
}

// Price is a fixed-precision decimal: value = integer * 10^-precision.
// Arithmetic between operands of equal precision is exact; mixing
// precisions is a validation error.
type Price struct {
	dec       decimal.Decimal
	precision uint8
}

// PriceFromText parses a decimal string losslessly at the given precision.
func PriceFromText(s string, precision uint8) (Price, error) {
	if err := checkPrecision(precision); err != nil {
		return Price{}, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("%w: invalid price %q: %v", tcerr.ErrValidation, s, err)
	}
	if d.Exponent() < -int32(precision) {
		return Price{}, fmt.Errorf("%w: price %q has more than %d decimal digits", tcerr.ErrValidation, s, precision)
	}
	return Price{dec: d.Truncate(int32(precision)), precision: precision}, nil
}

// PriceFromIntegerUnits builds a Price from an integer number of the
// smallest representable unit at the given precision (e.g. units=12345,
// precision=2 -> 123.45).
func PriceFromIntegerUnits(units int64, precision uint8) (Price, error) {
	if err := checkPrecision(precision); err != nil {
		return Price{}, err
	}
	return Price{dec: decimal.New(units, -int32(precision)), precision: precision}, nil
}

// PriceFromFloat64 rounds half-to-even to the given precision.
func PriceFromFloat64(value float64, precision uint8) (Price, error) {
	if err := checkPrecision(precision); err != nil {
		return Price{}, err
	}
	d := decimal.NewFromFloat(value).RoundBank(int32(precision))
	return Price{dec: d, precision: precision}, nil
}

// Precision returns the declared decimal precision.
func (p Price) Precision() uint8 { return p.precision }

// IsZero reports whether the price is the zero value (no precision set,
// no value assigned).
func (p Price) IsZero() bool { return p.precision == 0 && p.dec.IsZero() && p.dec == decimal.Decimal{} }

// AsFloat64 returns the price as a float64 (may lose precision for very
// large values; intended for display/telemetry, not for further arithmetic).
func (p Price) AsFloat64() float64 {
	f, _ := p.dec.Float64()
	return f
}

// String renders the exact decimal representation with Precision() digits
// after the point, or no point at precision 0.
func (p Price) String() string {
	return p.dec.StringFixed(int32(p.precision))
}

// MarshalJSON renders the price as its fixed-precision decimal string, so
// introspection/telemetry consumers see the exact value instead of a float
// approximation.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func requireEqualPrecision(a, b uint8, op string) error {
	if a != b {
		return fmt.Errorf("%w: cannot %s values of precision %d and %d", tcerr.ErrValidation, op, a, b)
	}
	return nil
}

// Add requires equal precision and is exact.
func (p Price) Add(other Price) (Price, error) {
	if err := requireEqualPrecision(p.precision, other.precision, "add"); err != nil {
		return Price{}, err
	}
	return Price{dec: p.dec.Add(other.dec), precision: p.precision}, nil
}

// Sub requires equal precision and is exact.
func (p Price) Sub(other Price) (Price, error) {
	if err := requireEqualPrecision(p.precision, other.precision, "subtract"); err != nil {
		return Price{}, err
	}
	return Price{dec: p.dec.Sub(other.dec), precision: p.precision}, nil
}

// MulQuantity multiplies by a Quantity scalar, preserving the price's
// precision.
func (p Price) MulQuantity(q Quantity) Price {
	return Price{dec: p.dec.Mul(q.dec).Truncate(int32(p.precision)), precision: p.precision}
}

// DivQuantity divides by a Quantity scalar, preserving the price's
// precision. Fails loudly on division by zero.
func (p Price) DivQuantity(q Quantity) (Price, error) {
	if q.dec.IsZero() {
		return Price{}, fmt.Errorf("%w: division by zero quantity", tcerr.ErrValidation)
	}
	return Price{dec: p.dec.DivRound(q.dec, int32(p.precision)), precision: p.precision}, nil
}

// Cmp compares two prices of equal precision: -1, 0, 1.
func (p Price) Cmp(other Price) int { return p.dec.Cmp(other.dec) }

// LessThan reports whether p < other.
func (p Price) LessThan(other Price) bool { return p.dec.LessThan(other.dec) }

// GreaterThan reports whether p > other.
func (p Price) GreaterThan(other Price) bool { return p.dec.GreaterThan(other.dec) }

// Quantity mirrors Price's fixed-precision arithmetic for sizes/volumes.
type Quantity struct {
	dec       decimal.Decimal
	precision uint8
}

// QuantityFromText parses a decimal string losslessly at the given precision.
func QuantityFromText(s string, precision uint8) (Quantity, error) {
	if err := checkPrecision(precision); err != nil {
		return Quantity{}, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: invalid quantity %q: %v", tcerr.ErrValidation, s, err)
	}
	if d.Exponent() < -int32(precision) {
		return Quantity{}, fmt.Errorf("%w: quantity %q has more than %d decimal digits", tcerr.ErrValidation, s, precision)
	}
	return Quantity{dec: d.Truncate(int32(precision)), precision: precision}, nil
}

// QuantityFromIntegerUnits builds a Quantity from an integer number of the
// smallest representable unit at the given precision.
func QuantityFromIntegerUnits(units int64, precision uint8) (Quantity, error) {
	if err := checkPrecision(precision); err != nil {
		return Quantity{}, err
	}
	return Quantity{dec: decimal.New(units, -int32(precision)), precision: precision}, nil
}

// QuantityFromFloat64 rounds half-to-even to the given precision.
func QuantityFromFloat64(value float64, precision uint8) (Quantity, error) {
	if err := checkPrecision(precision); err != nil {
		return Quantity{}, err
	}
	d := decimal.NewFromFloat(value).RoundBank(int32(precision))
	return Quantity{dec: d, precision: precision}, nil
}

// ZeroQuantity returns a zero-valued Quantity at the given precision.
func ZeroQuantity(precision uint8) Quantity {
	return Quantity{dec: decimal.Zero, precision: precision}
}

// Precision returns the declared decimal precision.
func (q Quantity) Precision() uint8 { return q.precision }

// IsZero reports whether the quantity's value is zero.
func (q Quantity) IsZero() bool { return q.dec.IsZero() }

// IsPositive reports whether the quantity is strictly greater than zero.
func (q Quantity) IsPositive() bool { return q.dec.IsPositive() }

// IsNegative reports whether the quantity is strictly less than zero.
// Valid ticks never carry a negative size; this backs the data engine's
// tick validation (spec §4.F).
func (q Quantity) IsNegative() bool { return q.dec.IsNegative() }

// AsFloat64 returns the quantity as a float64.
func (q Quantity) AsFloat64() float64 {
	f, _ := q.dec.Float64()
	return f
}

// String renders the exact decimal representation.
func (q Quantity) String() string {
	return q.dec.StringFixed(int32(q.precision))
}

// MarshalJSON renders the quantity as its fixed-precision decimal string.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + q.String() + `"`), nil
}

// Add requires equal precision and is exact.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if err := requireEqualPrecision(q.precision, other.precision, "add"); err != nil {
		return Quantity{}, err
	}
	return Quantity{dec: q.dec.Add(other.dec), precision: q.precision}, nil
}

// Sub requires equal precision and is exact.
func (q Quantity) Sub(other Quantity) (Quantity, error) {
	if err := requireEqualPrecision(q.precision, other.precision, "subtract"); err != nil {
		return Quantity{}, err
	}
	return Quantity{dec: q.dec.Sub(other.dec), precision: q.precision}, nil
}

// Cmp compares two quantities of equal precision: -1, 0, 1.
func (q Quantity) Cmp(other Quantity) int { return q.dec.Cmp(other.dec) }

// LessThan reports whether q < other.
func (q Quantity) LessThan(other Quantity) bool { return q.dec.LessThan(other.dec) }

// GreaterThanOrEqual reports whether q >= other.
func (q Quantity) GreaterThanOrEqual(other Quantity) bool { return q.dec.GreaterThanOrEqual(other.dec) }

// GreaterThan reports whether q > other.
func (q Quantity) GreaterThan(other Quantity) bool { return q.dec.GreaterThan(other.dec) }
