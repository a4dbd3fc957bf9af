package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrPriceMismatch = errors.New("pricing: client total does not match computed total")

var (
	DefaultDeliveryFee = decimal.NewFromInt(1500)
	DefaultTolerance   = decimal.RequireFromString("0.01")
)

// MismatchError carries both totals so callers can show the expected amount.
type MismatchError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("pricing: total mismatch: expected %s, got %s", e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

func (e *MismatchError) Unwrap() error { return ErrPriceMismatch }

type Line struct {
	MenuItemID string
	Quantity   int
	UnitPrice  decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Validator prices orders with a fixed delivery fee and checks client totals
// against a tolerance.
type Validator struct {
	deliveryFee decimal.Decimal
	tolerance   decimal.Decimal
}

func NewValidator(deliveryFee, tolerance decimal.Decimal) *Validator {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}
	return &Validator{deliveryFee: deliveryFee, tolerance: tolerance}
}

func (v *Validator) DeliveryFee() decimal.Decimal { return v.deliveryFee }

// ComputeTotal is the sum of line subtotals plus the delivery fee.
func (v *Validator) ComputeTotal(lines []Line) decimal.Decimal {
	total := v.deliveryFee
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Validate fails when the client total differs from the computed one by more than the tolerance.
func (v *Validator) Validate(computed, client decimal.Decimal) error {
	if computed.Sub(client).Abs().GreaterThan(v.tolerance) {
		return &MismatchError{Expected: computed, Actual: client}
	}
	return nil
}
