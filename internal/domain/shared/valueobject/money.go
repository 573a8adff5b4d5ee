package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CentsPlaces is the number of decimal places money is kept at.
const CentsPlaces int32 = 2

var (
	hundred = decimal.NewFromInt(100)
	// Cent is the smallest representable amount.
	Cent = decimal.New(1, -CentsPlaces)
)

// Money is an immutable amount in the application's single currency,
// always held at cent precision.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal, rounding half away from zero to cents
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount.Round(CentsPlaces)}
}

// NewMoneyFromFloat creates Money from a float64 value
func NewMoneyFromFloat(amount float64) Money {
	return NewMoney(decimal.NewFromFloat(amount))
}

// NewMoneyFromCents creates Money from an integer number of cents
func NewMoneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -CentsPlaces)}
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d), nil
}

// Zero returns zero Money
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Cents returns the amount as an integer number of cents
func (m Money) Cents() int64 {
	return m.amount.Mul(hundred).Round(0).IntPart()
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns the difference
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Multiply returns m times factor, rounded to cents
func (m Money) Multiply(factor decimal.Decimal) Money {
	return NewMoney(m.amount.Mul(factor))
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg()}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// Equals returns true if both amounts are equal
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan returns true if m is less than other
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// GreaterThan returns true if m is greater than other
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// WithinTolerance reports whether |m - other| <= tolerance.
func (m Money) WithinTolerance(other Money, tolerance decimal.Decimal) bool {
	return m.amount.Sub(other.amount).Abs().LessThanOrEqual(tolerance)
}

// String returns the amount with two decimal places
func (m Money) String() string {
	return m.amount.StringFixed(CentsPlaces)
}

// Float64 returns the amount as a float64 (may lose precision)
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// MarshalJSON encodes Money as a JSON number with two decimals
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.StringFixed(CentsPlaces)), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = NewMoney(d)
	return nil
}

// Value implements driver.Valuer for database storage
func (m Money) Value() (driver.Value, error) {
	return m.amount.StringFixed(CentsPlaces), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *Money) Scan(value any) error {
	if value == nil {
		*m = Zero()
		return nil
	}
	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	case float64:
		*m = NewMoneyFromFloat(v)
		return nil
	case int64:
		*m = NewMoney(decimal.NewFromInt(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	amount, err := decimal.NewFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	*m = NewMoney(amount)
	return nil
}

// SplitFrontLoaded divides m into parts amounts of floor(m*100/parts)/100 each
// and adds whatever cents are left over to the first part, so the parts always
// sum to m exactly.
func (m Money) SplitFrontLoaded(parts int) ([]Money, error) {
	if parts <= 0 {
		return nil, errors.New("parts must be positive")
	}
	total := m.Cents()
	n := int64(parts)
	base := total / n
	if total < 0 && total%n != 0 {
		base--
	}
	remainder := total - base*n

	result := make([]Money, parts)
	for i := range parts {
		cents := base
		if i == 0 {
			cents += remainder
		}
		result[i] = NewMoneyFromCents(cents)
	}
	return result, nil
}

// Sum adds all amounts
func Sum(amounts ...Money) Money {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Percentage returns part/whole*100 rounded to two places, or zero when whole is zero.
func Percentage(part, whole Money) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.amount.Div(whole.amount).Mul(hundred).Round(CentsPlaces)
}
