// Package types provides common value types used across parklot.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a decimal amount cannot be represented
// in the currency's minor units.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Money is an amount in the currency's minor unit (cents for USD, yen for
// JPY). Fees are computed on Amount with integer arithmetic only; decimal
// is used at the edges for parsing and display.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"` // ISO 4217, lowercase
}

type currency struct {
	symbol string
	places int32
}

var currencies = map[string]currency{
	"usd": {"$", 2},
	"eur": {"€", 2},
	"gbp": {"£", 2},
	"inr": {"₹", 2},
	"jpy": {"¥", 0},
	"krw": {"₩", 0},
}

func lookup(code string) currency {
	if c, ok := currencies[code]; ok {
		return c
	}
	return currency{symbol: strings.ToUpper(code) + " ", places: 2}
}

// New returns minor units of the given currency.
func New(minor int64, code string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(code)}
}

// USD is shorthand for New(cents, "usd").
func USD(cents int64) Money { return New(cents, "usd") }

// Zero returns no money in the given currency.
func Zero(code string) Money { return New(0, code) }

// ParseMoney parses a major-unit decimal string such as "8.00" or "12.5".
// Amounts more precise than the currency's minor unit are rejected, never
// rounded.
func ParseMoney(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amount, err)
	}
	return FromDecimal(d, code)
}

// FromDecimal converts a major-unit decimal into Money.
func FromDecimal(d decimal.Decimal, code string) (Money, error) {
	code = strings.ToLower(code)
	places := lookup(code).places
	minor := d.Shift(places)
	if !minor.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d, places)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d)
	}
	return New(minor.IntPart(), code), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -lookup(m.Currency).places)
}

// Multiply scales the amount by n. A product that does not fit in int64
// is ErrInvalidAmount.
func (m Money) Multiply(n int64) (Money, error) {
	a, b := m.Amount, n
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(absU64(a), absU64(b))
	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}
	if hi != 0 || lo > limit {
		return Money{}, fmt.Errorf("%w: %s x %d overflows", ErrInvalidAmount, m, n)
	}
	product := int64(lo) //nolint:gosec // bounded above
	if neg {
		product = -product
	}
	return Money{Amount: product, Currency: m.Currency}, nil
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// Cmp compares amounts, returning -1, 0 or +1. It panics when the
// currencies differ; callers validate currency first.
func (m Money) Cmp(other Money) int {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: compare %s with %s", m.Currency, other.Currency))
	}
	switch {
	case m.Amount < other.Amount:
		return -1
	case m.Amount > other.Amount:
		return 1
	}
	return 0
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool { return m == other }

// SameCurrency reports whether both values share a currency.
func (m Money) SameCurrency(other Money) bool { return m.Currency == other.Currency }

// FormatMajor renders the major-unit amount without a symbol: "24.00" for
// USD(2400), "100" for 100 yen.
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(lookup(m.Currency).places)
}

func (m Money) String() string {
	return lookup(m.Currency).symbol + m.FormatMajor()
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display,omitempty"`
}

// MarshalJSON adds a display string next to the minor-unit amount.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount, Currency: m.Currency, Display: m.String()})
}

// UnmarshalJSON ignores the display field.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = New(raw.Amount, raw.Currency)
	return nil
}
