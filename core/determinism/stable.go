// Package determinism provides primitives for guaranteeing deterministic pricing.
// Money math goes through decimal; map iteration goes through sorted keys.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places reported for monetary values
const MoneyPlaces = 2

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// Money represents a monetary amount with full precision.
// NEVER use float64 for money calculations.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoneyFromFloat creates Money from float64 (use sparingly)
func NewMoneyFromFloat(amount float64, currency string) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: currency}
}

// NewMoneyFromCents creates Money from an integer number of cents
func NewMoneyFromCents(cents int64, currency string) Money {
	return Money{amount: decimal.New(cents, -MoneyPlaces), currency: currency}
}

// Add adds two monetary amounts
func (m Money) Add(other Money) Money {
	if m.currency != other.currency {
		panic(fmt.Sprintf("cannot add %s and %s", m.currency, other.currency))
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}
}

// Round returns the amount rounded to MoneyPlaces, half away from zero
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(MoneyPlaces), currency: m.currency}
}

// String returns formatted money (2 decimal places)
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyPlaces), m.currency)
}

// Float64 returns float64 (only for display, never for calculation)
func (m Money) Float64() float64 {
	return m.amount.InexactFloat64()
}

// Dec converts a float input to decimal. Inputs must already be finite.
func Dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Round2 rounds d to MoneyPlaces and returns it as float64 for reporting.
func Round2(d decimal.Decimal) float64 {
	return d.Round(MoneyPlaces).InexactFloat64()
}

// ToCents converts a dollar amount to whole cents, half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(MoneyPlaces).Round(0).IntPart()
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SortedKeys returns the map keys in sorted order
func SortedKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	return keys
}

// RangeMapSorted iterates over a map in sorted key order
func RangeMapSorted[K comparable, V any](m map[K]V, fn func(K, V) bool) {
	for _, k := range SortedKeys(m) {
		if !fn(k, m[k]) {
			break
		}
	}
}
