package vending

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Percent is a percentage expressed in basis points (1% = 100).
type Percent int64

const (
	// BasisPoint is the smallest representable percentage step.
	BasisPoint Percent = 1
	// OnePercent is 1% in basis points.
	OnePercent Percent = 100
	// Full is 100% in basis points.
	Full Percent = 10000
)

// WholePercent converts a whole-number percentage into basis points.
func WholePercent(p int) Percent {
	return Percent(p) * OnePercent
}

// ParsePercent parses a decimal percentage such as "2.9" into basis points.
// Values with more than two decimal places are rejected.
func ParsePercent(value string) (Percent, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse percent %q: %w", value, err)
	}
	return percentFromDecimal(d)
}

// PercentFromFloat converts a decoded configuration number into basis points.
func PercentFromFloat(value float64) (Percent, error) {
	return percentFromDecimal(decimal.NewFromFloat(value))
}

func percentFromDecimal(d decimal.Decimal) (Percent, error) {
	bp := d.Mul(decimal.NewFromInt(int64(OnePercent)))
	if !bp.IsInteger() {
		return 0, fmt.Errorf("percent %s has more than two decimal places", d.String())
	}
	return Percent(bp.IntPart()), nil
}

// Decimal returns the percentage as a decimal number of percent.
func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// String renders the percentage without a trailing unit, e.g. "2.9".
func (p Percent) String() string {
	return p.Decimal().String()
}

// valid reports whether p lies within [0, 100%].
func (p Percent) valid() bool {
	return p >= 0 && p <= Full
}

// mulFloor returns floor(amount * p / 100%) for non-negative amounts.
// The amount is split so the intermediate product never exceeds amount.
func mulFloor(amount Money, p Percent) Money {
	q, r := amount/int64(Full), amount%int64(Full)
	return q*int64(p) + (r*int64(p))/int64(Full)
}

// mulRoundHalfUp returns round(amount * p / 100%) with halves rounded up.
func mulRoundHalfUp(amount Money, p Percent) Money {
	q, r := amount/int64(Full), amount%int64(Full)
	return q*int64(p) + (r*int64(p)+int64(Full)/2)/int64(Full)
}

// apportion distributes total across weights using the largest remainder
// method. The result always sums to total. Ties on the remainder favour the
// lower index. All weights must be non-negative and their sum positive.
func apportion(total int64, weights []int64) []int64 {
	out := make([]int64, len(weights))
	var sum int64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || len(weights) == 0 {
		return out
	}
	rems := make([]int64, len(weights))
	var assigned int64
	q, r := total/sum, total%sum
	for i, w := range weights {
		out[i] = q*w + r*w/sum
		rems[i] = r * w % sum
		assigned += out[i]
	}
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rems[order[a]] > rems[order[b]]
	})
	for i := int64(0); i < total-assigned; i++ {
		out[order[int(i)%len(order)]]++
	}
	return out
}
