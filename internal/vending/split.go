package vending

// Allocation is the amount assigned to a single payee.
type Allocation struct {
	PayeeID string    `json:"payee_id"`
	Kind    PayeeKind `json:"kind"`
	Amount  Money     `json:"amount"`
}

// Breakdown is the full partition of a price. The fee entry always comes first.
type Breakdown []Allocation

// Total returns the sum of every entry, which equals the split price.
func (b Breakdown) Total() Money {
	var total Money
	for _, a := range b {
		total += a.Amount
	}
	return total
}

// Fee returns the processor fee entry amount.
func (b Breakdown) Fee() Money {
	for _, a := range b {
		if a.Kind == KindFee {
			return a.Amount
		}
	}
	return 0
}

// AmountFor returns the amount allocated to payee.
func (b Breakdown) AmountFor(payee string) (Money, bool) {
	for _, a := range b {
		if a.Kind != KindFee && a.PayeeID == payee {
			return a.Amount, true
		}
	}
	return 0, false
}

type splitOptions struct {
	preferred bool
	lenient   bool
}

// SplitOption tunes SplitAmount.
type SplitOption func(*splitOptions)

// Preferred selects the preferential fee tier.
func Preferred() SplitOption {
	return WithPreferred(true)
}

// WithPreferred selects the preferential fee tier when preferred is true.
func WithPreferred(preferred bool) SplitOption {
	return func(o *splitOptions) { o.preferred = preferred }
}

// Lenient replaces an invalid share set with a fail-safe one instead of
// returning ErrInvalidShareSet. The developer receives nothing and the
// platforms take the whole net amount.
func Lenient() SplitOption {
	return func(o *splitOptions) { o.lenient = true }
}

func collectOptions(opts []SplitOption) splitOptions {
	var o splitOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// SplitAmount removes the processor fee from price and allocates the rest
// across shares. Every payee but the last gets floor(net * weight); the last
// absorbs the rounding loss so the breakdown always totals price.
func SplitAmount(price Money, shares ShareSet, schedule *FeeSchedule, opts ...SplitOption) (Breakdown, error) {
	o := collectOptions(opts)
	if price < 0 {
		return nil, &InvalidPriceError{Price: price}
	}
	if err := shares.Validate(); err != nil {
		if !o.lenient || len(shares) == 0 {
			return nil, err
		}
		shares = failSafeShares(shares)
	}

	fee, err := ComputeFee(price, schedule, o.preferred)
	if err != nil {
		return nil, err
	}
	net := price - fee

	out := make(Breakdown, 0, len(shares)+1)
	out = append(out, Allocation{PayeeID: FeePayee, Kind: KindFee, Amount: fee})
	allocated := Money(0)
	last := len(shares) - 1
	for i, sh := range shares {
		amount := net - allocated
		if i < last {
			amount = mulFloor(net, sh.Weight)
		}
		allocated += amount
		out = append(out, Allocation{PayeeID: sh.PayeeID, Kind: sh.Kind, Amount: amount})
	}
	return out, nil
}

// failSafeShares gives the developer nothing and re-normalizes the platform
// weights, each capped at 100%, to 100%. Platforms with no usable weight are split evenly; with no
// platform payee at all the last payee takes everything.
func failSafeShares(shares ShareSet) ShareSet {
	out := make(ShareSet, len(shares))
	copy(out, shares)

	var platforms []int
	weights := []int64{}
	var positive bool
	for i := range out {
		if out[i].Kind != KindPlatform {
			out[i].Weight = 0
			continue
		}
		platforms = append(platforms, i)
		w := int64(out[i].Weight)
		if w < 0 {
			w = 0
		}
		if w > int64(Full) {
			w = int64(Full)
		}
		if w > 0 {
			positive = true
		}
		weights = append(weights, w)
	}

	if len(platforms) == 0 {
		for i := range out {
			out[i].Weight = 0
		}
		out[len(out)-1].Weight = Full
		return out
	}
	if !positive {
		for i := range weights {
			weights[i] = 1
		}
	}
	for i, w := range apportion(int64(Full), weights) {
		out[platforms[i]].Weight = Percent(w)
	}
	return out
}
