package vending

// ComputeFee returns the processor fee taken from price before any split.
//
// The variable component is rounded half up. A zero price carries no fee, and
// the fee never exceeds the price.
func ComputeFee(price Money, schedule *FeeSchedule, preferred bool) (Money, error) {
	if price < 0 {
		return 0, &InvalidPriceError{Price: price}
	}
	if schedule == nil {
		return 0, scheduleErrorf("schedule is nil")
	}
	if price == 0 {
		return 0, nil
	}
	pct := schedule.costPercent
	if preferred {
		pct = schedule.preferPercent
	}
	variable := mulRoundHalfUp(price, pct)
	// variable <= price, so the comparison cannot overflow.
	if schedule.fixedCost >= price-variable {
		return price, nil
	}
	return schedule.fixedCost + variable, nil
}
