package vending

import (
	"fmt"
	"sort"
)

// PayeeKind classifies an entry in a share set or breakdown.
type PayeeKind string

const (
	// KindFee marks the processor fee entry of a breakdown.
	KindFee PayeeKind = "fee"
	// KindDeveloper marks the application publisher.
	KindDeveloper PayeeKind = "developer"
	// KindPlatform marks a platform or runtime maintainer.
	KindPlatform PayeeKind = "platform"
)

// FeePayee is the payee id used for the processor fee entry.
const FeePayee = "fee"

const (
	// MinAppShare is the lowest developer share, in whole percent.
	MinAppShare = 10
	// MaxAppShare is the highest developer share, in whole percent.
	MaxAppShare = 100
)

// ApplicationRef is the application identity needed to resolve shares.
type ApplicationRef struct {
	ID                string     `json:"id"`
	RuntimePlatformID PlatformID `json:"runtime"`
}

// Share is one payee's weight within a ShareSet.
type Share struct {
	PayeeID string    `json:"payee_id"`
	Kind    PayeeKind `json:"kind"`
	Weight  Percent   `json:"weight_bp"`
}

// ShareSet is an ordered list of payee weights summing to 100%.
type ShareSet []Share

// Sum returns the total weight.
func (s ShareSet) Sum() Percent {
	var total Percent
	for _, sh := range s {
		total += sh.Weight
	}
	return total
}

// Validate checks that the set is non-empty, that every weight lies in
// [0, 100%] and that the weights sum to 100%. Bounding each weight first keeps
// the sum from overflowing.
func (s ShareSet) Validate() error {
	if len(s) == 0 {
		return &InvalidShareSetError{Reason: "no payees"}
	}
	for _, sh := range s {
		if sh.Weight < 0 {
			return &InvalidShareSetError{Reason: fmt.Sprintf("payee %q has negative weight %s%%", sh.PayeeID, sh.Weight)}
		}
		if sh.Weight > Full {
			return &InvalidShareSetError{Reason: fmt.Sprintf("payee %q weight %s%% exceeds 100%%", sh.PayeeID, sh.Weight)}
		}
	}
	if sum := s.Sum(); sum != Full {
		return &InvalidShareSetError{Sum: sum}
	}
	return nil
}

// Developer returns the developer share, if present.
func (s ShareSet) Developer() (Share, bool) {
	for _, sh := range s {
		if sh.Kind == KindDeveloper {
			return sh, true
		}
	}
	return Share{}, false
}

// ClampAppShare limits a developer share percentage to [MinAppShare, MaxAppShare].
func ClampAppShare(p int) int {
	if p < MinAppShare {
		return MinAppShare
	}
	if p > MaxAppShare {
		return MaxAppShare
	}
	return p
}

// ResolveShares computes the payee weights for app with the given developer share.
//
// The developer comes first. The remainder goes to the canonical platform of the
// app's runtime. When that platform depends on others, the remainder is
// partitioned among the whole chain in proportion to each KeepPercent, and
// platform payees follow in schedule registration order.
func ResolveShares(app ApplicationRef, appSharePercent int, schedule *FeeSchedule) (ShareSet, error) {
	if schedule == nil {
		return nil, scheduleErrorf("schedule is nil")
	}
	pos, ok := schedule.lookup(app.RuntimePlatformID)
	if !ok {
		return nil, &UnknownPlatformError{PlatformID: app.RuntimePlatformID}
	}
	chain, ok := schedule.walk(pos)
	if !ok {
		return nil, scheduleErrorf("dependency cycle through platform %q", schedule.platforms[pos].ID)
	}

	developer := WholePercent(ClampAppShare(appSharePercent))
	remainder := Full - developer

	shares := make(ShareSet, 0, len(chain)+1)
	shares = append(shares, Share{PayeeID: app.ID, Kind: KindDeveloper, Weight: developer})

	if len(chain) == 1 {
		shares = append(shares, Share{PayeeID: schedule.platforms[pos].ID, Kind: KindPlatform, Weight: remainder})
		return shares, nil
	}

	sort.Ints(chain)
	keeps := make([]int64, len(chain))
	for i, p := range chain {
		keeps[i] = int64(schedule.platforms[p].KeepPercent)
	}
	weights := apportion(int64(remainder), keeps)
	for i, p := range chain {
		shares = append(shares, Share{PayeeID: schedule.platforms[p].ID, Kind: KindPlatform, Weight: Percent(weights[i])})
	}
	return shares, nil
}
