package vending

// Result bundles the resolved shares and the split for a single price.
type Result struct {
	App       ApplicationRef `json:"app"`
	Platform  PlatformID     `json:"platform"`
	AppShare  int            `json:"app_share"`
	Price     Money          `json:"price"`
	Preferred bool           `json:"preferred"`
	Shares    ShareSet       `json:"shares"`
	Breakdown Breakdown      `json:"breakdown"`
}

// Calculate resolves the shares for app and splits price across them.
func Calculate(app ApplicationRef, appSharePercent int, price Money, schedule *FeeSchedule, opts ...SplitOption) (Result, error) {
	shares, err := ResolveShares(app, appSharePercent, schedule)
	if err != nil {
		return Result{}, err
	}
	breakdown, err := SplitAmount(price, shares, schedule, opts...)
	if err != nil {
		return Result{}, err
	}
	platform, err := schedule.Canonical(app.RuntimePlatformID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		App:       app,
		Platform:  platform,
		AppShare:  ClampAppShare(appSharePercent),
		Price:     price,
		Preferred: collectOptions(opts).preferred,
		Shares:    shares,
		Breakdown: breakdown,
	}, nil
}
