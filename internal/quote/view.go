package quote

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vending/internal/vending"
	"github.com/noah-isme/backend-vending/internal/vendingconfig"
)

// ScheduleView is the public rendition of a fee schedule. Percentages are
// decimal strings so clients never see floating point.
type ScheduleView struct {
	Version       string          `json:"version"`
	LoadedAt      time.Time       `json:"loaded_at"`
	CostPercent   decimal.Decimal `json:"fee_cost_percent"`
	FixedCost     vending.Money   `json:"fee_fixed_cost"`
	PreferPercent decimal.Decimal `json:"fee_prefer_percent"`
	Platforms     []PlatformView  `json:"platforms"`
}

// PlatformView describes one platform payee.
type PlatformView struct {
	ID          string          `json:"id"`
	KeepPercent decimal.Decimal `json:"keep_percent"`
	Aliases     []string        `json:"aliases"`
	Depends     string          `json:"depends,omitempty"`
}

func newScheduleView(snap *vendingconfig.Snapshot) ScheduleView {
	s := snap.Schedule
	view := ScheduleView{
		Version:       snap.Version,
		LoadedAt:      snap.LoadedAt,
		CostPercent:   s.CostPercent().Decimal(),
		FixedCost:     s.FixedCost(),
		PreferPercent: s.PreferPercent().Decimal(),
	}
	for _, p := range s.Platforms() {
		aliases := p.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		view.Platforms = append(view.Platforms, PlatformView{
			ID:          p.ID,
			KeepPercent: p.KeepPercent.Decimal(),
			Aliases:     aliases,
			Depends:     p.DependsOn,
		})
	}
	return view
}
