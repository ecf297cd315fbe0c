package vending

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	freedesktop = "org.freedesktop.Platform"
	gnome       = "org.gnome.Platform"
	kde         = "org.kde.Platform"
)

func gnomeOnlySchedule(t *testing.T) *FeeSchedule {
	t.Helper()
	s, err := NewFeeSchedule(ScheduleConfig{
		CostPercent:   WholePercent(5),
		FixedCost:     2,
		PreferPercent: WholePercent(2),
		Platforms: []PlatformEntry{
			{ID: "org.freedesktop.Gnome", KeepPercent: Full},
		},
	})
	require.NoError(t, err)
	return s
}

func layeredSchedule(t *testing.T) *FeeSchedule {
	t.Helper()
	s, err := NewFeeSchedule(ScheduleConfig{
		CostPercent:   290,
		FixedCost:     30,
		PreferPercent: 150,
		Platforms: []PlatformEntry{
			{ID: freedesktop, KeepPercent: Full, Aliases: []PlatformID{"org.freedesktop.Sdk"}},
			{ID: gnome, KeepPercent: Full, DependsOn: freedesktop, Aliases: []PlatformID{"org.gnome.Sdk"}},
			{ID: kde, KeepPercent: WholePercent(30), DependsOn: "org.freedesktop.Sdk"},
		},
	})
	require.NoError(t, err)
	return s
}
