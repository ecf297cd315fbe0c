package vending

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFeeScheduleRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		cfg  ScheduleConfig
	}{
		{"cost out of range", ScheduleConfig{CostPercent: Full + 1}},
		{"prefer negative", ScheduleConfig{PreferPercent: -1}},
		{"fixed cost negative", ScheduleConfig{FixedCost: -1}},
		{"empty id", ScheduleConfig{Platforms: []PlatformEntry{{ID: " "}}}},
		{"duplicate id", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a"}, {ID: "a"}}}},
		{"keep out of range", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", KeepPercent: Full + 1}}}},
		{"self alias", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", Aliases: []PlatformID{"a"}}}}},
		{"empty alias", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", Aliases: []PlatformID{""}}}}},
		{"alias is key", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", Aliases: []PlatformID{"b"}}, {ID: "b"}}}},
		{"alias claimed twice", ScheduleConfig{Platforms: []PlatformEntry{
			{ID: "a", Aliases: []PlatformID{"x"}},
			{ID: "b", Aliases: []PlatformID{"x"}},
		}}},
		{"unknown dependency", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", DependsOn: "zzz"}}}},
		{"self dependency via alias", ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", Aliases: []PlatformID{"a2"}, DependsOn: "a2"}}}},
		{"dependency cycle", ScheduleConfig{Platforms: []PlatformEntry{
			{ID: "a", KeepPercent: Full, DependsOn: "b"},
			{ID: "b", KeepPercent: Full, DependsOn: "c"},
			{ID: "c", KeepPercent: Full, DependsOn: "a"},
		}}},
		{"chain keeps nothing", ScheduleConfig{Platforms: []PlatformEntry{
			{ID: "a"},
			{ID: "b", DependsOn: "a"},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFeeSchedule(tc.cfg)
			require.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestFeeScheduleCanonical(t *testing.T) {
	s := layeredSchedule(t)

	id, err := s.Canonical("org.freedesktop.Sdk")
	require.NoError(t, err)
	require.Equal(t, freedesktop, id)

	id, err = s.Canonical(kde)
	require.NoError(t, err)
	require.Equal(t, kde, id)

	_, err = s.Canonical("org.example.Nope")
	require.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestFeeSchedulePlatformsIsACopy(t *testing.T) {
	s := layeredSchedule(t)
	platforms := s.Platforms()
	require.Len(t, platforms, 3)
	require.Equal(t, []PlatformID{freedesktop, gnome, kde}, []PlatformID{platforms[0].ID, platforms[1].ID, platforms[2].ID})

	platforms[0].Aliases[0] = "mutated"
	platforms[1].KeepPercent = 0

	entry, ok := s.Platform(freedesktop)
	require.True(t, ok)
	require.Equal(t, "org.freedesktop.Sdk", entry.Aliases[0])
	entry, _ = s.Platform(gnome)
	require.Equal(t, Full, entry.KeepPercent)
}

func TestNewFeeScheduleAcceptsRepeatedAliasOnSameEntry(t *testing.T) {
	_, err := NewFeeSchedule(ScheduleConfig{Platforms: []PlatformEntry{{ID: "a", Aliases: []PlatformID{"x", "x"}}}})
	require.NoError(t, err)
}
