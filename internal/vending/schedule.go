package vending

import (
	"strings"
)

// PlatformID identifies a platform or runtime, e.g. "org.gnome.Platform".
type PlatformID = string

// PlatformEntry describes a platform payee in the fee schedule.
type PlatformEntry struct {
	ID PlatformID
	// KeepPercent is the share of the non-developer remainder this platform keeps
	// when it is one of several contributing platforms.
	KeepPercent Percent
	// Aliases are folded into this entry's payee bucket.
	Aliases []PlatformID
	// DependsOn names the platform this one is built on. Empty for a base platform.
	DependsOn PlatformID
}

// ScheduleConfig is the raw input to NewFeeSchedule.
type ScheduleConfig struct {
	CostPercent   Percent
	FixedCost     Money
	PreferPercent Percent
	Platforms     []PlatformEntry
}

// FeeSchedule is a validated, immutable fee schedule. Construct it with NewFeeSchedule.
type FeeSchedule struct {
	costPercent   Percent
	fixedCost     Money
	preferPercent Percent
	platforms     []PlatformEntry
	keys          map[PlatformID]int
	aliases       map[PlatformID]int
	depends       []int
}

// NewFeeSchedule validates cfg and returns an immutable schedule.
func NewFeeSchedule(cfg ScheduleConfig) (*FeeSchedule, error) {
	if !cfg.CostPercent.valid() {
		return nil, scheduleErrorf("cost percent %s out of range", cfg.CostPercent)
	}
	if !cfg.PreferPercent.valid() {
		return nil, scheduleErrorf("prefer percent %s out of range", cfg.PreferPercent)
	}
	if cfg.FixedCost < 0 {
		return nil, scheduleErrorf("fixed cost %d is negative", cfg.FixedCost)
	}

	s := &FeeSchedule{
		costPercent:   cfg.CostPercent,
		fixedCost:     cfg.FixedCost,
		preferPercent: cfg.PreferPercent,
		platforms:     make([]PlatformEntry, 0, len(cfg.Platforms)),
		keys:          make(map[PlatformID]int, len(cfg.Platforms)),
		aliases:       map[PlatformID]int{},
	}

	for _, p := range cfg.Platforms {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, scheduleErrorf("platform with empty id")
		}
		if _, dup := s.keys[id]; dup {
			return nil, scheduleErrorf("platform %q registered twice", id)
		}
		if !p.KeepPercent.valid() {
			return nil, scheduleErrorf("platform %q keep percent %s out of range", id, p.KeepPercent)
		}
		entry := PlatformEntry{
			ID:          id,
			KeepPercent: p.KeepPercent,
			Aliases:     append([]PlatformID(nil), p.Aliases...),
			DependsOn:   strings.TrimSpace(p.DependsOn),
		}
		s.keys[id] = len(s.platforms)
		s.platforms = append(s.platforms, entry)
	}

	for i, p := range s.platforms {
		for _, alias := range p.Aliases {
			alias = strings.TrimSpace(alias)
			switch {
			case alias == "":
				return nil, scheduleErrorf("platform %q has an empty alias", p.ID)
			case alias == p.ID:
				return nil, scheduleErrorf("platform %q lists itself as an alias", p.ID)
			}
			if _, isKey := s.keys[alias]; isKey {
				return nil, scheduleErrorf("alias %q of %q is itself a platform key", alias, p.ID)
			}
			if owner, claimed := s.aliases[alias]; claimed && owner != i {
				return nil, scheduleErrorf("alias %q claimed by both %q and %q", alias, s.platforms[owner].ID, p.ID)
			}
			s.aliases[alias] = i
		}
	}

	s.depends = make([]int, len(s.platforms))
	for i, p := range s.platforms {
		s.depends[i] = -1
		if p.DependsOn == "" {
			continue
		}
		target, ok := s.lookup(p.DependsOn)
		if !ok {
			return nil, scheduleErrorf("platform %q depends on unknown platform %q", p.ID, p.DependsOn)
		}
		if target == i {
			return nil, scheduleErrorf("platform %q depends on itself", p.ID)
		}
		s.depends[i] = target
	}

	for i := range s.platforms {
		chain, ok := s.walk(i)
		if !ok {
			return nil, scheduleErrorf("dependency cycle through platform %q", s.platforms[i].ID)
		}
		if len(chain) < 2 {
			continue
		}
		var keep Percent
		for _, pos := range chain {
			keep += s.platforms[pos].KeepPercent
		}
		if keep <= 0 {
			return nil, scheduleErrorf("platforms depended on by %q keep nothing", s.platforms[i].ID)
		}
	}

	return s, nil
}

// CostPercent is the standard variable fee percentage.
func (s *FeeSchedule) CostPercent() Percent { return s.costPercent }

// FixedCost is the flat fee added to every non-zero transaction.
func (s *FeeSchedule) FixedCost() Money { return s.fixedCost }

// PreferPercent is the preferential variable fee percentage.
func (s *FeeSchedule) PreferPercent() Percent { return s.preferPercent }

// Platforms returns a copy of the platform entries in registration order.
func (s *FeeSchedule) Platforms() []PlatformEntry {
	out := make([]PlatformEntry, len(s.platforms))
	for i, p := range s.platforms {
		p.Aliases = append([]PlatformID(nil), p.Aliases...)
		out[i] = p
	}
	return out
}

// Platform returns the entry registered under the canonical id.
func (s *FeeSchedule) Platform(id PlatformID) (PlatformEntry, bool) {
	pos, ok := s.keys[id]
	if !ok {
		return PlatformEntry{}, false
	}
	return s.platforms[pos], true
}

// Canonical resolves id to the key of the entry that owns it.
func (s *FeeSchedule) Canonical(id PlatformID) (PlatformID, error) {
	pos, ok := s.lookup(id)
	if !ok {
		return "", &UnknownPlatformError{PlatformID: id}
	}
	return s.platforms[pos].ID, nil
}

func (s *FeeSchedule) lookup(id PlatformID) (int, bool) {
	if pos, ok := s.keys[id]; ok {
		return pos, true
	}
	pos, ok := s.aliases[id]
	return pos, ok
}

// walk follows the dependency chain starting at pos. It reports false on a cycle.
func (s *FeeSchedule) walk(pos int) ([]int, bool) {
	seen := make(map[int]bool, len(s.platforms))
	var chain []int
	for pos >= 0 {
		if seen[pos] {
			return nil, false
		}
		seen[pos] = true
		chain = append(chain, pos)
		pos = s.depends[pos]
	}
	return chain, true
}
