package vendingconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vending/internal/apps"
	"github.com/noah-isme/backend-vending/internal/vending"
)

// Integer fields decode as float64 so fractional values are rejected
// rather than truncated.
type document struct {
	CostPercent   float64            `koanf:"fee_cost_percent"`
	FixedCost     float64            `koanf:"fee_fixed_cost"`
	PreferPercent float64            `koanf:"fee_prefer_percent"`
	Platforms     []platformDocument `koanf:"platforms"`
	Apps          []appDocument      `koanf:"apps"`
}

type platformDocument struct {
	ID          string   `koanf:"id"`
	KeepPercent float64  `koanf:"keep_percent"`
	Aliases     []string `koanf:"aliases"`
	Depends     string   `koanf:"depends"`
}

type appDocument struct {
	ID                  string  `koanf:"id"`
	Runtime             string  `koanf:"runtime"`
	AppShare            float64 `koanf:"app_share"`
	Currency            string  `koanf:"currency"`
	RecommendedDonation float64 `koanf:"recommended_donation"`
	MinimumPayment      float64 `koanf:"minimum_payment"`
}

// Snapshot is one loaded, validated vending configuration.
type Snapshot struct {
	Schedule *vending.FeeSchedule
	Apps     *apps.Registry
	// Version is the hex sha256 of the raw document bytes.
	Version  string
	LoadedAt time.Time
}

// Load reads and validates the vending configuration document at path.
// The file is read once; the same bytes are parsed and hashed.
func Load(path string) (*Snapshot, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("vending config path is empty")
	}
	src := &hashingProvider{file: file.Provider(path)}
	k := koanf.New(".")
	if err := k.Load(src, json.Parser()); err != nil {
		return nil, fmt.Errorf("load vending config %s: %w", path, err)
	}
	snap, err := fromKoanf(k)
	if err != nil {
		return nil, err
	}
	snap.Version = hex.EncodeToString(src.sum[:])
	return snap, nil
}

// hashingProvider records the sha256 of the bytes koanf parses.
type hashingProvider struct {
	file *file.File
	sum  [sha256.Size]byte
}

func (p *hashingProvider) ReadBytes() ([]byte, error) {
	b, err := p.file.ReadBytes()
	if err != nil {
		return nil, err
	}
	p.sum = sha256.Sum256(b)
	return b, nil
}

func (p *hashingProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("hashing provider does not support Read()")
}

func fromKoanf(k *koanf.Koanf) (*Snapshot, error) {
	var doc document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("decode vending config: %w", err)
	}
	schedule, err := doc.schedule()
	if err != nil {
		return nil, err
	}
	setups, err := doc.setups()
	if err != nil {
		return nil, err
	}
	registry, err := apps.NewRegistry(setups, schedule)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Schedule: schedule,
		Apps:     registry,
		LoadedAt: time.Now().UTC(),
	}, nil
}

// maxWhole bounds integer fields to values a float64 holds exactly.
const maxWhole = 1 << 53

func wholeNumber(field string, v float64) (int64, error) {
	if v > maxWhole || v < -maxWhole || v != v {
		return 0, fmt.Errorf("%s %v out of range", field, v)
	}
	d := decimal.NewFromFloat(v)
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s must be a whole number, got %v", field, v)
	}
	return d.IntPart(), nil
}

func (d document) schedule() (*vending.FeeSchedule, error) {
	cost, err := vending.PercentFromFloat(d.CostPercent)
	if err != nil {
		return nil, fmt.Errorf("%w: fee_cost_percent: %v", vending.ErrInvalidSchedule, err)
	}
	prefer, err := vending.PercentFromFloat(d.PreferPercent)
	if err != nil {
		return nil, fmt.Errorf("%w: fee_prefer_percent: %v", vending.ErrInvalidSchedule, err)
	}
	fixed, err := wholeNumber("fee_fixed_cost", d.FixedCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vending.ErrInvalidSchedule, err)
	}
	cfg := vending.ScheduleConfig{
		CostPercent:   cost,
		FixedCost:     fixed,
		PreferPercent: prefer,
		Platforms:     make([]vending.PlatformEntry, 0, len(d.Platforms)),
	}
	for _, p := range d.Platforms {
		keep, err := vending.PercentFromFloat(p.KeepPercent)
		if err != nil {
			return nil, fmt.Errorf("%w: platform %s keep_percent: %v", vending.ErrInvalidSchedule, p.ID, err)
		}
		cfg.Platforms = append(cfg.Platforms, vending.PlatformEntry{
			ID:          p.ID,
			KeepPercent: keep,
			Aliases:     p.Aliases,
			DependsOn:   p.Depends,
		})
	}
	return vending.NewFeeSchedule(cfg)
}

func (d document) setups() ([]apps.Setup, error) {
	out := make([]apps.Setup, 0, len(d.Apps))
	for _, a := range d.Apps {
		share, err := wholeNumber("app "+a.ID+" app_share", a.AppShare)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apps.ErrInvalidSetup, err)
		}
		donation, err := wholeNumber("app "+a.ID+" recommended_donation", a.RecommendedDonation)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apps.ErrInvalidSetup, err)
		}
		minimum, err := wholeNumber("app "+a.ID+" minimum_payment", a.MinimumPayment)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apps.ErrInvalidSetup, err)
		}
		out = append(out, apps.Setup{
			AppID:               a.ID,
			Runtime:             a.Runtime,
			AppShare:            int(share),
			Currency:            a.Currency,
			RecommendedDonation: donation,
			MinimumPayment:      minimum,
		})
	}
	return out, nil
}

// Store holds the active snapshot and swaps it atomically on reload.
type Store struct {
	path    string
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewStore loads path and returns a store serving it.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore serves a fixed snapshot. Reload is a no-op returning it.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Current returns the active snapshot. Callers should read it once per computation.
func (s *Store) Current() *Snapshot {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Reload re-reads the document. The previous snapshot stays active on error.
func (s *Store) Reload() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		if snap := s.current.Load(); snap != nil {
			return snap, nil
		}
		return nil, errors.New("vending config path is empty")
	}
	snap, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return snap, nil
}

// Path returns the document path the store reloads from.
func (s *Store) Path() string { return s.path }
