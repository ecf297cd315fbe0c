package quote

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-vending/internal/apps"
	"github.com/noah-isme/backend-vending/internal/common"
	"github.com/noah-isme/backend-vending/internal/obs"
	"github.com/noah-isme/backend-vending/internal/resilience"
	"github.com/noah-isme/backend-vending/internal/vending"
	"github.com/noah-isme/backend-vending/internal/vendingconfig"
)

// SnapshotSource provides the active vending configuration.
type SnapshotSource interface {
	Current() *vendingconfig.Snapshot
}

// Service answers revenue split questions against the active schedule.
type Service struct {
	Store  SnapshotSource
	Cache  *Cache
	Logger zerolog.Logger
}

// Request describes a quote for one application and amount.
type Request struct {
	AppID  string
	Amount vending.Money
	// AppShare overrides the app's configured developer share when set.
	AppShare  *int
	Preferred bool
}

// Quote resolves the app's shares and splits the amount across them.
func (s *Service) Quote(ctx context.Context, req Request) (vending.Result, error) {
	ctx, span := obs.Tracer("quote").Start(ctx, "QuoteService.Quote")
	defer span.End()

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("vending.quote.result", result))
		if obs.QuoteTotal != nil {
			obs.QuoteTotal.WithLabelValues(result).Inc()
		}
	}()

	snap, err := s.snapshot()
	if err != nil {
		return vending.Result{}, err
	}
	setup, err := snap.Apps.Get(req.AppID)
	if err != nil {
		result = "not_found"
		return vending.Result{}, toAppError(err)
	}
	if err := setup.CheckAmount(req.Amount); err != nil {
		result = "rejected"
		return vending.Result{}, toAppError(err)
	}

	share := setup.AppShare
	if req.AppShare != nil {
		share = *req.AppShare
	}
	share = vending.ClampAppShare(share)
	platform, err := snap.Schedule.Canonical(setup.Runtime)
	if err != nil {
		return vending.Result{}, toAppError(err)
	}
	span.SetAttributes(
		attribute.String("vending.app_id", setup.AppID),
		attribute.String("vending.platform", platform),
		attribute.Int("vending.app_share", share),
		attribute.Int64("vending.amount", req.Amount),
		attribute.Bool("vending.preferred", req.Preferred),
	)

	key := Key(snap.Version, setup.AppID, platform, share, req.Amount, req.Preferred)
	var cached vending.Result
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		s.countCache("bypass")
	case err != nil:
		s.Logger.Warn().Err(err).Str("key", key).Msg("quote cache lookup failed")
		s.countCache("error")
	case hit:
		s.countCache("hit")
		result = "cached"
		return cached, nil
	case s.Cache.Enabled():
		s.countCache("miss")
	}

	res, err := vending.Calculate(setup.Ref(), share, req.Amount, snap.Schedule, vending.WithPreferred(req.Preferred))
	if err != nil {
		span.RecordError(err)
		return vending.Result{}, toAppError(err)
	}
	if err := s.Cache.SetJSON(ctx, key, res); err != nil && !errors.Is(err, resilience.ErrOpenCircuit) {
		s.Logger.Warn().Err(err).Str("key", key).Msg("quote cache store failed")
	}
	if obs.QuoteAmount != nil {
		for _, a := range res.Breakdown {
			obs.QuoteAmount.WithLabelValues(string(a.Kind)).Observe(float64(a.Amount))
		}
	}
	result = "ok"
	return res, nil
}

// Shares resolves the payee weights for an app without splitting an amount.
func (s *Service) Shares(ctx context.Context, appID string, appShare *int) (vending.ShareSet, error) {
	_, span := obs.Tracer("quote").Start(ctx, "QuoteService.Shares")
	defer span.End()

	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	setup, err := snap.Apps.Get(appID)
	if err != nil {
		return nil, toAppError(err)
	}
	share := setup.AppShare
	if appShare != nil {
		share = *appShare
	}
	shares, err := vending.ResolveShares(setup.Ref(), share, snap.Schedule)
	if err != nil {
		return nil, toAppError(err)
	}
	return shares, nil
}

// Split applies the splitter to caller-supplied shares.
func (s *Service) Split(ctx context.Context, amount vending.Money, shares vending.ShareSet, preferred, lenient bool) (vending.Breakdown, error) {
	_, span := obs.Tracer("quote").Start(ctx, "QuoteService.Split")
	defer span.End()

	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	opts := []vending.SplitOption{vending.WithPreferred(preferred)}
	if lenient {
		opts = append(opts, vending.Lenient())
	}
	breakdown, err := vending.SplitAmount(amount, shares, snap.Schedule, opts...)
	if err != nil {
		return nil, toAppError(err)
	}
	return breakdown, nil
}

// Setup returns the vending setup for an app.
func (s *Service) Setup(_ context.Context, appID string) (apps.Setup, error) {
	snap, err := s.snapshot()
	if err != nil {
		return apps.Setup{}, err
	}
	setup, err := snap.Apps.Get(appID)
	if err != nil {
		return apps.Setup{}, toAppError(err)
	}
	return setup, nil
}

// Schedule returns a presentation of the active fee schedule.
func (s *Service) Schedule(_ context.Context) (ScheduleView, error) {
	snap, err := s.snapshot()
	if err != nil {
		return ScheduleView{}, err
	}
	return newScheduleView(snap), nil
}

func (s *Service) snapshot() (*vendingconfig.Snapshot, error) {
	if s == nil || s.Store == nil {
		return nil, common.NewAppError("INTERNAL", "quote service not configured", http.StatusInternalServerError, nil)
	}
	snap := s.Store.Current()
	if snap == nil || snap.Schedule == nil {
		return nil, common.NewAppError("SCHEDULE_UNAVAILABLE", "fee schedule not loaded", http.StatusServiceUnavailable, nil)
	}
	return snap, nil
}

func (s *Service) countCache(result string) {
	if obs.QuoteCacheTotal != nil {
		obs.QuoteCacheTotal.WithLabelValues(result).Inc()
	}
}

func toAppError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, vending.ErrInvalidPrice):
		return common.NewAppError("INVALID_PRICE", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, vending.ErrInvalidShareSet):
		return common.NewAppError("INVALID_SHARES", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, vending.ErrUnknownPlatform):
		return common.NewAppError("UNKNOWN_PLATFORM", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, apps.ErrAppNotFound):
		return common.NewAppError("NOT_FOUND", "app has no vending setup", http.StatusNotFound, err)
	case errors.Is(err, apps.ErrBelowMinimum):
		appErr := common.NewAppError("BELOW_MINIMUM", err.Error(), http.StatusUnprocessableEntity, err)
		var below *apps.BelowMinimumError
		if errors.As(err, &below) {
			appErr.Details = map[string]any{"minimum_payment": below.Minimum}
		}
		return appErr
	default:
		return err
	}
}
