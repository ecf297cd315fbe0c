package admin

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-vending/internal/common"
	"github.com/noah-isme/backend-vending/internal/obs"
	"github.com/noah-isme/backend-vending/internal/vendingconfig"
)

// Reloader swaps the active vending configuration.
type Reloader interface {
	Current() *vendingconfig.Snapshot
	Reload() (*vendingconfig.Snapshot, error)
}

// Handler exposes operator endpoints for the vending configuration.
type Handler struct {
	Store  Reloader
	Logger zerolog.Logger
}

type reloadResponse struct {
	Version         string    `json:"version"`
	PreviousVersion string    `json:"previous_version,omitempty"`
	Changed         bool      `json:"changed"`
	LoadedAt        time.Time `json:"loaded_at"`
	Apps            int       `json:"apps"`
	Platforms       int       `json:"platforms"`
}

// Reload handles POST /api/v1/admin/vending/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "vending store unavailable", nil)
		return
	}
	var previous string
	if snap := h.Store.Current(); snap != nil {
		previous = snap.Version
	}
	subject, _ := common.Subject(r.Context())

	_, span := obs.Tracer("admin").Start(r.Context(), "Admin.ReloadSchedule")
	defer span.End()

	snap, err := h.Store.Reload()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload rejected")
		countReload("error")
		h.Logger.Error().Err(err).Str("subject", subject).Str("version", previous).Msg("vending config reload rejected")
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CONFIG", err.Error(), map[string]any{
			"active_version": previous,
		})
		return
	}
	span.SetAttributes(attribute.String("vending.schedule_version", snap.Version))
	countReload("ok")
	h.Logger.Info().Str("subject", subject).Str("version", snap.Version).Str("previous_version", previous).Msg("vending config reloaded")

	common.JSON(w, http.StatusOK, map[string]any{"data": reloadResponse{
		Version:         snap.Version,
		PreviousVersion: previous,
		Changed:         previous != snap.Version,
		LoadedAt:        snap.LoadedAt,
		Apps:            snap.Apps.Len(),
		Platforms:       len(snap.Schedule.Platforms()),
	}})
}

func countReload(result string) {
	if obs.ScheduleReloadTotal != nil {
		obs.ScheduleReloadTotal.WithLabelValues(result).Inc()
	}
}
