package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-vending/internal/common"
	"github.com/noah-isme/backend-vending/internal/vending"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler exposes the vending quote endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the public vending endpoints on r. The computing endpoints are
// wrapped with limit.
func (h *Handler) Routes(r chi.Router, limit ...func(http.Handler) http.Handler) {
	r.Get("/config", h.Config)
	r.Get("/apps/{appId}", h.App)
	r.Get("/apps/{appId}/shares", h.Shares)
	r.With(limit...).Post("/apps/{appId}/quote", h.Quote)
	r.With(limit...).Post("/split", h.Split)
}

type quoteRequest struct {
	Amount    *int64 `json:"amount" validate:"required"`
	AppShare  *int   `json:"app_share" validate:"omitempty,gte=10,lte=100"`
	Preferred bool   `json:"preferred"`
}

type shareBody struct {
	PayeeID  string `json:"payee_id" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=developer platform"`
	WeightBP int64  `json:"weight_bp" validate:"gte=0,lte=10000"`
}

type splitRequest struct {
	Amount    *int64      `json:"amount" validate:"required"`
	Shares    []shareBody `json:"shares" validate:"required,min=1,dive"`
	Preferred bool        `json:"preferred"`
	Lenient   bool        `json:"lenient"`
}

// Config handles GET /api/v1/vending/config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	view, err := h.Svc.Schedule(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// App handles GET /api/v1/vending/apps/{appId}.
func (h *Handler) App(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	setup, err := h.Svc.Setup(r.Context(), chi.URLParam(r, "appId"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": setup})
}

// Shares handles GET /api/v1/vending/apps/{appId}/shares.
func (h *Handler) Shares(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	appShare, err := common.OptionalInt(r.URL.Query().Get("app_share"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "app_share must be an integer", nil)
		return
	}
	if appShare != nil && (*appShare < vending.MinAppShare || *appShare > vending.MaxAppShare) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "app_share out of range", map[string]any{
			"app_share": *appShare,
			"min":       vending.MinAppShare,
			"max":       vending.MaxAppShare,
		})
		return
	}
	shares, err := h.Svc.Shares(r.Context(), chi.URLParam(r, "appId"), appShare)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": shares})
}

// Quote handles POST /api/v1/vending/apps/{appId}/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req quoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.Svc.Quote(r.Context(), Request{
		AppID:     chi.URLParam(r, "appId"),
		Amount:    *req.Amount,
		AppShare:  req.AppShare,
		Preferred: req.Preferred,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Split handles POST /api/v1/vending/split.
func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req splitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	shares := make(vending.ShareSet, 0, len(req.Shares))
	for _, sh := range req.Shares {
		shares = append(shares, vending.Share{
			PayeeID: sh.PayeeID,
			Kind:    vending.PayeeKind(sh.Kind),
			Weight:  vending.Percent(sh.WeightBP),
		})
	}
	breakdown, err := h.Svc.Split(r.Context(), *req.Amount, shares, req.Preferred, req.Lenient)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"amount":    *req.Amount,
		"breakdown": breakdown,
	}})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return false
	}
	return true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return false
	}
	return true
}
