package quote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-vending/internal/vending"
)

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	h := &Handler{Svc: newTestService(t, nil)}
	r := chi.NewRouter()
	r.Route("/api/v1/vending", func(r chi.Router) { h.Routes(r) })
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerConfig(t *testing.T) {
	rec := doRequest(t, newTestRouter(t), http.MethodGet, "/api/v1/vending/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Version       string `json:"version"`
			CostPercent   string `json:"fee_cost_percent"`
			FixedCost     int64  `json:"fee_fixed_cost"`
			PreferPercent string `json:"fee_prefer_percent"`
			Platforms     []struct {
				ID      string   `json:"id"`
				Keep    string   `json:"keep_percent"`
				Aliases []string `json:"aliases"`
			} `json:"platforms"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "v1", body.Data.Version)
	require.Equal(t, "5", body.Data.CostPercent)
	require.Equal(t, "2", body.Data.PreferPercent)
	require.Equal(t, int64(2), body.Data.FixedCost)
	require.Len(t, body.Data.Platforms, 1)
	require.Equal(t, "100", body.Data.Platforms[0].Keep)
	require.Equal(t, []string{"org.gnome.Legacy"}, body.Data.Platforms[0].Aliases)
}

func TestHandlerApp(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/vending/apps/org.example.App", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"minimum_payment":100`)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/vending/apps/org.example.Nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestHandlerShares(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/vending/apps/org.example.App/shares?app_share=70", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data vending.ShareSet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, vending.ShareSet{
		{PayeeID: "org.example.App", Kind: vending.KindDeveloper, Weight: 7_000},
		{PayeeID: "org.freedesktop.Gnome", Kind: vending.KindPlatform, Weight: 3_000},
	}, body.Data)

	for _, q := range []string{"lots", "5", "101"} {
		rec = doRequest(t, router, http.MethodGet, "/api/v1/vending/apps/org.example.App/shares?app_share="+q, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, "app_share=%s", q)
		require.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error.Code)
	}
}

func TestHandlerQuote(t *testing.T) {
	router := newTestRouter(t)

	t.Run("ok", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/apps/org.example.App/quote", `{"amount":400}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data vending.Result `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, vending.Money(400), body.Data.Breakdown.Total())
		require.Equal(t, vending.Money(22), body.Data.Breakdown.Fee())
	})

	t.Run("missing amount", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/apps/org.example.App/quote", `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		require.Equal(t, "required", body.Error.Details["amount"])
	})

	t.Run("share out of range", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/apps/org.example.App/quote", `{"amount":400,"app_share":5}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "gte", decodeError(t, rec).Error.Details["app_share"])
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/apps/org.example.App/quote", `{"amount":400,"tip":1}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "BAD_REQUEST", decodeError(t, rec).Error.Code)
	})

	t.Run("negative amount", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/apps/org.example.App/quote", `{"amount":-5}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "INVALID_PRICE", decodeError(t, rec).Error.Code)
	})

	t.Run("below minimum", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/apps/org.example.App/quote", `{"amount":50}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "BELOW_MINIMUM", decodeError(t, rec).Error.Code)
	})
}

func TestHandlerSplit(t *testing.T) {
	router := newTestRouter(t)

	t.Run("ok", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/split", `{
			"amount": 400,
			"shares": [
				{"payee_id": "dev", "kind": "developer", "weight_bp": 5000},
				{"payee_id": "org.freedesktop.Gnome", "kind": "platform", "weight_bp": 5000}
			]
		}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data struct {
				Amount    int64             `json:"amount"`
				Breakdown vending.Breakdown `json:"breakdown"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, int64(400), body.Data.Amount)
		require.Equal(t, vending.Breakdown{
			{PayeeID: vending.FeePayee, Kind: vending.KindFee, Amount: 22},
			{PayeeID: "dev", Kind: vending.KindDeveloper, Amount: 189},
			{PayeeID: "org.freedesktop.Gnome", Kind: vending.KindPlatform, Amount: 189},
		}, body.Data.Breakdown)
	})

	t.Run("invalid weights", func(t *testing.T) {
		payload := `{"amount": 400, "shares": [{"payee_id": "dev", "kind": "developer", "weight_bp": 4000}]}`
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/split", payload)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "INVALID_SHARES", decodeError(t, rec).Error.Code)
	})

	t.Run("lenient", func(t *testing.T) {
		payload := `{"amount": 400, "lenient": true, "shares": [
			{"payee_id": "dev", "kind": "developer", "weight_bp": 4000},
			{"payee_id": "org.freedesktop.Gnome", "kind": "platform", "weight_bp": 100}
		]}`
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/split", payload)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `{"payee_id":"org.freedesktop.Gnome","kind":"platform","amount":378}`)
	})

	t.Run("weight above full", func(t *testing.T) {
		payload := `{"amount": 400, "shares": [
			{"payee_id": "a", "kind": "platform", "weight_bp": 4611686018427387904},
			{"payee_id": "b", "kind": "platform", "weight_bp": 4611686018427387904},
			{"payee_id": "c", "kind": "platform", "weight_bp": 4611686018427387904},
			{"payee_id": "d", "kind": "developer", "weight_bp": 4611686018427397904}
		]}`
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/split", payload)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error.Code)

		payload = `{"amount": 400, "lenient": true, "shares": [{"payee_id": "d", "kind": "developer", "weight_bp": -1}]}`
		rec = doRequest(t, router, http.MethodPost, "/api/v1/vending/split", payload)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty shares", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/split", `{"amount": 400, "shares": []}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "min", decodeError(t, rec).Error.Details["shares"])
	})

	t.Run("bad kind", func(t *testing.T) {
		payload := `{"amount": 400, "shares": [{"payee_id": "x", "kind": "fee", "weight_bp": 10000}]}`
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vending/split", payload)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error.Code)
	})
}

func TestHandlerWithoutService(t *testing.T) {
	h := &Handler{}
	rec := httptest.NewRecorder()
	h.Config(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vending/config", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
