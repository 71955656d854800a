package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return &Handler{Svc: newTestService(t, nil), Validate: validator.New()}
}

func postQuote(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Quote(rec, req)
	return rec
}

func TestQuoteHandler(t *testing.T) {
	rec := postQuote(t, newTestHandler(t), `{"items":{"B01":2,"R01":3}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "114.75", body.Data.Subtotal)
	require.Equal(t, "16.48", body.Data.Discount)
	require.Equal(t, "0.00", body.Data.Delivery)
	require.Equal(t, "98.27", body.Data.Total)
	require.Nil(t, body.Data.NextDeliverySaving)
}

func TestQuoteHandlerRejectsBadPayload(t *testing.T) {
	h := newTestHandler(t)
	for name, body := range map[string]string{
		"malformed":     `{"items":`,
		"unknown field": `{"basket":["R01"]}`,
		"zero quantity": `{"items":{"R01":0}}`,
		"too many":      `{"items":{"R01":101}}`,
		"blank code":    `{"codes":[""]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postQuote(t, h, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), "BAD_REQUEST")
		})
	}
}

func TestQuoteHandlerUnknownProduct(t *testing.T) {
	rec := postQuote(t, newTestHandler(t), `{"codes":["R01","Z42"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "UNKNOWN_PRODUCT", body.Error.Code)
	require.Equal(t, "Z42", body.Error.Details["code"])
}

func TestQuoteHandlerNotConfigured(t *testing.T) {
	rec := postQuote(t, &Handler{}, `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDeliveryHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).Delivery(rec, httptest.NewRequest(http.MethodGet, "/api/v1/delivery", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Tiers        []TierView `json:"tiers"`
			FreeAboveTop bool       `json:"freeAboveTop"`
			Currency     string     `json:"currency"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []TierView{{Below: "50.00", Charge: "4.95"}, {Below: "90.00", Charge: "2.95"}}, body.Data.Tiers)
	require.True(t, body.Data.FreeAboveTop)
	require.Equal(t, "USD", body.Data.Currency)
}

func TestOffersHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).Offers(rec, httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []OfferView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "red-bogohp", body.Data[0].Name)
	require.Equal(t, "R01", body.Data[0].Trigger)
	require.Equal(t, "0.5", body.Data[0].Fraction)
}
