package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/acme-checkout/internal/common"
	"github.com/noah-isme/acme-checkout/internal/pricing"
)

// Handler serves the checkout endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// TierView is one row of the delivery table.
type TierView struct {
	Below  string `json:"below"`
	Charge string `json:"charge"`
}

// OfferView is a configured offer rule.
type OfferView struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Trigger     string `json:"trigger"`
	TriggerQty  int    `json:"triggerQty"`
	Benefit     string `json:"benefit"`
	BenefitQty  int    `json:"benefitQty"`
	Fraction    string `json:"fraction"`
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload Input
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", validationDetails(err))
			return
		}
	}
	out, err := h.Svc.Quote(r.Context(), payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Respond(w, r, http.StatusOK, map[string]any{"data": out})
}

// Delivery handles GET /api/v1/delivery.
func (h *Handler) Delivery(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Delivery == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "delivery not configured", nil)
		return
	}
	tiers := h.Svc.Delivery.Tiers()
	views := make([]TierView, 0, len(tiers))
	for _, t := range tiers {
		views = append(views, TierView{Below: pricing.Format(t.Threshold), Charge: pricing.Format(t.Charge)})
	}
	common.Respond(w, r, http.StatusOK, map[string]any{"data": map[string]any{
		"tiers":        views,
		"freeAboveTop": h.Svc.Delivery.FreeAboveTop(),
		"currency":     h.Svc.Currency,
	}})
}

// Offers handles GET /api/v1/offers.
func (h *Handler) Offers(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Offers == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offers not configured", nil)
		return
	}
	rules := h.Svc.Offers.Rules()
	views := make([]OfferView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, OfferView{
			Name:        rule.Label(),
			Description: rule.Description,
			Trigger:     rule.TriggerCode,
			TriggerQty:  rule.TriggerQty,
			Benefit:     rule.BenefitCode,
			BenefitQty:  rule.BenefitQty,
			Fraction:    rule.Fraction.String(),
		})
	}
	common.Respond(w, r, http.StatusOK, map[string]any{"data": views})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
