package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/payment"
)

type paymentEventRequest struct {
	UserID      string `json:"user_id"`
	ProductType string `json:"product_type"`
	ProviderRef string `json:"provider_ref"`
	AmountPaid  int64  `json:"amount_paid"`
}

// PaymentEventsCreate accepts verified payment events from the payment
// boundary. Signature verification happened upstream; this handler trusts
// the payload. Duplicate deliveries return 200 so the sender stops
// retrying.
func (a *App) PaymentEventsCreate(w http.ResponseWriter, r *http.Request) {
	var req paymentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.UserID == "" || req.ProviderRef == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id and provider_ref are required")
		return
	}

	err := a.Applier.Apply(r.Context(), payment.Event{
		UserID:      req.UserID,
		ProductType: domain.ProductType(req.ProductType),
		ProviderRef: req.ProviderRef,
		AmountPaid:  req.AmountPaid,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedProduct) {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported product type")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to apply payment event")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"received": true})
}
