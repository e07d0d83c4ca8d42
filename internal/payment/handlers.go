package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
)

// Ack is the provider facing success body.
type Ack struct {
	OK bool `json:"ok"`
}

var _ ServerInterface = (*Service)(nil)

// Provider callback (POST /api/payments/webhook).
func (s *Service) PaymentWebhook(w http.ResponseWriter, r *http.Request, params Event) {
	if _, err := s.Reconcile(r.Context(), params); err != nil {
		s.logger.With(r.Context(), "payment_id", params.PaymentID).
			Errorf("reconcile payment webhook: %s", err)
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(Ack{OK: true}); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrValidation) ||
		errors.Is(err, errs.ErrInvalidPayload):
		code = http.StatusBadRequest

	// Status Forbidden (403).
	case errors.Is(err, errs.ErrUnauthorizedOrigin):
		code = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
