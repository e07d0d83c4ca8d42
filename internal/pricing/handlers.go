package pricing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
)

var _ ServerInterface = (*Engine)(nil)

// Price a cart (POST /api/pricing/quote).
func (e *Engine) CreateQuote(w http.ResponseWriter, r *http.Request, params QuoteRequest) {
	q, err := e.Quote(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err = json.NewEncoder(w).Encode(q); err != nil {
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

	// Status Unprocessable Entity (422).
	case errors.Is(err, errs.ErrOutOfRange):
		code = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
