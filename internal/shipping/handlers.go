package shipping

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
)

// PublicRate is the storefront view of a ladder step.
type PublicRate struct {
	Weight float64 `json:"weight"`
	Price  int64   `json:"price"`
}

// AdminRate is a stored ladder step.
type AdminRate struct {
	ID       int     `json:"id"`
	WeightKg float64 `json:"weightKg"`
	PriceRub int64   `json:"priceRub"`
}

var _ ServerInterface = (*Service)(nil)

// Public ladder (GET /api/shipping-rates).
func (s *Service) ListRates(w http.ResponseWriter, r *http.Request) {
	table, err := s.List(r.Context())
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	res := make([]PublicRate, 0, len(table))
	for _, sr := range table {
		res = append(res, PublicRate{Weight: sr.WeightKg.InexactFloat64(), Price: sr.PriceRub})
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Replace the whole table (PUT /api/admin/shipping-rates).
func (s *Service) ReplaceRates(w http.ResponseWriter, r *http.Request, params []Input) {
	table, err := s.Replace(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	res := make([]AdminRate, 0, len(table))
	for _, sr := range table {
		res = append(res, AdminRate{ID: sr.ID, WeightKg: sr.WeightKg.InexactFloat64(), PriceRub: sr.PriceRub})
	}

	writeJSON(w, r, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
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

	// Status Conflict (409).
	case errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict

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
