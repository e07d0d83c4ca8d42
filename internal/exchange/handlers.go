package exchange

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/rate"
	"github.com/shopspring/decimal"
)

// RateResponse is the admin view of the current rate.
type RateResponse struct {
	UpdatedAt time.Time       `json:"updatedAt"`
	Source    rate.Source     `json:"source"`
	EURRate   decimal.Decimal `json:"eurRate"`
	RUBRate   decimal.Decimal `json:"rubRate"`
	RUBPerEUR decimal.Decimal `json:"rubPerEur"`
}

// RefreshResponse tells whether the live fetch succeeded.
type RefreshResponse struct {
	Source rate.Source   `json:"source"`
	Rate   *RateResponse `json:"rate"`
}

func NewRateResponse(er *rate.ExchangeRate) *RateResponse {
	return &RateResponse{
		UpdatedAt: er.UpdatedAt,
		Source:    er.Source,
		EURRate:   er.EURRate,
		RUBRate:   er.RUBRate,
		RUBPerEUR: er.RUBPerEUR().Round(4),
	}
}

var _ ServerInterface = (*Service)(nil)

// Current rate (GET /api/admin/rates).
func (s *Service) GetRate(w http.ResponseWriter, r *http.Request) {
	er, err := s.Get(r.Context())
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, NewRateResponse(er))
}

// Manual override (POST /api/admin/rates).
func (s *Service) SetRate(w http.ResponseWriter, r *http.Request, params SetRateParams) {
	er, err := s.SetManual(r.Context(), params.RUBPerUSD, params.RUBPerEUR)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, NewRateResponse(er))
}

// Pull rates from the central bank (POST /api/admin/rates/refresh).
func (s *Service) RefreshRates(w http.ResponseWriter, r *http.Request) {
	er, err := s.Refresh(r.Context())
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, &RefreshResponse{
		Source: er.Source,
		Rate:   NewRateResponse(er),
	})
}

// Audit log (GET /api/admin/rates/history).
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request, params HistoryParams) {
	entries, err := s.History(r.Context(), params.Limit)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, entries)
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

	// Status Too Many Requests (429).
	case errors.Is(err, errs.ErrRateLimit):
		code = http.StatusTooManyRequests
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
