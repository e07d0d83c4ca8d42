package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// SetRateParams defines parameters for SetRate.
type SetRateParams struct {
	RUBPerUSD float64 `json:"rubPerUsd" validate:"required,gt=0"`
	RUBPerEUR float64 `json:"rubPerEur" validate:"required,gt=0"`
}

// HistoryParams defines parameters for GetHistory.
type HistoryParams struct {
	Limit int
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Current rate (GET /api/admin/rates).
	GetRate(w http.ResponseWriter, r *http.Request)
	// Manual override (POST /api/admin/rates).
	SetRate(w http.ResponseWriter, r *http.Request, params SetRateParams)
	// Pull rates from the central bank (POST /api/admin/rates/refresh).
	RefreshRates(w http.ResponseWriter, r *http.Request)
	// Audit log (GET /api/admin/rates/history).
	GetHistory(w http.ResponseWriter, r *http.Request, params HistoryParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	validate         *validator.Validate
}

type MiddlewareFunc func(http.Handler) http.Handler

// SetRate operation middleware.
func (siw *ServerInterfaceWrapper) SetRate(w http.ResponseWriter, r *http.Request) {
	var params SetRateParams

	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		siw.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	// ------------- Required positive "rubPerUsd" and "rubPerEur" -----

	if err := siw.validator().Struct(params); err != nil {
		siw.ErrorHandlerFunc(w, r, validationError(err))
		return
	}

	siw.Handler.SetRate(w, r, params)
}

// GetHistory operation middleware.
func (siw *ServerInterfaceWrapper) GetHistory(w http.ResponseWriter, r *http.Request) {
	var params HistoryParams

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			siw.ErrorHandlerFunc(w, r,
				fmt.Errorf("%w: limit must be a non-negative integer", errs.ErrValidation))
			return
		}
		params.Limit = limit
	}

	siw.Handler.GetHistory(w, r, params)
}

func (siw *ServerInterfaceWrapper) validator() *validator.Validate {
	if siw.validate == nil {
		siw.validate = validator.New()
	}
	return siw.validate
}

// Handler creates http.Handler with default options.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	// Applied to every route.
	Middlewares []MiddlewareFunc
	// Applied additionally to the rate changing routes.
	WriteMiddlewares []MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = ErrorHandlerFunc
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
		validate:         validator.New(),
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Get(options.BaseURL+"/rates", si.GetRate)
		r.Get(options.BaseURL+"/rates/history", wrapper.GetHistory)

		r.Group(func(r chi.Router) {
			for _, middleware := range options.WriteMiddlewares {
				r.Use(middleware)
			}
			r.Post(options.BaseURL+"/rates", wrapper.SetRate)
			r.Post(options.BaseURL+"/rates/refresh", si.RefreshRates)
		})
	})

	return r
}

func checkJSONDecodeError(err error) error {
	var e *json.UnmarshalTypeError
	if errors.As(err, &e) {
		return fmt.Errorf("%w: %s must be of type %s, got %s",
			errs.ErrInvalidPayload, e.Field, e.Type, e.Value)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errs.ErrInvalidPayload)
	}

	return fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err)
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return fmt.Errorf("%w: %s must be a positive number", errs.ErrValidation, jsonFieldName(fe.Field()))
	}
	return fmt.Errorf("%w: %s", errs.ErrValidation, err)
}

func jsonFieldName(field string) string {
	switch field {
	case "RUBPerUSD":
		return "rubPerUsd"
	case "RUBPerEUR":
		return "rubPerEur"
	}
	return field
}
