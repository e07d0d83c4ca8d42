package shipping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Public ladder (GET /api/shipping-rates).
	ListRates(w http.ResponseWriter, r *http.Request)
	// Replace the whole table (PUT /api/admin/shipping-rates).
	ReplaceRates(w http.ResponseWriter, r *http.Request, params []Input)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// ReplaceRates operation middleware. Rows that fail to decode are dropped.
func (siw *ServerInterfaceWrapper) ReplaceRates(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage

	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		siw.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	params := make([]Input, 0, len(raw))
	for _, row := range raw {
		var in Input
		if err := json.Unmarshal(row, &in); err != nil {
			continue
		}
		params = append(params, in)
	}

	siw.Handler.ReplaceRates(w, r, params)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	// Applied to the public route.
	PublicMiddlewares []MiddlewareFunc
	// Applied to the admin route.
	AdminMiddlewares []MiddlewareFunc
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
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.PublicMiddlewares {
			r.Use(middleware)
		}
		r.Get("/api/shipping-rates", si.ListRates)
	})

	r.Group(func(r chi.Router) {
		for _, middleware := range options.AdminMiddlewares {
			r.Use(middleware)
		}
		r.Put("/api/admin/shipping-rates", wrapper.ReplaceRates)
	})

	return r
}

func checkJSONDecodeError(err error) error {
	var e *json.UnmarshalTypeError
	if errors.As(err, &e) {
		return fmt.Errorf("%w: body must be an array of shipping rates", errs.ErrInvalidPayload)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errs.ErrInvalidPayload)
	}

	return fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err)
}
