package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/metrics"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/netutil"
	"github.com/go-chi/chi/v5"
)

// Accepted correlation id fields in lookup order.
var paymentIDFields = []string{"qrId", "id", "paymentId"}

// Accepted status fields in lookup order.
var statusFields = []string{"status", "Status"}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Provider callback (POST /api/payments/webhook).
	PaymentWebhook(w http.ResponseWriter, r *http.Request, params Event)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// PaymentWebhook operation middleware.
func (siw *ServerInterfaceWrapper) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	params, err := ParseEvent(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.PaymentWebhook(w, r, params)
}

// ParseEvent reads a webhook body. The correlation id is the first
// non-empty string among qrId, id and paymentId. The status is matched
// case-insensitively.
func ParseEvent(body io.Reader) (Event, error) {
	var payload map[string]any

	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, fmt.Errorf("%w: empty body", errs.ErrInvalidPayload)
		}
		return Event{}, fmt.Errorf("%w: body must be a JSON object", errs.ErrInvalidPayload)
	}
	if payload == nil {
		return Event{}, fmt.Errorf("%w: body must be a JSON object", errs.ErrInvalidPayload)
	}

	var ev Event

	for _, f := range paymentIDFields {
		if s, ok := payload[f].(string); ok && strings.TrimSpace(s) != "" {
			ev.PaymentID = strings.TrimSpace(s)
			break
		}
	}
	if ev.PaymentID == "" {
		return Event{}, &errs.RequiredJSONBodyParamError{ParamName: "qrId"}
	}

	var raw string
	for _, f := range statusFields {
		if s, ok := payload[f].(string); ok && s != "" {
			raw = s
			break
		}
	}

	ev.Status = ProviderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := ev.Status.Target(); !ok {
		return Event{}, fmt.Errorf("%w: status must be one of PAID, CANCELLED, EXPIRED", errs.ErrValidation)
	}

	return ev, nil
}

// OriginAllowList rejects requests whose client address is not listed.
func OriginAllowList(
	list *netutil.AllowList, trustProxy bool, logger logger.Logger, metrics *metrics.Metrics,
) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			ip := netutil.ClientIP(r, trustProxy)
			if !list.Contains(ip) {
				metrics.WebhookEvent("forbidden")
				logger.With(r.Context(), "ip", ip, "remote_addr", r.RemoteAddr).
					Warn("security: payment webhook from a disallowed origin")
				ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrUnauthorizedOrigin, ip))
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(f)
	}
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
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
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/webhook", wrapper.PaymentWebhook)
	})

	return r
}
