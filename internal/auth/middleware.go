package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/config"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/jwt"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/user"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
)

// Authorization cookie and header name.
const authKey = "Authorization"

// AdminOnly returns a middleware which lets through only requests carrying
// a valid token with the admin claim. Tokens are read from the
// Authorization header or, failing that, from the Authorization cookie.
func AdminOnly(cfg *config.Config, logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				ErrorHandlerFunc(w, r, fmt.Errorf("%w: authorization token not found", errs.ErrUnauthorized))
				return
			}

			u, err := jwt.GetUser(token, cfg.JWT.SigningKey)
			if err != nil {
				ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrUnauthorized, err))
				return
			}

			if !u.Admin {
				logger.With(r.Context(), "user_id", u.ID, "path", r.URL.Path).
					Warn("non-admin user tried to reach admin endpoint")
				ErrorHandlerFunc(w, r, fmt.Errorf("%w: admin role required", errs.ErrForbidden))
				return
			}

			next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), u)))
		}

		return http.HandlerFunc(f)
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(authKey)); h != "" {
		return h
	}
	c, err := r.Cookie(authKey)
	if err != nil {
		return ""
	}
	return c.Value
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Unauthorized (401).
	case errors.Is(err, errs.ErrUnauthorized):
		code = http.StatusUnauthorized

	// Status Forbidden (403).
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
