package limiter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
)

// KeyFunc extracts the client identity from the request.
type KeyFunc func(r *http.Request) string

// Middleware admits at most limit requests per window for every
// scope:client pair and answers 429 Too Many Requests otherwise.
// onReject is optional and is called for every denied request.
func Middleware(
	l *FixedWindow, scope string, limit int, length time.Duration, key KeyFunc, onReject func(scope string),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			d := l.Check(scope+":"+key(r), limit, length)
			if !d.Allowed {
				if onReject != nil {
					onReject(scope)
				}

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSec))
				w.WriteHeader(http.StatusTooManyRequests)

				errJSON := errs.JSON{Error: fmt.Sprintf("%s: retry after %d seconds", errs.ErrRateLimit, d.RetryAfterSec)}
				if err := json.NewEncoder(w).Encode(errJSON); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
				}
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(f)
	}
}
