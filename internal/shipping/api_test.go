package shipping

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/models/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRatesHandler(t *testing.T) {
	s := newTestService(t, &mockRepository{})
	h := HandlerWithOptions(s, ChiServerOptions{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shipping-rates", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got []PublicRate
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 15)
	assert.Equal(t, PublicRate{Weight: 0.1, Price: 300}, got[0])
	assert.Equal(t, PublicRate{Weight: 2, Price: 680}, got[14])
}

func TestReplaceRatesHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantLen  int
	}{
		{
			name:     "valid rows",
			body:     `[{"weightKg":0.5,"priceRub":250},{"weightKg":1,"priceRub":500}]`,
			wantCode: http.StatusOK,
			wantLen:  2,
		},
		{
			name:     "malformed rows are dropped",
			body:     `[{"weightKg":"heavy","priceRub":250},{"weightKg":1,"priceRub":500},{"priceRub":1}]`,
			wantCode: http.StatusOK,
			wantLen:  1,
		},
		{
			name:     "overweight row is dropped",
			body:     `[{"weightKg":100000,"priceRub":9000},{"weightKg":1,"priceRub":500}]`,
			wantCode: http.StatusOK,
			wantLen:  1,
		},
		{
			name:     "not an array",
			body:     `{"weightKg":1,"priceRub":500}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty body",
			body:     ``,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, &mockRepository{})
			h := HandlerWithOptions(s, ChiServerOptions{})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPut, "/api/admin/shipping-rates", strings.NewReader(tt.body))
			h.ServeHTTP(w, r)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				var e errs.JSON
				require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
				assert.NotEmpty(t, e.Error)
				return
			}

			var got []AdminRate
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestAdminMiddlewaresGuardOnlyAdminRoute(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}

	s := newTestService(t, &mockRepository{})
	h := HandlerWithOptions(s, ChiServerOptions{AdminMiddlewares: []MiddlewareFunc{deny}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/admin/shipping-rates", strings.NewReader(`[]`)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shipping-rates", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerFuncCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{errs.ErrValidation, http.StatusBadRequest},
		{errs.ErrOutOfRange, http.StatusUnprocessableEntity},
		{errs.ErrDataConflict, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		ErrorHandlerFunc(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
	}
}
