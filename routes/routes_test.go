package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scatch/feed"
	"scatch/globals"
	"scatch/middleware"
	"scatch/ratelim"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*httprouter.Router, *middleware.Auth) {
	t.Helper()
	sessions := middleware.NewAuth("test-secret", time.Hour, nil, false)
	router := httprouter.New()
	// handlers are never reached: every request below is rejected by the auth layer
	RoutesWrapper(router, Deps{
		Auth:        sessions,
		Hub:         feed.NewHub(),
		RateLimiter: ratelim.NewRateLimiter(100, 100),
	})
	return router, sessions
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "200", rec.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	router, _ := newRouter(t)

	protected := []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart/65a1b2c3d4e5f60718293a4b"},
		{http.MethodPost, "/api/cart/65a1b2c3d4e5f60718293a4b/update"},
		{http.MethodDelete, "/api/cart/65a1b2c3d4e5f60718293a4b"},
		{http.MethodPost, "/api/payments/create-order"},
		{http.MethodPost, "/api/payments/verify"},
		{http.MethodGet, "/api/payments/owner-revenue"},
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/orders/65a1b2c3d4e5f60718293a4b/receipt"},
		{http.MethodPost, "/api/products"},
		{http.MethodPut, "/api/products/65a1b2c3d4e5f60718293a4b"},
		{http.MethodDelete, "/api/products/65a1b2c3d4e5f60718293a4b"},
		{http.MethodGet, "/api/admin/products"},
		{http.MethodGet, "/api/owners/feed"},
	}

	for _, rt := range protected {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRoleSeparation(t *testing.T) {
	router, sessions := newRouter(t)

	userToken, _, err := sessions.Issue("65a1b2c3d4e5f60718293a4b", "shopper@example.com", globals.RoleUser)
	require.NoError(t, err)
	ownerToken, _, err := sessions.Issue("65a1b2c3d4e5f60718293a4c", "seller@example.com", globals.RoleOwner)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/owner-revenue", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
