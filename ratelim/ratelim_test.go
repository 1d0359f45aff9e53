package ratelim

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func okHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
}

func hit(h httprouter.Handle, remote string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h(rec, req, nil)
	return rec.Code
}

func TestLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Limit(okHandler)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5002"))

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:5000"))
}

func TestForwardedForKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	assert.Equal(t, "127.0.0.1", clientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientKey(req))
}

func TestCleanupDropsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(5 * time.Minute)
	rl.getLimiter("b")
	now = now.Add(6 * time.Minute)

	rl.Cleanup(idleTTL)
	assert.Equal(t, 1, rl.size())
}
