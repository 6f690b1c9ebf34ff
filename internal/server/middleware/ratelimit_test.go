package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pagecap/internal/server/middleware"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitByIP_FirstRequestPasses(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(testContext(t), 1, 1)(okHandler)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, requestFrom("127.0.0.1:51000"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	// Very low rate (effectively zero refill during the test) with burst of 2.
	handler := middleware.RateLimitByIP(testContext(t), 0.001, 2)(okHandler)

	// First two requests consume the burst.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("127.0.0.1:51000"))
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	// Third request exceeds burst.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("127.0.0.1:51000"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimitByIP_IndependentPerIP(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(testContext(t), 0.001, 1)(okHandler)

	// Exhaust the first address's burst.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:40000"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:40000"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different address is still allowed.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.2:40000"))

	assert.Equal(t, http.StatusOK, rec.Code)
}
