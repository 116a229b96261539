package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLimited(t *testing.T, read, write RateConfig) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := NewRateLimiter(client, nil, read, write)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	return limiter.Middleware(ok), mr
}

func send(h http.Handler, method, client string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/v1/trips", nil)
	req.Header.Set("X-Client-ID", client)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWriteBucketExhausts(t *testing.T) {
	h, _ := newLimited(t, RateConfig{Rate: 100, Burst: 100}, RateConfig{Rate: 0.01, Burst: 2})

	require.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "c1").Code)
	require.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "c1").Code)

	rec := send(h, http.MethodPost, "c1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other clients and the read bucket are unaffected
	require.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "c2").Code)
	require.Equal(t, http.StatusNoContent, send(h, http.MethodGet, "c1").Code)
}

func TestRedisFailureLetsRequestsThrough(t *testing.T) {
	h, mr := newLimited(t, RateConfig{Rate: 1, Burst: 1}, RateConfig{Rate: 1, Burst: 1})
	mr.Close()

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "c1").Code)
	}
}

func TestNilLimiterPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil, nil, RateConfig{Rate: 1, Burst: 1}, RateConfig{Rate: 1, Burst: 1})
	require.Nil(t, limiter)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := limiter.Middleware(ok)
	require.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "c1").Code)
}

func TestClientIdentifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "10.0.0.1", clientIdentifier(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	require.Equal(t, "1.2.3.4", clientIdentifier(req))

	req.Header.Set("X-Client-ID", "mobile-app")
	require.Equal(t, "mobile-app", clientIdentifier(req))
}
