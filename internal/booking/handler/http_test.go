package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/cabbook/internal/booking/domain"
	"github.com/example/cabbook/internal/booking/handler"
	"github.com/example/cabbook/internal/booking/repository"
	"github.com/example/cabbook/internal/booking/service"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(repository.NewMemoryStore(), nil, domain.SystemClock{}, repository.NewMemoryIdempotencyRepo(0), nil,
		service.WithPasswordCost(bcrypt.MinCost))
	srv := httptest.NewServer(handler.NewHTTP(svc).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestTripLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/trips", map[string]any{"customer_id": 1, "distance_km": 5})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/customers", map[string]any{"mobile": "555", "name": "Ada", "password": "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	customer := decode[domain.Customer](t, resp)

	resp = do(t, http.MethodPost, srv.URL+"/v1/trips", map[string]any{"customer_id": customer.ID, "from_location": "A", "to_location": "B", "distance_km": 5})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/drivers", map[string]any{"mobile": "1", "name": "D1", "per_km_rate": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/v1/drivers", map[string]any{"mobile": "2", "name": "D2", "per_km_rate": 20})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/trips",
		map[string]any{"customer_id": customer.ID, "from_location": "A", "to_location": "B", "distance_km": 5},
		"Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	trip := decode[domain.TripBooking](t, resp)
	require.Equal(t, int64(50), trip.Bill)
	require.Equal(t, domain.StatusConfirmed, trip.Status)

	resp = do(t, http.MethodGet, srv.URL+"/v1/drivers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	drivers := decode[[]domain.Driver](t, resp)
	require.Len(t, drivers, 2)
	require.False(t, drivers[0].Cab.Available)

	resp = do(t, http.MethodPost, srv.URL+"/v1/trips/"+itoa(trip.ID)+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	completed := decode[domain.TripBooking](t, resp)
	require.Equal(t, domain.StatusCompleted, completed.Status)
	require.Equal(t, int64(50), completed.Bill)

	resp = do(t, http.MethodPost, srv.URL+"/v1/trips/"+itoa(trip.ID)+"/cancel", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/trips/"+itoa(trip.ID)+"/receipt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp = do(t, http.MethodDelete, srv.URL+"/v1/customers/"+itoa(customer.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/trips/"+itoa(trip.ID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidInputs(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/v1/trips/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/drivers", map[string]any{"mobile": "1", "per_km_rate": -3})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/customers", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/docs/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "/v1/trips/{id}/cancel")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
