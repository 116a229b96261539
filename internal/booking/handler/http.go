package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/cabbook/internal/booking/domain"
	"github.com/example/cabbook/internal/booking/receipt"
	"github.com/example/cabbook/internal/booking/service"
)

// HTTP exposes the booking endpoints.
type HTTP struct {
	svc *service.Service
	mws []func(http.Handler) http.Handler
}

// NewHTTP constructs a handler. Extra middlewares run after the standard chi stack.
func NewHTTP(svc *service.Service, mws ...func(http.Handler) http.Handler) *HTTP {
	return &HTTP{svc: svc, mws: mws}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(h.mws...)

	r.Post("/v1/customers", h.registerCustomer)
	r.Get("/v1/customers/{id}", h.getCustomer)
	r.Delete("/v1/customers/{id}", h.deleteCustomer)

	r.Post("/v1/drivers", h.registerDriver)
	r.Get("/v1/drivers", h.listDrivers)

	r.Post("/v1/trips", h.bookTrip)
	r.Get("/v1/trips/{id}", h.getTrip)
	r.Post("/v1/trips/{id}/cancel", h.cancelTrip)
	r.Post("/v1/trips/{id}/complete", h.completeTrip)
	r.Get("/v1/trips/{id}/receipt", h.tripReceipt)

	r.Get("/docs/openapi.yaml", openAPIHandler)
	return r
}

type registerCustomerRequest struct {
	Mobile   string `json:"mobile"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *HTTP) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var payload registerCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	customer, err := h.svc.RegisterCustomer(r.Context(), service.RegisterCustomerRequest(payload))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (h *HTTP) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	customer, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *HTTP) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerDriverRequest struct {
	Mobile    string `json:"mobile"`
	Name      string `json:"name"`
	PerKmRate int64  `json:"per_km_rate"`
}

func (h *HTTP) registerDriver(w http.ResponseWriter, r *http.Request) {
	var payload registerDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	driver, err := h.svc.RegisterDriver(r.Context(), service.RegisterDriverRequest(payload))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, driver)
}

func (h *HTTP) listDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.svc.ListDrivers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if drivers == nil {
		drivers = []domain.Driver{}
	}
	writeJSON(w, http.StatusOK, drivers)
}

type bookTripRequest struct {
	CustomerID   int64  `json:"customer_id"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	DistanceKm   int64  `json:"distance_km"`
}

func (h *HTTP) bookTrip(w http.ResponseWriter, r *http.Request) {
	var payload bookTripRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trip, err := h.svc.BookTrip(r.Context(), r.Header.Get("Idempotency-Key"), service.BookTripRequest(payload))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

func (h *HTTP) getTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	trip, err := h.svc.GetTrip(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *HTTP) cancelTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	trip, err := h.svc.CancelTrip(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *HTTP) completeTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	trip, err := h.svc.CompleteTrip(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *HTTP) tripReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	details, err := h.svc.GetTripDetails(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := receipt.Render(details.Trip, details.Driver, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=receipt-"+strconv.FormatInt(id, 10)+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoDriverAvailable), errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
