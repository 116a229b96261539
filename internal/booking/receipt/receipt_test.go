package receipt_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/cabbook/internal/booking/domain"
	"github.com/example/cabbook/internal/booking/receipt"
)

func TestRenderProducesPDF(t *testing.T) {
	trip := domain.TripBooking{ID: 4, DriverID: 1, FromLocation: "A", ToLocation: "B", DistanceKm: 5, Status: domain.StatusCompleted, Bill: 50}
	driver := domain.Driver{ID: 1, Name: "Dan", Cab: domain.Cab{PerKmRate: 10}}

	out, err := receipt.Render(trip, driver, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
