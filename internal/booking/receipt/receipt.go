package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/example/cabbook/internal/booking/domain"
)

// Render produces a one-page PDF fare receipt for trip served by driver.
func Render(trip domain.TripBooking, driver domain.Driver, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Trip %d receipt", trip.ID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "FARE RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Trip       : #%d", trip.ID),
		fmt.Sprintf("Issued     : %s", issuedAt.Format("2006-01-02 15:04")),
		fmt.Sprintf("Status     : %s", trip.Status),
		fmt.Sprintf("From       : %s", trip.FromLocation),
		fmt.Sprintf("To         : %s", trip.ToLocation),
		fmt.Sprintf("Driver     : #%d %s", driver.ID, driver.Name),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(60, 8, "Distance (km)", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, "Rate per km", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, "Bill", "1", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(60, 8, fmt.Sprintf("%d", trip.DistanceKm), "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, fmt.Sprintf("%d", driver.Cab.PerKmRate), "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, fmt.Sprintf("%d", trip.Bill), "1", 1, "L", false, 0, "")

	if trip.Status == domain.StatusCanceled {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, "This trip was canceled.", "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
