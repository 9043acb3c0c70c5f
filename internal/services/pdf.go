package services

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"festiva/internal/models"
)

// PDFService generates printable tickets with an embedded entry QR code
type PDFService struct{}

// NewPDFService creates a new PDF service
func NewPDFService() *PDFService {
	return &PDFService{}
}

// GenerateTicketPDF renders a confirmed order as a single-page A4 ticket. The
// QR code encodes the order's redemption payload.
func (s *PDFService) GenerateTicketPDF(order *models.Order) ([]byte, error) {
	if order.QRCode == "" {
		return nil, fmt.Errorf("order %s has no QR code payload", order.OrderID)
	}

	qrBytes, err := qrcode.Encode(order.QRCode, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 12, "Festiva", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "Event Ticket", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imgName := fmt.Sprintf("qr_%s", order.OrderID)
	pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(qrBytes))

	// QR code centered, 90x90mm
	qrX := (210.0 - 90.0) / 2
	pdf.ImageOptions(imgName, qrX, pdf.GetY(), 90, 90, false, imgOpts, 0, "")
	pdf.Ln(94)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(8)

	writeRow := func(label, value string) {
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	writeRow("Event:", order.EventName)
	writeRow("Venue:", order.Venue)
	writeRow("Guest:", order.CustomerName)
	writeRow("Order:", order.OrderID)
	writeRow("Quantity:", fmt.Sprintf("%d", order.Quantity))
	writeRow("Total:", fmt.Sprintf("%.2f", order.TotalAmountInCurrency()))
	writeRow("Purchased:", order.CreatedAt.Format("January 2, 2006 at 3:04 PM"))

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 10)
	pdf.MultiCell(0, 5, "Present this QR code at the entrance. Each ticket admits the order's full quantity and can be scanned once.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket PDF: %w", err)
	}

	return buf.Bytes(), nil
}
