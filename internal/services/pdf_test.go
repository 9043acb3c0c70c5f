package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festiva/internal/models"
)

func TestPDFService_GenerateTicketPDF(t *testing.T) {
	service := NewPDFService()

	order := &models.Order{
		OrderID:      "ORD-20240101-123456",
		EventName:    "Jazz Night",
		Venue:        "Blue Hall",
		CustomerName: "Jane Doe",
		Quantity:     2,
		TotalAmount:  150000,
		Status:       models.OrderConfirmed,
		QRCode:       "b3f6d9a0-3d5c-4f1e-9c2a-7b8e1f0a4d21",
		CreatedAt:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	pdf, err := service.GenerateTicketPDF(order)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestPDFService_GenerateTicketPDF_RequiresQRCode(t *testing.T) {
	service := NewPDFService()

	order := &models.Order{OrderID: "ORD-20240101-123456"}
	_, err := service.GenerateTicketPDF(order)
	assert.Error(t, err)
}
