package services

import (
	"fmt"

	"festiva/internal/models"
)

// ReceiptEmailSender sends an order receipt with the ticket attached
type ReceiptEmailSender interface {
	SendOrderReceipt(to string, order *models.Order, ticketPDF []byte) error
}

// ReceiptService turns a confirmed order into deliverables: a ticket PDF with
// the entry QR code, emailed to the purchaser. It implements ReceiptIssuer
// for the payment processor.
type ReceiptService struct {
	users UserReader
	pdf   *PDFService
	email ReceiptEmailSender
}

// NewReceiptService creates a new receipt service
func NewReceiptService(users UserReader, pdf *PDFService, email ReceiptEmailSender) *ReceiptService {
	return &ReceiptService{
		users: users,
		pdf:   pdf,
		email: email,
	}
}

// DeliverReceipt generates the ticket PDF and emails it to the order's
// purchaser.
func (s *ReceiptService) DeliverReceipt(order *models.Order) error {
	user, err := s.users.GetByID(order.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve purchaser for order %s: %w", order.OrderID, err)
	}

	ticketPDF, err := s.pdf.GenerateTicketPDF(order)
	if err != nil {
		return fmt.Errorf("failed to generate ticket for order %s: %w", order.OrderID, err)
	}

	if err := s.email.SendOrderReceipt(user.Email, order, ticketPDF); err != nil {
		return fmt.Errorf("failed to email receipt for order %s: %w", order.OrderID, err)
	}

	return nil
}
