package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"festiva/internal/models"
)

// ResendConfig represents Resend email service configuration
type ResendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// ResendEmailService handles email sending via the Resend API
type ResendEmailService struct {
	config ResendConfig
	client *http.Client
}

// NewResendEmailService creates a new Resend email service
func NewResendEmailService(config ResendConfig) *ResendEmailService {
	return &ResendEmailService{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ResendAttachment represents a file attached to an email
type ResendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // Base64-encoded
}

// ResendEmailRequest represents the request structure for the Resend API
type ResendEmailRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Attachments []ResendAttachment `json:"attachments,omitempty"`
}

// ResendErrorResponse represents an error response from the Resend API
type ResendErrorResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

func (s *ResendEmailService) getFromField() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	return s.config.FromEmail
}

// SendOrderReceipt sends an order confirmation email with the ticket PDF
// attached.
func (s *ResendEmailService) SendOrderReceipt(to string, order *models.Order, ticketPDF []byte) error {
	subject := fmt.Sprintf("Your tickets for %s - %s", order.EventName, order.OrderID)

	htmlContent := fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2 style="color: #10B981;">Payment Confirmed!</h2>
	<p>Dear %s,</p>
	<p>Your payment for <strong>%s</strong> has been confirmed.</p>
	<p><strong>Order:</strong> %s<br>
	<strong>Venue:</strong> %s<br>
	<strong>Quantity:</strong> %d<br>
	<strong>Total:</strong> %.2f</p>
	<p>Your ticket is attached as a PDF. Present its QR code at the entrance.</p>
	<p>Thank you for your purchase!</p>
</div>`,
		order.CustomerName, order.EventName, order.OrderID, order.Venue,
		order.Quantity, order.TotalAmountInCurrency())

	textContent := fmt.Sprintf(`Payment Confirmed!

Dear %s,

Your payment for %s has been confirmed.

Order: %s
Venue: %s
Quantity: %d
Total: %.2f

Your ticket is attached as a PDF. Present its QR code at the entrance.

Thank you for your purchase!`,
		order.CustomerName, order.EventName, order.OrderID, order.Venue,
		order.Quantity, order.TotalAmountInCurrency())

	req := ResendEmailRequest{
		From:    s.getFromField(),
		To:      []string{to},
		Subject: subject,
		HTML:    htmlContent,
		Text:    textContent,
	}

	if len(ticketPDF) > 0 {
		req.Attachments = []ResendAttachment{
			{
				Filename: fmt.Sprintf("%s.pdf", order.OrderID),
				Content:  base64.StdEncoding.EncodeToString(ticketPDF),
			},
		}
	}

	return s.send(&req)
}

func (s *ResendEmailService) send(req *ResendEmailRequest) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)

		var errResp ResendErrorResponse
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("resend API error: %s", errResp.Message)
		}
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}

	return nil
}
