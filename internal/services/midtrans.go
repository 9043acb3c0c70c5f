package services

import (
	"bytes"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"festiva/internal/models"
)

// MidtransConfig represents Midtrans payment service configuration
type MidtransConfig struct {
	ServerKey   string
	ClientKey   string
	Environment string // "sandbox" or "production"
	FinishURL   string
}

// MidtransService handles payments via the Midtrans Snap API
type MidtransService struct {
	config  MidtransConfig
	client  *http.Client
	baseURL string
}

// NewMidtransService creates a new Midtrans payment service
func NewMidtransService(config MidtransConfig) *MidtransService {
	baseURL := "https://app.sandbox.midtrans.com"
	if config.Environment == "production" {
		baseURL = "https://app.midtrans.com"
	}

	return &MidtransService{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// SnapTransactionDetails identifies the order and its total to the gateway
type SnapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int    `json:"gross_amount"` // Minor currency units
}

// SnapCustomerDetails carries customer metadata for the payment UI
type SnapCustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
}

// SnapItemDetail describes a purchased line item
type SnapItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

// SnapCallbacks configures where the payment UI redirects on completion
type SnapCallbacks struct {
	Finish string `json:"finish,omitempty"`
}

// SnapRequest represents a payment session creation request
type SnapRequest struct {
	TransactionDetails SnapTransactionDetails `json:"transaction_details"`
	CustomerDetails    SnapCustomerDetails    `json:"customer_details"`
	ItemDetails        []SnapItemDetail       `json:"item_details"`
	Callbacks          SnapCallbacks          `json:"callbacks"`
}

// SnapResponse represents a payment session creation response
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Notification is the asynchronous server-to-server callback the gateway
// sends once a transaction reaches a status. The embedded order metadata is
// optional; it exists so a successful payment can be reconstructed when the
// pending order write lost the race against the callback.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"` // Decimal as text, e.g. "150000.00"
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`

	// Optional order metadata for the auto-creation path
	CustomerName string `json:"customer_name"`
	EventID      int    `json:"event_id"`
	EventName    string `json:"event_name"`
	Quantity     int    `json:"quantity"`
	TotalPrice   int    `json:"total_price"`
	UserID       int    `json:"user_id"`
	Venue        string `json:"venue"`
}

// CreateSession creates a payment session with the gateway and returns the
// opaque token the client's payment UI consumes. The amount is validated
// before any network call is made.
func (s *MidtransService) CreateSession(order *models.Order, customer *models.User) (*SnapResponse, error) {
	if order.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: gross amount must be a positive integer, got %d", models.ErrInvalidInput, order.TotalAmount)
	}

	req := SnapRequest{
		TransactionDetails: SnapTransactionDetails{
			OrderID:     order.OrderID,
			GrossAmount: order.TotalAmount,
		},
		CustomerDetails: SnapCustomerDetails{
			FirstName: customer.Name,
			Email:     customer.Email,
		},
		ItemDetails: []SnapItemDetail{
			{
				ID:       fmt.Sprintf("event-%d", order.EventID),
				Name:     order.EventName,
				Price:    order.UnitPrice,
				Quantity: order.Quantity,
			},
		},
		Callbacks: SnapCallbacks{Finish: s.config.FinishURL},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", s.baseURL+"/snap/v1/transactions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(s.config.ServerKey + ":"))
	httpReq.Header.Set("Authorization", "Basic "+auth)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGateway, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read session response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrGateway, resp.StatusCode, string(bodyBytes))
	}

	var snapResp SnapResponse
	if err := json.Unmarshal(bodyBytes, &snapResp); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}

	if snapResp.Token == "" {
		return nil, fmt.Errorf("%w: response missing session token", models.ErrGateway)
	}

	return &snapResp, nil
}

// Signature computes the expected notification signature: SHA-512 of the
// order id, status code and gross amount concatenated with the server key.
func (s *MidtransService) Signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + s.config.ServerKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification's signature against the recomputed
// value. The comparison is constant-time; this is the sole authentication for
// inbound gateway calls.
func (s *MidtransService) VerifySignature(n *Notification) error {
	expected := s.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) != 1 {
		return models.ErrInvalidSignature
	}
	return nil
}

// MapStatus translates the gateway's transaction status vocabulary into the
// internal order status domain.
func (s *MidtransService) MapStatus(transactionStatus string) (models.OrderStatus, error) {
	switch transactionStatus {
	case "capture", "settlement":
		return models.OrderConfirmed, nil
	case "pending":
		return models.OrderPending, nil
	case "deny", "cancel":
		return models.OrderCancelled, nil
	case "expire":
		return models.OrderReleased, nil
	default:
		return "", fmt.Errorf("%w: unknown transaction status %q", models.ErrInvalidInput, transactionStatus)
	}
}
