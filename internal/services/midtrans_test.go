package services

import (
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festiva/internal/models"
)

func testMidtransService(serverKey string) *MidtransService {
	return NewMidtransService(MidtransConfig{
		ServerKey:   serverKey,
		ClientKey:   "client-key",
		Environment: "sandbox",
	})
}

func TestMidtransService_Signature(t *testing.T) {
	service := testMidtransService("server-key")

	got := service.Signature("ORD-20240101-123456", "200", "150000.00")

	sum := sha512.Sum512([]byte("ORD-20240101-123456" + "200" + "150000.00" + "server-key"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestMidtransService_VerifySignature(t *testing.T) {
	service := testMidtransService("server-key")

	n := &Notification{
		OrderID:     "ORD-20240101-123456",
		StatusCode:  "200",
		GrossAmount: "150000.00",
	}

	t.Run("valid signature", func(t *testing.T) {
		n.SignatureKey = service.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
		assert.NoError(t, service.VerifySignature(n))
	})

	t.Run("tampered amount", func(t *testing.T) {
		n.SignatureKey = service.Signature(n.OrderID, n.StatusCode, "1.00")
		assert.ErrorIs(t, service.VerifySignature(n), models.ErrInvalidSignature)
	})

	t.Run("wrong server key", func(t *testing.T) {
		other := testMidtransService("another-key")
		n.SignatureKey = other.Signature(n.OrderID, n.StatusCode, n.GrossAmount)
		assert.ErrorIs(t, service.VerifySignature(n), models.ErrInvalidSignature)
	})

	t.Run("empty signature", func(t *testing.T) {
		n.SignatureKey = ""
		assert.ErrorIs(t, service.VerifySignature(n), models.ErrInvalidSignature)
	})
}

func TestMidtransService_MapStatus(t *testing.T) {
	service := testMidtransService("server-key")

	tests := []struct {
		transactionStatus string
		want              models.OrderStatus
	}{
		{"capture", models.OrderConfirmed},
		{"settlement", models.OrderConfirmed},
		{"pending", models.OrderPending},
		{"deny", models.OrderCancelled},
		{"cancel", models.OrderCancelled},
		{"expire", models.OrderReleased},
	}

	for _, tt := range tests {
		got, err := service.MapStatus(tt.transactionStatus)
		require.NoError(t, err, tt.transactionStatus)
		assert.Equal(t, tt.want, got, tt.transactionStatus)
	}

	_, err := service.MapStatus("refund")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMidtransService_CreateSession(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"snap-token-123","redirect_url":"https://pay.example/redirect"}`))
	}))
	defer server.Close()

	service := testMidtransService("server-key")
	service.baseURL = server.URL

	order := &models.Order{
		OrderID:     "ORD-20240101-123456",
		EventID:     1,
		EventName:   "Jazz Night",
		Quantity:    2,
		UnitPrice:   75000,
		TotalAmount: 150000,
	}
	customer := &models.User{Name: "Jane Doe", Email: "jane@example.com"}

	resp, err := service.CreateSession(order, customer)
	require.NoError(t, err)
	assert.Equal(t, "snap-token-123", resp.Token)
	assert.Equal(t, "https://pay.example/redirect", resp.RedirectURL)
	// Basic auth of "server-key:"
	assert.Equal(t, "Basic c2VydmVyLWtleTo=", gotAuth)
}

func TestMidtransService_CreateSession_RejectsNonPositiveAmount(t *testing.T) {
	service := testMidtransService("server-key")

	order := &models.Order{OrderID: "ORD-20240101-123456", TotalAmount: 0}
	_, err := service.CreateSession(order, &models.User{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	order.TotalAmount = -100
	_, err = service.CreateSession(order, &models.User{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMidtransService_CreateSession_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error_messages":["unauthorized"]}`))
	}))
	defer server.Close()

	service := testMidtransService("server-key")
	service.baseURL = server.URL

	order := &models.Order{OrderID: "ORD-20240101-123456", TotalAmount: 1000, Quantity: 1, UnitPrice: 1000}
	_, err := service.CreateSession(order, &models.User{Name: "Jane", Email: "jane@example.com"})
	assert.ErrorIs(t, err, models.ErrGateway)
}

func TestMidtransService_CreateSession_MissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	service := testMidtransService("server-key")
	service.baseURL = server.URL

	order := &models.Order{OrderID: "ORD-20240101-123456", TotalAmount: 1000, Quantity: 1, UnitPrice: 1000}
	_, err := service.CreateSession(order, &models.User{Name: "Jane", Email: "jane@example.com"})
	assert.ErrorIs(t, err, models.ErrGateway)
}

func TestMidtransService_EnvironmentBaseURL(t *testing.T) {
	sandbox := NewMidtransService(MidtransConfig{Environment: "sandbox"})
	production := NewMidtransService(MidtransConfig{Environment: "production"})

	sandboxURL, err := url.Parse(sandbox.baseURL)
	require.NoError(t, err)
	productionURL, err := url.Parse(production.baseURL)
	require.NoError(t, err)

	assert.Equal(t, "app.sandbox.midtrans.com", sandboxURL.Host)
	assert.Equal(t, "app.midtrans.com", productionURL.Host)
}
