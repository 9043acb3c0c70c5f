package models

import "errors"

// Common errors used throughout the application
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOutOfStock           = errors.New("insufficient tickets available")
	ErrDuplicateOrder       = errors.New("order already exists")
	ErrSalesClosed          = errors.New("ticket sales are closed for this event")
	ErrInvalidSignature     = errors.New("notification signature mismatch")
	ErrIncompleteAutoCreate = errors.New("notification missing data required to create order")
	ErrGateway              = errors.New("payment gateway request failed")
	ErrAlreadyRedeemed      = errors.New("ticket already redeemed")
	ErrUnauthorized         = errors.New("unauthorized access")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateEmail       = errors.New("email already registered")
)
