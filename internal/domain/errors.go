package domain

import "errors"

var (
	// Purchase errors
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrPurchaseRejected = errors.New("purchase already rejected")

	// Ticket errors
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrInsufficientInventory = errors.New("not enough available tickets")
	ErrNumbersConflict       = errors.New("requested numbers are not eligible")

	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
