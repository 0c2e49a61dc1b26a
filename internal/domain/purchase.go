package domain

import "time"

type PurchaseStatus string

const (
	PurchaseStatusReceived PurchaseStatus = "received"
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

type Purchase struct {
	ID              int64
	Reference       string
	EventID         int64
	FullName        string
	Document        string
	CountryCode     string
	Phone           string
	State           string
	AccountHolder   string
	PaymentRefLast4 string
	Quantity        int
	PriceCents      int64
	Method          string
	Email           string
	ReceiptURL      string
	Status          PurchaseStatus
	MaskedNumbers   []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
