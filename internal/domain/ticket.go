package domain

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusSold      TicketStatus = "sold"
)

type Ticket struct {
	ID            int64
	EventID       int64
	Number        int
	Status        TicketStatus
	ReservedUntil *time.Time
	PurchaseID    *int64
	AssignedAt    *time.Time
}

// DefaultHold is applied when a reservation request carries no positive
// hold duration.
const DefaultHold = 15 * time.Minute

// Allocation is the outcome of a random assignment. Reused is true when
// the purchase already carried tickets and nothing was mutated.
type Allocation struct {
	EventID int64
	Numbers []int
	Masked  []string
	Reused  bool
}

// ReserveResult partitions a reservation request: Reserved committed,
// Conflicts were sold, still held, or unknown and were left untouched.
type ReserveResult struct {
	Reserved  []int
	Conflicts []int
}

type SaleResult struct {
	Updated   int
	Conflicts []int
}

// Availability lists numbers by effective status; available numbers are
// implied by absence. Lapsed reservations never appear in Reserved.
// NextLapse is the earliest hold expiry among Reserved; a snapshot is
// stale once that instant passes.
type Availability struct {
	Sold      []int
	Reserved  []int
	NextLapse *time.Time
}

// MaskNumber renders a ticket number for buyer-facing messages: a fixed
// marker plus the number left-padded to four digits. Longer numbers are
// kept whole.
func MaskNumber(n int) string {
	return fmt.Sprintf("****%04d", n)
}

func MaskNumbers(numbers []int) []string {
	masked := make([]string, 0, len(numbers))
	for _, n := range numbers {
		masked = append(masked, MaskNumber(n))
	}
	return masked
}
