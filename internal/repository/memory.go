package repository

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/bolidosrifas/raffle/internal/domain"
)

// MemoryStore is an in-memory implementation of TicketRepository and
// PurchaseRepository with the same per-operation atomicity as the Postgres
// repositories. It backs the engine tests and local development; a mutex
// stands in for row locks, so every operation observes and commits a
// consistent snapshot.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	tickets   []*domain.Ticket
	purchases map[int64]*domain.Purchase
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		purchases: make(map[int64]*domain.Purchase),
	}
}

// SetNow overrides the store clock. Tests use it to lapse reservations
// without sleeping.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SeedTickets creates available tickets for the given numbers.
func (s *MemoryStore) SeedTickets(eventID int64, numbers ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range numbers {
		s.nextID++
		s.tickets = append(s.tickets, &domain.Ticket{
			ID:      s.nextID,
			EventID: eventID,
			Number:  n,
			Status:  domain.TicketStatusAvailable,
		})
	}
}

// Ticket returns a copy of the ticket with the given number, or nil.
func (s *MemoryStore) Ticket(eventID int64, number int) *domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.find(eventID, number); t != nil {
		c := *t
		return &c
	}
	return nil
}

func (s *MemoryStore) find(eventID int64, number int) *domain.Ticket {
	for _, t := range s.tickets {
		if t.EventID == eventID && t.Number == number {
			return t
		}
	}
	return nil
}

func (s *MemoryStore) lapsed(t *domain.Ticket) bool {
	return t.Status == domain.TicketStatusReserved &&
		(t.ReservedUntil == nil || t.ReservedUntil.Before(s.now()))
}

func (s *MemoryStore) AllocateRandom(ctx context.Context, purchaseID int64, quantity int) (*domain.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	if p.Status == domain.PurchaseStatusRejected {
		return nil, domain.ErrPurchaseRejected
	}

	var assigned []int
	for _, t := range s.tickets {
		if t.PurchaseID != nil && *t.PurchaseID == purchaseID {
			assigned = append(assigned, t.Number)
		}
	}
	if len(assigned) > 0 {
		sort.Ints(assigned)
		return &domain.Allocation{EventID: p.EventID, Numbers: assigned, Masked: domain.MaskNumbers(assigned), Reused: true}, nil
	}

	var available []*domain.Ticket
	for _, t := range s.tickets {
		if t.EventID == p.EventID && t.Status == domain.TicketStatusAvailable {
			available = append(available, t)
		}
	}
	if len(available) < quantity {
		return nil, domain.ErrInsufficientInventory
	}
	rand.Shuffle(len(available), func(i, j int) {
		available[i], available[j] = available[j], available[i]
	})

	now := s.now()
	numbers := make([]int, 0, quantity)
	for _, t := range available[:quantity] {
		t.Status = domain.TicketStatusSold
		t.ReservedUntil = nil
		id := purchaseID
		t.PurchaseID = &id
		at := now
		t.AssignedAt = &at
		numbers = append(numbers, t.Number)
	}
	sort.Ints(numbers)
	masked := domain.MaskNumbers(numbers)
	p.Status = domain.PurchaseStatusApproved
	p.MaskedNumbers = masked
	p.UpdatedAt = now
	return &domain.Allocation{EventID: p.EventID, Numbers: numbers, Masked: masked}, nil
}

func (s *MemoryStore) ReserveByNumbers(ctx context.Context, eventID int64, numbers []int, hold time.Duration) (*domain.ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*domain.Ticket
	var reserved []int
	for _, n := range numbers {
		t := s.find(eventID, n)
		if t == nil {
			continue
		}
		if t.Status == domain.TicketStatusAvailable || s.lapsed(t) {
			eligible = append(eligible, t)
			reserved = append(reserved, t.Number)
		}
	}
	if len(eligible) == 0 {
		return &domain.ReserveResult{Conflicts: sortedCopy(numbers)}, nil
	}

	until := s.now().Add(hold)
	for _, t := range eligible {
		t.Status = domain.TicketStatusReserved
		u := until
		t.ReservedUntil = &u
	}
	sort.Ints(reserved)
	return &domain.ReserveResult{Reserved: reserved, Conflicts: diff(numbers, reserved)}, nil
}

func (s *MemoryStore) SellByNumbers(ctx context.Context, eventID int64, numbers []int) (*domain.SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conflicts []int
	for _, n := range numbers {
		t := s.find(eventID, n)
		if t == nil || t.Status == domain.TicketStatusSold {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		sort.Ints(conflicts)
		return &domain.SaleResult{Conflicts: conflicts}, nil
	}

	for _, n := range numbers {
		t := s.find(eventID, n)
		t.Status = domain.TicketStatusSold
		t.ReservedUntil = nil
	}
	return &domain.SaleResult{Updated: len(numbers)}, nil
}

func (s *MemoryStore) Availability(ctx context.Context, eventID int64) (*domain.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	avail := &domain.Availability{Sold: []int{}, Reserved: []int{}}
	for _, t := range s.tickets {
		if t.EventID != eventID {
			continue
		}
		if s.lapsed(t) {
			t.Status = domain.TicketStatusAvailable
			t.ReservedUntil = nil
		}
		switch t.Status {
		case domain.TicketStatusSold:
			avail.Sold = append(avail.Sold, t.Number)
		case domain.TicketStatusReserved:
			avail.Reserved = append(avail.Reserved, t.Number)
			if t.ReservedUntil != nil && (avail.NextLapse == nil || t.ReservedUntil.Before(*avail.NextLapse)) {
				u := *t.ReservedUntil
				avail.NextLapse = &u
			}
		}
	}
	sort.Ints(avail.Sold)
	sort.Ints(avail.Reserved)
	return avail, nil
}

func (s *MemoryStore) StatusByNumber(ctx context.Context, eventID int64, number int) (domain.TicketStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.find(eventID, number)
	if t == nil {
		return "", domain.ErrTicketNotFound
	}
	if s.lapsed(t) {
		return domain.TicketStatusAvailable, nil
	}
	return t.Status, nil
}

func (s *MemoryStore) ReclaimLapsed(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reclaimed int64
	for _, t := range s.tickets {
		if s.lapsed(t) {
			t.Status = domain.TicketStatusAvailable
			t.ReservedUntil = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	c := *p
	s.purchases[p.ID] = &c
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) LatestByPhone(ctx context.Context, phone string) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.Purchase
	for _, p := range s.purchases {
		if p.Phone != phone {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) || (p.CreatedAt.Equal(latest.CreatedAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrPurchaseNotFound
	}
	c := *latest
	return &c, nil
}

func (s *MemoryStore) Reject(ctx context.Context, id int64) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	p.Status = domain.PurchaseStatusRejected
	p.UpdatedAt = s.now()
	c := *p
	return &c, nil
}

var (
	_ TicketRepository   = (*MemoryStore)(nil)
	_ PurchaseRepository = (*MemoryStore)(nil)
)
