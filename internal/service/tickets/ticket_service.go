package tickets

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/bolidosrifas/raffle/internal/repository"
)

type TicketUseCase interface {
	AllocateRandom(ctx context.Context, purchaseID int64, quantity int) (*domain.Allocation, error)
	Reserve(ctx context.Context, eventID int64, numbers []int, hold time.Duration) (*domain.ReserveResult, error)
	Sell(ctx context.Context, eventID int64, numbers []int) (*domain.SaleResult, error)
	Availability(ctx context.Context, eventID int64) (*domain.Availability, error)
	StatusByNumber(ctx context.Context, eventID int64, number int) (domain.TicketStatus, error)
	ReclaimLapsed(ctx context.Context) (int64, error)
}

type Cache interface {
	GetAvailability(ctx context.Context, eventID int64) (*domain.Availability, error)
	SetAvailability(ctx context.Context, eventID int64, avail *domain.Availability) error
	InvalidateAvailability(ctx context.Context, eventID int64) error
}

// TicketService is the allocation engine. All mutual exclusion is delegated
// to the store's row locking; the service adds input validation, the default
// hold duration and the availability cache on top.
type TicketService struct {
	tickets     repository.TicketRepository
	cache       Cache
	defaultHold time.Duration
	now         func() time.Time
}

type TicketServiceOption func(*TicketService)

// WithDefaultHold overrides the hold applied when a reservation request
// carries no positive duration.
func WithDefaultHold(d time.Duration) TicketServiceOption {
	return func(s *TicketService) {
		if d > 0 {
			s.defaultHold = d
		}
	}
}

func NewTicketService(tickets repository.TicketRepository, cache Cache, opts ...TicketServiceOption) *TicketService {
	service := &TicketService{
		tickets:     tickets,
		cache:       cache,
		defaultHold: domain.DefaultHold,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *TicketService) AllocateRandom(ctx context.Context, purchaseID int64, quantity int) (*domain.Allocation, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidInput
	}
	alloc, err := s.tickets.AllocateRandom(ctx, purchaseID, quantity)
	if err != nil {
		return nil, err
	}
	if !alloc.Reused {
		s.invalidate(ctx, alloc.EventID)
	}
	return alloc, nil
}

func (s *TicketService) Reserve(ctx context.Context, eventID int64, numbers []int, hold time.Duration) (*domain.ReserveResult, error) {
	if len(numbers) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if hold <= 0 {
		hold = s.defaultHold
	}
	result, err := s.tickets.ReserveByNumbers(ctx, eventID, numbers, hold)
	if err != nil {
		return nil, err
	}
	if len(result.Reserved) > 0 {
		s.invalidate(ctx, eventID)
	}
	return result, nil
}

func (s *TicketService) Sell(ctx context.Context, eventID int64, numbers []int) (*domain.SaleResult, error) {
	if len(numbers) == 0 {
		return nil, domain.ErrInvalidInput
	}
	result, err := s.tickets.SellByNumbers(ctx, eventID, numbers)
	if err != nil {
		return nil, err
	}
	if result.Updated > 0 {
		s.invalidate(ctx, eventID)
	}
	return result, nil
}

// Availability serves the cached snapshot only while no hold in it could
// have lapsed; once the earliest expiry passes, the store is read again so
// a lapsed reservation is never reported as still reserved.
func (s *TicketService) Availability(ctx context.Context, eventID int64) (*domain.Availability, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetAvailability(ctx, eventID); err == nil && cached != nil &&
			(cached.NextLapse == nil || cached.NextLapse.After(s.now())) {
			return cached, nil
		}
	}
	avail, err := s.tickets.Availability(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetAvailability(ctx, eventID, avail)
	}
	return avail, nil
}

func (s *TicketService) StatusByNumber(ctx context.Context, eventID int64, number int) (domain.TicketStatus, error) {
	if number <= 0 {
		return "", domain.ErrInvalidInput
	}
	return s.tickets.StatusByNumber(ctx, eventID, number)
}

func (s *TicketService) ReclaimLapsed(ctx context.Context) (int64, error) {
	return s.tickets.ReclaimLapsed(ctx)
}

func (s *TicketService) invalidate(ctx context.Context, eventID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx, eventID); err != nil {
		logrus.WithError(err).WithField("event_id", eventID).Warn("failed to invalidate availability cache")
	}
}

var _ TicketUseCase = (*TicketService)(nil)
