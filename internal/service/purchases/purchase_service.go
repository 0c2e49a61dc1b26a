package purchases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/bolidosrifas/raffle/internal/kafka"
	"github.com/bolidosrifas/raffle/internal/repository"
	"github.com/bolidosrifas/raffle/internal/service/tickets"
)

type PurchaseUseCase interface {
	Create(ctx context.Context, input CreatePurchaseInput) (*domain.Purchase, error)
	Confirm(ctx context.Context, purchaseID int64, approve bool) (*ConfirmResult, error)
	VerifyByPhone(ctx context.Context, phone string) (*VerifyResult, error)
	VerifyTicket(ctx context.Context, eventID int64, number int) (string, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type PurchaseService struct {
	purchases          repository.PurchaseRepository
	engine             tickets.TicketUseCase
	producer           Producer
	notificationsTopic string
	defaultEventID     int64
}

type CreatePurchaseInput struct {
	EventID         int64  `json:"event_id"`
	FullName        string `json:"full_name"`
	Document        string `json:"document"`
	CountryCode     string `json:"country_code"`
	Phone           string `json:"phone"`
	State           string `json:"state"`
	AccountHolder   string `json:"account_holder"`
	PaymentRefLast4 string `json:"payment_ref_last4"`
	Quantity        int    `json:"qty"`
	PriceCents      int64  `json:"price_cents"`
	Method          string `json:"method"`
	Email           string `json:"email"`
	ReceiptURL      string `json:"receipt_url"`
}

type ConfirmResult struct {
	Purchase *domain.Purchase
	Numbers  []int
	Masked   []string
	Reused   bool
}

type VerifyResult struct {
	Status        string    `json:"status"`
	MaskedNumbers []string  `json:"masked_numbers"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type PurchaseServiceOption func(*PurchaseService)

func WithNotificationsTopic(topic string) PurchaseServiceOption {
	return func(s *PurchaseService) {
		s.notificationsTopic = topic
	}
}

// WithDefaultEventID sets the raffle event used when intake requests omit
// one.
func WithDefaultEventID(id int64) PurchaseServiceOption {
	return func(s *PurchaseService) {
		if id > 0 {
			s.defaultEventID = id
		}
	}
}

func NewPurchaseService(
	purchases repository.PurchaseRepository,
	engine tickets.TicketUseCase,
	producer Producer,
	opts ...PurchaseServiceOption,
) *PurchaseService {
	service := &PurchaseService{
		purchases:      purchases,
		engine:         engine,
		producer:       producer,
		defaultEventID: 1,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *PurchaseService) Create(ctx context.Context, input CreatePurchaseInput) (*domain.Purchase, error) {
	if input.FullName == "" || input.Document == "" || input.CountryCode == "" || input.Phone == "" {
		return nil, domain.ErrInvalidInput
	}
	if input.Quantity <= 0 || input.PriceCents <= 0 {
		return nil, domain.ErrInvalidInput
	}

	eventID := input.EventID
	if eventID == 0 {
		eventID = s.defaultEventID
	}

	purchase := &domain.Purchase{
		Reference:       uuid.NewString(),
		EventID:         eventID,
		FullName:        input.FullName,
		Document:        input.Document,
		CountryCode:     input.CountryCode,
		Phone:           input.Phone,
		State:           input.State,
		AccountHolder:   input.AccountHolder,
		PaymentRefLast4: input.PaymentRefLast4,
		Quantity:        input.Quantity,
		PriceCents:      input.PriceCents,
		Method:          input.Method,
		Email:           input.Email,
		ReceiptURL:      input.ReceiptURL,
		Status:          domain.PurchaseStatusReceived,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

// Confirm resolves an admin decision. Rejection only flips the purchase
// status. Approval runs the allocation engine; the buyer notification is
// published after the allocation has committed and a publish failure never
// fails the call.
func (s *PurchaseService) Confirm(ctx context.Context, purchaseID int64, approve bool) (*ConfirmResult, error) {
	purchase, err := s.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	if !approve {
		rejected, err := s.purchases.Reject(ctx, purchaseID)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Purchase: rejected}, nil
	}

	alloc, err := s.engine.AllocateRandom(ctx, purchaseID, purchase.Quantity)
	if err != nil {
		return nil, err
	}

	purchase.Status = domain.PurchaseStatusApproved
	purchase.MaskedNumbers = alloc.Masked

	if !alloc.Reused && purchase.Email != "" {
		s.publishApproved(ctx, purchase)
	}

	return &ConfirmResult{
		Purchase: purchase,
		Numbers:  alloc.Numbers,
		Masked:   alloc.Masked,
		Reused:   alloc.Reused,
	}, nil
}

func (s *PurchaseService) VerifyByPhone(ctx context.Context, phone string) (*VerifyResult, error) {
	if phone == "" {
		return nil, domain.ErrInvalidInput
	}
	purchase, err := s.purchases.LatestByPhone(ctx, phone)
	if errors.Is(err, domain.ErrPurchaseNotFound) {
		return &VerifyResult{Status: "not_found", MaskedNumbers: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if purchase.Status == domain.PurchaseStatusApproved || len(purchase.MaskedNumbers) > 0 {
		return &VerifyResult{
			Status:        "assigned",
			MaskedNumbers: purchase.MaskedNumbers,
			UpdatedAt:     purchase.UpdatedAt,
		}, nil
	}
	return &VerifyResult{
		Status:        string(purchase.Status),
		MaskedNumbers: []string{},
		UpdatedAt:     purchase.UpdatedAt,
	}, nil
}

func (s *PurchaseService) VerifyTicket(ctx context.Context, eventID int64, number int) (string, error) {
	status, err := s.engine.StatusByNumber(ctx, eventID, number)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return "invalid", nil
	}
	if err != nil {
		return "", err
	}
	if status == domain.TicketStatusSold {
		return "assigned", nil
	}
	return string(status), nil
}

func (s *PurchaseService) publishApproved(ctx context.Context, purchase *domain.Purchase) {
	if s.producer == nil || s.notificationsTopic == "" {
		return
	}
	event := kafka.PurchaseEvent{
		Type:          "purchase_approved",
		PurchaseID:    purchase.ID,
		Reference:     purchase.Reference,
		EventID:       purchase.EventID,
		FullName:      purchase.FullName,
		Email:         purchase.Email,
		Method:        purchase.Method,
		PriceCents:    purchase.PriceCents,
		MaskedNumbers: purchase.MaskedNumbers,
	}
	if err := s.producer.Publish(ctx, s.notificationsTopic, purchase.Reference, event); err != nil {
		logrus.WithError(err).WithField("purchase_id", purchase.ID).Warn("failed to publish purchase_approved event")
	}
}

var _ PurchaseUseCase = (*PurchaseService)(nil)
