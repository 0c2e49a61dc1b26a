package repository

import (
	"context"
	"errors"

	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *domain.Purchase) error
	GetByID(ctx context.Context, id int64) (*domain.Purchase, error)
	LatestByPhone(ctx context.Context, phone string) (*domain.Purchase, error)
	Reject(ctx context.Context, id int64) (*domain.Purchase, error)
}

type PGPurchaseRepository struct {
	db *pgxpool.Pool
}

func NewPurchaseRepository(db *pgxpool.Pool) PurchaseRepository {
	return &PGPurchaseRepository{db: db}
}

const purchaseColumns = `id, reference, event_id, full_name, document, country_code, phone,
	state, account_holder, payment_ref_last4, qty, price_cents, method, email,
	receipt_url, status, masked_numbers, created_at, updated_at`

func (r *PGPurchaseRepository) Create(ctx context.Context, p *domain.Purchase) error {
	return r.db.QueryRow(ctx, `INSERT INTO purchases
		(reference, event_id, full_name, document, country_code, phone, state,
		 account_holder, payment_ref_last4, qty, price_cents, method, email, receipt_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		p.Reference, p.EventID, p.FullName, p.Document, p.CountryCode, p.Phone, p.State,
		p.AccountHolder, p.PaymentRefLast4, p.Quantity, p.PriceCents, p.Method, p.Email,
		p.ReceiptURL, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PGPurchaseRepository) GetByID(ctx context.Context, id int64) (*domain.Purchase, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id))
}

func (r *PGPurchaseRepository) LatestByPhone(ctx context.Context, phone string) (*domain.Purchase, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases
		WHERE phone=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, phone))
}

func (r *PGPurchaseRepository) Reject(ctx context.Context, id int64) (*domain.Purchase, error) {
	return r.scanOne(r.db.QueryRow(ctx, `UPDATE purchases
		SET status='rejected', updated_at=now()
		WHERE id=$1
		RETURNING `+purchaseColumns, id))
}

func (r *PGPurchaseRepository) scanOne(row pgx.Row) (*domain.Purchase, error) {
	var p domain.Purchase
	err := row.Scan(&p.ID, &p.Reference, &p.EventID, &p.FullName, &p.Document, &p.CountryCode,
		&p.Phone, &p.State, &p.AccountHolder, &p.PaymentRefLast4, &p.Quantity, &p.PriceCents,
		&p.Method, &p.Email, &p.ReceiptURL, &p.Status, &p.MaskedNumbers, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ PurchaseRepository = (*PGPurchaseRepository)(nil)
