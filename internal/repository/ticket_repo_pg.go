package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepository interface {
	AllocateRandom(ctx context.Context, purchaseID int64, quantity int) (*domain.Allocation, error)
	ReserveByNumbers(ctx context.Context, eventID int64, numbers []int, hold time.Duration) (*domain.ReserveResult, error)
	SellByNumbers(ctx context.Context, eventID int64, numbers []int) (*domain.SaleResult, error)
	Availability(ctx context.Context, eventID int64) (*domain.Availability, error)
	StatusByNumber(ctx context.Context, eventID int64, number int) (domain.TicketStatus, error)
	ReclaimLapsed(ctx context.Context) (int64, error)
}

type PGTicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) TicketRepository {
	return &PGTicketRepository{db: db}
}

// AllocateRandom assigns quantity available tickets of the purchase's event
// to the purchase and marks it approved, all in one transaction. The
// purchase row is locked first so concurrent approvals of the same purchase
// serialize; if tickets already carry the purchase id the existing numbers
// are returned and nothing is mutated. Candidate rows are taken in random
// order with SKIP LOCKED, so concurrent allocations never wait on each
// other and never pick the same ticket.
func (r *PGTicketRepository) AllocateRandom(ctx context.Context, purchaseID int64, quantity int) (*domain.Allocation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var eventID int64
	var status domain.PurchaseStatus
	err = tx.QueryRow(ctx, `SELECT event_id, status FROM purchases WHERE id=$1 FOR UPDATE`, purchaseID).Scan(&eventID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	if status == domain.PurchaseStatusRejected {
		return nil, domain.ErrPurchaseRejected
	}

	assigned, err := scanNumbers(tx.Query(ctx, `SELECT number FROM tickets WHERE purchase_id=$1 ORDER BY number`, purchaseID))
	if err != nil {
		return nil, err
	}
	if len(assigned) > 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &domain.Allocation{EventID: eventID, Numbers: assigned, Masked: domain.MaskNumbers(assigned), Reused: true}, nil
	}

	rows, err := tx.Query(ctx, `SELECT id, number FROM tickets
		WHERE event_id=$1 AND status='available'
		ORDER BY random()
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, eventID, quantity)
	if err != nil {
		return nil, err
	}
	ids, numbers, err := scanIDNumbers(rows)
	if err != nil {
		return nil, err
	}
	if len(ids) < quantity {
		return nil, domain.ErrInsufficientInventory
	}

	if _, err := tx.Exec(ctx, `UPDATE tickets
		SET status='sold', reserved_until=NULL, purchase_id=$1, assigned_at=now()
		WHERE id = ANY($2::bigint[])`, purchaseID, ids); err != nil {
		return nil, err
	}

	sort.Ints(numbers)
	masked := domain.MaskNumbers(numbers)
	if _, err := tx.Exec(ctx, `UPDATE purchases
		SET status='approved', masked_numbers=$1, updated_at=now()
		WHERE id=$2`, masked, purchaseID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.Allocation{EventID: eventID, Numbers: numbers, Masked: masked}, nil
}

// ReserveByNumbers places a timed hold on the requested numbers. A number
// is eligible when its ticket is available or its previous hold has lapsed;
// lapsed holds are recognized at read time, no prior cleanup pass needed.
// Sold, still-held and unknown numbers come back as conflicts. The eligible
// subset commits even when partial; only a fully conflicting request rolls
// back.
func (r *PGTicketRepository) ReserveByNumbers(ctx context.Context, eventID int64, numbers []int, hold time.Duration) (*domain.ReserveResult, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id, number FROM tickets
		WHERE event_id=$1 AND number = ANY($2::int[])
		AND (status='available'
			OR (status='reserved' AND (reserved_until IS NULL OR reserved_until < now())))
		ORDER BY number
		FOR UPDATE`, eventID, toInt32(numbers))
	if err != nil {
		return nil, err
	}
	ids, eligible, err := scanIDNumbers(rows)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &domain.ReserveResult{Conflicts: sortedCopy(numbers)}, nil
	}

	// The expiry is computed on the database clock, the same clock the
	// eligibility predicate and the reclaim sweep compare against.
	if _, err := tx.Exec(ctx, `UPDATE tickets
		SET status='reserved', reserved_until = now() + make_interval(secs => $1)
		WHERE id = ANY($2::bigint[])`, hold.Seconds(), ids); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	sort.Ints(eligible)
	return &domain.ReserveResult{Reserved: eligible, Conflicts: diff(numbers, eligible)}, nil
}

// SellByNumbers marks the listed tickets sold, clearing any hold. The batch
// is all-or-nothing: an unknown or already sold number is a conflict and
// nothing commits.
func (r *PGTicketRepository) SellByNumbers(ctx context.Context, eventID int64, numbers []int) (*domain.SaleResult, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT number, status FROM tickets
		WHERE event_id=$1 AND number = ANY($2::int[])
		ORDER BY number
		FOR UPDATE`, eventID, toInt32(numbers))
	if err != nil {
		return nil, err
	}
	found := map[int]domain.TicketStatus{}
	for rows.Next() {
		var n int
		var st domain.TicketStatus
		if err := rows.Scan(&n, &st); err != nil {
			rows.Close()
			return nil, err
		}
		found[n] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var conflicts []int
	for _, n := range numbers {
		st, ok := found[n]
		if !ok || st == domain.TicketStatusSold {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		sort.Ints(conflicts)
		return &domain.SaleResult{Conflicts: conflicts}, nil
	}

	cmd, err := tx.Exec(ctx, `UPDATE tickets
		SET status='sold', reserved_until=NULL
		WHERE event_id=$1 AND number = ANY($2::int[])`, eventID, toInt32(numbers))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.SaleResult{Updated: int(cmd.RowsAffected())}, nil
}

// Availability reclaims lapsed holds, then reports sold and reserved
// numbers in ascending order. Available numbers are implied by absence.
func (r *PGTicketRepository) Availability(ctx context.Context, eventID int64) (*domain.Availability, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE tickets
		SET status='available', reserved_until=NULL
		WHERE event_id=$1 AND status='reserved' AND reserved_until IS NOT NULL AND reserved_until < now()`, eventID); err != nil {
		return nil, err
	}

	sold, err := scanNumbers(tx.Query(ctx, `SELECT number FROM tickets WHERE event_id=$1 AND status='sold' ORDER BY number`, eventID))
	if err != nil {
		return nil, err
	}
	reserved, err := scanNumbers(tx.Query(ctx, `SELECT number FROM tickets WHERE event_id=$1 AND status='reserved' ORDER BY number`, eventID))
	if err != nil {
		return nil, err
	}
	var nextLapse *time.Time
	if err := tx.QueryRow(ctx, `SELECT MIN(reserved_until) FROM tickets
		WHERE event_id=$1 AND status='reserved'`, eventID).Scan(&nextLapse); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.Availability{Sold: sold, Reserved: reserved, NextLapse: nextLapse}, nil
}

// StatusByNumber reports a ticket's effective status: a reserved ticket
// whose hold has lapsed reads as available.
func (r *PGTicketRepository) StatusByNumber(ctx context.Context, eventID int64, number int) (domain.TicketStatus, error) {
	var status domain.TicketStatus
	var until *time.Time
	err := r.db.QueryRow(ctx, `SELECT status, reserved_until FROM tickets WHERE event_id=$1 AND number=$2`, eventID, number).
		Scan(&status, &until)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrTicketNotFound
	}
	if err != nil {
		return "", err
	}
	if status == domain.TicketStatusReserved && (until == nil || until.Before(time.Now())) {
		return domain.TicketStatusAvailable, nil
	}
	return status, nil
}

// ReclaimLapsed rewrites lapsed reservations back to available across all
// events. Run periodically by the worker.
func (r *PGTicketRepository) ReclaimLapsed(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE tickets
		SET status='available', reserved_until=NULL
		WHERE status='reserved' AND reserved_until IS NOT NULL AND reserved_until < now()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanNumbers(rows pgx.Rows, err error) ([]int, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	numbers := make([]int, 0)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func scanIDNumbers(rows pgx.Rows) ([]int64, []int, error) {
	defer rows.Close()

	var ids []int64
	var numbers []int
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		numbers = append(numbers, n)
	}
	return ids, numbers, rows.Err()
}

func toInt32(numbers []int) []int32 {
	out := make([]int32, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, int32(n))
	}
	return out
}

func sortedCopy(numbers []int) []int {
	out := append([]int(nil), numbers...)
	sort.Ints(out)
	return out
}

func diff(requested, granted []int) []int {
	in := make(map[int]bool, len(granted))
	for _, n := range granted {
		in[n] = true
	}
	var out []int
	for _, n := range requested {
		if !in[n] {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

var _ TicketRepository = (*PGTicketRepository)(nil)
