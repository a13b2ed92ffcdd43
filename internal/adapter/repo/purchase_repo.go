package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

const pgUniqueViolation = "23505"

// PurchaseRepositoryPG implements domain.PurchaseRepository backed by
// PostgreSQL. The unique constraint on provider_ref is the idempotency gate
// for payment events.
type PurchaseRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPurchaseRepository creates a new PurchaseRepositoryPG.
func NewPurchaseRepository(pool *pgxpool.Pool) *PurchaseRepositoryPG {
	return &PurchaseRepositoryPG{pool: pool}
}

// Create appends a purchase record. A provider_ref collision maps to
// domain.ErrDuplicatePayment.
func (r *PurchaseRepositoryPG) Create(ctx context.Context, p *domain.Purchase) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO purchases (id, user_id, product_type, amount_paid, credits_granted, provider_ref)
VALUES ($1, $2, $3, $4, $5, $6);
`, p.ID, p.UserID, p.ProductType, p.AmountPaid, p.CreditsGranted, p.ProviderRef)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicatePayment
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// ExistsByProviderRef reports whether a payment event was already applied.
func (r *PurchaseRepositoryPG) ExistsByProviderRef(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM purchases WHERE provider_ref = $1);
`, ref).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check provider ref: %w", err)
	}
	return exists, nil
}

// ListByUser returns the user's purchases, newest first.
func (r *PurchaseRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Purchase, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, product_type, amount_paid, credits_granted, provider_ref, created_at
FROM purchases
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var items []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProductType, &p.AmountPaid, &p.CreditsGranted, &p.ProviderRef, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.PurchaseRepository = (*PurchaseRepositoryPG)(nil)
