package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// LedgerRepositoryPG implements domain.LedgerRepository backed by PostgreSQL.
// The sufficiency check and the increment run in a single conditional UPDATE
// so concurrent deductions on the same (user, period) row serialize on the
// row lock; there is no read-then-write window anywhere in this type.
type LedgerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepositoryPG.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool}
}

// TryDeduct atomically adds amount to used_credits iff the result stays
// within capacity. The entry is materialized at zero usage first so the
// conditional UPDATE always has a row to lock.
func (r *LedgerRepositoryPG) TryDeduct(ctx context.Context, userID string, periodStart, resetAt time.Time, amount, capacity int64) (bool, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("begin deduct: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO credit_ledger (user_id, period_start, used_credits, period_reset_at)
VALUES ($1, $2, 0, $3)
ON CONFLICT (user_id, period_start) DO NOTHING;
`, userID, periodStart, resetAt)
	if err != nil {
		return false, 0, fmt.Errorf("ensure ledger entry: %w", err)
	}

	var used int64
	err = tx.QueryRow(ctx, `
UPDATE credit_ledger
SET used_credits = used_credits + $3,
    updated_at = NOW()
WHERE user_id = $1
  AND period_start = $2
  AND used_credits + $3 <= $4
RETURNING used_credits;
`, userID, periodStart, amount, capacity).Scan(&used)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, 0, fmt.Errorf("deduct: %w", err)
		}
		// Condition failed: report current usage, entry unchanged.
		err = tx.QueryRow(ctx, `
SELECT used_credits FROM credit_ledger WHERE user_id = $1 AND period_start = $2;
`, userID, periodStart).Scan(&used)
		if err != nil {
			return false, 0, fmt.Errorf("read usage: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return false, 0, fmt.Errorf("commit deduct: %w", err)
		}
		return false, used, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit deduct: %w", err)
	}
	return true, used, nil
}

// Grant decrements used_credits by amount in one upsert. New entries start
// at -amount; usage going negative is banked surplus within the period.
func (r *LedgerRepositoryPG) Grant(ctx context.Context, userID string, periodStart, resetAt time.Time, amount int64) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO credit_ledger (user_id, period_start, used_credits, period_reset_at)
VALUES ($1, $2, -$3, $4)
ON CONFLICT (user_id, period_start) DO UPDATE
SET used_credits = credit_ledger.used_credits - $3,
    updated_at = NOW();
`, userID, periodStart, amount, resetAt)
	if err != nil {
		return fmt.Errorf("grant: %w", err)
	}
	return nil
}

// GetUsed reads used credits for the key; a missing entry reads as zero.
func (r *LedgerRepositoryPG) GetUsed(ctx context.Context, userID string, periodStart time.Time) (int64, error) {
	var used int64
	err := r.pool.QueryRow(ctx, `
SELECT used_credits FROM credit_ledger WHERE user_id = $1 AND period_start = $2;
`, userID, periodStart).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return used, nil
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
