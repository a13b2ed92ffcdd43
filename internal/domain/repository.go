package domain

import (
	"context"
	"time"
)

// LedgerRepository is the durable store of per-(user, period) credit usage.
// TryDeduct and Grant are atomic upserts: concurrent calls on the same key
// serialize at the store, which is the system's only correctness-critical
// concurrency guarantee.
type LedgerRepository interface {
	// TryDeduct increments used credits by amount iff the result stays
	// within capacity, in one atomic step. It returns whether the deduction
	// happened and the entry's used credits after the call (unchanged when
	// ok is false).
	TryDeduct(ctx context.Context, userID string, periodStart, resetAt time.Time, amount, capacity int64) (ok bool, used int64, err error)
	// Grant unconditionally decrements used credits by amount, creating the
	// entry at -amount if absent. Usage may go negative (banked surplus).
	Grant(ctx context.Context, userID string, periodStart, resetAt time.Time, amount int64) error
	// GetUsed returns used credits for the key, or 0 if no entry exists.
	GetUsed(ctx context.Context, userID string, periodStart time.Time) (int64, error)
}

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePlan(ctx context.Context, id string, plan Plan) error
}

// PurchaseRepository persists the append-only purchase audit trail.
type PurchaseRepository interface {
	// Create inserts a purchase record. A duplicate ProviderRef yields
	// ErrDuplicatePayment.
	Create(ctx context.Context, p *Purchase) error
	ExistsByProviderRef(ctx context.Context, ref string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Purchase, error)
}

// TranslationCacheRepository stores exact-text translations for reuse.
type TranslationCacheRepository interface {
	Get(ctx context.Context, hash string) (*TranslationCacheEntry, error)
	Put(ctx context.Context, entry *TranslationCacheEntry) error
	// CachedTargets returns the subset of targets for which a cached
	// translation of (sourceText, sourceLang) exists.
	CachedTargets(ctx context.Context, sourceText, sourceLang string, targets []string) ([]string, error)
}
