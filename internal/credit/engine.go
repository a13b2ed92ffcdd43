package credit

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Engine performs all credit accounting: pricing, balance reads, deductions
// and grants. Deductions are race-safe because the sufficiency check and the
// increment happen in one atomic step inside the ledger store; the engine
// never pre-checks and then writes.
type Engine struct {
	ledger domain.LedgerRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine constructs an Engine over the given ledger store.
func NewEngine(ledger domain.LedgerRepository, logger zerolog.Logger) *Engine {
	return &Engine{ledger: ledger, logger: logger, now: time.Now}
}

// DeductResult reports the outcome of one deduction attempt.
type DeductResult struct {
	Success   bool
	Remaining int64
}

// Authorization is the result of metering one translation request.
type Authorization struct {
	Authorized     bool
	Price          int64
	CreditsCharged int64
	Remaining      int64
}

// Price computes the credit cost of translating text into targetLangCount
// languages: one credit per code point per target language. Whitespace,
// newlines and combining marks all count; the text is not normalized.
func Price(text string, targetLangCount int) int64 {
	return int64(utf8.RuneCountInString(text)) * int64(targetLangCount)
}

// cacheDiscount returns the credits actually charged when every requested
// target language was served from the translation cache: 10% of the full
// price, rounded up.
func cacheDiscount(price int64) int64 {
	return (price + 9) / 10
}

// Available returns the user's remaining credits in the current window,
// clamped to [0, capacity]. A missing ledger entry means full capacity.
func (e *Engine) Available(ctx context.Context, userID string, plan domain.Plan) (int64, error) {
	if !plan.Valid() {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlan, plan)
	}
	periodStart, _ := ResolveWindow(plan, e.now())
	used, err := e.ledger.GetUsed(ctx, userID, periodStart)
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	return clampRemaining(plan.Credits(), used), nil
}

// Deduct atomically charges amount against the user's current window. On
// insufficient balance it returns domain.ErrInsufficientCredits with the
// current remaining balance, and the ledger entry is unchanged. Store I/O
// failures propagate; no credits are deducted and the metered operation must
// not proceed.
func (e *Engine) Deduct(ctx context.Context, userID string, plan domain.Plan, amount int64) (DeductResult, error) {
	if !plan.Valid() {
		return DeductResult{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlan, plan)
	}
	periodStart, resetAt := ResolveWindow(plan, e.now())
	ok, used, err := e.ledger.TryDeduct(ctx, userID, periodStart, resetAt, amount, plan.Credits())
	if err != nil {
		return DeductResult{}, fmt.Errorf("deduct credits: %w", err)
	}
	remaining := clampRemaining(plan.Credits(), used)
	if !ok {
		return DeductResult{Remaining: remaining}, domain.ErrInsufficientCredits
	}
	return DeductResult{Success: true, Remaining: remaining}, nil
}

// GrantCredits adds amount to the user's balance by decrementing usage in the
// current window for the user's current plan. A pack bought near a period
// boundary loses its unused remainder at rollover; that is a documented
// limitation of granting into the active window, not something the engine
// compensates for.
func (e *Engine) GrantCredits(ctx context.Context, userID string, plan domain.Plan, amount int64) error {
	if !plan.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedPlan, plan)
	}
	periodStart, resetAt := ResolveWindow(plan, e.now())
	if err := e.ledger.Grant(ctx, userID, periodStart, resetAt, amount); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

// MeterAndAuthorize is the sole metered entry point for translation requests:
// it prices the request, applies the cache discount when every target
// language was a cache hit, and atomically deducts the charge. On
// insufficient credits the returned Authorization carries the full price and
// the current balance for the caller's error response.
func (e *Engine) MeterAndAuthorize(ctx context.Context, userID string, plan domain.Plan, text string, targetLangs []string, cacheHitForAll bool) (Authorization, error) {
	price := Price(text, len(targetLangs))
	charge := price
	if cacheHitForAll {
		charge = cacheDiscount(price)
	}
	res, err := e.Deduct(ctx, userID, plan, charge)
	if err != nil {
		return Authorization{Price: price, CreditsCharged: charge, Remaining: res.Remaining}, err
	}
	e.logger.Debug().
		Str("user_id", userID).
		Int64("charged", charge).
		Int64("remaining", res.Remaining).
		Bool("cache_discount", cacheHitForAll).
		Msg("credits charged")
	return Authorization{
		Authorized:     true,
		Price:          price,
		CreditsCharged: charge,
		Remaining:      res.Remaining,
	}, nil
}

func clampRemaining(capacity, used int64) int64 {
	remaining := capacity - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
