// Package payment applies verified payment events to plans and credit
// balances. Signature verification happens upstream; events arriving here
// are trusted.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/credit"
	"server/internal/domain"
)

// Event is one verified payment notification. Delivery is at-least-once;
// ProviderRef deduplicates replays.
type Event struct {
	UserID      string
	ProductType domain.ProductType
	ProviderRef string
	AmountPaid  int64
}

// Applier consumes payment events exactly once each: a subscription product
// updates the plan and grants a full period allotment, a top-up grants its
// pack, a cancellation downgrades to the free plan immediately. The purchase
// record's unique provider reference is the idempotency gate, so it is
// written before the grant; an event whose grant then fails still leaves its
// record behind for reconciliation.
type Applier struct {
	users     domain.UserRepository
	purchases domain.PurchaseRepository
	engine    *credit.Engine
	logger    zerolog.Logger
}

// NewApplier constructs an Applier.
func NewApplier(users domain.UserRepository, purchases domain.PurchaseRepository, engine *credit.Engine, logger zerolog.Logger) *Applier {
	return &Applier{users: users, purchases: purchases, engine: engine, logger: logger}
}

// Apply processes one payment event. Replays of an already-recorded
// ProviderRef are absorbed as a debug-logged no-op. A grant failure after
// the record was written is surfaced as an error and an alert log: it is
// money collected without credits issued, never to be swallowed.
func (a *Applier) Apply(ctx context.Context, ev Event) error {
	if ev.ProviderRef == "" {
		return fmt.Errorf("apply payment: provider reference is required")
	}

	creditsGranted, err := resolveCredits(ev.ProductType)
	if err != nil {
		return err
	}

	seen, err := a.purchases.ExistsByProviderRef(ctx, ev.ProviderRef)
	if err != nil {
		return fmt.Errorf("check provider reference: %w", err)
	}
	if seen {
		a.logger.Debug().
			Str("provider_ref", ev.ProviderRef).
			Msg("duplicate payment event ignored")
		return nil
	}

	record := &domain.Purchase{
		ID:             uuid.NewString(),
		UserID:         ev.UserID,
		ProductType:    ev.ProductType,
		AmountPaid:     ev.AmountPaid,
		CreditsGranted: creditsGranted,
		ProviderRef:    ev.ProviderRef,
		CreatedAt:      time.Now(),
	}
	if err := a.purchases.Create(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			// Lost a race with a concurrent delivery of the same event.
			a.logger.Debug().
				Str("provider_ref", ev.ProviderRef).
				Msg("duplicate payment event ignored")
			return nil
		}
		return fmt.Errorf("record purchase: %w", err)
	}

	if err := a.applyEffect(ctx, ev, creditsGranted); err != nil {
		a.logger.Error().Err(err).
			Str("alert", "grant_failure").
			Str("user_id", ev.UserID).
			Str("provider_ref", ev.ProviderRef).
			Int64("credits", creditsGranted).
			Msg("payment recorded but effect failed")
		return fmt.Errorf("apply payment %s: %w", ev.ProviderRef, err)
	}

	a.logger.Info().
		Str("user_id", ev.UserID).
		Str("product", string(ev.ProductType)).
		Int64("credits_granted", creditsGranted).
		Msg("payment event applied")
	return nil
}

// resolveCredits maps a product to the credits it grants. Static lookup, so
// unsupported products are rejected before anything is written.
func resolveCredits(t domain.ProductType) (int64, error) {
	if t.IsCancellation() {
		return 0, nil
	}
	if plan, ok := t.SubscriptionPlan(); ok {
		return plan.Credits(), nil
	}
	if pack, ok := t.TopupPack(); ok {
		return pack.Credits, nil
	}
	return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedProduct, t)
}

// applyEffect performs the plan change and/or grant after the record exists.
func (a *Applier) applyEffect(ctx context.Context, ev Event, creditsGranted int64) error {
	switch {
	case ev.ProductType.IsCancellation():
		// Downgrade takes effect immediately; credits already banked in the
		// current window are untouched.
		if err := a.users.UpdatePlan(ctx, ev.UserID, domain.PlanFree); err != nil {
			return fmt.Errorf("downgrade plan: %w", err)
		}
		return nil

	default:
		plan, isSubscription := ev.ProductType.SubscriptionPlan()
		if isSubscription {
			if err := a.users.UpdatePlan(ctx, ev.UserID, plan); err != nil {
				return fmt.Errorf("update plan: %w", err)
			}
		} else {
			user, err := a.users.GetByID(ctx, ev.UserID)
			if err != nil {
				return fmt.Errorf("load user: %w", err)
			}
			plan = user.Plan
		}
		if err := a.engine.GrantCredits(ctx, ev.UserID, plan, creditsGranted); err != nil {
			return err
		}
		return nil
	}
}
