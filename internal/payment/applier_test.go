package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/credit"
	"server/internal/domain"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) UpdatePlan(_ context.Context, id string, plan domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Plan = plan
	return nil
}

type memPurchases struct {
	mu      sync.Mutex
	byRef   map[string]*domain.Purchase
	records []domain.Purchase
}

func newMemPurchases() *memPurchases {
	return &memPurchases{byRef: make(map[string]*domain.Purchase)}
}

func (m *memPurchases) Create(_ context.Context, p *domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRef[p.ProviderRef]; ok {
		return domain.ErrDuplicatePayment
	}
	m.byRef[p.ProviderRef] = p
	m.records = append(m.records, *p)
	return nil
}

func (m *memPurchases) ExistsByProviderRef(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byRef[ref]
	return ok, nil
}

func (m *memPurchases) ListByUser(_ context.Context, userID string, limit int) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Purchase
	for _, p := range m.records {
		if p.UserID == userID {
			out = append(out, p)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// grantLedger counts grants and can be told to fail them.
type grantLedger struct {
	mu       sync.Mutex
	grants   map[string]int64
	grantErr error
}

func newGrantLedger() *grantLedger {
	return &grantLedger{grants: make(map[string]int64)}
}

func (g *grantLedger) TryDeduct(context.Context, string, time.Time, time.Time, int64, int64) (bool, int64, error) {
	return false, 0, errors.New("not used in applier tests")
}

func (g *grantLedger) Grant(_ context.Context, userID string, _, _ time.Time, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grantErr != nil {
		return g.grantErr
	}
	g.grants[userID] += amount
	return nil
}

func (g *grantLedger) GetUsed(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

func newTestApplier(users *memUsers, purchases *memPurchases, ledger *grantLedger) *Applier {
	engine := credit.NewEngine(ledger, zerolog.Nop())
	return NewApplier(users, purchases, engine, zerolog.Nop())
}

func TestApplySubscriptionUpdatesPlanAndGrants(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanFree})
	purchases := newMemPurchases()
	ledger := newGrantLedger()
	applier := newTestApplier(users, purchases, ledger)

	err := applier.Apply(context.Background(), Event{
		UserID:      "u1",
		ProductType: domain.ProductSubscriptionPro,
		ProviderRef: "cs_123",
		AmountPaid:  19_900,
	})
	require.NoError(t, err)

	u, err := users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, u.Plan)
	assert.Equal(t, domain.PlanPro.Credits(), ledger.grants["u1"])

	require.Len(t, purchases.records, 1)
	rec := purchases.records[0]
	assert.Equal(t, domain.PlanPro.Credits(), rec.CreditsGranted)
	assert.Equal(t, "cs_123", rec.ProviderRef)
}

func TestApplyTopupGrantsPackCredits(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanPlus})
	purchases := newMemPurchases()
	ledger := newGrantLedger()
	applier := newTestApplier(users, purchases, ledger)

	err := applier.Apply(context.Background(), Event{
		UserID:      "u1",
		ProductType: domain.ProductTopupM,
		ProviderRef: "cs_topup",
		AmountPaid:  4_900,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TopupPacks["M"].Credits, ledger.grants["u1"])
	require.Len(t, purchases.records, 1)
	assert.Equal(t, domain.TopupPacks["M"].Credits, purchases.records[0].CreditsGranted)
}

func TestApplyDuplicateEventIsNoOp(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanFree})
	purchases := newMemPurchases()
	ledger := newGrantLedger()
	applier := newTestApplier(users, purchases, ledger)

	ev := Event{
		UserID:      "u1",
		ProductType: domain.ProductSubscriptionPlus,
		ProviderRef: "cs_once",
		AmountPaid:  6_900,
	}
	require.NoError(t, applier.Apply(context.Background(), ev))
	require.NoError(t, applier.Apply(context.Background(), ev))

	// Exactly one record and one grant.
	assert.Len(t, purchases.records, 1)
	assert.Equal(t, domain.PlanPlus.Credits(), ledger.grants["u1"])
}

func TestApplyGrantFailureStillRecordsPurchase(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanFree})
	purchases := newMemPurchases()
	ledger := newGrantLedger()
	ledger.grantErr = errors.New("ledger write failed")
	applier := newTestApplier(users, purchases, ledger)

	err := applier.Apply(context.Background(), Event{
		UserID:      "u1",
		ProductType: domain.ProductTopupS,
		ProviderRef: "cs_fail",
		AmountPaid:  1_500,
	})
	require.Error(t, err)

	// The audit trail survives the failed grant so it can be reconciled.
	require.Len(t, purchases.records, 1)
	assert.Equal(t, domain.TopupPacks["S"].Credits, purchases.records[0].CreditsGranted)
}

func TestApplyCancellationDowngradesImmediately(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanPro})
	purchases := newMemPurchases()
	ledger := newGrantLedger()
	applier := newTestApplier(users, purchases, ledger)

	err := applier.Apply(context.Background(), Event{
		UserID:      "u1",
		ProductType: domain.ProductSubscriptionCancelled,
		ProviderRef: "sub_del_1",
	})
	require.NoError(t, err)

	u, err := users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, u.Plan)
	assert.Zero(t, ledger.grants["u1"])
	require.Len(t, purchases.records, 1)
	assert.Zero(t, purchases.records[0].CreditsGranted)
}

func TestApplyUnknownProductRejected(t *testing.T) {
	products := []domain.ProductType{
		"GIFT_CARD",
		"SUBSCRIPTION_BASIC",
		"SUBSCRIPTION_PROMO",
		"SUBSCRIPTION_",
		"TOPUP_XXL",
	}
	for _, product := range products {
		t.Run(string(product), func(t *testing.T) {
			users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanFree})
			purchases := newMemPurchases()
			ledger := newGrantLedger()
			applier := newTestApplier(users, purchases, ledger)

			err := applier.Apply(context.Background(), Event{
				UserID:      "u1",
				ProductType: product,
				ProviderRef: "cs_bad",
			})
			require.ErrorIs(t, err, domain.ErrUnsupportedProduct)
			assert.Empty(t, purchases.records)
			assert.Zero(t, ledger.grants["u1"])

			// The user's plan is untouched by the rejected event.
			u, err := users.GetByID(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, domain.PlanFree, u.Plan)
		})
	}
}

func TestApplyConcurrentDeliveriesGrantOnce(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Plan: domain.PlanPlus})
	purchases := newMemPurchases()
	ledger := newGrantLedger()
	applier := newTestApplier(users, purchases, ledger)

	ev := Event{
		UserID:      "u1",
		ProductType: domain.ProductTopupL,
		ProviderRef: "cs_race",
		AmountPaid:  12_900,
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = applier.Apply(context.Background(), ev)
		}()
	}
	wg.Wait()

	// The unique provider reference gates both the record and the grant.
	assert.Len(t, purchases.records, 1)
	assert.Equal(t, domain.TopupPacks["L"].Credits, ledger.grants["u1"])
}
