package domain

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPlus Plan = "PLUS"
	PlanPro  Plan = "PRO"
)

// PeriodKind selects the accounting window over which a plan's credits reset.
type PeriodKind string

const (
	PeriodDaily   PeriodKind = "daily"
	PeriodMonthly PeriodKind = "monthly"
)

// planCredits holds the per-period credit capacity of each plan.
// Static configuration, read-only at runtime.
var planCredits = map[Plan]int64{
	PlanFree: 30_000,
	PlanPlus: 3_000_000,
	PlanPro:  12_000_000,
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planCredits[p]
	return ok
}

// Credits returns the credit capacity of the plan for one accounting period.
// Unknown plans have zero capacity.
func (p Plan) Credits() int64 {
	return planCredits[p]
}

// Period returns the accounting window kind: daily for the free tier,
// calendar-monthly for paid tiers.
func (p Plan) Period() PeriodKind {
	if p.IsFree() {
		return PeriodDaily
	}
	return PeriodMonthly
}

// IsFree reports whether the plan is the free tier.
func (p Plan) IsFree() bool {
	return p == PlanFree
}

// TopupPack is a one-time purchasable credit pack.
type TopupPack struct {
	Credits int64
	Price   int64
}

// TopupPacks maps pack size codes to their static configuration.
var TopupPacks = map[string]TopupPack{
	"S": {Credits: 500_000, Price: 1_500},
	"M": {Credits: 2_000_000, Price: 4_900},
	"L": {Credits: 6_000_000, Price: 12_900},
}
