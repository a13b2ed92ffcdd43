package domain

import "strings"

// ProductType identifies what a verified payment event paid for.
type ProductType string

const (
	ProductSubscriptionPlus       ProductType = "SUBSCRIPTION_PLUS"
	ProductSubscriptionPlusYearly ProductType = "SUBSCRIPTION_PLUS_YEARLY"
	ProductSubscriptionPro        ProductType = "SUBSCRIPTION_PRO"
	ProductSubscriptionProYearly  ProductType = "SUBSCRIPTION_PRO_YEARLY"
	ProductSubscriptionCancelled  ProductType = "SUBSCRIPTION_CANCELLED"
	ProductTopupS                 ProductType = "TOPUP_S"
	ProductTopupM                 ProductType = "TOPUP_M"
	ProductTopupL                 ProductType = "TOPUP_L"
)

// SubscriptionPlan resolves the plan a subscription product activates.
// Only the declared subscription products match; anything else, including
// cancellation and unknown SUBSCRIPTION_-prefixed strings, resolves to
// nothing so malformed events cannot flip a plan.
func (t ProductType) SubscriptionPlan() (Plan, bool) {
	switch t {
	case ProductSubscriptionPlus, ProductSubscriptionPlusYearly:
		return PlanPlus, true
	case ProductSubscriptionPro, ProductSubscriptionProYearly:
		return PlanPro, true
	default:
		return "", false
	}
}

// TopupPack resolves the credit pack a top-up product purchases.
func (t ProductType) TopupPack() (TopupPack, bool) {
	size, ok := strings.CutPrefix(string(t), "TOPUP_")
	if !ok {
		return TopupPack{}, false
	}
	pack, ok := TopupPacks[size]
	return pack, ok
}

// IsCancellation reports whether the product is a subscription cancellation.
func (t ProductType) IsCancellation() bool {
	return t == ProductSubscriptionCancelled
}
