package catalog

import "strings"

const (
	PlanSingle  = "SINGLE"
	PlanPremium = "PREMIUM"
	PlanAdvance = "ADVANCE"
)

// Pricing is the server-side line item used when a plan is bought.
type Pricing struct {
	PlanType string
	Name     string
	Amount   float64
	Features []string
}

var checkoutPricing = map[string]Pricing{
	PlanPremium: {
		PlanType: PlanPremium,
		Name:     "Premium",
		Amount:   14.99,
		Features: []string{"Unlimited Script Access", "Priority Support 24/7", "AI Assistant Access"},
	},
	PlanAdvance: {
		PlanType: PlanAdvance,
		Name:     "Advance",
		Amount:   29.99,
		Features: []string{"Everything in Premium", "Unlimited Devices", "API Access", "Commercial License"},
	},
}

// NormalizePlanType upper-cases and trims a client supplied plan type.
func NormalizePlanType(planType string) string {
	return strings.ToUpper(strings.TrimSpace(planType))
}

// CheckoutPricing returns the price table entry for a purchasable plan.
// SINGLE is browsed per script and is never sold as a plan.
func CheckoutPricing(planType string) (Pricing, bool) {
	p, ok := checkoutPricing[NormalizePlanType(planType)]
	if !ok {
		return Pricing{}, false
	}
	p.Features = append([]string(nil), p.Features...)
	return p, true
}

// IsSubscriptionPlan reports whether planType grants a subscription.
func IsSubscriptionPlan(planType string) bool {
	_, ok := checkoutPricing[NormalizePlanType(planType)]
	return ok
}

// TierRank orders plan types SINGLE < PREMIUM < ADVANCE; unknown types sort last.
func TierRank(planType string) int {
	switch NormalizePlanType(planType) {
	case PlanSingle:
		return 0
	case PlanPremium:
		return 1
	case PlanAdvance:
		return 2
	default:
		return 3
	}
}
