package catalog

import "github.com/ManuelReschke/ScriptHub/app/models"

func strPtr(s string) *string { return &s }

// DefaultPlans returns the rows seeded into an empty catalog.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{
			PlanType:    PlanSingle,
			Name:        "Single Script",
			Price:       nil,
			Period:      "",
			Description: "Pick individual scripts and pay once per script.",
			Features: []string{
				"One-time payment per script",
				"Lifetime license for purchased scripts",
				"Single device activation",
				"Free updates for purchased scripts",
				"Email support",
			},
			ButtonText: "Browse Scripts",
			Popular:    false,
			Color:      "from-gray-500 to-gray-700",
		},
		{
			PlanType:    PlanPremium,
			Name:        "Premium",
			Price:       strPtr("$14.99"),
			Period:      "/month",
			Description: "Full access to the premium script library.",
			Features: []string{
				"Unlimited Script Access",
				"Priority Support 24/7",
				"AI Assistant Access",
				"Early access to new scripts",
				"Monthly script requests",
				"Cancel anytime",
			},
			ButtonText: "Buy Now",
			Popular:    true,
			Color:      "from-purple-500 to-indigo-600",
		},
		{
			PlanType:    PlanAdvance,
			Name:        "Advance",
			Price:       strPtr("$29.99"),
			Period:      "/month",
			Description: "Everything for teams and commercial projects.",
			Features: []string{
				"Everything in Premium",
				"Unlimited Devices",
				"API Access",
				"Commercial License",
				"Custom script development",
				"Dedicated account manager",
				"White-label options",
			},
			ButtonText: "Buy Now",
			Popular:    false,
			Color:      "from-amber-500 to-orange-600",
		},
	}
}
