package entitlements

import (
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/catalog"
)

// Grant names why a download was allowed.
type Grant string

const (
	GrantNone         Grant = ""
	GrantAdmin        Grant = "admin"
	GrantLicense      Grant = "license"
	GrantSubscription Grant = "subscription"
)

// Checker answers whether a user may download a script.
type Checker struct {
	licenses      repository.LicenseRepository
	subscriptions repository.SubscriptionRepository
}

func NewChecker(licenses repository.LicenseRepository, subscriptions repository.SubscriptionRepository) *Checker {
	return &Checker{licenses: licenses, subscriptions: subscriptions}
}

// CanDownload allows admins, owners of an ACTIVE license for the script and
// holders of an ACTIVE PREMIUM or ADVANCE subscription.
func (c *Checker) CanDownload(userID uint, isAdmin bool, scriptID uint) (Grant, error) {
	if isAdmin {
		return GrantAdmin, nil
	}
	if userID == 0 {
		return GrantNone, nil
	}

	owned, err := c.licenses.HasActiveForScript(userID, scriptID)
	if err != nil {
		return GrantNone, err
	}
	if owned {
		return GrantLicense, nil
	}

	subs, err := c.subscriptions.ListActiveByUser(userID)
	if err != nil {
		return GrantNone, err
	}
	for _, s := range subs {
		if catalog.IsSubscriptionPlan(s.PlanType) {
			return GrantSubscription, nil
		}
	}
	return GrantNone, nil
}
