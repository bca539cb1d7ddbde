package billing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/catalog"
)

// lineItem is the single product a checkout session charges for.
type lineItem struct {
	Name        string
	Description string
	Amount      float64
	PlanType    string
	ScriptID    *uint
}

func planLineItem(planType string) (lineItem, error) {
	pricing, ok := catalog.CheckoutPricing(planType)
	if !ok {
		return lineItem{}, ErrInvalidPlan
	}
	return lineItem{
		Name:        pricing.Name + " Subscription",
		Description: strings.Join(pricing.Features, ", "),
		Amount:      pricing.Amount,
		PlanType:    pricing.PlanType,
	}, nil
}

func scriptLineItem(script *models.Script) lineItem {
	id := script.ID
	return lineItem{
		Name:        script.Title,
		Description: fmt.Sprintf("License for %s - Single device", script.Title),
		Amount:      script.Price,
		PlanType:    models.PlanTypeScriptPurchase,
		ScriptID:    &id,
	}
}

// toMinorUnits converts a decimal price to cents.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// checkoutMetadata is echoed back by the gateway and is the only channel
// for recovering the purchase intent on confirmation.
func checkoutMetadata(userID uint, item lineItem) map[string]string {
	meta := map[string]string{
		"userId": strconv.FormatUint(uint64(userID), 10),
	}
	if item.ScriptID != nil {
		meta["purchaseType"] = PurchaseTypeScript
		meta["scriptId"] = strconv.FormatUint(uint64(*item.ScriptID), 10)
		meta["scriptTitle"] = item.Name
		meta["scriptPrice"] = strconv.FormatFloat(item.Amount, 'f', 2, 64)
	} else {
		meta["purchaseType"] = PurchaseTypeSubscription
		meta["planType"] = item.PlanType
	}
	return meta
}

// grant is what a paid order entitles its owner to.
type grant struct {
	PlanType string
	ScriptID *uint
}

// grantFromSession resolves the purchase intent from session metadata,
// falling back to what the order recorded at checkout.
func grantFromSession(sess *CheckoutSession, order *models.Order) (grant, error) {
	meta := sess.Metadata
	if uid, err := strconv.ParseUint(meta["userId"], 10, 64); err != nil || uint(uid) != order.UserID {
		return grant{}, ErrMetadataMismatch
	}

	purchaseType := meta["purchaseType"]
	if purchaseType == "" {
		purchaseType = PurchaseTypeSubscription
		if order.IsScriptPurchase() {
			purchaseType = PurchaseTypeScript
		}
	}

	switch purchaseType {
	case PurchaseTypeScript:
		scriptID := order.ScriptID
		if raw := meta["scriptId"]; raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return grant{}, ErrMetadataMismatch
			}
			id := uint(parsed)
			scriptID = &id
		}
		if scriptID == nil {
			return grant{}, ErrMetadataMismatch
		}
		return grant{PlanType: models.PlanTypeScriptPurchase, ScriptID: scriptID}, nil
	default:
		planType := catalog.NormalizePlanType(meta["planType"])
		if planType == "" {
			planType = order.PlanType
		}
		if !catalog.IsSubscriptionPlan(planType) {
			return grant{}, ErrInvalidPlan
		}
		return grant{PlanType: planType}, nil
	}
}
