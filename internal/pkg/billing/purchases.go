package billing

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/ScriptHub/app/models"
)

// ListPurchases returns the user's ACTIVE licenses newest first. Repeat
// purchases of a script are numbered in purchase order: "X", "X 2", "X 3".
func (s *Service) ListPurchases(ctx context.Context, userID uint) ([]PurchaseItem, error) {
	licenses, err := s.repo.ListActiveLicenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list licenses for user %d: %w", userID, err)
	}
	return purchaseItems(licenses), nil
}

// purchaseItems expects licenses in ascending purchase order.
func purchaseItems(licenses []models.License) []PurchaseItem {
	seen := make(map[uint]int, len(licenses))
	items := make([]PurchaseItem, 0, len(licenses))
	for i := range licenses {
		lic := &licenses[i]
		seen[lic.ScriptID]++
		ordinal := seen[lic.ScriptID]

		title := ""
		if lic.Script != nil {
			title = lic.Script.Title
		}
		display := title
		if ordinal > 1 {
			display = fmt.Sprintf("%s %d", title, ordinal)
		}

		items = append(items, PurchaseItem{
			LicenseID:    lic.ID,
			ScriptID:     lic.ScriptID,
			Title:        title,
			DisplayTitle: display,
			Ordinal:      ordinal,
			KeyPrefix:    lic.KeyPrefix,
			MaskedKey:    lic.MaskedKey(),
			DeviceID:     lic.DeviceID,
			Status:       lic.Status,
			PurchasedAt:  lic.CreatedAt,
			Script:       lic.Script,
		})
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}
