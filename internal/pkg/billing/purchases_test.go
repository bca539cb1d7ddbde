package billing

import (
	"context"
	"testing"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPurchasesOrdinalsNewestFirst(t *testing.T) {
	f := newFixture(t)
	x := f.script(t, "X", 5)
	y := f.script(t, "Y", 5)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(scriptID uint, key string, at time.Time, status string) {
		lic := models.NewLicense(key, f.user.ID, scriptID, nil)
		lic.CreatedAt = at
		lic.Status = status
		require.NoError(t, f.db.Create(lic).Error)
	}
	mk(x.ID, "key-x-1", base, models.LICENSE_STATUS_ACTIVE)
	mk(y.ID, "key-y-1", base.Add(1*time.Hour), models.LICENSE_STATUS_ACTIVE)
	mk(x.ID, "key-x-2", base.Add(2*time.Hour), models.LICENSE_STATUS_ACTIVE)
	mk(x.ID, "key-x-revoked", base.Add(3*time.Hour), models.LICENSE_STATUS_REVOKED)
	mk(x.ID, "key-x-3", base.Add(4*time.Hour), models.LICENSE_STATUS_ACTIVE)

	items, err := f.svc.ListPurchases(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, items, 4)

	got := make([]string, 0, len(items))
	for _, it := range items {
		got = append(got, it.DisplayTitle)
	}
	assert.Equal(t, []string{"X 3", "X 2", "Y", "X"}, got)
	assert.Equal(t, 3, items[0].Ordinal)
	assert.Equal(t, "key-x-3", items[0].KeyPrefix)
	assert.Equal(t, "X", items[0].Title)
}

func TestPurchaseItemsEmpty(t *testing.T) {
	assert.Empty(t, purchaseItems(nil))
}
