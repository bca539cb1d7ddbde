package counter

import (
	"context"
	"testing"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushAllFoldsVerificationsIntoLicenses(t *testing.T) {
	rdb := testutil.NewRedis(t, 12)
	db := testutil.NewDB(t)
	ctx := context.Background()

	a := models.NewLicense("key-a", 1, 1, nil)
	b := models.NewLicense("key-b", 1, 1, nil)
	require.NoError(t, db.Create(a).Error)
	require.NoError(t, db.Create(b).Error)

	c := New(rdb, db)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddVerification(ctx, a.ID))
	}
	require.NoError(t, c.AddVerification(ctx, b.ID))

	require.NoError(t, c.FlushAll(ctx))

	var got []models.License
	require.NoError(t, db.Order("id").Find(&got).Error)
	assert.Equal(t, int64(3), got[0].VerificationCount)
	assert.Equal(t, int64(1), got[1].VerificationCount)

	// nothing buffered: flush is a no-op
	require.NoError(t, c.FlushAll(ctx))
	exists, err := rdb.Exists(ctx, licenseVerificationsKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
