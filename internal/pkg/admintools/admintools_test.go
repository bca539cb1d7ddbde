package admintools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/testutil"
)

func TestCreateAdminInsertsVerifiedAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	tools := New(db)

	u, created, err := tools.CreateAdmin("  Root@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, created)

	var stored models.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, "root@example.com", stored.Email)
	assert.Equal(t, models.ROLE_ADMIN, stored.Role)
	assert.True(t, stored.IsVerified)
	assert.True(t, stored.CheckPassword("s3cret-pass"))
}

func TestCreateAdminPromotesExistingUser(t *testing.T) {
	db := testutil.NewDB(t)
	tools := New(db)

	existing, err := models.NewUser("dev@example.com", "old-pass", "Dev", "One", "")
	require.NoError(t, err)
	existing.SetVerificationCode("123456", time.Now())
	require.NoError(t, db.Create(existing).Error)

	u, created, err := tools.CreateAdmin("dev@example.com", "new-pass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, u.ID)

	var stored models.User
	require.NoError(t, db.First(&stored, existing.ID).Error)
	assert.Equal(t, models.ROLE_ADMIN, stored.Role)
	assert.True(t, stored.IsVerified)
	assert.Empty(t, stored.VerificationCode)
	assert.True(t, stored.CheckPassword("new-pass"))
	assert.False(t, stored.CheckPassword("old-pass"))

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateAdminRejectsBadInput(t *testing.T) {
	tools := New(testutil.NewDB(t))

	_, _, err := tools.CreateAdmin("root@example.com", "  ")
	assert.Error(t, err)
	_, _, err = tools.CreateAdmin("not-an-email", "s3cret-pass")
	assert.Error(t, err)
}

func TestSetRole(t *testing.T) {
	db := testutil.NewDB(t)
	tools := New(db)

	u, err := models.NewUser("user@example.com", "pass-word", "", "", "")
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)

	updated, err := tools.SetRole("USER@example.com", "banned")
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_BANNED, updated.Role)

	var stored models.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, models.ROLE_BANNED, stored.Role)

	_, err = tools.SetRole("user@example.com", "OWNER")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = tools.SetRole("ghost@example.com", "ADMIN")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUserRefusesAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	tools := New(db)

	_, _, err := tools.CreateAdmin("root@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.ErrorIs(t, tools.DeleteUser("root@example.com"), ErrAdminProtected)

	u, err := models.NewUser("user@example.com", "pass-word", "", "", "")
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, tools.DeleteUser("user@example.com"))

	var count int64
	db.Model(&models.User{}).Where("id = ?", u.ID).Count(&count)
	assert.Zero(t, count)
}

func TestGrantAndRevokeSubscription(t *testing.T) {
	db := testutil.NewDB(t)
	tools := New(db)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tools.now = func() time.Time { return start }

	u, err := models.NewUser("buyer@example.com", "pass-word", "", "", "")
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)

	sub, created, err := tools.GrantSubscription("buyer@example.com", "premium")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "PREMIUM", sub.PlanType)
	assert.Nil(t, sub.OrderID)
	assert.Equal(t, start.Add(models.SubscriptionPeriod), sub.CurrentPeriodEnd)

	again, created, err := tools.GrantSubscription("buyer@example.com", "PREMIUM")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sub.ID, again.ID)

	_, _, err = tools.GrantSubscription("buyer@example.com", "SINGLE")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	n, err := tools.RevokeSubscriptions("buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var stored models.Subscription
	require.NoError(t, db.First(&stored, sub.ID).Error)
	assert.Equal(t, models.SUBSCRIPTION_STATUS_CANCELED, stored.Status)
}
