package controllers

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/statistics"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/testutil"
)

func newAdminApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repository.NewRepositories(db)
	ac := NewAdminUserController(repos.User, statistics.NewService(repos, nil))

	app := fiber.New()
	users := app.Group("/api/users", asUser(1, true))
	users.Get("/", ac.HandleList)
	users.Get("/stats", ac.HandleStats)
	users.Get("/:id", ac.HandleGet)
	users.Put("/:id/role", ac.HandleUpdateRole)
	users.Delete("/:id", ac.HandleDelete)
	return app, db
}

func TestAdminUsers_ListPaginates(t *testing.T) {
	app, db := newAdminApp(t)
	for i := 0; i < 25; i++ {
		createUser(t, db, fmt.Sprintf("user%02d@example.com", i), models.ROLE_USER)
	}
	createUser(t, db, "someone@other.org", models.ROLE_USER)

	resp, body := doJSON(t, app, "GET", "/api/users?page=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	users, _ := body["users"].([]interface{})
	assert.Len(t, users, 6)
	pagination, _ := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 26, pagination["total"])
	assert.EqualValues(t, 2, pagination["page"])
	assert.EqualValues(t, 20, pagination["limit"])
	assert.EqualValues(t, 2, pagination["pages"])

	resp, body = doJSON(t, app, "GET", "/api/users?search=other.org&limit=500", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	users, _ = body["users"].([]interface{})
	assert.Len(t, users, 1)
	pagination, _ = body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 100, pagination["limit"])
}

func TestAdminUsers_RoleAndDelete(t *testing.T) {
	app, db := newAdminApp(t)
	admin := createUser(t, db, "root@example.com", models.ROLE_ADMIN)
	user := createUser(t, db, "player@example.com", models.ROLE_USER)

	resp, _ := doJSON(t, app, "PUT", fmt.Sprintf("/api/users/%d/role", user.ID), fiber.Map{"role": "OWNER"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, "PUT", fmt.Sprintf("/api/users/%d/role", user.ID), fiber.Map{"role": "banned"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ROLE_BANNED, body["role"])

	resp, _ = doJSON(t, app, "PUT", "/api/users/9999/role", fiber.Map{"role": "USER"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, app, "DELETE", fmt.Sprintf("/api/users/%d", admin.ID), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])

	resp, _ = doJSON(t, app, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", fmt.Sprintf("/api/users/%d", user.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminUsers_GetAndStats(t *testing.T) {
	app, db := newAdminApp(t)
	user := createUser(t, db, "player@example.com", models.ROLE_USER)
	script := createScript(t, db, "Auto Farm", 10)
	sid := script.ID
	require.NoError(t, db.Create(&models.Order{
		UserID: user.ID, ScriptID: &sid, Amount: 10, Currency: "usd",
		Status: models.ORDER_STATUS_COMPLETED, StripeSessionID: "cs_1", PlanType: models.PlanTypeScriptPurchase,
	}).Error)

	resp, body := doJSON(t, app, "GET", fmt.Sprintf("/api/users/%d", user.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	orders, _ := body["orders"].([]interface{})
	require.Len(t, orders, 1)
	order, _ := orders[0].(map[string]interface{})
	assert.NotNil(t, order["script"])

	resp, body = doJSON(t, app, "GET", "/api/users/stats", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	stats, _ := body["stats"].(map[string]interface{})
	require.NotNil(t, stats)
	sales, _ := body["scriptSales"].([]interface{})
	require.Len(t, sales, 1)
	row, _ := sales[0].(map[string]interface{})
	assert.EqualValues(t, 1, row["salesCount"])
}
