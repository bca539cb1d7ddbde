package controllers

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/license"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/testutil"
)

func newLicenseApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	lc := NewLicenseController(license.NewService(db, nil))

	app := fiber.New()
	app.Post("/api/license/verify", lc.HandleVerify)
	admin := app.Group("/api/admin/licenses", asUser(1, true))
	admin.Post("/:id/revoke", lc.HandleRevoke)
	admin.Post("/:id/reset-device", lc.HandleResetDevice)
	return app, db
}

func seedLicense(t *testing.T, db *gorm.DB, key string) *models.License {
	t.Helper()
	user := createUser(t, db, key+"@example.com", models.ROLE_USER)
	script := createScript(t, db, "Auto Farm", 10)
	lic := models.NewLicense(key, user.ID, script.ID, nil)
	require.NoError(t, db.Create(lic).Error)
	return lic
}

func TestLicenseVerify_DeviceLatch(t *testing.T) {
	app, db := newLicenseApp(t)
	seedLicense(t, db, "key-0001")

	resp, body := doJSON(t, app, "POST", "/api/license/verify", fiber.Map{"licenseKey": "key-0001", "deviceId": "pc-a"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "License Activated", body["message"])
	assert.Equal(t, true, body["first_device"])
	assert.Equal(t, true, body["firstActivation"])

	resp, body = doJSON(t, app, "POST", "/api/license/verify", fiber.Map{"licenseKey": "key-0001", "deviceId": "pc-a"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Verified", body["message"])
	assert.NotContains(t, body, "first_device")
	assert.NotContains(t, body, "firstActivation")
	assert.NotContains(t, body, "LicenseID")

	resp, body = doJSON(t, app, "POST", "/api/license/verify", fiber.Map{"licenseKey": "key-0001", "deviceId": "pc-b"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Device Mismatch", body["message"])
}

func TestLicenseVerify_Failures(t *testing.T) {
	app, _ := newLicenseApp(t)

	tests := []struct {
		name    string
		body    fiber.Map
		status  int
		message string
	}{
		{"missing device", fiber.Map{"licenseKey": "k"}, fiber.StatusBadRequest, "Missing key or deviceId"},
		{"missing key", fiber.Map{"deviceId": "pc"}, fiber.StatusBadRequest, "Missing key or deviceId"},
		{"unknown key", fiber.Map{"licenseKey": "nope", "deviceId": "pc"}, fiber.StatusUnauthorized, "Invalid License"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, "POST", "/api/license/verify", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, false, body["valid"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestLicenseVerify_MalformedBody(t *testing.T) {
	app, db := newLicenseApp(t)
	seedLicense(t, db, "key-0002")

	req := httptest.NewRequest("POST", "/api/license/verify", strings.NewReader(`{"licenseKey": "key-0002",`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body := decodeJSON(t, resp)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestLicenseAdmin_RevokeAndReset(t *testing.T) {
	app, db := newLicenseApp(t)
	lic := seedLicense(t, db, "key-0002")

	resp, _ := doJSON(t, app, "POST", "/api/license/verify", fiber.Map{"licenseKey": "key-0002", "deviceId": "pc-a"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", fmt.Sprintf("/api/admin/licenses/%d/reset-device", lic.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "License reset", body["message"])

	resp, body = doJSON(t, app, "POST", "/api/license/verify", fiber.Map{"licenseKey": "key-0002", "deviceId": "pc-b"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["first_device"])

	resp, _ = doJSON(t, app, "POST", fmt.Sprintf("/api/admin/licenses/%d/revoke", lic.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, "POST", "/api/license/verify", fiber.Map{"licenseKey": "key-0002", "deviceId": "pc-b"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "License Revoked or Expired", body["message"])

	resp, _ = doJSON(t, app, "POST", "/api/admin/licenses/999/revoke", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
