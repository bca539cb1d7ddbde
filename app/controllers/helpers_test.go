package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/usercontext"
)

// asUser stands in for the auth middleware.
func asUser(id uint, admin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := models.ROLE_USER
		if admin {
			role = models.ROLE_ADMIN
		}
		usercontext.Set(c, usercontext.UserContext{UserID: id, Role: role, IsAdmin: admin, IsLoggedIn: true})
		return c.Next()
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers ...string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeJSON(t, resp)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return out
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Password: "x", Role: role, IsVerified: true, FirstName: "Test"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createScript(t *testing.T, db *gorm.DB, title string, price float64) *models.Script {
	t.Helper()
	s := &models.Script{Title: title, Price: price, ScriptType: models.SCRIPT_TYPE_SINGLE}
	require.NoError(t, db.Create(s).Error)
	return s
}
