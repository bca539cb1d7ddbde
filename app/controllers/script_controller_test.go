package controllers

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/entitlements"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/storage"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type scriptFixture struct {
	db    *gorm.DB
	store *storage.LocalStore
	admin *fiber.App
	buyer *fiber.App
	user  *models.User
}

func newScriptFixture(t *testing.T) *scriptFixture {
	t.Helper()
	db := testutil.NewDB(t)
	store, err := storage.NewLocalStore(t.TempDir(), "https://api.example/uploads")
	require.NoError(t, err)
	repos := repository.NewRepositories(db)
	sc := NewScriptController(repos.Script, store, entitlements.NewChecker(repos.License, repos.Subscription))
	user := createUser(t, db, "player@example.com", models.ROLE_USER)

	admin := fiber.New()
	admin.Use(asUser(99, true))
	admin.Get("/api/scripts", sc.HandleList)
	admin.Get("/api/scripts/:id", sc.HandleGet)
	admin.Get("/api/scripts/:id/download", sc.HandleDownload)
	admin.Post("/api/scripts", sc.HandleCreate)
	admin.Put("/api/scripts/:id", sc.HandleUpdate)
	admin.Delete("/api/scripts/:id", sc.HandleDelete)

	buyer := fiber.New()
	buyer.Use(asUser(user.ID, false))
	buyer.Get("/api/scripts/:id/download", sc.HandleDownload)

	return &scriptFixture{db: db, store: store, admin: admin, buyer: buyer, user: user}
}

type fileUpload struct {
	field, name string
	data        []byte
}

func sendMultipart(t *testing.T, app *fiber.App, method, path string, fields map[string]string, files ...fileUpload) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode, decodeJSON(t, resp)
}

func (f *scriptFixture) exists(key string) bool {
	_, err := os.Stat(filepath.Join(f.store.Root(), filepath.FromSlash(key)))
	return err == nil
}

func TestScriptAdminLifecycle(t *testing.T) {
	f := newScriptFixture(t)

	status, body := sendMultipart(t, f.admin, "POST", "/api/scripts",
		map[string]string{"title": "Auto Farm", "price": "10.00", "category": "farming", "version": "1.0"},
		fileUpload{"image", "cover.png", pngHeader},
		fileUpload{"scriptFile", "farm.lua", []byte("print('farm')")},
	)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, true, body["hasFile"])
	assert.NotContains(t, body, "fileKey")
	imageURL, _ := body["imageUrl"].(string)
	assert.Contains(t, imageURL, "https://api.example/uploads/images/")

	var script models.Script
	require.NoError(t, f.db.First(&script).Error)
	assert.Equal(t, 10.0, script.Price)
	assert.True(t, f.exists(script.ImageKey))
	assert.True(t, f.exists(script.FileKey))
	oldFile := script.FileKey

	status, body = sendMultipart(t, f.admin, "PUT", fmt.Sprintf("/api/scripts/%d", script.ID),
		map[string]string{"removeImage": "true", "price": "12.5"},
		fileUpload{"scriptFile", "farm-v2.lua", []byte("print('v2')")},
	)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Nil(t, body["imageUrl"])
	assert.Equal(t, "Auto Farm", body["title"])

	var updated models.Script
	require.NoError(t, f.db.First(&updated, script.ID).Error)
	assert.Equal(t, 12.5, updated.Price)
	assert.Empty(t, updated.ImageKey)
	assert.False(t, f.exists(script.ImageKey))
	assert.False(t, f.exists(oldFile))
	assert.True(t, f.exists(updated.FileKey))

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/scripts/%d/download", script.ID), nil)
	resp, err := f.admin.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "print('v2')", string(content))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "Auto_Farm.lua")

	resp2, _ := doJSON(t, f.admin, "DELETE", fmt.Sprintf("/api/scripts/%d", script.ID), nil)
	require.Equal(t, fiber.StatusOK, resp2.StatusCode)
	assert.False(t, f.exists(updated.FileKey))

	resp2, _ = doJSON(t, f.admin, "GET", fmt.Sprintf("/api/scripts/%d", script.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp2.StatusCode)
}

func TestScriptCreate_RejectsBadUploads(t *testing.T) {
	f := newScriptFixture(t)

	status, _ := sendMultipart(t, f.admin, "POST", "/api/scripts",
		map[string]string{"title": "Fake"},
		fileUpload{"image", "cover.png", []byte("<html><script>alert(1)</script></html>")},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = sendMultipart(t, f.admin, "POST", "/api/scripts",
		map[string]string{"title": "Fake"},
		fileUpload{"scriptFile", "payload.exe", []byte("MZ")},
	)
	assert.Equal(t, fiber.StatusBadRequest, status)

	for _, price := range []string{"-1", "abc", "NaN", "Inf", "+Inf", "1e300", "100000000"} {
		status, _ = sendMultipart(t, f.admin, "POST", "/api/scripts", map[string]string{"title": "Fake", "price": price})
		assert.Equal(t, fiber.StatusBadRequest, status, "price %q", price)
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Script{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestScriptCreate_AcceptsLargestPrice(t *testing.T) {
	f := newScriptFixture(t)

	status, body := sendMultipart(t, f.admin, "POST", "/api/scripts", map[string]string{"title": "Collector", "price": "99999999.99"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 99999999.99, body["price"])
}

func TestScriptDownload_Entitlement(t *testing.T) {
	f := newScriptFixture(t)
	script := createScript(t, f.db, "Raid Helper", 3)
	script.FileURL = "https://files.example/raid.zip"
	require.NoError(t, f.db.Save(script).Error)
	path := fmt.Sprintf("/api/scripts/%d/download", script.ID)

	resp, body := doJSON(t, f.buyer, "GET", path, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])

	require.NoError(t, f.db.Create(models.NewLicense("raid-key", f.user.ID, script.ID, nil)).Error)

	resp, err := f.buyer.Test(httptest.NewRequest("GET", path, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://files.example/raid.zip", resp.Header.Get(fiber.HeaderLocation))
}

func TestScriptList_HidesFileLocation(t *testing.T) {
	f := newScriptFixture(t)
	s := createScript(t, f.db, "Hidden", 1)
	s.FileURL = "https://files.example/secret.zip"
	require.NoError(t, f.db.Save(s).Error)

	req := httptest.NewRequest("GET", "/api/scripts", nil)
	resp, err := f.admin.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"hasFile":true`)
	assert.NotContains(t, string(raw), "secret.zip")
}
