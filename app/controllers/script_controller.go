package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/entitlements"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/storage"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/upload"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/usercontext"
)

// sniffLen is how much of an upload is read for content checks.
const sniffLen = 512

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type ScriptController struct {
	scripts repository.ScriptRepository
	store   storage.FileStore
	checker *entitlements.Checker
}

func NewScriptController(scripts repository.ScriptRepository, store storage.FileStore, checker *entitlements.Checker) *ScriptController {
	return &ScriptController{scripts: scripts, store: store, checker: checker}
}

// scriptView is the public JSON shape of a script. Storage keys and
// external file locations stay private.
type scriptView struct {
	*models.Script
	ImageURL *string `json:"imageUrl"`
	HasFile  bool    `json:"hasFile"`
}

func (sc *ScriptController) view(s *models.Script) scriptView {
	v := scriptView{Script: s, HasFile: s.HasFile()}
	if s.ImageKey != "" {
		u := s.ImageKey
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			u = sc.store.URL(u)
		}
		v.ImageURL = &u
	}
	return v
}

func (sc *ScriptController) HandleList(c *fiber.Ctx) error {
	scripts, err := sc.scripts.List()
	if err != nil {
		log.Errorf("[Scripts] List failed: %v", err)
		return internalError(c, "Failed to fetch scripts")
	}
	out := make([]scriptView, 0, len(scripts))
	for i := range scripts {
		out = append(out, sc.view(&scripts[i]))
	}
	return c.JSON(out)
}

func (sc *ScriptController) HandleGet(c *fiber.Ctx) error {
	script, ok, err := sc.load(c)
	if !ok {
		return err
	}
	return c.JSON(sc.view(script))
}

// HandleDownload serves the script artifact to entitled callers.
func (sc *ScriptController) HandleDownload(c *fiber.Ctx) error {
	script, ok, err := sc.load(c)
	if !ok {
		return err
	}

	uc := usercontext.GetUserContext(c)
	grant, err := sc.checker.CanDownload(uc.UserID, uc.IsAdmin, script.ID)
	if err != nil {
		log.Errorf("[Scripts] Entitlement check for user %d on script %d failed: %v", uc.UserID, script.ID, err)
		return internalError(c, "Could not check entitlement")
	}
	if grant == entitlements.GrantNone {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "You do not own this script")
	}

	switch {
	case script.FileKey != "":
		rc, err := sc.store.Open(c.UserContext(), script.FileKey)
		if errors.Is(err, storage.ErrNotFound) {
			return notFound(c, "Script file missing")
		}
		if err != nil {
			log.Errorf("[Scripts] Open %s failed: %v", script.FileKey, err)
			return internalError(c, "Could not read script file")
		}
		ext := filepath.Ext(script.FileKey)
		c.Attachment(downloadName(script.Title, ext))
		c.Set(fiber.HeaderContentType, storage.ContentType(ext))
		log.Infof("[Scripts] User %d downloads script %d (%s)", uc.UserID, script.ID, grant)
		return c.SendStream(rc)
	case script.FileURL != "":
		return c.Redirect(script.FileURL, fiber.StatusFound)
	default:
		return notFound(c, "No file attached to this script")
	}
}

func downloadName(title, ext string) string {
	name := strings.Trim(unsafeFilenameChars.ReplaceAllString(title, "_"), "_.")
	if name == "" {
		name = "script"
	}
	return name + ext
}

func (sc *ScriptController) HandleCreate(c *fiber.Ctx) error {
	form := multipartValues(c)
	script := &models.Script{ScriptType: models.SCRIPT_TYPE_SINGLE}
	if err := applyScriptForm(script, form); err != nil {
		return badRequest(c, err.Error())
	}
	if err := script.Validate(); err != nil {
		return badRequest(c, "Invalid script data")
	}

	imageKey, fileKey, err := sc.storeUploads(c)
	if err != nil {
		return uploadError(c, err)
	}
	if imageKey != "" {
		script.ImageKey = imageKey
	}
	if fileKey != "" {
		script.FileKey = fileKey
		script.FileURL = ""
	}

	if err := sc.scripts.Create(script); err != nil {
		log.Errorf("[Scripts] Create failed: %v", err)
		sc.discard(c.UserContext(), imageKey, fileKey)
		return internalError(c, "Failed to create script")
	}
	log.Infof("[Scripts] Script %d created", script.ID)
	return c.Status(fiber.StatusCreated).JSON(sc.view(script))
}

func (sc *ScriptController) HandleUpdate(c *fiber.Ctx) error {
	script, ok, err := sc.load(c)
	if !ok {
		return err
	}
	oldImage, oldFile := script.ImageKey, script.FileKey

	form := multipartValues(c)
	if err := applyScriptForm(script, form); err != nil {
		return badRequest(c, err.Error())
	}
	if err := script.Validate(); err != nil {
		return badRequest(c, "Invalid script data")
	}

	imageKey, fileKey, err := sc.storeUploads(c)
	if err != nil {
		return uploadError(c, err)
	}

	var obsolete []string
	if imageKey != "" {
		script.ImageKey = imageKey
		obsolete = append(obsolete, oldImage)
	} else if strings.EqualFold(form.get("removeImage"), "true") {
		script.ImageKey = ""
		obsolete = append(obsolete, oldImage)
	}
	if fileKey != "" {
		script.FileKey = fileKey
		script.FileURL = ""
		obsolete = append(obsolete, oldFile)
	} else if form.has("fileUrl") && form.get("fileUrl") != "" {
		script.FileKey = ""
		obsolete = append(obsolete, oldFile)
	}

	if err := sc.scripts.Update(script); err != nil {
		log.Errorf("[Scripts] Update of script %d failed: %v", script.ID, err)
		sc.discard(c.UserContext(), imageKey, fileKey)
		return internalError(c, "Failed to update script")
	}
	sc.discard(c.UserContext(), obsolete...)
	return c.JSON(sc.view(script))
}

func (sc *ScriptController) HandleDelete(c *fiber.Ctx) error {
	script, ok, err := sc.load(c)
	if !ok {
		return err
	}
	if err := sc.scripts.DeleteCascade(script.ID); err != nil {
		log.Errorf("[Scripts] Delete of script %d failed: %v", script.ID, err)
		return internalError(c, "Failed to delete script")
	}
	sc.discard(c.UserContext(), script.ImageKey, script.FileKey)
	log.Infof("[Scripts] Script %d deleted", script.ID)
	return c.JSON(fiber.Map{"message": "Script deleted successfully"})
}

// load resolves :id. When ok is false the response has been written and
// err is what the handler must return.
func (sc *ScriptController) load(c *fiber.Ctx) (*models.Script, bool, error) {
	id, valid := paramID(c, "id")
	if !valid {
		return nil, false, notFound(c, "Script not found")
	}
	script, err := sc.scripts.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, notFound(c, "Script not found")
	}
	if err != nil {
		log.Errorf("[Scripts] Load script %d failed: %v", id, err)
		return nil, false, internalError(c, "Failed to load script")
	}
	return script, true, nil
}

func (sc *ScriptController) storeUploads(c *fiber.Ctx) (imageKey, fileKey string, err error) {
	if fh, _ := c.FormFile("image"); fh != nil {
		imageKey, err = sc.save(c.UserContext(), fh, storage.PrefixImages, func(head []byte) (string, error) {
			return upload.ValidateImage(fh.Filename, fh.Size, head)
		})
		if err != nil {
			return "", "", err
		}
	}
	if fh, _ := c.FormFile("scriptFile"); fh != nil {
		fileKey, err = sc.save(c.UserContext(), fh, storage.PrefixScripts, func(head []byte) (string, error) {
			return storage.ContentType(filepath.Ext(fh.Filename)), upload.ValidateScriptFile(fh.Filename, fh.Size, head)
		})
		if err != nil {
			sc.discard(c.UserContext(), imageKey)
			return "", "", err
		}
	}
	return imageKey, fileKey, nil
}

func (sc *ScriptController) save(ctx context.Context, fh *multipart.FileHeader, prefix string, check func(head []byte) (string, error)) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType, err := check(head)
	if err != nil {
		return "", err
	}

	key := storage.NewKey(prefix, fh.Filename)
	if err := sc.store.Save(ctx, key, io.MultiReader(bytes.NewReader(head), f), fh.Size, contentType); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return key, nil
}

func (sc *ScriptController) discard(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" || strings.HasPrefix(key, "http") {
			continue
		}
		if err := sc.store.Delete(ctx, key); err != nil {
			log.Warnf("[Scripts] Could not delete stored file %s: %v", key, err)
		}
	}
}

func uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, upload.ErrImageType),
		errors.Is(err, upload.ErrScriptType),
		errors.Is(err, upload.ErrEmptyFile):
		return badRequest(c, err.Error())
	case errors.Is(err, upload.ErrTooLarge):
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	default:
		log.Errorf("[Scripts] Upload failed: %v", err)
		return internalError(c, "Failed to store upload")
	}
}

// formValues holds the text fields of a multipart or urlencoded body.
type formValues map[string]string

func multipartValues(c *fiber.Ctx) formValues {
	out := formValues{}
	if mf, err := c.MultipartForm(); err == nil {
		for k, v := range mf.Value {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out
	}
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		out[string(k)] = string(v)
	})
	return out
}

func (f formValues) has(k string) bool {
	_, ok := f[k]
	return ok
}

func (f formValues) get(k string) string {
	return strings.TrimSpace(f[k])
}

// applyScriptForm copies the submitted fields onto s. Absent fields keep
// their current value.
func applyScriptForm(s *models.Script, f formValues) error {
	if f.has("title") {
		s.Title = f.get("title")
	}
	if f.has("description") {
		s.Description = f["description"]
	}
	if f.has("category") {
		s.Category = f.get("category")
	}
	if v := f.get("scriptType"); v != "" {
		s.ScriptType = strings.ToUpper(v)
	}
	if v := f.get("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 || price > models.MaxScriptPrice {
			return fmt.Errorf("price must be a number between 0 and %.2f", models.MaxScriptPrice)
		}
		s.Price = price
	}
	if f.has("version") {
		s.Version = f.get("version")
	}
	if v := f.get("fileUrl"); v != "" {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return errors.New("fileUrl must be an http(s) URL")
		}
		s.FileURL = v
	}
	return nil
}
