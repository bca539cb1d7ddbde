package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/license"
)

type LicenseController struct {
	licenses *license.Service
}

func NewLicenseController(svc *license.Service) *LicenseController {
	return &LicenseController{licenses: svc}
}

type verifyLicenseRequest struct {
	LicenseKey string `json:"licenseKey"`
	DeviceID   string `json:"deviceId"`
}

// HandleVerify is called by the scripts themselves, so its answers keep the
// {valid, message} shape instead of the usual error envelope.
func (lc *LicenseController) HandleVerify(c *fiber.Ctx) error {
	var req verifyLicenseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return verifyFailure(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := lc.licenses.Verify(c.UserContext(), license.VerifyInput{
		LicenseKey: req.LicenseKey,
		DeviceID:   req.DeviceID,
		IP:         GetClientIP(c),
	})
	switch {
	case err == nil:
		return c.JSON(res)
	case errors.Is(err, license.ErrMissingInput):
		return verifyFailure(c, fiber.StatusBadRequest, "Missing key or deviceId")
	case errors.Is(err, license.ErrInvalidLicense):
		return verifyFailure(c, fiber.StatusUnauthorized, "Invalid License")
	case errors.Is(err, license.ErrLicenseInactive):
		return verifyFailure(c, fiber.StatusForbidden, "License Revoked or Expired")
	case errors.Is(err, license.ErrDeviceMismatch):
		return verifyFailure(c, fiber.StatusForbidden, "Device Mismatch")
	default:
		log.Errorf("[License] Verification failed: %v", err)
		return verifyFailure(c, fiber.StatusInternalServerError, "Server Error")
	}
}

func verifyFailure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"valid": false, "message": message})
}

func (lc *LicenseController) HandleRevoke(c *fiber.Ctx) error {
	return lc.adminAction(c, "revoked", lc.licenses.Revoke)
}

func (lc *LicenseController) HandleResetDevice(c *fiber.Ctx) error {
	return lc.adminAction(c, "reset", lc.licenses.ResetDevice)
}

func (lc *LicenseController) adminAction(c *fiber.Ctx, verb string, action func(ctx context.Context, id uint) (*models.License, error)) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid license id")
	}
	lic, err := action(c.UserContext(), id)
	if errors.Is(err, license.ErrLicenseNotFound) {
		return notFound(c, "License not found")
	}
	if err != nil {
		log.Errorf("[License] Admin action on license %d failed: %v", id, err)
		return internalError(c, "Could not update license")
	}
	log.Infof("[License] License %d %s by admin", id, verb)
	return c.JSON(fiber.Map{"message": "License " + verb, "license": lic})
}
