package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrMissingInput    = errors.New("missing key or deviceId")
	ErrInvalidLicense  = errors.New("invalid license")
	ErrLicenseInactive = errors.New("license revoked or expired")
	ErrDeviceMismatch  = errors.New("device mismatch")
	ErrLicenseNotFound = errors.New("license not found")
)

const (
	MessageActivated = "License Activated"
	MessageVerified  = "Verified"
)

// VerificationCounter buffers per-license verification counts.
type VerificationCounter interface {
	AddVerification(ctx context.Context, licenseID uint) error
}

type VerifyInput struct {
	LicenseKey string
	DeviceID   string
	IP         string
}

// Result is the successful answer returned to script clients.
type Result struct {
	Valid       bool
	Message     string
	FirstDevice bool
	LicenseID   uint
}

// MarshalJSON reports a first activation under both first_device and
// firstActivation; deployed scripts read either name.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Valid           bool   `json:"valid"`
		Message         string `json:"message"`
		FirstDevice     bool   `json:"first_device,omitempty"`
		FirstActivation bool   `json:"firstActivation,omitempty"`
	}{r.Valid, r.Message, r.FirstDevice, r.FirstDevice}
	return json.Marshal(out)
}

// Service answers whether a license key may run on a device. The first
// device to verify an unbound key claims it; nothing but ResetDevice
// releases that claim.
type Service struct {
	db      *gorm.DB
	counter VerificationCounter
	now     func() time.Time
}

// NewService builds the verifier. counter may be nil.
func NewService(db *gorm.DB, counter VerificationCounter) *Service {
	return &Service{db: db, counter: counter, now: time.Now}
}

func (s *Service) Verify(ctx context.Context, in VerifyInput) (*Result, error) {
	key := strings.TrimSpace(in.LicenseKey)
	device := strings.TrimSpace(in.DeviceID)
	if key == "" || device == "" {
		metrics.LicenseVerifications.WithLabelValues("missing_input").Inc()
		return nil, ErrMissingInput
	}

	db := s.db.WithContext(ctx)
	var lic models.License
	err := db.Where("key_hash = ?", models.HashLicenseKey(key)).First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.LicenseVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidLicense
	}
	if err != nil {
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	s.countVerification(ctx, lic.ID)

	if !lic.IsActive() {
		s.audit(ctx, lic.ID, models.AUDIT_ACTION_REJECTED, device, in.IP)
		metrics.LicenseVerifications.WithLabelValues("inactive").Inc()
		return nil, ErrLicenseInactive
	}

	now := s.now()
	if !lic.IsBound() {
		res := db.Model(&models.License{}).
			Where("id = ? AND (device_id IS NULL OR device_id = '')", lic.ID).
			Updates(map[string]interface{}{
				"device_id":        device,
				"activations":      gorm.Expr("activations + 1"),
				"last_verified_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("bind license %d: %w", lic.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			s.audit(ctx, lic.ID, models.AUDIT_ACTION_ACTIVATED, device, in.IP)
			metrics.LicenseVerifications.WithLabelValues("activated").Inc()
			log.Infof("[License] License %d activated on a new device", lic.ID)
			return &Result{Valid: true, Message: MessageActivated, FirstDevice: true, LicenseID: lic.ID}, nil
		}
		// lost the race: judge against the winner's binding
		if err := db.First(&lic, lic.ID).Error; err != nil {
			return nil, fmt.Errorf("reload license %d: %w", lic.ID, err)
		}
	}

	if lic.DeviceID != nil && *lic.DeviceID == device {
		if err := db.Model(&models.License{}).Where("id = ?", lic.ID).Update("last_verified_at", now).Error; err != nil {
			log.Warnf("[License] Could not stamp last verification of license %d: %v", lic.ID, err)
		}
		s.audit(ctx, lic.ID, models.AUDIT_ACTION_VERIFIED, device, in.IP)
		metrics.LicenseVerifications.WithLabelValues("verified").Inc()
		return &Result{Valid: true, Message: MessageVerified, LicenseID: lic.ID}, nil
	}

	s.audit(ctx, lic.ID, models.AUDIT_ACTION_DEVICE_MISMATCH, device, in.IP)
	metrics.LicenseVerifications.WithLabelValues("device_mismatch").Inc()
	return nil, ErrDeviceMismatch
}

// Revoke permanently disables a license.
func (s *Service) Revoke(ctx context.Context, licenseID uint) (*models.License, error) {
	lic, err := s.update(ctx, licenseID, map[string]interface{}{"status": models.LICENSE_STATUS_REVOKED})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, licenseID, models.AUDIT_ACTION_REVOKED, "", "")
	log.Infof("[License] License %d revoked", licenseID)
	return lic, nil
}

// ResetDevice clears the binding so the next verifying device claims the license.
func (s *Service) ResetDevice(ctx context.Context, licenseID uint) (*models.License, error) {
	lic, err := s.update(ctx, licenseID, map[string]interface{}{"device_id": nil})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, licenseID, models.AUDIT_ACTION_DEVICE_RESET, "", "")
	log.Infof("[License] Device binding of license %d reset", licenseID)
	return lic, nil
}

func (s *Service) update(ctx context.Context, licenseID uint, updates map[string]interface{}) (*models.License, error) {
	db := s.db.WithContext(ctx)
	var lic models.License
	err := db.First(&lic, licenseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load license %d: %w", licenseID, err)
	}
	if err := db.Model(&models.License{}).Where("id = ?", licenseID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update license %d: %w", licenseID, err)
	}
	var fresh models.License
	if err := db.Preload("Script").First(&fresh, licenseID).Error; err != nil {
		return nil, fmt.Errorf("reload license %d: %w", licenseID, err)
	}
	return &fresh, nil
}

func (s *Service) audit(ctx context.Context, licenseID uint, action, device, ip string) {
	entry := &models.LicenseAuditLog{LicenseID: licenseID, Action: action, DeviceID: device, IP: ip}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Warnf("[License] Could not write audit log for license %d: %v", licenseID, err)
	}
}

func (s *Service) countVerification(ctx context.Context, licenseID uint) {
	if s.counter == nil {
		return
	}
	if err := s.counter.AddVerification(ctx, licenseID); err != nil {
		log.Warnf("[License] Could not count verification of license %d: %v", licenseID, err)
	}
}
