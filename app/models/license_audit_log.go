package models

import "time"

const (
	AUDIT_ACTION_ACTIVATED       = "ACTIVATED"
	AUDIT_ACTION_VERIFIED        = "VERIFIED"
	AUDIT_ACTION_DEVICE_MISMATCH = "DEVICE_MISMATCH"
	AUDIT_ACTION_REJECTED        = "REJECTED"
	AUDIT_ACTION_REVOKED         = "REVOKED"
	AUDIT_ACTION_DEVICE_RESET    = "DEVICE_RESET"
)

// LicenseAuditLog records every verification outcome and admin action on a license.
type LicenseAuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LicenseID uint      `gorm:"not null;index" json:"licenseId"`
	Action    string    `gorm:"type:varchar(30);not null;index" json:"action"`
	DeviceID  string    `gorm:"type:varchar(191)" json:"deviceId"`
	IP        string    `gorm:"type:varchar(45)" json:"ip"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
