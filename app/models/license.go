package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	LICENSE_STATUS_ACTIVE  = "ACTIVE"
	LICENSE_STATUS_REVOKED = "REVOKED"
)

// licenseKeyPrefixLen is how much of a key stays visible after issuance.
const licenseKeyPrefixLen = 8

// License grants one script to one user and latches onto the first device
// that verifies it.
type License struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	KeyHash           string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	KeyPrefix         string     `gorm:"type:varchar(16);not null" json:"keyPrefix"`
	UserID            uint       `gorm:"not null;index" json:"userId"`
	ScriptID          uint       `gorm:"not null;index" json:"scriptId"`
	OrderID           *uint      `gorm:"index" json:"orderId,omitempty"`
	Status            string     `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	DeviceID          *string    `gorm:"type:varchar(191)" json:"deviceId"`
	DeviceLimit       int        `gorm:"not null;default:1" json:"deviceLimit"`
	Activations       int        `gorm:"not null;default:0" json:"activations"`
	VerificationCount int64      `gorm:"not null;default:0" json:"verificationCount"`
	LastVerifiedAt    *time.Time `gorm:"default:null" json:"lastVerifiedAt,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Script *Script `gorm:"foreignKey:ScriptID" json:"script,omitempty"`
}

// HashLicenseKey returns the hex SHA-256 digest used to look keys up.
// Keys are random UUIDs, so an unsalted digest is enough for an index.
func HashLicenseKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// NewLicense prepares an unbound ACTIVE license for the given plaintext key.
func NewLicense(key string, userID, scriptID uint, orderID *uint) *License {
	prefix := key
	if len(prefix) > licenseKeyPrefixLen {
		prefix = prefix[:licenseKeyPrefixLen]
	}
	return &License{
		KeyHash:     HashLicenseKey(key),
		KeyPrefix:   prefix,
		UserID:      userID,
		ScriptID:    scriptID,
		OrderID:     orderID,
		Status:      LICENSE_STATUS_ACTIVE,
		DeviceLimit: 1,
	}
}

func (l *License) IsActive() bool {
	return l.Status == LICENSE_STATUS_ACTIVE
}

func (l *License) IsBound() bool {
	return l.DeviceID != nil && *l.DeviceID != ""
}

// MaskedKey renders the visible prefix with the rest hidden.
func (l *License) MaskedKey() string {
	return l.KeyPrefix + "-****-****-****-************"
}
