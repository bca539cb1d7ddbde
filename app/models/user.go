package models

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER   = "USER"
	ROLE_ADMIN  = "ADMIN"
	ROLE_BANNED = "BANNED"
)

// PasswordCost matches the cost the account store has always used.
const PasswordCost = 10

// VerificationCodeTTL bounds how long an emailed OTP stays usable.
const VerificationCodeTTL = 10 * time.Minute

type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,max=200"`
	Username           *string    `gorm:"uniqueIndex;type:varchar(100)" json:"username,omitempty" validate:"omitempty,min=3,max=100"`
	FirstName          string     `gorm:"type:varchar(100)" json:"firstName" validate:"max=100"`
	LastName           string     `gorm:"type:varchar(100)" json:"lastName" validate:"max=100"`
	Password           string     `gorm:"type:varchar(255);not null" json:"-"`
	Role               string     `gorm:"type:varchar(20);not null;default:'USER';index" json:"role" validate:"oneof=USER ADMIN BANNED"`
	IsVerified         bool       `gorm:"not null;default:false" json:"isVerified"`
	VerificationCode   string     `gorm:"type:varchar(10)" json:"-"`
	VerificationSentAt *time.Time `gorm:"default:null" json:"-"`
	StripeCustomerID   string     `gorm:"type:varchar(191);index" json:"-"`
	LastLoginAt        *time.Time `gorm:"default:null" json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Orders        []Order        `gorm:"constraint:OnDelete:CASCADE" json:"orders,omitempty"`
	Licenses      []License      `gorm:"constraint:OnDelete:CASCADE" json:"licenses,omitempty"`
	Subscriptions []Subscription `gorm:"constraint:OnDelete:CASCADE" json:"subscriptions,omitempty"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds an unverified USER account with a hashed password.
func NewUser(email, password, firstName, lastName, username string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:     NormalizeEmail(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Password:  pw,
		Role:      ROLE_USER,
	}
	if name := strings.TrimSpace(username); name != "" {
		u.Username = &name
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetVerificationCode stores a fresh OTP and stamps when it was sent.
func (u *User) SetVerificationCode(code string, sentAt time.Time) {
	u.VerificationCode = code
	u.VerificationSentAt = &sentAt
}

// IsVerificationCodeValid checks the OTP in constant time and rejects stale codes.
func (u *User) IsVerificationCodeValid(code string, now time.Time) bool {
	if u.VerificationCode == "" || u.VerificationSentAt == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(u.VerificationCode), []byte(strings.TrimSpace(code))) != 1 {
		return false
	}
	return now.Sub(*u.VerificationSentAt) <= VerificationCodeTTL
}

// MarkVerified flips the account to verified and clears the pending code.
func (u *User) MarkVerified() {
	u.IsVerified = true
	u.VerificationCode = ""
	u.VerificationSentAt = nil
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

func (u *User) IsBanned() bool {
	return u.Role == ROLE_BANNED
}

// DisplayName prefers the real name and falls back to username, then email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}

// IsValidRole reports whether role is one of the assignable roles.
func IsValidRole(role string) bool {
	switch role {
	case ROLE_USER, ROLE_ADMIN, ROLE_BANNED:
		return true
	default:
		return false
	}
}

// DeleteUserCascade removes a user and everything they own inside tx.
func DeleteUserCascade(tx *gorm.DB, userID uint) error {
	licenseIDs := tx.Model(&License{}).Select("id").Where("user_id = ?", userID)
	if err := tx.Where("license_id IN (?)", licenseIDs).Delete(&LicenseAuditLog{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&License{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Subscription{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Order{}).Error; err != nil {
		return err
	}
	return tx.Delete(&User{}, userID).Error
}
