package admintools

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/catalog"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidRole    = errors.New("role must be USER, ADMIN or BANNED")
	ErrInvalidPlan    = errors.New("plan must be PREMIUM or ADVANCE")
	ErrAdminProtected = errors.New("admin accounts must be demoted before deletion")
)

// Tools are the operator commands run outside the HTTP API.
type Tools struct {
	db    *gorm.DB
	users repository.UserRepository
	now   func() time.Time
}

func New(db *gorm.DB) *Tools {
	return &Tools{db: db, users: repository.NewUserRepository(db), now: time.Now}
}

func (t *Tools) userByEmail(email string) (*models.User, error) {
	u, err := t.users.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// CreateAdmin makes email a verified ADMIN with the given password, creating
// the account when it does not exist yet. It reports whether a row was inserted.
func (t *Tools) CreateAdmin(email, password string) (*models.User, bool, error) {
	if strings.TrimSpace(password) == "" {
		return nil, false, errors.New("password is required")
	}

	existing, err := t.userByEmail(email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	if existing != nil {
		hash, err := models.HashPassword(password)
		if err != nil {
			return nil, false, err
		}
		existing.Password = hash
		existing.Role = models.ROLE_ADMIN
		existing.IsVerified = true
		existing.VerificationCode = ""
		existing.VerificationSentAt = nil
		if err := t.users.Update(existing); err != nil {
			return nil, false, fmt.Errorf("promote %s: %w", existing.Email, err)
		}
		log.Infof("[Admin] Promoted existing account %s to ADMIN", existing.Email)
		return existing, false, nil
	}

	u, err := models.NewUser(email, password, "Admin", "User", "")
	if err != nil {
		return nil, false, err
	}
	u.Role = models.ROLE_ADMIN
	u.IsVerified = true
	if err := t.users.Create(u); err != nil {
		return nil, false, fmt.Errorf("create %s: %w", u.Email, err)
	}
	log.Infof("[Admin] Created admin account %s", u.Email)
	return u, true, nil
}

func (t *Tools) SetRole(email, role string) (*models.User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if !models.IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	u, err := t.userByEmail(email)
	if err != nil {
		return nil, err
	}
	if err := t.users.UpdateRole(u.ID, role); err != nil {
		return nil, err
	}
	u.Role = role
	return u, nil
}

// DeleteUser removes a non-admin account with everything it owns.
func (t *Tools) DeleteUser(email string) error {
	u, err := t.userByEmail(email)
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		return ErrAdminProtected
	}
	return t.users.DeleteCascade(u.ID)
}

// GrantSubscription gives email an ACTIVE plan subscription for one period
// without an order. An existing ACTIVE subscription for the plan is returned as is.
func (t *Tools) GrantSubscription(email, planType string) (*models.Subscription, bool, error) {
	planType = catalog.NormalizePlanType(planType)
	if _, ok := catalog.CheckoutPricing(planType); !ok {
		return nil, false, ErrInvalidPlan
	}
	u, err := t.userByEmail(email)
	if err != nil {
		return nil, false, err
	}

	var sub models.Subscription
	err = t.db.Where("user_id = ? AND plan_type = ? AND status = ?", u.ID, planType, models.SUBSCRIPTION_STATUS_ACTIVE).
		First(&sub).Error
	if err == nil {
		return &sub, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := models.NewSubscription(u.ID, planType, nil, t.now())
	if err := t.db.Create(created).Error; err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// RevokeSubscriptions cancels every ACTIVE subscription of email and returns how many changed.
func (t *Tools) RevokeSubscriptions(email string) (int64, error) {
	u, err := t.userByEmail(email)
	if err != nil {
		return 0, err
	}
	res := t.db.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", u.ID, models.SUBSCRIPTION_STATUS_ACTIVE).
		Update("status", models.SUBSCRIPTION_STATUS_CANCELED)
	return res.RowsAffected, res.Error
}
