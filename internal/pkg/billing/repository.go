package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// completeInput carries everything the confirming transaction writes.
type completeInput struct {
	OrderID    uint
	UserID     uint
	PaymentID  string
	Grant      grant
	LicenseKey string
	Now        time.Time
}

// completeOutcome reports what the confirming transaction changed.
type completeOutcome struct {
	Transitioned bool
	// ScriptMissing is set when the purchased script was deleted; the order
	// is moved to FAILED with its payment id kept for a refund.
	ScriptMissing bool
	License       *models.License
	Subscription  *models.Subscription
}

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID uint, customerID string) error
	GetScript(ctx context.Context, id uint) (*models.Script, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FailPendingOrder(ctx context.Context, orderID uint) (bool, error)
	CompleteOrder(ctx context.Context, in completeInput) (*completeOutcome, error)
	LicenseForOrder(ctx context.Context, orderID uint) (*models.License, error)
	LatestLicenseForScript(ctx context.Context, userID, scriptID uint) (*models.License, error)
	ActiveSubscription(ctx context.Context, userID uint, planType string) (*models.Subscription, error)
	LatestActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error)
	ListActiveLicenses(ctx context.Context, userID uint) ([]models.License, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// firstOrNil turns ErrRecordNotFound into a nil result.
func firstOrNil[T any](q *gorm.DB) (*T, error) {
	var out T
	err := q.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *gormRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SetStripeCustomerID(ctx context.Context, userID uint, customerID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}

func (r *gormRepository) GetScript(ctx context.Context, id uint) (*models.Script, error) {
	var script models.Script
	if err := r.db.WithContext(ctx).First(&script, id).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

func (r *gormRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormRepository) GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Script").
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) FailPendingOrder(ctx context.Context, orderID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.ORDER_STATUS_PENDING).
		Update("status", models.ORDER_STATUS_FAILED)
	return res.RowsAffected > 0, res.Error
}

// CompleteOrder performs the PENDING to COMPLETED transition and issues the
// entitlement in the same transaction. Only the caller whose conditional
// update hits a row issues anything.
func (r *gormRepository) CompleteOrder(ctx context.Context, in completeInput) (*completeOutcome, error) {
	out := &completeOutcome{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Grant.ScriptID != nil {
			var scripts int64
			if err := tx.Model(&models.Script{}).Where("id = ?", *in.Grant.ScriptID).Count(&scripts).Error; err != nil {
				return err
			}
			if scripts == 0 {
				res := tx.Model(&models.Order{}).
					Where("id = ? AND status = ?", in.OrderID, models.ORDER_STATUS_PENDING).
					Updates(map[string]interface{}{
						"status":     models.ORDER_STATUS_FAILED,
						"payment_id": in.PaymentID,
					})
				out.ScriptMissing = res.RowsAffected > 0
				return res.Error
			}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", in.OrderID, models.ORDER_STATUS_PENDING).
			Updates(map[string]interface{}{
				"status":       models.ORDER_STATUS_COMPLETED,
				"payment_id":   in.PaymentID,
				"completed_at": in.Now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		out.Transitioned = true

		orderID := in.OrderID
		if in.Grant.ScriptID != nil {
			lic := models.NewLicense(in.LicenseKey, in.UserID, *in.Grant.ScriptID, &orderID)
			if err := tx.Create(lic).Error; err != nil {
				return err
			}
			out.License = lic
			return nil
		}

		// Serialize plan confirmations per user so two orders for the same
		// plan cannot both see "no active subscription".
		var locked models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&locked, in.UserID).Error; err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND plan_type = ? AND status = ?", in.UserID, in.Grant.PlanType, models.SUBSCRIPTION_STATUS_ACTIVE).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		sub := models.NewSubscription(in.UserID, in.Grant.PlanType, &orderID, in.Now)
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		out.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) LicenseForOrder(ctx context.Context, orderID uint) (*models.License, error) {
	return firstOrNil[models.License](r.db.WithContext(ctx).Preload("Script").
		Where("order_id = ?", orderID).Order("id ASC"))
}

func (r *gormRepository) LatestLicenseForScript(ctx context.Context, userID, scriptID uint) (*models.License, error) {
	return firstOrNil[models.License](r.db.WithContext(ctx).Preload("Script").
		Where("user_id = ? AND script_id = ?", userID, scriptID).Order("created_at DESC").Order("id DESC"))
}

func (r *gormRepository) ActiveSubscription(ctx context.Context, userID uint, planType string) (*models.Subscription, error) {
	return firstOrNil[models.Subscription](r.db.WithContext(ctx).
		Where("user_id = ? AND plan_type = ? AND status = ?", userID, planType, models.SUBSCRIPTION_STATUS_ACTIVE).
		Order("created_at DESC").Order("id DESC"))
}

func (r *gormRepository) LatestActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	return firstOrNil[models.Subscription](r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SUBSCRIPTION_STATUS_ACTIVE).
		Order("created_at DESC").Order("id DESC"))
}

// ListActiveLicenses returns ACTIVE licenses with their script, oldest first.
func (r *gormRepository) ListActiveLicenses(ctx context.Context, userID uint) ([]models.License, error) {
	var licenses []models.License
	err := r.db.WithContext(ctx).
		Preload("Script").
		Where("user_id = ? AND status = ?", userID, models.LICENSE_STATUS_ACTIVE).
		Order("created_at ASC").
		Order("id ASC").
		Find(&licenses).Error
	return licenses, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
