package repository

import (
	"errors"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// LatestActive returns the newest ACTIVE subscription of the user, or nil when there is none.
func (r *subscriptionRepository) LatestActive(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.SUBSCRIPTION_STATUS_ACTIVE).
		Order("created_at DESC").
		Order("id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListActiveByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ? AND status = ?", userID, models.SUBSCRIPTION_STATUS_ACTIVE).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("status = ?", models.SUBSCRIPTION_STATUS_ACTIVE).Count(&count).Error
	return count, err
}
