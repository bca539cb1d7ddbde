package models

import "time"

const (
	SUBSCRIPTION_STATUS_ACTIVE   = "ACTIVE"
	SUBSCRIPTION_STATUS_EXPIRED  = "EXPIRED"
	SUBSCRIPTION_STATUS_CANCELED = "CANCELED"
)

// SubscriptionPeriod is the length of one paid plan period.
const SubscriptionPeriod = 30 * 24 * time.Hour

type Subscription struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;index:idx_subscriptions_user_plan_status,priority:1" json:"userId"`
	PlanType           string    `gorm:"type:varchar(20);not null;index:idx_subscriptions_user_plan_status,priority:2" json:"planType"`
	Status             string    `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_subscriptions_user_plan_status,priority:3" json:"status"`
	OrderID            *uint     `gorm:"index" json:"orderId,omitempty"`
	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// NewSubscription starts an ACTIVE period at start.
func NewSubscription(userID uint, planType string, orderID *uint, start time.Time) *Subscription {
	return &Subscription{
		UserID:             userID,
		PlanType:           planType,
		Status:             SUBSCRIPTION_STATUS_ACTIVE,
		OrderID:            orderID,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.Add(SubscriptionPeriod),
	}
}

func (s *Subscription) IsActive() bool {
	return s.Status == SUBSCRIPTION_STATUS_ACTIVE
}
