package models

import "time"

const (
	ORDER_STATUS_PENDING   = "PENDING"
	ORDER_STATUS_COMPLETED = "COMPLETED"
	ORDER_STATUS_FAILED    = "FAILED"
)

// PlanTypeScriptPurchase marks orders that buy a single script instead of a plan.
const PlanTypeScriptPurchase = "SCRIPT_PURCHASE"

// Order is one checkout attempt. It is created PENDING and moves to
// COMPLETED or FAILED exactly once.
type Order struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"userId"`
	ScriptID        *uint      `gorm:"index" json:"scriptId"`
	Amount          float64    `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	Currency        string     `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	Status          string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	StripeSessionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripeSessionId"`
	PaymentID       string     `gorm:"type:varchar(191)" json:"paymentId"`
	PlanType        string     `gorm:"type:varchar(30);not null" json:"planType"`
	CompletedAt     *time.Time `gorm:"default:null" json:"completedAt,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Script *Script `gorm:"foreignKey:ScriptID;constraint:OnDelete:SET NULL" json:"script,omitempty"`
}

func (o *Order) IsCompleted() bool {
	return o.Status == ORDER_STATUS_COMPLETED
}

func (o *Order) IsScriptPurchase() bool {
	return o.PlanType == PlanTypeScriptPurchase
}
