package repository

import (
	"github.com/ManuelReschke/ScriptHub/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetWithRelations(id uint) (*models.User, error)
	Update(user *models.User) error
	UpdateRole(id uint, role string) error
	DeleteCascade(id uint) error
	List(search string, offset, limit int) ([]models.User, int64, error)
	Count() (int64, error)
	Recent(limit int) ([]models.User, error)
}

// ScriptRepository defines the interface for script catalog operations
type ScriptRepository interface {
	Create(script *models.Script) error
	GetByID(id uint) (*models.Script, error)
	List() ([]models.Script, error)
	Update(script *models.Script) error
	DeleteCascade(id uint) error
	Count() (int64, error)
}

// PlanRepository defines the interface for the plan catalog
type PlanRepository interface {
	List() ([]models.Plan, error)
	Count() (int64, error)
	CreateIfMissing(plans []models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	Update(plan *models.Plan) error
}

// OrderRepository defines the interface for order lookups outside the checkout engine
type OrderRepository interface {
	GetBySessionID(sessionID string) (*models.Order, error)
	ListByUser(userID uint, limit int) ([]models.Order, error)
	RecentCompleted(limit int) ([]models.Order, error)
	CountCompletedScriptSales() (int64, error)
	SalesPerScript() ([]ScriptSales, error)
}

// ScriptSales is one row of the admin sales overview.
type ScriptSales struct {
	ID         uint    `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	SalesCount int64   `json:"salesCount"`
}

// LicenseRepository defines the interface for license lookups
type LicenseRepository interface {
	GetByID(id uint) (*models.License, error)
	ListByUser(userID uint) ([]models.License, error)
	HasActiveForScript(userID, scriptID uint) (bool, error)
}

// SubscriptionRepository defines the interface for subscription lookups
type SubscriptionRepository interface {
	LatestActive(userID uint) (*models.Subscription, error)
	ListActiveByUser(userID uint) ([]models.Subscription, error)
	CountActive() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Script       ScriptRepository
	Plan         PlanRepository
	Order        OrderRepository
	License      LicenseRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Script:       NewScriptRepository(db),
		Plan:         NewPlanRepository(db),
		Order:        NewOrderRepository(db),
		License:      NewLicenseRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
