package repository

import (
	"github.com/ManuelReschke/ScriptHub/app/models"
	"gorm.io/gorm"
)

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetBySessionID(sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Script").Where("stripe_session_id = ?", sessionID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(userID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.Preload("Script").Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&orders).Error
	return orders, err
}

// RecentCompleted returns the latest completed orders with buyer and script loaded.
func (r *orderRepository) RecentCompleted(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.
		Preload("User").
		Preload("Script").
		Where("status = ?", models.ORDER_STATUS_COMPLETED).
		Order("completed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) CountCompletedScriptSales() (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("status = ? AND plan_type = ?", models.ORDER_STATUS_COMPLETED, models.PlanTypeScriptPurchase).
		Count(&count).Error
	return count, err
}

// SalesPerScript counts completed orders for every script, including unsold ones.
func (r *orderRepository) SalesPerScript() ([]ScriptSales, error) {
	var rows []ScriptSales
	err := r.db.Model(&models.Script{}).
		Select("scripts.id, scripts.title, scripts.price, COUNT(orders.id) AS sales_count").
		Joins("LEFT JOIN orders ON orders.script_id = scripts.id AND orders.status = ?", models.ORDER_STATUS_COMPLETED).
		Group("scripts.id, scripts.title, scripts.price").
		Order("scripts.id").
		Scan(&rows).Error
	return rows, err
}
