package repository

import (
	"github.com/ManuelReschke/ScriptHub/app/models"
	"gorm.io/gorm"
)

type licenseRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

func (r *licenseRepository) GetByID(id uint) (*models.License, error) {
	var license models.License
	if err := r.db.Preload("Script").First(&license, id).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) ListByUser(userID uint) ([]models.License, error) {
	var licenses []models.License
	err := r.db.Preload("Script").Where("user_id = ?", userID).Order("created_at DESC").Find(&licenses).Error
	return licenses, err
}

// HasActiveForScript reports whether the user owns an ACTIVE license for the script.
func (r *licenseRepository) HasActiveForScript(userID, scriptID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.License{}).
		Where("user_id = ? AND script_id = ? AND status = ?", userID, scriptID, models.LICENSE_STATUS_ACTIVE).
		Count(&count).Error
	return count > 0, err
}
