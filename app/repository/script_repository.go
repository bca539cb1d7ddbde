package repository

import (
	"github.com/ManuelReschke/ScriptHub/app/models"
	"gorm.io/gorm"
)

type scriptRepository struct {
	db *gorm.DB
}

func NewScriptRepository(db *gorm.DB) ScriptRepository {
	return &scriptRepository{db: db}
}

func (r *scriptRepository) Create(script *models.Script) error {
	return r.db.Create(script).Error
}

func (r *scriptRepository) GetByID(id uint) (*models.Script, error) {
	var script models.Script
	if err := r.db.First(&script, id).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

// List returns all scripts, newest first
func (r *scriptRepository) List() ([]models.Script, error) {
	var scripts []models.Script
	err := r.db.Order("created_at DESC").Order("id DESC").Find(&scripts).Error
	return scripts, err
}

func (r *scriptRepository) Update(script *models.Script) error {
	return r.db.Save(script).Error
}

// DeleteCascade drops the script's licenses (and their audit logs), detaches
// orders that referenced it and deletes the script row, all in one transaction.
func (r *scriptRepository) DeleteCascade(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var script models.Script
		if err := tx.First(&script, id).Error; err != nil {
			return err
		}

		licenseIDs := tx.Model(&models.License{}).Select("id").Where("script_id = ?", id)
		if err := tx.Where("license_id IN (?)", licenseIDs).Delete(&models.LicenseAuditLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("script_id = ?", id).Delete(&models.License{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("script_id = ?", id).Update("script_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Script{}, id).Error
	})
}

func (r *scriptRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Script{}).Count(&count).Error
	return count, err
}
