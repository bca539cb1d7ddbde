package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SCRIPT_TYPE_SINGLE  = "SINGLE"
	SCRIPT_TYPE_PREMIUM = "PREMIUM"
	SCRIPT_TYPE_ADVANCE = "ADVANCE"
)

// MaxScriptPrice is the largest value the decimal(10,2) price column holds.
const MaxScriptPrice = 99999999.99

type Script struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:varchar(100);index" json:"category" validate:"max=100"`
	ScriptType  string    `gorm:"type:varchar(20);not null;default:'SINGLE'" json:"scriptType" validate:"oneof=SINGLE PREMIUM ADVANCE"`
	Price       float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price" validate:"gte=0,lte=99999999.99"`
	Version     string    `gorm:"type:varchar(50)" json:"version" validate:"max=50"`
	FileKey     string    `gorm:"type:varchar(255)" json:"-"`
	FileURL     string    `gorm:"type:varchar(500)" json:"-"`
	ImageKey    string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Script) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// HasFile reports whether a downloadable artifact is attached.
func (s *Script) HasFile() bool {
	return s.FileKey != "" || s.FileURL != ""
}
