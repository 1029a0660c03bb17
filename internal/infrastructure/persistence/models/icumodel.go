package models

import (
	"time"

	"github.com/icubam/icubam/internal/shared/constants"
)

// RegionModel groups ICUs for display and access scoping.
type RegionModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"uniqueIndex;not null;size:255"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (RegionModel) TableName() string {
	return constants.TableRegions
}

// ICUModel is the persistence shape of an ICU.
type ICUModel struct {
	ID        int64        `gorm:"primaryKey;autoIncrement"`
	Name      string       `gorm:"uniqueIndex;not null;size:255"`
	RegionID  *int64       `gorm:"index"`
	Region    *RegionModel `gorm:"foreignKey:RegionID"`
	Country   string       `gorm:"size:128"`
	Dept      string       `gorm:"size:128"`
	City      string       `gorm:"size:128"`
	Lat       float64      `gorm:"not null;default:0"`
	Lng       float64      `gorm:"not null;default:0"`
	Phone     string       `gorm:"size:64"`
	IsActive  bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (ICUModel) TableName() string {
	return constants.TableICUs
}
