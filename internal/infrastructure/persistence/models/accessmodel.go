package models

import (
	"time"

	"github.com/icubam/icubam/internal/shared/constants"
)

// UpdateTokenModel stores one opaque token per (user, icu) pair. TokenHash is
// the sha256 of Value and is the lookup key.
type UpdateTokenModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_update_tokens_user_icu,priority:1"`
	ICUID     int64     `gorm:"column:icu_id;not null;uniqueIndex:idx_update_tokens_user_icu,priority:2"`
	Value     string    `gorm:"not null;size:64"`
	TokenHash string    `gorm:"not null;uniqueIndex;size:64"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UpdateTokenModel) TableName() string {
	return constants.TableUpdateTokens
}

// ExternalClientModel stores the salted digest of an access key, never the
// key itself.
type ExternalClientModel struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	Name       string     `gorm:"not null;size:255"`
	Email      string     `gorm:"size:255"`
	Phone      string     `gorm:"size:64"`
	KeyHash    string     `gorm:"not null;uniqueIndex;size:128"`
	Scope      string     `gorm:"not null;default:all;size:16"`
	IsActive   bool       `gorm:"not null;default:true"`
	Expiration *time.Time `gorm:"index"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

func (ExternalClientModel) TableName() string {
	return constants.TableExternalClients
}

type ExternalClientRegionModel struct {
	ExternalClientID int64 `gorm:"primaryKey;autoIncrement:false"`
	RegionID         int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (ExternalClientRegionModel) TableName() string {
	return constants.TableExternalClientRegions
}
