package models

import (
	"time"

	"github.com/icubam/icubam/internal/shared/constants"
)

// UserModel is the persistence shape of a user. Memberships live in the
// icu_operators and icu_managers join tables.
type UserModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Name           string    `gorm:"not null;size:255"`
	Phone          string    `gorm:"size:64"`
	Email          string    `gorm:"index;size:255"`
	TelegramChatID string    `gorm:"column:telegram_chat_id;index;size:64"`
	Description    string    `gorm:"size:1024"`
	Role           string    `gorm:"not null;default:operator;size:20"`
	Locale         string    `gorm:"size:10;default:fr"`
	IsActive       bool      `gorm:"not null;default:true"`
	Consent        string    `gorm:"size:16"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (UserModel) TableName() string {
	return constants.TableUsers
}

// ICUOperatorModel links a user to an ICU it reports for.
type ICUOperatorModel struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	ICUID  int64 `gorm:"column:icu_id;primaryKey;autoIncrement:false;index"`
}

func (ICUOperatorModel) TableName() string {
	return constants.TableICUOperators
}

// ICUManagerModel links a user to an ICU it manages.
type ICUManagerModel struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	ICUID  int64 `gorm:"column:icu_id;primaryKey;autoIncrement:false;index"`
}

func (ICUManagerModel) TableName() string {
	return constants.TableICUManagers
}
