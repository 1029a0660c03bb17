package mappers

import (
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/authorization"
)

// UserToModel drops memberships; they are written to the join tables separately.
func UserToModel(u *user.User) *models.UserModel {
	return &models.UserModel{
		ID:             u.ID,
		Name:           u.Name,
		Phone:          u.Phone,
		Email:          u.Email,
		TelegramChatID: u.TelegramChatID,
		Description:    u.Description,
		Role:           u.Role.String(),
		Locale:         u.Locale,
		IsActive:       u.IsActive,
		Consent:        string(u.Consent),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func UserToDomain(m *models.UserModel, icuIDs, managedIDs []int64) *user.User {
	return &user.User{
		ID:             m.ID,
		Name:           m.Name,
		Phone:          m.Phone,
		Email:          m.Email,
		TelegramChatID: m.TelegramChatID,
		Description:    m.Description,
		Role:           authorization.ParseUserRole(m.Role),
		Locale:         m.Locale,
		IsActive:       m.IsActive,
		Consent:        user.Consent(m.Consent),
		ICUIDs:         icuIDs,
		ManagedICUIDs:  managedIDs,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
