package mappers

import (
	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
)

func UpdateTokenToDomain(m *models.UpdateTokenModel) *access.UpdateToken {
	return &access.UpdateToken{
		ID:        m.ID,
		UserID:    m.UserID,
		ICUID:     m.ICUID,
		Value:     m.Value,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ExternalClientToModel(c *access.ExternalClient) *models.ExternalClientModel {
	return &models.ExternalClientModel{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		KeyHash:    c.KeyHash,
		Scope:      string(c.Scope),
		IsActive:   c.IsActive,
		Expiration: c.Expiration,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func ExternalClientToDomain(m *models.ExternalClientModel, regionIDs []int64) *access.ExternalClient {
	return &access.ExternalClient{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Phone:      m.Phone,
		KeyHash:    m.KeyHash,
		Scope:      access.Scope(m.Scope),
		IsActive:   m.IsActive,
		Expiration: m.Expiration,
		RegionIDs:  regionIDs,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
