package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/persistence/mappers"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/authorization"
)

// GetUpdateToken returns the live token of the (user, icu) pair.
func (s *Store) GetUpdateToken(ctx context.Context, userID, icuID int64) (*access.UpdateToken, error) {
	var m models.UpdateTokenModel
	err := s.conn(ctx).Where("user_id = ? AND icu_id = ?", userID, icuID).First(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, access.ErrUnknown
		}
		return nil, translateError(err)
	}
	return mappers.UpdateTokenToDomain(&m), nil
}

// FindUpdateTokenByHash looks a token up by the sha256 of its value.
func (s *Store) FindUpdateTokenByHash(ctx context.Context, hash string) (*access.UpdateToken, error) {
	var m models.UpdateTokenModel
	if err := s.conn(ctx).Where("token_hash = ?", hash).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, access.ErrUnknown
		}
		return nil, translateError(err)
	}
	return mappers.UpdateTokenToDomain(&m), nil
}

// CreateUpdateToken stores the first token of a pair. A concurrent insert for
// the same pair fails with access.ErrConflict.
func (s *Store) CreateUpdateToken(ctx context.Context, userID, icuID int64, value, hash string) (*access.UpdateToken, error) {
	now := s.now()
	m := &models.UpdateTokenModel{
		UserID:    userID,
		ICUID:     icuID,
		Value:     value,
		TokenHash: hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conn(ctx).Create(m).Error; err != nil {
		return nil, translateError(err)
	}
	return mappers.UpdateTokenToDomain(m), nil
}

// RotateUpdateToken replaces the value of token t only if it still holds
// t.Value, so two concurrent rotations cannot both win.
func (s *Store) RotateUpdateToken(ctx context.Context, t *access.UpdateToken, value, hash string) (*access.UpdateToken, error) {
	now := s.now()
	res := s.conn(ctx).Model(&models.UpdateTokenModel{}).
		Where("id = ? AND value = ?", t.ID, t.Value).
		Updates(map[string]interface{}{"value": value, "token_hash": hash, "updated_at": now})
	if res.Error != nil {
		return nil, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, access.ErrConflict
	}
	rotated := *t
	rotated.Value = value
	rotated.UpdatedAt = now
	return &rotated, nil
}

// AddExternalClient stores a client whose key digest is already computed.
// Admin only.
func (s *Store) AddExternalClient(ctx context.Context, caller *user.User, c *access.ExternalClient) (int64, error) {
	if err := s.authorize(caller, authorization.ResourceClient, authorization.ActionManage); err != nil {
		return 0, err
	}
	if !c.Scope.IsValid() {
		c.Scope = access.ScopeAll
	}

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		c.CreatedAt, c.UpdatedAt = now, now
		m := mappers.ExternalClientToModel(c)
		if err := s.conn(ctx).Create(m).Error; err != nil {
			return translateError(err)
		}
		c.ID = m.ID
		for _, regionID := range c.RegionIDs {
			row := &models.ExternalClientRegionModel{ExternalClientID: c.ID, RegionID: regionID}
			if err := s.link(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Infow("external client added", "client_id", c.ID, "name", c.Name, "scope", c.Scope)
	return c.ID, nil
}

// SetExternalClientActive enables or disables a client. Admin only.
func (s *Store) SetExternalClientActive(ctx context.Context, caller *user.User, id int64, active bool) error {
	if err := s.authorize(caller, authorization.ResourceClient, authorization.ActionManage); err != nil {
		return err
	}
	return translateError(s.conn(ctx).Model(&models.ExternalClientModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": s.now()}).Error)
}

func (s *Store) GetExternalClient(ctx context.Context, id int64) (*access.ExternalClient, error) {
	var m models.ExternalClientModel
	if err := s.conn(ctx).First(&m, id).Error; err != nil {
		if isNotFound(err) {
			return nil, access.ErrUnknown
		}
		return nil, translateError(err)
	}
	return s.clientWithRegions(s.conn(ctx), &m)
}

// GetExternalClientByHash resolves a client from its access-key digest,
// regardless of its validity.
func (s *Store) GetExternalClientByHash(ctx context.Context, hash string) (*access.ExternalClient, error) {
	var m models.ExternalClientModel
	if err := s.conn(ctx).Where("key_hash = ?", hash).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, access.ErrUnknown
		}
		return nil, translateError(err)
	}
	return s.clientWithRegions(s.conn(ctx), &m)
}

// ListExternalClients returns every client; validOnly keeps those usable at now.
func (s *Store) ListExternalClients(ctx context.Context, validOnly bool) ([]*access.ExternalClient, error) {
	q := s.conn(ctx).Model(&models.ExternalClientModel{})
	if validOnly {
		q = q.Where("is_active = ? AND (expiration IS NULL OR expiration > ?)", true, s.now())
	}
	var rows []*models.ExternalClientModel
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*access.ExternalClient, 0, len(rows))
	for _, m := range rows {
		c, err := s.clientWithRegions(s.conn(ctx), m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) clientWithRegions(tx *gorm.DB, m *models.ExternalClientModel) (*access.ExternalClient, error) {
	regionIDs := []int64{}
	err := tx.Model(&models.ExternalClientRegionModel{}).
		Where("external_client_id = ?", m.ID).
		Order("region_id").
		Pluck("region_id", &regionIDs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return mappers.ExternalClientToDomain(m, regionIDs), nil
}
