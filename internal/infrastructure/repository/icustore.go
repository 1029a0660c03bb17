package repository

import (
	"context"
	"errors"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/persistence/mappers"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/authorization"
	shareddb "github.com/icubam/icubam/internal/shared/db"
)

// ICUFilter narrows ListICUs. Nil slices mean no restriction.
type ICUFilter struct {
	IDs        []int64
	RegionIDs  []int64
	ActiveOnly bool
}

// AddRegion creates a region. Admin only.
func (s *Store) AddRegion(ctx context.Context, caller *user.User, name string) (int64, error) {
	if err := s.authorize(caller, authorization.ResourceRegion, authorization.ActionCreate); err != nil {
		return 0, err
	}
	now := s.now()
	m := &models.RegionModel{Name: strings.TrimSpace(name), CreatedAt: now, UpdatedAt: now}
	if err := s.conn(ctx).Create(m).Error; err != nil {
		return 0, translateError(err)
	}
	return m.ID, nil
}

// GetOrCreateRegion returns the region named name, creating it when missing.
func (s *Store) GetOrCreateRegion(ctx context.Context, name string) (*icu.Region, error) {
	name = strings.TrimSpace(name)
	var m models.RegionModel
	err := s.conn(ctx).Where("name = ?", name).First(&m).Error
	if err == nil {
		return mappers.RegionToDomain(&m), nil
	}
	if !isNotFound(err) {
		return nil, translateError(err)
	}

	now := s.now()
	m = models.RegionModel{Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.conn(ctx).Create(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return mappers.RegionToDomain(&m), nil
}

func (s *Store) GetRegion(ctx context.Context, id int64) (*icu.Region, error) {
	var m models.RegionModel
	if err := s.conn(ctx).First(&m, id).Error; err != nil {
		if isNotFound(err) {
			return nil, icu.ErrRegionNotFound
		}
		return nil, translateError(err)
	}
	return mappers.RegionToDomain(&m), nil
}

func (s *Store) ListRegions(ctx context.Context) ([]*icu.Region, error) {
	var rows []*models.RegionModel
	if err := s.conn(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*icu.Region, 0, len(rows))
	for _, m := range rows {
		out = append(out, mappers.RegionToDomain(m))
	}
	return out, nil
}

// AddICU creates an ICU. A non-admin caller may only add ICUs to regions in
// which it already manages an ICU.
func (s *Store) AddICU(ctx context.Context, caller *user.User, i *icu.ICU) (int64, error) {
	if err := s.authorize(caller, authorization.ResourceICU, authorization.ActionManage); err != nil {
		return 0, err
	}
	if err := i.Validate(); err != nil {
		return 0, err
	}
	if !caller.IsAdmin() {
		regions, err := s.managedRegionIDs(ctx, caller.ID)
		if err != nil {
			return 0, err
		}
		if !slices.Contains(regions, i.RegionID) {
			return 0, access.ErrAuthorization
		}
	}

	now := s.now()
	i.CreatedAt, i.UpdatedAt = now, now
	m := mappers.ICUMapper.ToModel(i)
	if err := s.conn(ctx).Create(m).Error; err != nil {
		return 0, translateError(err)
	}
	i.ID = m.ID
	s.logger.Infow("icu added", "icu_id", m.ID, "name", m.Name, "by", caller.ID)
	return m.ID, nil
}

// UpdateICU applies patch. A missing ICU is a silent no-op.
func (s *Store) UpdateICU(ctx context.Context, caller *user.User, id int64, patch icu.Patch) error {
	if err := s.authorize(caller, authorization.ResourceICU, authorization.ActionManage); err != nil {
		return err
	}
	if err := s.requireManages(ctx, caller, id); err != nil {
		return err
	}
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.GetICU(ctx, id)
		if errors.Is(err, icu.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		patch.Apply(current)
		if err := current.Validate(); err != nil {
			return err
		}
		current.UpdatedAt = s.now()
		m := mappers.ICUMapper.ToModel(current)
		return translateError(s.conn(ctx).Model(&models.ICUModel{ID: id}).
			Select("name", "region_id", "country", "dept", "city", "lat", "lng", "phone", "updated_at").
			Updates(m).Error)
	})
}

// EnableICU toggles the active flag. A missing ICU is a silent no-op.
func (s *Store) EnableICU(ctx context.Context, caller *user.User, id int64, enabled bool) error {
	if err := s.authorize(caller, authorization.ResourceICU, authorization.ActionManage); err != nil {
		return err
	}
	if err := s.requireManages(ctx, caller, id); err != nil {
		return err
	}
	return translateError(s.conn(ctx).Model(&models.ICUModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": enabled, "updated_at": s.now()}).Error)
}

func (s *Store) GetICU(ctx context.Context, id int64) (*icu.ICU, error) {
	var m models.ICUModel
	if err := s.conn(ctx).Preload("Region").First(&m, id).Error; err != nil {
		if isNotFound(err) {
			return nil, icu.ErrNotFound
		}
		return nil, translateError(err)
	}
	return mappers.ICUMapper.ToDomain(&m), nil
}

func (s *Store) GetICUByName(ctx context.Context, name string) (*icu.ICU, error) {
	var m models.ICUModel
	if err := s.conn(ctx).Preload("Region").Where("name = ?", name).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, icu.ErrNotFound
		}
		return nil, translateError(err)
	}
	return mappers.ICUMapper.ToDomain(&m), nil
}

func (s *Store) ListICUs(ctx context.Context, filter ICUFilter) ([]*icu.ICU, error) {
	var rows []*models.ICUModel
	q := s.conn(ctx).Preload("Region").
		Scopes(shareddb.InIDs("id", filter.IDs), shareddb.InIDs("region_id", filter.RegionIDs))
	if filter.ActiveOnly {
		q = q.Scopes(shareddb.ActiveOnly(""))
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return mappers.ICUMapper.ToDomainList(rows), nil
}

// GetManagedICUs returns every ICU for an admin, otherwise the ICUs listed
// for caller in icu_managers.
func (s *Store) GetManagedICUs(ctx context.Context, caller *user.User) ([]*icu.ICU, error) {
	if caller == nil {
		return nil, access.ErrAuthorization
	}
	if caller.IsAdmin() {
		return s.ListICUs(ctx, ICUFilter{})
	}
	ids, err := s.assignedICUIDs(ctx, models.ICUManagerModel{}.TableName(), caller.ID)
	if err != nil {
		return nil, err
	}
	return s.ListICUs(ctx, ICUFilter{IDs: ids})
}

func (s *Store) managedRegionIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.conn(ctx).Model(&models.ICUModel{}).
		Distinct().
		Joins("JOIN icu_managers ON icu_managers.icu_id = icus.id").
		Where("icu_managers.user_id = ? AND icus.region_id IS NOT NULL", userID).
		Pluck("icus.region_id", &ids).Error
	return ids, translateError(err)
}

func (s *Store) assignedICUIDs(ctx context.Context, table string, userID int64) ([]int64, error) {
	ids := []int64{}
	err := s.conn(ctx).Table(table).
		Where("user_id = ?", userID).
		Order("icu_id").
		Pluck("icu_id", &ids).Error
	return ids, translateError(err)
}

// regionIDsOf returns the distinct regions of the given ICUs.
func regionIDsOf(tx *gorm.DB, icuIDs []int64) ([]int64, error) {
	ids := []int64{}
	if len(icuIDs) == 0 {
		return ids, nil
	}
	err := tx.Model(&models.ICUModel{}).
		Distinct().
		Where("id IN ? AND region_id IS NOT NULL", icuIDs).
		Pluck("region_id", &ids).Error
	return ids, translateError(err)
}
