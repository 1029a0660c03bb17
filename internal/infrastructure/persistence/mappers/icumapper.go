package mappers

import (
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/mapper"
)

// ICUMapper converts between icu.ICU and its GORM model. The region name is
// filled only when the model was loaded with its Region preloaded.
var ICUMapper = mapper.New(icuToModel, icuToDomain)

func icuToModel(i *icu.ICU) *models.ICUModel {
	var regionID *int64
	if i.RegionID != 0 {
		id := i.RegionID
		regionID = &id
	}
	return &models.ICUModel{
		ID:        i.ID,
		Name:      i.Name,
		RegionID:  regionID,
		Country:   i.Country,
		Dept:      i.Dept,
		City:      i.City,
		Lat:       i.Lat,
		Lng:       i.Lng,
		Phone:     i.Phone,
		IsActive:  i.IsActive,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func icuToDomain(m *models.ICUModel) *icu.ICU {
	out := &icu.ICU{
		ID:        m.ID,
		Name:      m.Name,
		Country:   m.Country,
		Dept:      m.Dept,
		City:      m.City,
		Lat:       m.Lat,
		Lng:       m.Lng,
		Phone:     m.Phone,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.RegionID != nil {
		out.RegionID = *m.RegionID
	}
	if m.Region != nil {
		out.RegionName = m.Region.Name
	}
	return out
}

func RegionToDomain(m *models.RegionModel) *icu.Region {
	return &icu.Region{ID: m.ID, Name: m.Name}
}
