package mappers

import (
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/mapper"
)

var BedCountMapper = mapper.New(bedCountToModel, bedCountToDomain)

func bedCountToModel(b *bedcount.BedCount) *models.BedCountModel {
	return &models.BedCountModel{
		ID:               b.ID,
		ICUID:            b.ICUID,
		NCovidDeaths:     b.NCovidDeaths,
		NCovidHealed:     b.NCovidHealed,
		NCovidTransfered: b.NCovidTransfered,
		NCovidRefused:    b.NCovidRefused,
		NCovidOcc:        b.NCovidOcc,
		NCovidFree:       b.NCovidFree,
		NNCovidOcc:       b.NNCovidOcc,
		NNCovidFree:      b.NNCovidFree,
		Message:          b.Message,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func bedCountToDomain(m *models.BedCountModel) *bedcount.BedCount {
	return &bedcount.BedCount{
		ID:               m.ID,
		ICUID:            m.ICUID,
		NCovidDeaths:     m.NCovidDeaths,
		NCovidHealed:     m.NCovidHealed,
		NCovidTransfered: m.NCovidTransfered,
		NCovidRefused:    m.NCovidRefused,
		NCovidOcc:        m.NCovidOcc,
		NCovidFree:       m.NCovidFree,
		NNCovidOcc:       m.NNCovidOcc,
		NNCovidFree:      m.NNCovidFree,
		Message:          m.Message,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
