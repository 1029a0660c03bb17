package models

import (
	"time"

	"github.com/icubam/icubam/internal/shared/constants"
)

// BedCountModel is append-only; rows are never updated after insert.
type BedCountModel struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	ICUID            int64     `gorm:"column:icu_id;not null;index:idx_bed_counts_icu_created,priority:1"`
	NCovidDeaths     int       `gorm:"column:n_covid_deaths;not null;default:0"`
	NCovidHealed     int       `gorm:"column:n_covid_healed;not null;default:0"`
	NCovidTransfered int       `gorm:"column:n_covid_transfered;not null;default:0"`
	NCovidRefused    int       `gorm:"column:n_covid_refused;not null;default:0"`
	NCovidOcc        int       `gorm:"column:n_covid_occ;not null;default:0"`
	NCovidFree       int       `gorm:"column:n_covid_free;not null;default:0"`
	NNCovidOcc       int       `gorm:"column:n_ncovid_occ;not null;default:0"`
	NNCovidFree      int       `gorm:"column:n_ncovid_free;not null;default:0"`
	Message          string    `gorm:"size:1024"`
	CreatedAt        time.Time `gorm:"not null;index:idx_bed_counts_icu_created,priority:2"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (BedCountModel) TableName() string {
	return constants.TableBedCounts
}
