// Package bedcount holds the append-only readings reported by ICUs.
package bedcount

import (
	"fmt"
	"time"
)

// BedCount is one timestamped reading of the eight counters of an ICU.
type BedCount struct {
	ID      int64
	ICUID   int64
	ICUName string

	// Cumulative counters, non-decreasing over an ICU's history.
	NCovidDeaths     int
	NCovidHealed     int
	NCovidTransfered int
	NCovidRefused    int

	// Instantaneous counters.
	NCovidOcc   int
	NCovidFree  int
	NNCovidOcc  int
	NNCovidFree int

	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CumulativeColumns names the monotonic counters in export order.
var CumulativeColumns = []string{"n_covid_deaths", "n_covid_healed", "n_covid_refused", "n_covid_transfered"}

// Validate rejects negative counters.
func (b *BedCount) Validate() error {
	fields := map[string]int{
		"n_covid_occ":        b.NCovidOcc,
		"n_covid_free":       b.NCovidFree,
		"n_ncovid_occ":       b.NNCovidOcc,
		"n_ncovid_free":      b.NNCovidFree,
		"n_covid_deaths":     b.NCovidDeaths,
		"n_covid_healed":     b.NCovidHealed,
		"n_covid_transfered": b.NCovidTransfered,
		"n_covid_refused":    b.NCovidRefused,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeCounter, name)
		}
	}
	return nil
}

// Occupied returns the occupied beds of the selected population.
func (b *BedCount) Occupied(covid bool) int {
	if covid {
		return b.NCovidOcc
	}
	return b.NNCovidOcc
}

// Free returns the free beds of the selected population.
func (b *BedCount) Free(covid bool) int {
	if covid {
		return b.NCovidFree
	}
	return b.NNCovidFree
}

// Cumulative returns pointers to the cumulative counters, in CumulativeColumns order.
func (b *BedCount) Cumulative() []*int {
	return []*int{&b.NCovidDeaths, &b.NCovidHealed, &b.NCovidRefused, &b.NCovidTransfered}
}

// IsStale reports whether the reading is older than days at now.
func (b *BedCount) IsStale(now time.Time, days int) bool {
	if days <= 0 {
		return false
	}
	return now.Sub(b.CreatedAt) > time.Duration(days)*24*time.Hour
}
