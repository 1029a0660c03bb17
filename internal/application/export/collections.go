// Package export serves the read-only data collections of the external API
// and the CSV imports of the command line.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Collection names a dataset of /db.
type Collection string

const (
	CollectionICUs         Collection = "icus"
	CollectionRegions      Collection = "regions"
	CollectionBedCounts    Collection = "bedcounts"
	CollectionAllBedCounts Collection = "all_bedcounts"
)

var ErrUnknownCollection = errors.New("unknown collection")

func ParseCollection(name string) (Collection, error) {
	switch c := Collection(name); c {
	case CollectionICUs, CollectionRegions, CollectionBedCounts, CollectionAllBedCounts:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// Column layouts, shared with the CSV import.
var (
	ICUColumns      = []string{"name", "region", "dept", "city", "lat", "long", "telephone"}
	RegionColumns   = []string{"id", "name"}
	BedCountColumns = []string{
		"icu_name", "n_covid_occ", "n_covid_free", "n_ncovid_occ", "n_ncovid_free",
		"n_covid_deaths", "n_covid_healed", "n_covid_refused", "n_covid_transfered", "timestamp",
	}
)

// Table is a rendered collection.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Options are the query parameters of /db.
type Options struct {
	MaxTS      *time.Time
	Preprocess bool
}

// Store is the read side of the repository used by exports.
type Store interface {
	ListRegions(ctx context.Context) ([]*icu.Region, error)
	ListICUs(ctx context.Context, filter repository.ICUFilter) ([]*icu.ICU, error)
	LatestBedCounts(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error)
	AllBedCounts(ctx context.Context, icuIDs []int64, maxTS *time.Time) ([]*bedcount.BedCount, error)
}

type Exporter struct {
	store  Store
	logger logger.Interface
}

func NewExporter(store Store, log logger.Interface) *Exporter {
	return &Exporter{store: store, logger: log}
}

// Export builds collection c as seen by client: the ICUs of its regions,
// none when it has no region. A nil client sees everything.
func (e *Exporter) Export(ctx context.Context, client *access.ExternalClient, c Collection, opts Options) (*Table, error) {
	var regionIDs []int64
	if client != nil {
		regionIDs = client.VisibleRegionIDs()
	}

	switch c {
	case CollectionICUs:
		icus, err := e.store.ListICUs(ctx, repository.ICUFilter{RegionIDs: regionIDs})
		if err != nil {
			return nil, err
		}
		return icuTable(icus), nil

	case CollectionRegions:
		regions, err := e.store.ListRegions(ctx)
		if err != nil {
			return nil, err
		}
		t := &Table{Name: string(c), Header: RegionColumns}
		for _, r := range regions {
			if client != nil && !client.CanSeeRegion(r.ID) {
				continue
			}
			t.Rows = append(t.Rows, []string{strconv.FormatInt(r.ID, 10), r.Name})
		}
		return t, nil

	case CollectionBedCounts, CollectionAllBedCounts:
		ids, err := e.visibleICUIDs(ctx, regionIDs)
		if err != nil {
			return nil, err
		}
		var rows []*bedcount.BedCount
		if c == CollectionBedCounts {
			rows, err = e.store.LatestBedCounts(ctx, ids, opts.MaxTS)
		} else {
			rows, err = e.store.AllBedCounts(ctx, ids, opts.MaxTS)
		}
		if err != nil {
			return nil, err
		}
		if opts.Preprocess {
			rows = Preprocess(rows)
		}
		return bedCountTable(string(c), rows), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}

// visibleICUIDs returns nil (every active ICU) for nil regionIDs and an
// empty slice when no ICU is visible.
func (e *Exporter) visibleICUIDs(ctx context.Context, regionIDs []int64) ([]int64, error) {
	if regionIDs == nil {
		return nil, nil
	}
	icus, err := e.store.ListICUs(ctx, repository.ICUFilter{RegionIDs: regionIDs, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(icus))
	for _, i := range icus {
		ids = append(ids, i.ID)
	}
	return ids, nil
}

func icuTable(icus []*icu.ICU) *Table {
	t := &Table{Name: string(CollectionICUs), Header: ICUColumns}
	for _, i := range icus {
		t.Rows = append(t.Rows, []string{
			i.Name,
			i.RegionName,
			i.Dept,
			i.City,
			formatFloat(i.Lat),
			formatFloat(i.Lng),
			i.Phone,
		})
	}
	return t
}

func bedCountTable(name string, rows []*bedcount.BedCount) *Table {
	t := &Table{Name: name, Header: BedCountColumns}
	for _, b := range rows {
		t.Rows = append(t.Rows, []string{
			b.ICUName,
			strconv.Itoa(b.NCovidOcc),
			strconv.Itoa(b.NCovidFree),
			strconv.Itoa(b.NNCovidOcc),
			strconv.Itoa(b.NNCovidFree),
			strconv.Itoa(b.NCovidDeaths),
			strconv.Itoa(b.NCovidHealed),
			strconv.Itoa(b.NCovidRefused),
			strconv.Itoa(b.NCovidTransfered),
			b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return t
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
