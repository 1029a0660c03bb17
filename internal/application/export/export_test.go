package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/shared/logger"
)

type mockStore struct {
	ListRegionsFunc     func(ctx context.Context) ([]*icu.Region, error)
	ListICUsFunc        func(ctx context.Context, filter repository.ICUFilter) ([]*icu.ICU, error)
	LatestBedCountsFunc func(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error)
	AllBedCountsFunc    func(ctx context.Context, icuIDs []int64, maxTS *time.Time) ([]*bedcount.BedCount, error)
}

func (m *mockStore) ListRegions(ctx context.Context) ([]*icu.Region, error) {
	return m.ListRegionsFunc(ctx)
}

func (m *mockStore) ListICUs(ctx context.Context, filter repository.ICUFilter) ([]*icu.ICU, error) {
	return m.ListICUsFunc(ctx, filter)
}

func (m *mockStore) LatestBedCounts(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error) {
	return m.LatestBedCountsFunc(ctx, icuIDs, asOf)
}

func (m *mockStore) AllBedCounts(ctx context.Context, icuIDs []int64, maxTS *time.Time) ([]*bedcount.BedCount, error) {
	return m.AllBedCountsFunc(ctx, icuIDs, maxTS)
}

var t0 = time.Date(2020, 4, 1, 10, 0, 0, 0, time.UTC)

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("all_bedcounts")
	require.NoError(t, err)
	assert.Equal(t, CollectionAllBedCounts, c)

	_, err = ParseCollection("users")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestExport_BedCountsScopedToClientRegions(t *testing.T) {
	var gotFilter repository.ICUFilter
	var gotIDs []int64
	store := &mockStore{
		ListICUsFunc: func(_ context.Context, filter repository.ICUFilter) ([]*icu.ICU, error) {
			gotFilter = filter
			return []*icu.ICU{{ID: 3, Name: "C"}}, nil
		},
		LatestBedCountsFunc: func(_ context.Context, ids []int64, _ *time.Time) ([]*bedcount.BedCount, error) {
			gotIDs = ids
			return []*bedcount.BedCount{{ICUID: 3, ICUName: "C", NCovidOcc: 4, NCovidFree: 1, CreatedAt: t0}}, nil
		},
	}
	e := NewExporter(store, logger.NewNop())

	client := &access.ExternalClient{RegionIDs: []int64{2}, Scope: access.ScopeStats}
	table, err := e.Export(context.Background(), client, CollectionBedCounts, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, gotFilter.RegionIDs)
	assert.True(t, gotFilter.ActiveOnly)
	assert.Equal(t, []int64{3}, gotIDs)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"C", "4", "1", "0", "0", "0", "0", "0", "0", "2020-04-01T10:00:00Z"}, table.Rows[0])
}

func TestExport_NilClientSeesEverything(t *testing.T) {
	store := &mockStore{
		AllBedCountsFunc: func(_ context.Context, ids []int64, maxTS *time.Time) ([]*bedcount.BedCount, error) {
			assert.Nil(t, ids)
			require.NotNil(t, maxTS)
			assert.Equal(t, t0, *maxTS)
			return nil, nil
		},
	}
	e := NewExporter(store, logger.NewNop())

	table, err := e.Export(context.Background(), nil, CollectionAllBedCounts, Options{MaxTS: &t0})
	require.NoError(t, err)
	assert.Equal(t, BedCountColumns, table.Header)
	assert.Empty(t, table.Rows)
}

func TestExport_ClientWithoutRegionsSeesNothing(t *testing.T) {
	rows := []*bedcount.BedCount{{ICUID: 1, ICUName: "A"}, {ICUID: 2, ICUName: "B"}}
	store := &mockStore{
		ListRegionsFunc: func(context.Context) ([]*icu.Region, error) {
			return []*icu.Region{{ID: 1, Name: "Grand Est"}}, nil
		},
		ListICUsFunc: func(_ context.Context, filter repository.ICUFilter) ([]*icu.ICU, error) {
			require.NotNil(t, filter.RegionIDs)
			assert.Empty(t, filter.RegionIDs)
			return nil, nil
		},
		LatestBedCountsFunc: func(_ context.Context, ids []int64, _ *time.Time) ([]*bedcount.BedCount, error) {
			if ids == nil {
				return rows, nil
			}
			return nil, nil
		},
	}
	e := NewExporter(store, logger.NewNop())
	client := &access.ExternalClient{Scope: access.ScopeStats, IsActive: true}

	for _, c := range []Collection{CollectionBedCounts, CollectionICUs, CollectionRegions} {
		table, err := e.Export(context.Background(), client, c, Options{})
		require.NoError(t, err)
		assert.Empty(t, table.Rows, c)
	}
}

func TestExport_Regions(t *testing.T) {
	store := &mockStore{
		ListRegionsFunc: func(context.Context) ([]*icu.Region, error) {
			return []*icu.Region{{ID: 1, Name: "Grand Est"}, {ID: 2, Name: "Occitanie"}}, nil
		},
	}
	e := NewExporter(store, logger.NewNop())

	table, err := e.Export(context.Background(), &access.ExternalClient{RegionIDs: []int64{2}}, CollectionRegions, Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2", "Occitanie"}}, table.Rows)
}

func TestExport_ICUs(t *testing.T) {
	store := &mockStore{
		ListICUsFunc: func(_ context.Context, filter repository.ICUFilter) ([]*icu.ICU, error) {
			assert.Nil(t, filter.RegionIDs)
			return []*icu.ICU{{Name: "A", RegionName: "Grand Est", Dept: "67", City: "Strasbourg", Lat: 48.5, Lng: 7.75, Phone: "+33 3"}}, nil
		},
	}
	e := NewExporter(store, logger.NewNop())

	table, err := e.Export(context.Background(), nil, CollectionICUs, Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "Grand Est", "67", "Strasbourg", "48.5", "7.75", "+33 3"}}, table.Rows)
}

func sampleTable() *Table {
	return &Table{
		Name:   "bedcounts",
		Header: []string{"icu_name", "n_covid_occ", "timestamp"},
		Rows:   [][]string{{"A <b>", "5", "2020-04-01T10:00:00Z"}},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))
	assert.Equal(t, "icu_name,n_covid_occ,timestamp\r\nA <b>,5,2020-04-01T10:00:00Z\r\n", buf.String())
}

func TestWriteHTML_Escapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleTable()))
	assert.Contains(t, buf.String(), "<th>icu_name</th>")
	assert.Contains(t, buf.String(), "<td>A &lt;b&gt;</td>")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("bedcounts")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"icu_name", "n_covid_occ", "timestamp"},
		{"A <b>", "5", "2020-04-01T10:00:00Z"},
	}, rows)

	typ, err := f.GetCellType("bedcounts", "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("hdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.Equal(t, "bedcounts_2020-04-01_10h00.xlsx", FormatXLSX.FileName(sampleTable(), t0))
	assert.Empty(t, FormatHTML.FileName(sampleTable(), t0))
	assert.True(t, strings.HasPrefix(FormatCSV.ContentType(), "text/csv"))
}
