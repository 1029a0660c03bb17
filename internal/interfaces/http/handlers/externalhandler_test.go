package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/application/aggregation"
	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/interfaces/http/handlers/testutil"
	"github.com/icubam/icubam/internal/shared/logger"
)

type mockMapBuilder struct {
	buildFn func(ctx context.Context, opts aggregation.MapOptions) ([]aggregation.ClusterView, error)
}

func (m *mockMapBuilder) Build(ctx context.Context, opts aggregation.MapOptions) ([]aggregation.ClusterView, error) {
	return m.buildFn(ctx, opts)
}

func registerClient(t *testing.T, s *stack, scope access.Scope, regionIDs ...int64) string {
	t.Helper()
	_, key, err := s.auth.RegisterClient(context.Background(), repository.SystemPrincipal(), &access.ExternalClient{
		Name:      "analytics",
		Scope:     scope,
		IsActive:  true,
		RegionIDs: regionIDs,
	})
	require.NoError(t, err)
	return key
}

func writeBedCount(t *testing.T, s *stack, icuID int64, occ int, at time.Time) {
	t.Helper()
	_, err := s.store.UpdateBedCount(context.Background(), nil, &bedcount.BedCount{
		ICUID:     icuID,
		NCovidOcc: occ,
		CreatedAt: at,
	}, true)
	require.NoError(t, err)
}

func newExternalHandler(s *stack, maps mapBuilder) *ExternalHandler {
	h := NewExternalHandler(s.auth, s.exporter, maps, aggregation.MapOptions{MaxNodes: 10}, logger.NewNop())
	h.now = func() time.Time { return time.Date(2020, 4, 2, 10, 30, 0, 0, time.UTC) }
	return h
}

func TestExternalHandler_BedCountsCSVScopedToRegions(t *testing.T) {
	s := setupStack(t)
	h := newExternalHandler(s, nil)

	base := time.Date(2020, 4, 1, 8, 0, 0, 0, time.UTC)
	writeBedCount(t, s, s.icuA.ID, 5, base)
	writeBedCount(t, s, s.icuA.ID, 7, base.Add(time.Hour))
	writeBedCount(t, s, s.icuB.ID, 2, base)
	writeBedCount(t, s, s.icuC.ID, 9, base)

	key := registerClient(t, s, access.ScopeStats, s.regionA)

	c, w := testutil.NewTestContext(http.MethodGet, "/db/bedcounts?format=csv&API_KEY="+key, nil)
	testutil.SetURLParam(c, "collection", "bedcounts")
	h.DB(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="bedcounts_2020-04-02_10h30.csv"`, w.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "icu_name", records[0][0])
	assert.Equal(t, []string{"CHU Strasbourg", "7"}, records[1][:2])
	assert.Equal(t, []string{"GHR Mulhouse", "2"}, records[2][:2])
	assert.Equal(t, "2020-04-01T09:00:00Z", records[1][len(records[1])-1])
}

func TestExternalHandler_AllBedCountsWithMaxTS(t *testing.T) {
	s := setupStack(t)
	h := newExternalHandler(s, nil)

	base := time.Date(2020, 4, 1, 8, 0, 0, 0, time.UTC)
	writeBedCount(t, s, s.icuC.ID, 1, base)
	writeBedCount(t, s, s.icuC.ID, 2, base.Add(time.Hour))
	writeBedCount(t, s, s.icuC.ID, 3, base.Add(2*time.Hour))

	key := registerClient(t, s, access.ScopeAll, s.regionB)
	maxTS := base.Add(2 * time.Hour).Unix()

	c, w := testutil.NewTestContext(http.MethodGet, "/db/all_bedcounts", nil)
	testutil.SetURLParam(c, "collection", "all_bedcounts")
	testutil.SetQueryParams(c, map[string]string{"API_KEY": key, "max_ts": strconv.FormatInt(maxTS, 10)})
	h.DB(c)

	require.Equal(t, http.StatusOK, w.Code)
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "1", records[1][1])
	assert.Equal(t, "2", records[2][1])
}

func TestExternalHandler_HTMLHasNoAttachment(t *testing.T) {
	s := setupStack(t)
	h := newExternalHandler(s, nil)
	key := registerClient(t, s, access.ScopeStats, s.regionB)

	c, w := testutil.NewTestContext(http.MethodGet, "/db/icus", nil)
	testutil.SetURLParam(c, "collection", "icus")
	testutil.SetQueryParams(c, map[string]string{"API_KEY": key, "format": "html"})
	h.DB(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "CHU Toulouse")
}

func TestExternalHandler_ClientWithoutRegionsReadsNothing(t *testing.T) {
	s := setupStack(t)
	var got aggregation.MapOptions
	maps := &mockMapBuilder{buildFn: func(_ context.Context, opts aggregation.MapOptions) ([]aggregation.ClusterView, error) {
		got = opts
		return nil, nil
	}}
	h := newExternalHandler(s, maps)

	base := time.Date(2020, 4, 1, 8, 0, 0, 0, time.UTC)
	writeBedCount(t, s, s.icuA.ID, 5, base)
	writeBedCount(t, s, s.icuC.ID, 9, base)
	key := registerClient(t, s, access.ScopeAll)

	for _, collection := range []string{"bedcounts", "all_bedcounts", "icus", "regions"} {
		c, w := testutil.NewTestContext(http.MethodGet, "/db/"+collection, nil)
		testutil.SetURLParam(c, "collection", collection)
		testutil.SetQueryParams(c, map[string]string{"API_KEY": key, "format": "csv"})
		h.DB(c)

		require.Equal(t, http.StatusOK, w.Code, collection)
		records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 1, "%s: header only", collection)
	}

	c, w := testutil.NewTestContext(http.MethodGet, "/api/map", nil)
	testutil.SetQueryParams(c, map[string]string{"API_KEY": key})
	h.Map(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got.RegionIDs)
	assert.Empty(t, got.RegionIDs)
}

func TestRegisteredClientStoresOnlyDigest(t *testing.T) {
	s := setupStack(t)
	key := registerClient(t, s, access.ScopeStats, s.regionA)

	var rows []map[string]any
	require.NoError(t, s.db.Table("external_clients").Find(&rows).Error)
	require.Len(t, rows, 1)
	for column, v := range rows[0] {
		assert.NotContains(t, fmt.Sprint(v), key, column)
	}
	assert.False(t, s.db.Migrator().HasColumn("external_clients", "access_key"))
}

func TestExternalHandler_DBRefusals(t *testing.T) {
	s := setupStack(t)
	h := newExternalHandler(s, nil)
	statsKey := registerClient(t, s, access.ScopeStats)
	mapKey := registerClient(t, s, access.ScopeMap)

	tests := []struct {
		name       string
		collection string
		params     map[string]string
		want       int
	}{
		{"no key", "bedcounts", map[string]string{}, http.StatusServiceUnavailable},
		{"wrong key", "bedcounts", map[string]string{"API_KEY": "0123456789abcdef0123456789abcdef"}, http.StatusServiceUnavailable},
		{"map scope", "bedcounts", map[string]string{"API_KEY": mapKey}, http.StatusForbidden},
		{"unknown collection", "patients", map[string]string{"API_KEY": statsKey}, http.StatusNotFound},
		{"unknown format", "icus", map[string]string{"API_KEY": statsKey, "format": "pdf"}, http.StatusBadRequest},
		{"bad max_ts", "bedcounts", map[string]string{"API_KEY": statsKey, "max_ts": "yesterday"}, http.StatusBadRequest},
		{"bad preprocess", "bedcounts", map[string]string{"API_KEY": statsKey, "preprocess": "maybe"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testutil.NewTestContext(http.MethodGet, "/db/"+tt.collection, nil)
			testutil.SetURLParam(c, "collection", tt.collection)
			testutil.SetQueryParams(c, tt.params)
			h.DB(c)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestExternalHandler_DeactivatedClient(t *testing.T) {
	s := setupStack(t)
	h := newExternalHandler(s, nil)
	ctx := context.Background()

	id, key, err := s.auth.RegisterClient(ctx, repository.SystemPrincipal(), &access.ExternalClient{
		Name: "old", Scope: access.ScopeAll, IsActive: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.store.SetExternalClientActive(ctx, repository.SystemPrincipal(), id, false))

	c, w := testutil.NewTestContext(http.MethodGet, "/db/icus?API_KEY="+key, nil)
	testutil.SetURLParam(c, "collection", "icus")
	h.DB(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExternalHandler_Map(t *testing.T) {
	s := setupStack(t)
	var got aggregation.MapOptions
	maps := &mockMapBuilder{buildFn: func(_ context.Context, opts aggregation.MapOptions) ([]aggregation.ClusterView, error) {
		got = opts
		return []aggregation.ClusterView{{BedView: aggregation.BedView{ID: "Grand Est", Label: "Grand Est", Free: 3}}}, nil
	}}
	h := newExternalHandler(s, maps)
	key := registerClient(t, s, access.ScopeMap, s.regionA)

	c, w := testutil.NewTestContext(http.MethodGet, "/api/map", nil)
	testutil.SetQueryParams(c, map[string]string{"API_KEY": key, "level": "dept", "covid": "false"})
	h.Map(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, aggregation.LevelDept, got.Level)
	assert.False(t, got.Covid)
	assert.Equal(t, 10, got.MaxNodes)
	assert.Equal(t, []int64{s.regionA}, got.RegionIDs)

	var clusters []aggregation.ClusterView
	require.NoError(t, testutil.ParseResponse(w, &clusters))
	require.Len(t, clusters, 1)
	assert.Equal(t, "Grand Est", clusters[0].Label)
}

func TestExternalHandler_MapRefusals(t *testing.T) {
	s := setupStack(t)
	maps := &mockMapBuilder{buildFn: func(context.Context, aggregation.MapOptions) ([]aggregation.ClusterView, error) {
		return nil, errors.New("db down")
	}}
	h := newExternalHandler(s, maps)
	statsKey := registerClient(t, s, access.ScopeStats)
	mapKey := registerClient(t, s, access.ScopeMap)

	tests := []struct {
		name   string
		params map[string]string
		want   int
	}{
		{"stats scope", map[string]string{"API_KEY": statsKey}, http.StatusForbidden},
		{"bad level", map[string]string{"API_KEY": mapKey, "level": "galaxy"}, http.StatusBadRequest},
		{"build failure", map[string]string{"API_KEY": mapKey}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testutil.NewTestContext(http.MethodGet, "/api/map", nil)
			testutil.SetQueryParams(c, tt.params)
			h.Map(c)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
