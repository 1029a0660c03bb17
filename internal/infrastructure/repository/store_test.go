package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/permission"
	"github.com/icubam/icubam/internal/shared/authorization"
	"github.com/icubam/icubam/internal/shared/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	policy, err := permission.NewMemoryEnforcer(logger.NewNop())
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2020, 4, 1, 9, 0, 0, 0, time.UTC)}
	s := NewStore(db, policy, logger.NewNop()).WithClock(clock.Now)
	require.NoError(t, s.AutoMigrate())
	return s, clock
}

type fixture struct {
	admin    *user.User
	regionA  int64
	regionB  int64
	icuA     *icu.ICU
	icuB     *icu.ICU
	icuC     *icu.ICU
	operator *user.User
	manager  *user.User
}

func seed(t *testing.T, s *Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{admin: SystemPrincipal()}

	var err error
	f.regionA, err = s.AddRegion(ctx, f.admin, "Grand Est")
	require.NoError(t, err)
	f.regionB, err = s.AddRegion(ctx, f.admin, "Occitanie")
	require.NoError(t, err)

	f.icuA = &icu.ICU{Name: "A", RegionID: f.regionA, Dept: "67", City: "Strasbourg", Lat: 48.5, Lng: 7.7, IsActive: true}
	f.icuB = &icu.ICU{Name: "B", RegionID: f.regionA, Dept: "68", City: "Mulhouse", Lat: 47.7, Lng: 7.3, IsActive: true}
	f.icuC = &icu.ICU{Name: "C", RegionID: f.regionB, Dept: "31", City: "Toulouse", Lat: 43.6, Lng: 1.4, IsActive: true}
	for _, i := range []*icu.ICU{f.icuA, f.icuB, f.icuC} {
		_, err := s.AddICU(ctx, f.admin, i)
		require.NoError(t, err)
	}

	f.operator = &user.User{Name: "op", Phone: "+33600000000", Role: authorization.RoleOperator, IsActive: true, ICUIDs: []int64{f.icuA.ID}}
	_, err = s.AddUser(ctx, f.admin, f.operator)
	require.NoError(t, err)

	f.manager = &user.User{Name: "mgr", Role: authorization.RoleManager, IsActive: true, ManagedICUIDs: []int64{f.icuA.ID}}
	_, err = s.AddUser(ctx, f.admin, f.manager)
	require.NoError(t, err)
	return f
}

func TestAddICUAuthorization(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	t.Run("operator cannot add", func(t *testing.T) {
		_, err := s.AddICU(ctx, f.operator, &icu.ICU{Name: "X", RegionID: f.regionA})
		assert.ErrorIs(t, err, access.ErrAuthorization)
	})

	t.Run("manager adds in managed region", func(t *testing.T) {
		id, err := s.AddICU(ctx, f.manager, &icu.ICU{Name: "D", RegionID: f.regionA, IsActive: true})
		require.NoError(t, err)
		assert.NotZero(t, id)
	})

	t.Run("manager rejected outside managed region", func(t *testing.T) {
		_, err := s.AddICU(ctx, f.manager, &icu.ICU{Name: "E", RegionID: f.regionB})
		assert.ErrorIs(t, err, access.ErrAuthorization)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := s.AddICU(ctx, f.admin, &icu.ICU{Name: "A", RegionID: f.regionB})
		assert.ErrorIs(t, err, access.ErrConflict)
	})
}

func TestUpdateICU(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	phone := "+33388000000"
	require.NoError(t, s.UpdateICU(ctx, f.manager, f.icuA.ID, icu.Patch{Phone: &phone}))
	got, err := s.GetICU(ctx, f.icuA.ID)
	require.NoError(t, err)
	assert.Equal(t, phone, got.Phone)
	assert.Equal(t, "Grand Est", got.RegionName)

	assert.ErrorIs(t, s.UpdateICU(ctx, f.manager, f.icuC.ID, icu.Patch{Phone: &phone}), access.ErrAuthorization)
	assert.NoError(t, s.UpdateICU(ctx, f.admin, 9999, icu.Patch{Phone: &phone}))

	require.NoError(t, s.EnableICU(ctx, f.manager, f.icuA.ID, false))
	active, err := s.ListICUs(ctx, ICUFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestUserManagement(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	u := &user.User{Name: "nurse", IsActive: true}
	id, err := s.AddUserToICU(ctx, f.manager, f.icuA.ID, u)
	require.NoError(t, err)

	got, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.icuA.ID}, got.ICUIDs)
	assert.Equal(t, authorization.RoleOperator, got.Role)

	_, err = s.AddUserToICU(ctx, f.manager, f.icuC.ID, &user.User{Name: "other"})
	assert.ErrorIs(t, err, access.ErrAuthorization)

	assert.ErrorIs(t, s.AssignUserToICU(ctx, f.manager, id, f.icuA.ID), access.ErrConflict)

	name := "nurse 2"
	require.NoError(t, s.UpdateUser(ctx, f.manager, id, user.Patch{Name: &name}))
	got, err = s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "nurse 2", got.Name)

	admin := authorization.RoleAdmin
	assert.ErrorIs(t, s.UpdateUser(ctx, f.manager, id, user.Patch{Role: &admin}), access.ErrAuthorization)

	require.NoError(t, s.RemoveUserFromICU(ctx, f.manager, id, f.icuA.ID))
	got, err = s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.ICUIDs)

	// Not a member of any ICU the manager manages anymore.
	assert.ErrorIs(t, s.UpdateUser(ctx, f.manager, id, user.Patch{Name: &name}), access.ErrAuthorization)
}

func TestActiveAssignments(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	declined := &user.User{Name: "no", IsActive: true, Consent: user.ConsentDeclined, ICUIDs: []int64{f.icuB.ID}}
	_, err := s.AddUser(ctx, f.admin, declined)
	require.NoError(t, err)

	got, err := s.ActiveAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.operator.ID, got[0].User.ID)
	assert.Equal(t, f.icuA.ID, got[0].ICU.ID)

	require.NoError(t, s.EnableICU(ctx, f.admin, f.icuA.ID, false))
	got, err = s.ActiveAssignments(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestBedCounts(t *testing.T) {
	s, clock := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	write := func(icuID int64, occ int) {
		_, err := s.UpdateBedCount(ctx, nil, &bedcount.BedCount{ICUID: icuID, NCovidOcc: occ}, true)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	write(f.icuA.ID, 1)
	write(f.icuA.ID, 2)
	cutoff := clock.Now()
	write(f.icuA.ID, 3)
	write(f.icuC.ID, 7)

	latest, err := s.LatestBedCounts(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, f.icuA.ID, latest[0].ICUID)
	assert.Equal(t, 3, latest[0].NCovidOcc)
	assert.Equal(t, "A", latest[0].ICUName)
	assert.Equal(t, 7, latest[1].NCovidOcc)

	asOf, err := s.LatestBedCounts(ctx, []int64{f.icuA.ID}, &cutoff)
	require.NoError(t, err)
	require.Len(t, asOf, 1)
	assert.Equal(t, 2, asOf[0].NCovidOcc)

	history, err := s.AllBedCounts(ctx, []int64{f.icuA.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestLatestBedCountsTieBreaksOnID(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	for _, occ := range []int{4, 5} {
		_, err := s.UpdateBedCount(ctx, nil, &bedcount.BedCount{ICUID: f.icuB.ID, NCovidOcc: occ}, true)
		require.NoError(t, err)
	}

	latest, err := s.LatestBedCounts(ctx, []int64{f.icuB.ID}, nil)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 5, latest[0].NCovidOcc)
}

func TestUpdateBedCountAuthorization(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	_, err := s.UpdateBedCount(ctx, f.operator, &bedcount.BedCount{ICUID: f.icuA.ID}, false)
	assert.NoError(t, err)

	_, err = s.UpdateBedCount(ctx, f.operator, &bedcount.BedCount{ICUID: f.icuC.ID}, false)
	assert.ErrorIs(t, err, access.ErrAuthorization)

	_, err = s.UpdateBedCount(ctx, f.operator, &bedcount.BedCount{ICUID: f.icuC.ID}, true)
	assert.NoError(t, err)

	_, err = s.UpdateBedCount(ctx, f.operator, &bedcount.BedCount{ICUID: f.icuA.ID, NCovidFree: -1}, false)
	assert.ErrorIs(t, err, bedcount.ErrNegativeCounter)
}

func TestCumulativeCountersNeverDecrease(t *testing.T) {
	s, clock := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	_, err := s.UpdateBedCount(ctx, nil, &bedcount.BedCount{ICUID: f.icuA.ID, NCovidDeaths: 5, NCovidHealed: 10}, true)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = s.UpdateBedCount(ctx, nil, &bedcount.BedCount{ICUID: f.icuA.ID, NCovidDeaths: 3, NCovidHealed: 12}, true)
	require.NoError(t, err)

	latest, err := s.LatestBedCounts(ctx, []int64{f.icuA.ID}, nil)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 5, latest[0].NCovidDeaths)
	assert.Equal(t, 12, latest[0].NCovidHealed)
}

func TestVisibleBedCountsForUser(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	for _, i := range []*icu.ICU{f.icuA, f.icuB, f.icuC} {
		_, err := s.UpdateBedCount(ctx, nil, &bedcount.BedCount{ICUID: i.ID, NCovidOcc: 1}, true)
		require.NoError(t, err)
	}

	visible, err := s.VisibleBedCountsForUser(ctx, f.operator.ID, false)
	require.NoError(t, err)
	ids := []int64{}
	for _, b := range visible {
		ids = append(ids, b.ICUID)
	}
	assert.ElementsMatch(t, []int64{f.icuA.ID, f.icuB.ID}, ids)

	all, err := s.VisibleBedCountsForUser(ctx, f.operator.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBedCountsForExternalClient(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	for _, i := range []*icu.ICU{f.icuA, f.icuB, f.icuC} {
		_, err := s.UpdateBedCount(ctx, nil, &bedcount.BedCount{ICUID: i.ID, NCovidOcc: 1}, true)
		require.NoError(t, err)
	}

	c := &access.ExternalClient{Name: "analytics", KeyHash: "h", IsActive: true, RegionIDs: []int64{f.regionB}}
	id, err := s.AddExternalClient(ctx, f.admin, c)
	require.NoError(t, err)

	got, err := s.BedCountsForExternalClient(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.icuC.ID, got[0].ICUID)

	noRegions, err := s.AddExternalClient(ctx, f.admin, &access.ExternalClient{Name: "empty", KeyHash: "h0", IsActive: true})
	require.NoError(t, err)
	got, err = s.BedCountsForExternalClient(ctx, noRegions)
	require.NoError(t, err)
	assert.Empty(t, got)

	byHash, err := s.GetExternalClientByHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, []int64{f.regionB}, byHash.RegionIDs)
	assert.Equal(t, access.ScopeAll, byHash.Scope)

	_, err = s.AddExternalClient(ctx, f.manager, &access.ExternalClient{Name: "x", KeyHash: "y"})
	assert.ErrorIs(t, err, access.ErrAuthorization)
}

func TestUpdateTokenPersistence(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	tok, err := s.CreateUpdateToken(ctx, f.operator.ID, f.icuA.ID, "v1", "h1")
	require.NoError(t, err)

	_, err = s.CreateUpdateToken(ctx, f.operator.ID, f.icuA.ID, "v2", "h2")
	assert.ErrorIs(t, err, access.ErrConflict)

	rotated, err := s.RotateUpdateToken(ctx, tok, "v3", "h3")
	require.NoError(t, err)
	assert.Equal(t, "v3", rotated.Value)

	// The stale handle lost the race.
	_, err = s.RotateUpdateToken(ctx, tok, "v4", "h4")
	assert.ErrorIs(t, err, access.ErrConflict)

	_, err = s.FindUpdateTokenByHash(ctx, "h1")
	assert.ErrorIs(t, err, access.ErrUnknown)
	found, err := s.FindUpdateTokenByHash(ctx, "h3")
	require.NoError(t, err)
	assert.Equal(t, f.icuA.ID, found.ICUID)
}

func TestConsentAndTelegram(t *testing.T) {
	s, _ := setupStore(t)
	f := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetConsent(ctx, f.operator.ID, false))
	require.NoError(t, s.SetTelegramChatID(ctx, f.operator.ID, "4242"))

	got, err := s.GetUserByTelegramChatID(ctx, "4242")
	require.NoError(t, err)
	assert.True(t, got.HasDeclined())

	assert.ErrorIs(t, s.SetConsent(ctx, 9999, true), user.ErrNotFound)
}
