package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/icubam/icubam/internal/application/authenticator"
	"github.com/icubam/icubam/internal/application/export"
	"github.com/icubam/icubam/internal/application/ingest"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/auth"
	"github.com/icubam/icubam/internal/infrastructure/permission"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	pagetmpl "github.com/icubam/icubam/internal/infrastructure/template"
	"github.com/icubam/icubam/internal/infrastructure/token"
	"github.com/icubam/icubam/internal/shared/authorization"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/services/markdown"
)

// stack wires the real store, authenticator and writer over sqlite.
type stack struct {
	store    *repository.Store
	db       *gorm.DB
	auth     *authenticator.Authenticator
	writer   *ingest.Writer
	pages    *pagetmpl.PageLoader
	md       markdown.Renderer
	exporter *export.Exporter

	regionA, regionB int64
	icuA, icuB, icuC *icu.ICU
	operator         *user.User
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	policy, err := permission.NewMemoryEnforcer(log)
	require.NoError(t, err)
	store := repository.NewStore(db, policy, log)
	require.NoError(t, store.AutoMigrate())

	signer, err := auth.NewSessionSigner("test-secret")
	require.NoError(t, err)
	keys, err := token.NewAccessKeyHasher("test-salt")
	require.NoError(t, err)

	md := markdown.NewRenderer()
	pages := pagetmpl.NewPageLoader("", md, log)
	require.NoError(t, pages.Load())

	s := &stack{
		store:    store,
		db:       db,
		auth:     authenticator.New(store, token.NewTokenGenerator(), signer, keys, 30, log),
		writer:   ingest.NewWriter(store, log),
		pages:    pages,
		md:       md,
		exporter: export.NewExporter(store, log),
	}

	admin := repository.SystemPrincipal()
	s.regionA, err = store.AddRegion(ctx, admin, "Grand Est")
	require.NoError(t, err)
	s.regionB, err = store.AddRegion(ctx, admin, "Occitanie")
	require.NoError(t, err)

	s.icuA = &icu.ICU{Name: "CHU Strasbourg", RegionID: s.regionA, Dept: "67", City: "Strasbourg", Lat: 48.58, Lng: 7.75, IsActive: true}
	s.icuB = &icu.ICU{Name: "GHR Mulhouse", RegionID: s.regionA, Dept: "68", City: "Mulhouse", Lat: 47.75, Lng: 7.34, IsActive: true}
	s.icuC = &icu.ICU{Name: "CHU Toulouse", RegionID: s.regionB, Dept: "31", City: "Toulouse", Lat: 43.6, Lng: 1.44, IsActive: true}
	for _, i := range []*icu.ICU{s.icuA, s.icuB, s.icuC} {
		_, err := store.AddICU(ctx, admin, i)
		require.NoError(t, err)
	}

	s.operator = &user.User{
		Name:     "Camille",
		Phone:    "+33600000001",
		Role:     authorization.RoleOperator,
		IsActive: true,
		ICUIDs:   []int64{s.icuA.ID},
	}
	_, err = store.AddUser(ctx, admin, s.operator)
	require.NoError(t, err)

	return s
}
