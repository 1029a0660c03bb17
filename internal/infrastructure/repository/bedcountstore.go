package repository

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/persistence/mappers"
	"github.com/icubam/icubam/internal/infrastructure/persistence/models"
	"github.com/icubam/icubam/internal/shared/authorization"
	shareddb "github.com/icubam/icubam/internal/shared/db"
)

type bedCountRow struct {
	models.BedCountModel `gorm:"embedded"`
	ICUName              string `gorm:"column:icu_name"`
}

func (r *bedCountRow) toDomain() *bedcount.BedCount {
	b := mappers.BedCountMapper.ToDomain(&r.BedCountModel)
	b.ICUName = r.ICUName
	return b
}

// UpdateBedCount appends a reading. Unless force is set, caller must be
// allowed to edit the ICU. Cumulative counters are raised to the previous
// reading when lower, keeping each ICU's cumulative history non-decreasing.
func (s *Store) UpdateBedCount(ctx context.Context, caller *user.User, b *bedcount.BedCount, force bool) (int64, error) {
	if !force {
		if err := s.authorize(caller, authorization.ResourceBedCount, authorization.ActionWrite); err != nil {
			return 0, err
		}
		ok, err := s.CanEditBedCount(ctx, caller, b.ICUID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, access.ErrAuthorization
		}
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = now

		var prev models.BedCountModel
		err := s.conn(ctx).
			Where("icu_id = ? AND created_at <= ?", b.ICUID, b.CreatedAt).
			Order("created_at DESC, id DESC").
			First(&prev).Error
		switch {
		case err == nil:
			clampCumulative(b, mappers.BedCountMapper.ToDomain(&prev))
		case !isNotFound(err):
			return translateError(err)
		}

		m := mappers.BedCountMapper.ToModel(b)
		if err := s.conn(ctx).Create(m).Error; err != nil {
			return translateError(err)
		}
		b.ID = m.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return b.ID, nil
}

func clampCumulative(next, prev *bedcount.BedCount) {
	cur := next.Cumulative()
	old := prev.Cumulative()
	for i := range cur {
		if *cur[i] < *old[i] {
			*cur[i] = *old[i]
		}
	}
}

// LatestBedCounts returns, per ICU, the most recent reading created strictly
// before asOf (nil means unbounded). A nil icuIDs means every active ICU.
func (s *Store) LatestBedCounts(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error) {
	tx := s.conn(ctx)

	latest := tx.Model(&models.BedCountModel{}).
		Select("icu_id, MAX(created_at) AS max_created").
		Scopes(shareddb.CreatedBefore("", asOf), shareddb.InIDs("icu_id", icuIDs)).
		Group("icu_id")

	q := tx.Table("bed_counts AS bc").
		Select("bc.*, icus.name AS icu_name").
		Joins("JOIN (?) AS latest ON bc.icu_id = latest.icu_id AND bc.created_at = latest.max_created", latest).
		Joins("JOIN icus ON icus.id = bc.icu_id")
	if icuIDs == nil {
		q = q.Scopes(shareddb.ActiveOnly("icus"))
	}

	var rows []bedCountRow
	if err := q.Order("bc.icu_id, bc.id DESC").Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	// Rows sharing the same created_at are resolved by highest id.
	out := make([]*bedcount.BedCount, 0, len(rows))
	var last int64 = -1
	for i := range rows {
		if rows[i].ICUID == last {
			continue
		}
		last = rows[i].ICUID
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// AllBedCounts returns the full history of icuIDs (nil means all), oldest first.
func (s *Store) AllBedCounts(ctx context.Context, icuIDs []int64, maxTS *time.Time) ([]*bedcount.BedCount, error) {
	var rows []bedCountRow
	err := s.conn(ctx).Table("bed_counts AS bc").
		Select("bc.*, icus.name AS icu_name").
		Joins("JOIN icus ON icus.id = bc.icu_id").
		Scopes(shareddb.CreatedBefore("bc", maxTS), shareddb.InIDs("bc.icu_id", icuIDs)).
		Order("bc.icu_id, bc.created_at, bc.id").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}

	out := make([]*bedcount.BedCount, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// VisibleBedCountsForUser returns every latest reading for an admin or when
// force is set. Otherwise it returns the latest readings of every ICU sharing
// a region with an ICU the user operates or manages.
func (s *Store) VisibleBedCountsForUser(ctx context.Context, userID int64, force bool) ([]*bedcount.BedCount, error) {
	if force {
		return s.LatestBedCounts(ctx, nil, nil)
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return s.LatestBedCounts(ctx, nil, nil)
	}

	own := append(append([]int64{}, u.ICUIDs...), u.ManagedICUIDs...)
	regions, err := regionIDsOf(s.conn(ctx), own)
	if err != nil {
		return nil, err
	}
	ids, err := s.activeICUIDsInRegions(s.conn(ctx), regions)
	if err != nil {
		return nil, err
	}
	return s.LatestBedCounts(ctx, ids, nil)
}

// BedCountsForExternalClient returns the latest readings of every active ICU
// in the client's regions; a client without regions sees nothing.
func (s *Store) BedCountsForExternalClient(ctx context.Context, clientID int64) ([]*bedcount.BedCount, error) {
	c, err := s.GetExternalClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(c.RegionIDs) == 0 {
		return []*bedcount.BedCount{}, nil
	}
	ids, err := s.activeICUIDsInRegions(s.conn(ctx), c.RegionIDs)
	if err != nil {
		return nil, err
	}
	return s.LatestBedCounts(ctx, ids, nil)
}

func (s *Store) activeICUIDsInRegions(tx *gorm.DB, regionIDs []int64) ([]int64, error) {
	ids := []int64{}
	if len(regionIDs) == 0 {
		return ids, nil
	}
	err := tx.Model(&models.ICUModel{}).
		Scopes(shareddb.ActiveOnly(""), shareddb.InIDs("region_id", regionIDs)).
		Pluck("id", &ids).Error
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, translateError(err)
}
