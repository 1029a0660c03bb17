package aggregation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/shared/biztime"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Store is what the map builder reads.
type Store interface {
	Now() time.Time
	ListICUs(ctx context.Context, filter repository.ICUFilter) ([]*icu.ICU, error)
	LatestBedCounts(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error)
}

// MapOptions shape the clustered view.
type MapOptions struct {
	Level     Level
	Covid     bool
	KeepEmpty bool
	MaxNodes  int
	// RegionIDs restricts the ICUs; nil means all regions, empty none.
	RegionIDs []int64
}

func (o MapOptions) key() string {
	ids := make([]string, len(o.RegionIDs))
	for i, id := range o.RegionIDs {
		ids[i] = fmt.Sprint(id)
	}
	sort.Strings(ids)
	regions := strings.Join(ids, ",")
	if o.RegionIDs == nil {
		regions = "*"
	}
	return fmt.Sprintf("%s|%t|%t|%d|%s", o.Level, o.Covid, o.KeepEmpty, o.MaxNodes, regions)
}

// BedView is a node as serialized for map consumers.
type BedView struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Phone      string     `json:"phone,omitempty"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Occupied   int        `json:"occupied"`
	Free       int        `json:"free"`
	Total      int        `json:"total"`
	Ratio      float64    `json:"ratio"`
	Color      Color      `json:"color"`
	Deaths     int        `json:"deaths"`
	Healed     int        `json:"healed"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	Ago        string     `json:"ago"`
	Stale      bool       `json:"stale"`
}

// ClusterView is one map marker with the ICUs it aggregates, sorted by label.
type ClusterView struct {
	BedView
	ICUs []BedView `json:"icus"`
}

// MapBuilder builds clustered views from the store. Concurrent requests for
// the same view share one build.
type MapBuilder struct {
	store     Store
	staleDays int
	group     singleflight.Group
	logger    logger.Interface
}

func NewMapBuilder(store Store, staleDays int, log logger.Interface) *MapBuilder {
	return &MapBuilder{store: store, staleDays: staleDays, logger: log}
}

// BuildTree loads the active ICUs of regionIDs (nil for all) and their
// latest readings.
func (b *MapBuilder) BuildTree(ctx context.Context, regionIDs []int64, covid bool) (*Tree, error) {
	icus, err := b.store.ListICUs(ctx, repository.ICUFilter{RegionIDs: regionIDs, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list icus: %w", err)
	}
	ids := make([]int64, 0, len(icus))
	for _, i := range icus {
		ids = append(ids, i.ID)
	}
	latest, err := b.store.LatestBedCounts(ctx, ids, nil)
	if err != nil {
		return nil, fmt.Errorf("latest bed counts: %w", err)
	}
	byICU := make(map[int64]*bedcount.BedCount, len(latest))
	for _, bc := range latest {
		byICU[bc.ICUID] = bc
	}

	tree := NewTree(covid)
	for _, i := range icus {
		tree.Add(i, byICU[i.ID])
	}
	return tree, nil
}

// Build returns the clusters of opts, north first.
func (b *MapBuilder) Build(ctx context.Context, opts MapOptions) ([]ClusterView, error) {
	v, err, shared := b.group.Do(opts.key(), func() (interface{}, error) {
		tree, err := b.BuildTree(ctx, opts.RegionIDs, opts.Covid)
		if err != nil {
			return nil, err
		}
		return b.render(tree.Extract(opts.Level, opts.KeepEmpty, opts.MaxNodes)), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.logger.Debugw("map build shared", "level", opts.Level)
	}
	return v.([]ClusterView), nil
}

func (b *MapBuilder) render(clusters []Cluster) []ClusterView {
	now := b.store.Now()
	out := make([]ClusterView, 0, len(clusters))
	for _, c := range clusters {
		view := ClusterView{BedView: b.view(c.Node, now), ICUs: make([]BedView, 0, len(c.Leaves))}
		for _, leaf := range c.Leaves {
			view.ICUs = append(view.ICUs, b.view(leaf, now))
		}
		sort.SliceStable(view.ICUs, func(i, j int) bool { return view.ICUs[i].Label < view.ICUs[j].Label })
		out = append(out, view)
	}
	return out
}

func (b *MapBuilder) view(n *Node, now time.Time) BedView {
	v := BedView{
		ID:       n.ID,
		Label:    n.Label,
		Phone:    n.Phone,
		Lat:      n.Lat,
		Lng:      n.Lng,
		Occupied: n.Occupied,
		Free:     n.Free,
		Total:    n.Total,
		Ratio:    n.Ratio,
		Color:    n.Color,
		Deaths:   n.Deaths,
		Healed:   n.Healed,
		Stale:    true,
	}
	if !n.LastUpdate.IsZero() {
		ts := n.LastUpdate
		v.LastUpdate = &ts
		v.Stale = b.staleDays > 0 && now.Sub(ts) > time.Duration(b.staleDays)*24*time.Hour
	}
	count, unit := biztime.TimeAgo(v.LastUpdate, now)
	v.Ago = agoText(count, unit)
	return v
}

func agoText(count int, unit string) string {
	switch {
	case count < 0:
		return "never"
	case count == 0:
		return "now"
	case count == 1:
		return fmt.Sprintf("1 %s ago", unit)
	default:
		return fmt.Sprintf("%d %ss ago", count, unit)
	}
}
