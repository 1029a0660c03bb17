package access

import (
	"slices"
	"time"
)

// Scope bounds what an external client may read.
type Scope string

const (
	ScopeMap    Scope = "map"
	ScopeStats  Scope = "stats"
	ScopeUpload Scope = "upload"
	ScopeAll    Scope = "all"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeMap, ScopeStats, ScopeUpload, ScopeAll:
		return true
	}
	return false
}

// Allows reports whether a key with scope s may use an endpoint requiring want.
func (s Scope) Allows(want Scope) bool {
	return s == ScopeAll || s == want
}

// ExternalClient is a third party holding a long-lived access key.
// RegionIDs are the regions whose data it may read; empty means none.
type ExternalClient struct {
	ID         int64
	Name       string
	Email      string
	Phone      string
	KeyHash    string
	Scope      Scope
	IsActive   bool
	Expiration *time.Time
	RegionIDs  []int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsValid reports whether the client may authenticate at now.
func (c *ExternalClient) IsValid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	return c.Expiration == nil || c.Expiration.After(now)
}

// CanSeeRegion reports whether the client may read data of regionID. A
// client without regions sees none.
func (c *ExternalClient) CanSeeRegion(regionID int64) bool {
	return slices.Contains(c.RegionIDs, regionID)
}

// VisibleRegionIDs is never nil, so that filters taking nil as "every
// region" match nothing for a client without regions.
func (c *ExternalClient) VisibleRegionIDs() []int64 {
	out := make([]int64, len(c.RegionIDs))
	copy(out, c.RegionIDs)
	return out
}
