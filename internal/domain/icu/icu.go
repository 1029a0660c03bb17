// Package icu holds the reporting units and the regions they belong to.
package icu

import (
	"strings"
	"time"
)

// ICU is a value snapshot of one intensive-care unit.
type ICU struct {
	ID         int64
	Name       string
	RegionID   int64
	RegionName string
	Country    string
	Dept       string
	City       string
	Lat        float64
	Lng        float64
	Phone      string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Region groups ICUs; country, department and city stay plain strings on the ICU.
type Region struct {
	ID   int64
	Name string
}

// Patch lists the ICU fields an update may change. Nil means unchanged.
type Patch struct {
	Name     *string
	RegionID *int64
	Country  *string
	Dept     *string
	City     *string
	Lat      *float64
	Lng      *float64
	Phone    *string
}

// Apply copies the non-nil fields of p onto i.
func (p Patch) Apply(i *ICU) {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.RegionID != nil {
		i.RegionID = *p.RegionID
	}
	if p.Country != nil {
		i.Country = *p.Country
	}
	if p.Dept != nil {
		i.Dept = *p.Dept
	}
	if p.City != nil {
		i.City = *p.City
	}
	if p.Lat != nil {
		i.Lat = *p.Lat
	}
	if p.Lng != nil {
		i.Lng = *p.Lng
	}
	if p.Phone != nil {
		i.Phone = *p.Phone
	}
}

// NormalizedPhone drops the international '+' prefix used by the SMS carriers.
func (i *ICU) NormalizedPhone() string {
	return strings.TrimPrefix(strings.TrimSpace(i.Phone), "+")
}

// Validate checks the invariants an ICU must hold before it is stored.
func (i *ICU) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrNameRequired
	}
	if i.Lat < -90 || i.Lat > 90 || i.Lng < -180 || i.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
