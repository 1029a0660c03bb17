// Package db provides transaction management and shared query scopes.
package db

import (
	"time"

	"gorm.io/gorm"
)

// ActiveOnly keeps rows whose is_active flag is set. alias may be empty.
func ActiveOnly(alias string) func(db *gorm.DB) *gorm.DB {
	col := "is_active"
	if alias != "" {
		col = alias + ".is_active"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(col+" = ?", true)
	}
}

// CreatedBefore restricts to rows with created_at strictly before ts. A nil ts is a no-op.
func CreatedBefore(alias string, ts *time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ts == nil {
			return db
		}
		col := "created_at"
		if alias != "" {
			col = alias + ".created_at"
		}
		return db.Where(col+" < ?", ts.UTC())
	}
}

// InIDs restricts column to ids. A nil slice means no restriction, an empty one matches nothing.
func InIDs(column string, ids []int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ids == nil {
			return db
		}
		if len(ids) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where(column+" IN ?", ids)
	}
}
