// Package user holds the human principals of the reporting loop.
package user

import (
	"slices"
	"strings"
	"time"

	"github.com/icubam/icubam/internal/shared/authorization"
)

// Consent records whether a user agreed to receive update requests.
type Consent string

const (
	ConsentUnset    Consent = ""
	ConsentGranted  Consent = "granted"
	ConsentDeclined Consent = "declined"
)

// User is a value snapshot. ICUIDs are the ICUs the user reports for,
// ManagedICUIDs the ones the user manages.
type User struct {
	ID             int64
	Name           string
	Phone          string
	Email          string
	TelegramChatID string
	Description    string
	Role           authorization.UserRole
	Locale         string
	IsActive       bool
	Consent        Consent
	ICUIDs         []int64
	ManagedICUIDs  []int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// HasDeclined is true only for an explicit refusal; unset consent still receives messages.
func (u *User) HasDeclined() bool {
	return u.Consent == ConsentDeclined
}

func (u *User) BelongsTo(icuID int64) bool {
	return slices.Contains(u.ICUIDs, icuID)
}

func (u *User) Manages(icuID int64) bool {
	return u.IsAdmin() || slices.Contains(u.ManagedICUIDs, icuID)
}

// ASCIIPhone strips non-ASCII characters and spaces, as the SMS carriers expect.
func (u *User) ASCIIPhone() string {
	var b strings.Builder
	for _, r := range u.Phone {
		if r < 128 && r != ' ' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Patch lists the user fields an update may change. Nil means unchanged.
type Patch struct {
	Name           *string
	Phone          *string
	Email          *string
	TelegramChatID *string
	Description    *string
	Role           *authorization.UserRole
	Locale         *string
	IsActive       *bool
	Consent        *Consent
}

func (p Patch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.TelegramChatID != nil {
		u.TelegramChatID = *p.TelegramChatID
	}
	if p.Description != nil {
		u.Description = *p.Description
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Locale != nil {
		u.Locale = *p.Locale
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.Consent != nil {
		u.Consent = *p.Consent
	}
}
