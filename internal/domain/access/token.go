// Package access holds the credentials that let principals reach the system:
// per (user, ICU) update tokens and access keys of external clients.
package access

import "time"

// UpdateTokenLength is the length of the hex encoded opaque token.
const UpdateTokenLength = 32

// UpdateToken is the opaque credential embedded in an update link.
type UpdateToken struct {
	ID        int64
	UserID    int64
	ICUID     int64
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token is due for rotation. Zero or negative
// validity never expires.
func (t *UpdateToken) Expired(now time.Time, validityDays int) bool {
	if validityDays <= 0 {
		return false
	}
	return !t.UpdatedAt.Add(time.Duration(validityDays) * 24 * time.Hour).After(now)
}

// Principal is the outcome of a successful token authentication.
type Principal struct {
	UserID int64
	ICUID  int64
}
