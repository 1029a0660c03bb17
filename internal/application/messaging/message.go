// Package messaging runs the reporting loop: it schedules per (user, ICU)
// update requests, delivers them over the user's channel and registers
// chat-bot users.
package messaging

import (
	"time"

	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
)

// Key identifies one reporting loop.
type Key struct {
	UserID int64
	ICUID  int64
}

// Message is one outbound update request. The scheduler owns the copy held
// in its timer map; queued messages are snapshots.
type Message struct {
	UserID    int64
	ICUID     int64
	UserName  string
	ICUName   string
	Phone     string
	Locale    string
	URL       string
	Attempts  int
	FirstSent *time.Time
}

func NewMessage(u *user.User, i *icu.ICU, url string) *Message {
	return &Message{
		UserID:   u.ID,
		ICUID:    i.ID,
		UserName: u.Name,
		ICUName:  i.Name,
		Phone:    u.ASCIIPhone(),
		Locale:   u.Locale,
		URL:      url,
	}
}

func (m *Message) Key() Key {
	return Key{UserID: m.UserID, ICUID: m.ICUID}
}

// Reset starts a new daily cycle.
func (m *Message) Reset() {
	m.Attempts = 0
	m.FirstSent = nil
}

func (m *Message) snapshot() *Message {
	cp := *m
	if m.FirstSent != nil {
		ts := *m.FirstSent
		cp.FirstSent = &ts
	}
	return &cp
}
