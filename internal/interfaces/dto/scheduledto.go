package dto

import (
	"time"

	"github.com/icubam/icubam/internal/application/messaging"
)

// OnOffRequest switches the reminders of a user. On defaults to false.
type OnOffRequest struct {
	UserID int64   `json:"user_id" validate:"required,gt=0"`
	ICUIDs []int64 `json:"icu_ids,omitempty" validate:"omitempty,dive,gt=0"`
	On     *bool   `json:"on,omitempty"`
	// Delay in seconds before the first message when switching on.
	Delay *int `json:"delay,omitempty" validate:"omitempty,min=0"`
}

type OnOffResponse struct {
	UserID    int64 `json:"user_id" yaml:"user_id"`
	On        bool  `json:"on" yaml:"on"`
	Scheduled int   `json:"scheduled" yaml:"scheduled"`
	Cancelled int   `json:"cancelled" yaml:"cancelled"`
}

type ScheduleRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// ScheduledMessage is one pending timer.
type ScheduledMessage struct {
	ICUID     int64      `json:"icu_id" yaml:"icu_id"`
	ICUName   string     `json:"icu_name" yaml:"icu_name"`
	UserID    int64      `json:"user_id" yaml:"user_id"`
	UserName  string     `json:"user_name" yaml:"user_name"`
	Phone     string     `json:"phone" yaml:"phone"`
	Attempts  int        `json:"attempts" yaml:"attempts"`
	FirstSent *time.Time `json:"first_sent" yaml:"first_sent"`
	When      time.Time  `json:"when" yaml:"when"`
	URL       string     `json:"url" yaml:"url"`
}

func ToScheduledMessage(p messaging.Pending) ScheduledMessage {
	m := p.Message
	return ScheduledMessage{
		ICUID:     m.ICUID,
		ICUName:   m.ICUName,
		UserID:    m.UserID,
		UserName:  m.UserName,
		Phone:     m.Phone,
		Attempts:  m.Attempts,
		FirstSent: m.FirstSent,
		When:      p.When,
		URL:       m.URL,
	}
}

func ToScheduledMessages(pending []messaging.Pending) []ScheduledMessage {
	out := make([]ScheduledMessage, 0, len(pending))
	for _, p := range pending {
		out = append(out, ToScheduledMessage(p))
	}
	return out
}
