// Package biztime holds the business timezone used for daily moments and
// calendar-day boundaries. Storage and transport stay in UTC.
package biztime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimezone is used when the configuration leaves server.timezone empty.
const DefaultTimezone = "Europe/Paris"

var (
	bizLocation     *time.Location
	bizLocationOnce sync.Once
	initErr         error
)

// Init loads the business timezone once. Later calls are no-ops.
func Init(tz string) error {
	bizLocationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		bizLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// Location returns the business timezone, initialising the default on first use.
func Location() *time.Location {
	if bizLocation == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to auto-initialize with default timezone: %v", err))
		}
	}
	return bizLocation
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// Moment is a wall-clock hour and minute.
type Moment struct {
	Hour   int
	Minute int
}

func (m Moment) String() string {
	return fmt.Sprintf("%02d:%02d", m.Hour, m.Minute)
}

func (m Moment) before(o Moment) bool {
	return m.Hour < o.Hour || (m.Hour == o.Hour && m.Minute < o.Minute)
}

// ParseMoment parses "HH:MM".
func ParseMoment(s string) (Moment, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Moment{}, fmt.Errorf("invalid moment %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Moment{}, fmt.Errorf("invalid hour in moment %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Moment{}, fmt.Errorf("invalid minute in moment %q", s)
	}
	return Moment{Hour: h, Minute: m}, nil
}

// ParseMoments parses and sorts a list of "HH:MM" strings.
func ParseMoments(values []string) ([]Moment, error) {
	moments := make([]Moment, 0, len(values))
	for _, v := range values {
		m, err := ParseMoment(v)
		if err != nil {
			return nil, err
		}
		moments = append(moments, m)
	}
	sort.Slice(moments, func(i, j int) bool { return moments[i].before(moments[j]) })
	return moments, nil
}

// NextMoment returns the first moment strictly after now on now's day in loc,
// or the earliest moment of the following day. ok is false when moments is empty.
func NextMoment(moments []Moment, now time.Time, loc *time.Location) (next time.Time, ok bool) {
	if len(moments) == 0 {
		return time.Time{}, false
	}
	day := StartOfDay(now, loc)
	for _, m := range moments {
		candidate := time.Date(day.Year(), day.Month(), day.Day(), m.Hour, m.Minute, 0, 0, loc)
		if candidate.After(now) {
			return candidate, true
		}
	}
	first := moments[0]
	tomorrow := day.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.Hour, first.Minute, 0, 0, loc), true
}

// TimeAgo returns the largest whole unit elapsed between ts and now.
func TimeAgo(ts *time.Time, now time.Time) (int, string) {
	if ts == nil {
		return -1, "never"
	}
	delta := int(now.Sub(*ts).Seconds())
	units := []struct {
		secs int
		name string
	}{{86400, "day"}, {3600, "hour"}, {60, "minute"}, {1, "second"}}
	for _, u := range units {
		if n := delta / u.secs; n > 0 {
			return n, u.name
		}
	}
	return 0, "now"
}
