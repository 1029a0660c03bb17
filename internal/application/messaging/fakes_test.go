package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/infrastructure/scheduler"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

// fakeTimers fires callbacks synchronously from Advance, in due order.
type fakeTimers struct {
	mu     sync.Mutex
	clock  *fakeClock
	timers []*fakeTimer
	stops  int
	err    error
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) (scheduler.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTimer{at: f.clock.Now().Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return &fakeHandle{f: f, t: t}, nil
}

type fakeHandle struct {
	f *fakeTimers
	t *fakeTimer
}

func (h *fakeHandle) Stop() {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if !h.t.stopped {
		h.t.stopped = true
		h.f.stops++
	}
}

func (f *fakeTimers) next(until time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *fakeTimer
	for _, t := range f.timers {
		if t.stopped || t.fired || t.at.After(until) {
			continue
		}
		if best == nil || t.at.Before(best.at) {
			best = t
		}
	}
	if best != nil {
		best.fired = true
	}
	return best
}

// Advance moves the clock to until, firing every due timer on the way.
func (f *fakeTimers) Advance(until time.Time) {
	for {
		t := f.next(until)
		if t == nil {
			break
		}
		f.clock.set(t.at)
		t.fn()
	}
	f.clock.set(until)
}

func (f *fakeTimers) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeSchedulerStore struct {
	clock       *fakeClock
	assignments []repository.Assignment
	mu          sync.Mutex
	latest      map[int64]*bedcount.BedCount
}

func (s *fakeSchedulerStore) Now() time.Time { return s.clock.Now() }

func (s *fakeSchedulerStore) ActiveAssignments(context.Context) ([]repository.Assignment, error) {
	return s.assignments, nil
}

func (s *fakeSchedulerStore) LatestBedCounts(_ context.Context, icuIDs []int64, _ *time.Time) ([]*bedcount.BedCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*bedcount.BedCount
	for _, id := range icuIDs {
		if b, ok := s.latest[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeSchedulerStore) write(icuID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		s.latest = map[int64]*bedcount.BedCount{}
	}
	s.latest[icuID] = &bedcount.BedCount{ICUID: icuID, CreatedAt: at}
}

type fakeTokens struct {
	calls int
}

func (f *fakeTokens) GetOrNewToken(_ context.Context, userID, icuID int64, _ bool) (string, error) {
	f.calls++
	return "tok", nil
}

type fakeGauge struct{ last int }

func (g *fakeGauge) SetPendingTimers(n int) { g.last = n }

func activeUser(id int64, icuIDs ...int64) *user.User {
	return &user.User{ID: id, Name: "user", Phone: "+33 6 12", IsActive: true, ICUIDs: icuIDs}
}

func activeICU(id int64, name string) *icu.ICU {
	return &icu.ICU{ID: id, Name: name, IsActive: true}
}
