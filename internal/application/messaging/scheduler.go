package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/icubam/icubam/internal/application/authenticator"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/infrastructure/scheduler"
	"github.com/icubam/icubam/internal/shared/biztime"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/queue"
)

const fireTimeout = 30 * time.Second

// SchedulerStore is what the scheduler reads from the store.
type SchedulerStore interface {
	Now() time.Time
	ActiveAssignments(ctx context.Context) ([]repository.Assignment, error)
	LatestBedCounts(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error)
}

// TokenIssuer hands out the update token of a pair.
type TokenIssuer interface {
	GetOrNewToken(ctx context.Context, userID, icuID int64, rotate bool) (string, error)
}

// TimerFactory registers one-shot callbacks.
type TimerFactory interface {
	AfterFunc(d time.Duration, fn func()) (scheduler.Timer, error)
}

// PendingGauge is told the size of the timer map after every change.
type PendingGauge interface {
	SetPendingTimers(n int)
}

type SchedulerConfig struct {
	Moments       []biztime.Moment
	Location      *time.Location
	ReminderDelay time.Duration
	MaxRetries    int
	BaseURL       string
}

type entry struct {
	msg   *Message
	when  time.Time
	timer scheduler.Timer
	gen   uint64
}

// Pending describes one registered timer.
type Pending struct {
	Message Message
	When    time.Time
}

// Scheduler keeps at most one timer per (user, ICU) key. Fires of one key
// never overlap; fires of different keys run concurrently.
type Scheduler struct {
	cfg    SchedulerConfig
	store  SchedulerStore
	tokens TokenIssuer
	timers TimerFactory
	out    *queue.Queue[*Message]
	gauge  PendingGauge
	logger logger.Interface

	mu      sync.Mutex
	entries map[Key]*entry
	gen     uint64

	// keyLocks holds a lock only while some fire of its key runs or waits.
	keyMu    sync.Mutex
	keyLocks map[Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewScheduler(
	cfg SchedulerConfig,
	store SchedulerStore,
	tokens TokenIssuer,
	timers TimerFactory,
	out *queue.Queue[*Message],
	gauge PendingGauge,
	log logger.Interface,
) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		timers:   timers,
		out:      out,
		gauge:    gauge,
		logger:   log,
		entries:  map[Key]*entry{},
		keyLocks: map[Key]*keyLock{},
	}
}

// ScheduleAll registers every active, consenting assignment at the next
// daily moment and returns how many were registered.
func (s *Scheduler) ScheduleAll(ctx context.Context) (int, error) {
	assignments, err := s.store.ActiveAssignments(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range assignments {
		if s.Schedule(ctx, a.User, a.ICU, nil) {
			n++
		}
	}
	s.logger.Infow("scheduled all assignments", "count", n, "assignments", len(assignments))
	return n, nil
}

// Schedule registers the pair after delay, or at the next daily moment when
// delay is nil. It reports false, doing nothing, when the pair cannot be
// messaged or no delay can be computed.
func (s *Scheduler) Schedule(ctx context.Context, u *user.User, i *icu.ICU, delay *time.Duration) bool {
	if !u.IsActive || !i.IsActive || u.HasDeclined() || !u.BelongsTo(i.ID) {
		s.logger.Infow("cannot message user for icu", "user_id", u.ID, "icu_id", i.ID)
		return false
	}
	url, err := s.url(ctx, u.ID, i.ID, false)
	if err != nil {
		s.logger.Errorw("failed to issue update token", "user_id", u.ID, "icu_id", i.ID, "error", err)
		return false
	}
	return s.register(NewMessage(u, i, url), delay, 0)
}

// Cancel removes the pending timers of userID, restricted to icuIDs when
// given, and returns how many were removed. A fire already running
// completes but does not re-arm.
func (s *Scheduler) Cancel(userID int64, icuIDs ...int64) int {
	only := map[int64]bool{}
	for _, id := range icuIDs {
		only[id] = true
	}

	s.mu.Lock()
	var stopped []scheduler.Timer
	for k, e := range s.entries {
		if k.UserID != userID || (len(only) > 0 && !only[k.ICUID]) {
			continue
		}
		stopped = append(stopped, e.timer)
		delete(s.entries, k)
	}
	n := len(s.entries)
	s.mu.Unlock()

	stopAll(stopped)
	s.report(n)
	if len(stopped) > 0 {
		s.logger.Infow("unscheduled user", "user_id", userID, "count", len(stopped))
	}
	return len(stopped)
}

// Stop removes every pending timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stopped := make([]scheduler.Timer, 0, len(s.entries))
	for k, e := range s.entries {
		stopped = append(stopped, e.timer)
		delete(s.entries, k)
	}
	s.mu.Unlock()

	stopAll(stopped)
	s.report(0)
}

// Timers are stopped outside the lock; stale fires are dropped by their
// generation check anyway.
func stopAll(timers []scheduler.Timer) {
	for _, t := range timers {
		t.Stop()
	}
}

// List returns the pending timers of icuIDs (nil means all), soonest first.
func (s *Scheduler) List(icuIDs []int64) []Pending {
	var only map[int64]bool
	if icuIDs != nil {
		only = make(map[int64]bool, len(icuIDs))
		for _, id := range icuIDs {
			only[id] = true
		}
	}

	s.mu.Lock()
	out := make([]Pending, 0, len(s.entries))
	for k, e := range s.entries {
		if only != nil && !only[k.ICUID] {
			continue
		}
		out = append(out, Pending{Message: *e.msg.snapshot(), When: e.when})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].When.Equal(out[j].When) {
			return out[i].When.Before(out[j].When)
		}
		a, b := out[i].Message.Key(), out[j].Message.Key()
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.ICUID < b.ICUID
	})
	return out
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// delayFor resolves an explicit delay or the wait until the next moment.
func (s *Scheduler) delayFor(delay *time.Duration) (time.Duration, bool) {
	if delay != nil {
		return *delay, *delay >= 0
	}
	now := s.store.Now()
	next, ok := biztime.NextMoment(s.cfg.Moments, now, s.cfg.Location)
	if !ok {
		s.logger.Warnw("no daily moment configured")
		return 0, false
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// register arms a timer for msg, replacing any timer of the same key. With
// expect non-zero it only re-arms if the key still holds generation expect,
// so a cancel during a fire sticks.
func (s *Scheduler) register(msg *Message, delay *time.Duration, expect uint64) bool {
	d, ok := s.delayFor(delay)
	if !ok {
		s.logger.Errorw("negative or missing delay, skipping", "user_id", msg.UserID, "icu_id", msg.ICUID)
		return false
	}
	key := msg.Key()

	s.mu.Lock()
	old := s.entries[key]
	if expect != 0 && (old == nil || old.gen != expect) {
		s.mu.Unlock()
		return false
	}
	s.gen++
	gen := s.gen
	timer, err := s.timers.AfterFunc(d, func() { s.fire(key, gen) })
	if err != nil {
		// A re-arm replaces a timer that already fired; a fresh schedule
		// leaves the current timer in place.
		if expect != 0 {
			delete(s.entries, key)
		}
		n := len(s.entries)
		s.mu.Unlock()
		s.report(n)
		s.logger.Errorw("failed to register timer", "user_id", key.UserID, "icu_id", key.ICUID, "error", err)
		return false
	}
	s.entries[key] = &entry{msg: msg, when: s.store.Now().Add(d), timer: timer, gen: gen}
	n := len(s.entries)
	s.mu.Unlock()

	if old != nil {
		old.timer.Stop()
	}
	s.report(n)
	s.logger.Infow("scheduled message", "icu", msg.ICUName, "user_id", msg.UserID, "in", d)
	return true
}

// lockKey serializes fires of key and returns the matching unlock.
func (s *Scheduler) lockKey(key Key) func() {
	s.keyMu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &keyLock{}
		s.keyLocks[key] = l
	}
	l.refs++
	s.keyMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.keyMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.keyLocks, key)
		}
		s.keyMu.Unlock()
	}
}

// fire runs when the timer of generation gen expires. Errors and panics are
// logged and never escape.
func (s *Scheduler) fire(key Key, gen uint64) {
	unlock := s.lockKey(key)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("panic in scheduler fire", "user_id", key.UserID, "icu_id", key.ICUID, "panic", r)
		}
	}()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	msg := e.msg.snapshot()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	if msg.FirstSent == nil {
		s.send(ctx, msg, gen)
		return
	}

	answered, err := s.answeredSince(ctx, msg.ICUID, *msg.FirstSent)
	if err != nil {
		s.logger.Warnw("cannot read latest bed count, sending reminder", "icu_id", msg.ICUID, "error", err)
	}
	if answered || msg.Attempts > s.cfg.MaxRetries {
		s.logger.Infow("cycle over", "icu", msg.ICUName, "user_id", msg.UserID, "answered", answered, "attempts", msg.Attempts)
		msg.Reset()
		s.register(msg, nil, gen)
		return
	}
	s.send(ctx, msg, gen)
}

func (s *Scheduler) answeredSince(ctx context.Context, icuID int64, since time.Time) (bool, error) {
	latest, err := s.store.LatestBedCounts(ctx, []int64{icuID}, nil)
	if err != nil || len(latest) == 0 {
		return false, err
	}
	return latest[0].CreatedAt.After(since), nil
}

func (s *Scheduler) send(ctx context.Context, msg *Message, gen uint64) {
	if url, err := s.url(ctx, msg.UserID, msg.ICUID, true); err == nil {
		msg.URL = url
	} else {
		s.logger.Warnw("keeping previous update url", "user_id", msg.UserID, "icu_id", msg.ICUID, "error", err)
	}

	msg.Attempts++
	if msg.FirstSent == nil {
		now := s.store.Now()
		msg.FirstSent = &now
	}
	s.logger.Infow("sending update request", "icu", msg.ICUName, "user_id", msg.UserID, "attempt", msg.Attempts, "max", s.cfg.MaxRetries+1)

	if s.out != nil {
		s.out.Put(msg.snapshot())
	}
	delay := s.cfg.ReminderDelay
	s.register(msg, &delay, gen)
}

func (s *Scheduler) url(ctx context.Context, userID, icuID int64, rotate bool) (string, error) {
	tok, err := s.tokens.GetOrNewToken(ctx, userID, icuID, rotate)
	if err != nil {
		return "", err
	}
	return authenticator.UpdateURL(s.cfg.BaseURL, tok), nil
}

func (s *Scheduler) report(n int) {
	if s.gauge != nil {
		s.gauge.SetPendingTimers(n)
	}
}

// GaugeJob periodically republishes the size of the timer map, so the
// gauge stays current when no timer changes for a long while.
type GaugeJob struct {
	Scheduler *Scheduler
}

func (j GaugeJob) Run(context.Context) error {
	n := j.Scheduler.Len()
	j.Scheduler.report(n)
	j.Scheduler.logger.Debugw("pending timers", "count", n)
	return nil
}
