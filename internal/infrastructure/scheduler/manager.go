// Package scheduler provides gocron-backed timers for the report scheduler
// and the periodic jobs of the messaging server.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/icubam/icubam/internal/shared/biztime"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Timer is a pending one-shot callback.
type Timer interface {
	Stop()
}

// PeriodicJob runs on a fixed interval.
type PeriodicJob interface {
	Run(ctx context.Context) error
}

// Manager owns one gocron scheduler.
type Manager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewManager creates a Manager in the business timezone.
func NewManager(log logger.Interface) (*Manager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(biztime.Location()))
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: s, logger: log}, nil
}

type oneShot struct {
	id uuid.UUID
	m  *Manager
}

// Stop removes the job; it is a no-op once the job has fired.
func (t *oneShot) Stop() {
	if err := t.m.scheduler.RemoveJob(t.id); err != nil {
		t.m.logger.Debugw("one-shot timer already gone", "job_id", t.id, "error", err)
	}
}

// immediateBelow is the delay under which a timer runs at once. gocron
// rejects a start time that is already past when the job is added.
const immediateBelow = 10 * time.Millisecond

// AfterFunc runs fn once after d. Zero, negative and sub-immediateBelow
// delays run fn as soon as the scheduler is started.
func (m *Manager) AfterFunc(d time.Duration, fn func()) (Timer, error) {
	start := gocron.OneTimeJobStartImmediately()
	if d >= immediateBelow {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(d))
	}
	job, err := m.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(fn),
		gocron.WithTags("report"),
	)
	if err != nil {
		return nil, err
	}
	return &oneShot{id: job.ID(), m: m}, nil
}

// Every registers job on a fixed interval, starting immediately. Runs never
// overlap.
func (m *Manager) Every(name string, interval time.Duration, job PeriodicJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := job.Run(ctx); err != nil {
				m.logger.Errorw("periodic job failed", "job", name, "error", err)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered periodic job", "job", name, "interval", interval)
	return nil
}

// Start arms every registered job. Extra calls do nothing.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if !m.started {
		m.scheduler.Start()
		m.started = true
		m.logger.Infow("timers running", "jobs", len(m.scheduler.Jobs()))
	}
}

// Stop lets in-flight jobs finish, then drops every pending timer.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop timers: %w", err)
	}
	m.logger.Infow("timers stopped")
	return nil
}

func (m *Manager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs lists the registered jobs, one-shot report timers included.
func (m *Manager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
