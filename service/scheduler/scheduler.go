// Package scheduler fires one poll cycle per enabled monitoring service on the
// service's interval.
package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/service/poller"
	"github.com/opsyhq/opsy/service/store"
)

// ErrInFlight is returned when a poll is requested for a service that is
// being polled already.
var ErrInFlight = errors.New("scheduler: poll cycle already in flight")

type Runner interface {
	RunPollCycle(ctx context.Context, serviceID string) poller.Outcome
}

// jitteredSchedule fires first at a random offset within one interval, then
// every interval.
type jitteredSchedule struct {
	interval time.Duration
	offset   time.Duration
	started  bool
}

func (s *jitteredSchedule) Next(t time.Time) time.Time {
	if !s.started {
		s.started = true
		return t.Add(s.offset)
	}
	return t.Add(s.interval)
}

// randomJitter returns an offset in [0, interval).
func randomJitter(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return rand.N(interval)
}

type Scheduler struct {
	cron    *cron.Cron
	cronLog cron.Logger
	runner  Runner
	store   *store.Store
	jitter  func(time.Duration) time.Duration
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	entries  map[string]cron.EntryID
	inFlight map[string]bool
}

func New(s *store.Store, runner Runner) *Scheduler {
	log := logger.WithComponent("scheduler")
	cronLog := logger.CronLogger{Logger: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		cronLog:  cronLog,
		runner:   runner,
		store:    s,
		jitter:   randomJitter,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]cron.EntryID),
		inFlight: make(map[string]bool),
	}
}

// Start registers every enabled service and starts firing.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop cancels running poll cycles and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Reload re-registers the enabled services of the store, dropping entries of
// services that are gone or disabled.
func (s *Scheduler) Reload(ctx context.Context) error {
	services, err := s.store.ListMonitoringServices(ctx, true)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(services))
	for i := range services {
		keep[services[i].ID] = true
	}

	s.mu.Lock()
	for id := range s.entries {
		if !keep[id] {
			s.removeLocked(id)
		}
	}
	s.mu.Unlock()

	for i := range services {
		s.OnRefreshOrAddService(&services[i])
	}
	s.log.Info().Int("services", len(services)).Msg("scheduled monitoring services")
	return nil
}

// OnRefreshOrAddService (re)schedules svc, or unschedules it when disabled.
func (s *Scheduler) OnRefreshOrAddService(svc *model.MonitoringService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(svc.ID)
	svc.CronJobID = 0
	if !svc.Enabled {
		return
	}

	interval := svc.Interval()
	schedule := &jitteredSchedule{interval: interval, offset: s.jitter(interval)}
	id := svc.ID
	job := cron.NewChain(cron.SkipIfStillRunning(s.cronLog)).Then(cron.FuncJob(func() {
		if _, err := s.run(id); err != nil {
			s.log.Debug().Str("service_id", id).Msg("previous poll cycle still running, skipped")
		}
	}))
	svc.CronJobID = s.cron.Schedule(schedule, job)
	s.entries[id] = svc.CronJobID
	s.log.Debug().Str("service", svc.Name).Str("spec", svc.CronSpec()).Dur("offset", schedule.offset).Msg("service scheduled")
}

func (s *Scheduler) OnDeleteService(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Scheduler) removeLocked(id string) {
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// Trigger runs a poll cycle of a service right away, unless one is running.
func (s *Scheduler) Trigger(id string) (poller.Outcome, error) {
	return s.run(id)
}

func (s *Scheduler) run(id string) (poller.Outcome, error) {
	s.mu.Lock()
	if s.inFlight[id] {
		s.mu.Unlock()
		return poller.Outcome{}, ErrInFlight
	}
	s.inFlight[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}()
	return s.runner.RunPollCycle(s.ctx, id), nil
}

// Scheduled lists the ids of the scheduled services.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NextRun is the next fire time of a service, zero when unscheduled or not
// started.
func (s *Scheduler) NextRun(id string) time.Time {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(entryID).Next
}
