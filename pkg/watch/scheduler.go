package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/log"
)

// Refresher refreshes the bulk cache when it is stale. *aggregate.BulkService satisfies it.
type Refresher interface {
	RefreshIfStale(ctx context.Context) (bool, error)
}

// Scheduler periodically warms the bulk cache so requests rarely pay for a refresh
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	entryID   cron.EntryID
	refresher Refresher
	state     *StateManager
	log       *logrus.Entry

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a warm-up scheduler. schedule accepts anything ParseSchedule does.
func NewScheduler(schedule string, refresher Refresher, state *StateManager, logger *logrus.Entry) (*Scheduler, error) {
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = NewStateManager("")
	}

	cronLog := log.NewCronLogrusAdapter(logger.WithField("component", "cron"))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      c,
		spec:      spec,
		refresher: refresher,
		state:     state,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	id, err := c.AddFunc(spec, func() {
		_ = s.RunOnce(s.ctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	return s, nil
}

// Start begins the schedule. With warmNow set, one warm-up runs immediately in the background.
func (s *Scheduler) Start(warmNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load warm-up state: %v (starting fresh)", err)
	}
	s.cron.Start()
	s.started = true
	s.log.Infof("Cache warm-up scheduled (%s), next run at %s", s.spec, s.NextRun().Format(time.RFC3339))

	if warmNow {
		go func() { _ = s.RunOnce(s.ctx) }()
	}
}

// Stop halts the schedule and waits for a running warm-up to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.log.Info("Stopping cache warm-up scheduler...")
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
}

// RunOnce performs a single warm-up and records its outcome
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	refreshed, err := s.refresher.RefreshIfStale(ctx)
	s.state.Record(refreshed, err)
	if saveErr := s.state.Save(); saveErr != nil {
		s.log.Errorf("Failed to save warm-up state: %v", saveErr)
	}

	switch {
	case err != nil:
		s.log.Errorf("Cache warm-up failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
	case refreshed:
		s.log.Infof("Cache warm-up refreshed bulk listings in %v", time.Since(start).Round(time.Millisecond))
	default:
		s.log.Debug("Cache warm-up skipped, bulk cache is fresh")
	}
	return err
}

// NextRun returns when the next warm-up is due, or the zero time if not started
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Status describes the scheduler for reporting
type Status struct {
	Schedule string     `json:"schedule"`
	NextRun  time.Time  `json:"next_run"`
	State    WatchState `json:"state"`
}

// GetStatus returns the schedule, next run and run history
func (s *Scheduler) GetStatus() Status {
	return Status{Schedule: s.spec, NextRun: s.NextRun(), State: s.state.Snapshot()}
}
