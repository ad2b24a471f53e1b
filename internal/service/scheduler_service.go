package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/logger"
)

type lifecycleSweeper interface {
	RunLifecycleSweep(ctx context.Context, now time.Time) (*dto.LifecycleSweepResult, error)
}

type escalationSweeper interface {
	RunEscalationSweep(ctx context.Context, now time.Time) (*dto.EscalationSweepResult, error)
}

type jobLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

type sweepFunc func(ctx context.Context, now time.Time) (interface{}, error)

// SchedulerConfig controls when sweeps fire.
type SchedulerConfig struct {
	Enabled        bool
	Location       *time.Location
	ActivitySpec   string
	EscalationSpec string
	LockTTL        time.Duration
}

// SchedulerService runs the recurring sweeps on cron schedules and on demand. A job never
// runs twice at once in this process, and the optional locker extends that across processes.
type SchedulerService struct {
	cfg    SchedulerConfig
	cron   *cron.Cron
	jobs   map[string]sweepFunc
	specs  map[string]string
	locker jobLocker
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewSchedulerService registers the lifecycle and escalation sweeps.
func NewSchedulerService(lifecycle lifecycleSweeper, escalation escalationSweeper, locker jobLocker, cfg SchedulerConfig, log *zap.Logger) *SchedulerService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ActivitySpec == "" {
		cfg.ActivitySpec = "0 0 * * *"
	}
	if cfg.EscalationSpec == "" {
		cfg.EscalationSpec = "0 8 * * *"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}

	adapter := logger.NewCronAdapter(log)
	s := &SchedulerService{
		cfg: cfg,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		jobs:    make(map[string]sweepFunc),
		specs:   make(map[string]string),
		locker:  locker,
		logger:  log,
		now:     time.Now,
		running: make(map[string]bool),
	}
	if lifecycle != nil {
		s.register(JobActivityLifecycle, cfg.ActivitySpec, func(ctx context.Context, now time.Time) (interface{}, error) {
			return lifecycle.RunLifecycleSweep(ctx, now)
		})
	}
	if escalation != nil {
		s.register(JobApprovalEscalation, cfg.EscalationSpec, func(ctx context.Context, now time.Time) (interface{}, error) {
			return escalation.RunEscalationSweep(ctx, now)
		})
	}
	return s
}

func (s *SchedulerService) register(name, spec string, fn sweepFunc) {
	s.jobs[name] = fn
	s.specs[name] = spec
}

// Jobs lists registered job names.
func (s *SchedulerService) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every registered job. It is a no-op when the scheduler is disabled.
func (s *SchedulerService) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}
	for _, name := range s.Jobs() {
		name := name
		spec := s.specs[name]
		if _, err := s.cron.AddFunc(spec, func() { s.runScheduled(name) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
		s.logger.Info("scheduled job", zap.String("job", name), zap.String("spec", spec), zap.String("timezone", s.cfg.Location.String()))
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs until ctx expires.
func (s *SchedulerService) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// Trigger runs a job immediately through the same overlap guard as scheduled runs.
func (s *SchedulerService) Trigger(ctx context.Context, job string) (*dto.SchedulerRunResponse, error) {
	fn, ok := s.jobs[job]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown job %q", job))
	}
	if !s.begin(job) {
		return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("job %s is already running", job))
	}
	defer s.finish(job)

	release := func() {}
	if s.locker != nil {
		var err error
		release, err = s.locker.Acquire(ctx, job, s.cfg.LockTTL)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrLocked) {
				return nil, err
			}
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire job lock")
		}
	}
	defer release()

	started := s.now()
	result, err := fn(ctx, started)
	if err != nil {
		return nil, err
	}
	return &dto.SchedulerRunResponse{
		Job:        job,
		StartedAt:  started.UTC(),
		FinishedAt: s.now().UTC(),
		Result:     result,
	}, nil
}

func (s *SchedulerService) runScheduled(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
	defer cancel()

	if _, err := s.Trigger(ctx, job); err != nil {
		if appErrors.Is(err, appErrors.ErrLocked) {
			s.logger.Info("skipping scheduled job, already running elsewhere", zap.String("job", job))
			return
		}
		s.logger.Error("scheduled job failed", zap.String("job", job), zap.Error(err))
	}
}

func (s *SchedulerService) begin(job string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[job] {
		return false
	}
	s.running[job] = true
	return true
}

func (s *SchedulerService) finish(job string) {
	s.mu.Lock()
	delete(s.running, job)
	s.mu.Unlock()
}
