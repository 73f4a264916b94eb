package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks. ctx is cancelled
// when the scheduler stops.
type TaskFn func(ctx context.Context)

// JobInfo describes one registered job.
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run,omitempty"`
}

// Scheduler runs named background jobs on top of gocron. Registering a
// name twice replaces the earlier job.
type Scheduler struct {
	mu        sync.Mutex
	cron      gocron.Scheduler
	jobs      map[string]gocron.Job
	schedules map[string]string
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	stopErr   error
}

type options struct {
	clock clockwork.Clock
	loc   *time.Location
}

// Option configures New.
type Option func(*options)

// WithClock drives the scheduler from c instead of the wall clock.
func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithLocation sets the zone weekly jobs are anchored in.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.loc = loc } }

// New creates a stopped Scheduler; call Start once jobs are registered.
func New(logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{loc: time.UTC}
	for _, fn := range opts {
		fn(&o)
	}
	cronOpts := []gocron.SchedulerOption{
		gocron.WithLocation(o.loc),
		gocron.WithLogger(gocronLogger{logger.Named("gocron")}),
	}
	if o.clock != nil {
		cronOpts = append(cronOpts, gocron.WithClock(o.clock))
	}
	cron, err := gocron.NewScheduler(cronOpts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron,
		jobs:      make(map[string]gocron.Job),
		schedules: make(map[string]string),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Every registers fn to run on a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFn) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be > 0", name)
	}
	return s.add(name, "every "+interval.String(), gocron.DurationJob(interval), fn)
}

// Weekly registers fn to run once a week on day at hour:00.
func (s *Scheduler) Weekly(name string, day time.Weekday, hour uint, fn TaskFn) error {
	if hour > 23 {
		return fmt.Errorf("job %s: hour must be 0-23, got %d", name, hour)
	}
	def := gocron.WeeklyJob(1,
		gocron.NewWeekdays(day),
		gocron.NewAtTimes(gocron.NewAtTime(hour, 0, 0)))
	return s.add(name, fmt.Sprintf("weekly %s %02d:00", day, hour), def, fn)
}

func (s *Scheduler) add(name, schedule string, def gocron.JobDefinition, fn TaskFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		if err := s.cron.RemoveJob(old.ID()); err != nil {
			s.logger.Warn("remove replaced job", zap.String("name", name), zap.Error(err))
		}
		delete(s.jobs, name)
	}

	job, err := s.cron.NewJob(def,
		gocron.NewTask(s.wrap(name, fn)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.jobs[name] = job
	s.schedules[name] = schedule
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) wrap(name string, fn TaskFn) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduler task panicked",
					zap.String("task", name),
					zap.Any("recover", r))
			}
		}()
		fn(s.ctx)
	}
}

// RunNow triggers a registered job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job named %s", name)
	}
	return job.RunNow()
}

// Remove stops and removes a job by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return
	}
	if err := s.cron.RemoveJob(job.ID()); err != nil {
		s.logger.Warn("remove job", zap.String("name", name), zap.Error(err))
	}
	delete(s.jobs, name)
	delete(s.schedules, name)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running tasks and waits for them to return. Only the first
// call does anything.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.stopErr = s.cron.Shutdown()
	})
	return s.stopErr
}

// Jobs lists the registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for name, job := range s.jobs {
		info := JobInfo{Name: name, Schedule: s.schedules[name]}
		if next, err := job.NextRun(); err == nil {
			info.NextRun = next
		}
		if last, err := job.LastRun(); err == nil {
			info.LastRun = last
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// gocronLogger routes gocron's own diagnostics into zap.
type gocronLogger struct{ z *zap.Logger }

func (l gocronLogger) Debug(msg string, args ...any) { l.z.Debug(msg, zap.Any("args", args)) }
func (l gocronLogger) Info(msg string, args ...any)  { l.z.Info(msg, zap.Any("args", args)) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.z.Warn(msg, zap.Any("args", args)) }
func (l gocronLogger) Error(msg string, args ...any) { l.z.Error(msg, zap.Any("args", args)) }
