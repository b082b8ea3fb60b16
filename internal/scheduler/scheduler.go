// Package scheduler runs named recurring tasks on six-field cron schedules.
//
// Expressions use the fields second, minute, hour, day-of-month, month and
// day-of-week. Descriptors ("@hourly") and interval strings ("every 1h") are
// rejected by Validate, and a task with a rejected expression is never run.
//
// Runs of the same task are not serialised: if a run takes longer than the
// gap to its next firing, two runs of that task overlap. Tasks that cannot
// tolerate this must guard themselves.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"
)

var (
	// ErrStopped is returned by Start once the scheduler has been stopped.
	ErrStopped = errors.New("scheduler stopped")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// cronParser accepts exactly six fields.
var cronParser = cronlib.NewParser(
	cronlib.Second | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Validate reports whether expr is a valid six-field cron expression.
func Validate(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}

// Task is a recurring job.
type Task struct {
	// Name is the display name used in logs. Defaults to the registration key.
	Name string

	// Schedule is a six-field cron expression.
	Schedule string

	// RunOnStart runs the task once when the scheduler starts, in addition
	// to its schedule.
	RunOnStart bool

	// Run executes the task. The context is cancelled when the scheduler stops.
	Run func(ctx context.Context) error
}

// Info describes a registered task.
type Info struct {
	Key        string
	Name       string
	Schedule   string
	RunOnStart bool
	Scheduled  bool
	Next       time.Time
}

// Recorder observes task runs.
type Recorder interface {
	ObserveTaskRun(task string, duration time.Duration, err error)
}

// ErrorFunc is called with the display name of a task whose run failed.
type ErrorFunc func(task string, err error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithRecorder sets a Recorder notified after every run.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithErrorHandler sets a callback invoked for every failed run.
func WithErrorHandler(fn ErrorFunc) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithLocation sets the time zone schedules are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

type entry struct {
	key       string
	task      Task
	id        cronlib.EntryID
	scheduled bool
}

func (e *entry) name() string {
	if e.task.Name != "" {
		return e.task.Name
	}
	return e.key
}

// Scheduler holds named tasks and runs them once started.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	index   map[string]int
	cron    *cronlib.Cron

	logger   *slog.Logger
	recorder Recorder
	onError  ErrorFunc
	location *time.Location

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// New creates an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		index:    make(map[string]int),
		logger:   slog.Default(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.cron = cronlib.New(
		cronlib.WithParser(cronParser),
		cronlib.WithLocation(s.location),
	)

	return s
}

// Register stores task under key. Registering an existing key replaces the
// earlier task. Tasks registered after Start are not scheduled.
func (s *Scheduler) Register(key string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{key: key, task: task}
	if i, ok := s.index[key]; ok {
		s.entries[i] = e
		return
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start schedules every task with a valid expression and fires the
// RunOnStart ones once, each in its own goroutine. Tasks with an invalid
// expression are logged and skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for _, e := range s.entries {
		sched, err := cronParser.Parse(e.task.Schedule)
		if err != nil {
			s.logger.Warn("skipped task with invalid schedule",
				"task", e.name(), "schedule", e.task.Schedule, "error", err)
			continue
		}

		e.id = s.cron.Schedule(sched, cronlib.FuncJob(func() {
			s.run(e, "schedule")
		}))
		e.scheduled = true

		s.logger.Debug("scheduled task",
			"task", e.name(), "schedule", e.task.Schedule, "next_run", sched.Next(time.Now()))

		if e.task.RunOnStart {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.run(e, "start")
			}()
		}
	}

	s.cron.Start()
	return nil
}

// Stop removes every schedule and waits for in-flight runs to return or for
// ctx to end, whichever comes first. A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if !s.started {
		s.mu.Unlock()
		return nil
	}

	for _, e := range s.entries {
		if e.scheduled {
			s.cron.Remove(e.id)
			e.scheduled = false
		}
	}
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stopped all scheduled tasks")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for running tasks: %w", ctx.Err())
	}
}

// Tasks returns a snapshot of the registered tasks in registration order.
func (s *Scheduler) Tasks() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		info := Info{
			Key:        e.key,
			Name:       e.name(),
			Schedule:   e.task.Schedule,
			RunOnStart: e.task.RunOnStart,
			Scheduled:  e.scheduled,
		}
		if e.scheduled {
			info.Next = s.cron.Entry(e.id).Next
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Scheduler) run(e *entry, trigger string) {
	logger := s.logger.With(
		"task", e.name(),
		"run_id", uuid.NewString(),
		"trigger", trigger,
	)

	logger.Debug("running task")
	start := time.Now()
	err := s.invoke(e.task)
	duration := time.Since(start)

	if s.recorder != nil {
		s.recorder.ObserveTaskRun(e.name(), duration, err)
	}

	if err != nil {
		logger.Error("failed to run task", "duration", duration, "error", err)
		if s.onError != nil {
			s.onError(e.name(), err)
		}
		return
	}

	logger.Debug("completed task", "duration", duration)
}

func (s *Scheduler) invoke(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task: %v", r)
		}
	}()

	if task.Run == nil {
		return errors.New("task has no run function")
	}
	return task.Run(s.ctx)
}
