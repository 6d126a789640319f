// Package scheduler is the host clock of the irrigation controller.
//
// A Ticker fires on a cron schedule in the site timezone and hands the
// current time to its Target, normally irrigation.Registry, which decides
// which programs are due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrAlreadyStarted is returned by Start on a running Ticker.
var ErrAlreadyStarted = errors.New("scheduler: already started")

// Target receives clock ticks and returns the ids of programs it started.
type Target interface {
	Tick(ctx context.Context, now time.Time) []string
}

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Ticker.
type Config struct {
	// Spec is a standard five-field cron expression or descriptor
	// ("@every 30s", "@hourly"). Default: every minute.
	Spec string

	// Location is the timezone Spec and the tick time are evaluated in.
	Location *time.Location
}

// Ticker drives a Target from a cron schedule.
//
// Thread Safety:
//   - Start, Stop and Fire are safe for concurrent use.
//   - Overlapping firings are skipped rather than queued.
type Ticker struct {
	target   Target
	schedule cron.Schedule
	spec     string
	loc      *time.Location
	now      func() time.Time
	logger   Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context //nolint:containedctx // lifetime of the running ticker
	cancel  context.CancelFunc
	fired   int
	lastRun time.Time
}

// New parses cfg.Spec and returns a stopped Ticker.
func New(target Target, cfg Config, logger Logger) (*Ticker, error) {
	if cfg.Spec == "" {
		cfg.Spec = "* * * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = noopLogger{}
	}

	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parsing tick schedule %q: %w", cfg.Spec, err)
	}

	return &Ticker{
		target:   target,
		schedule: schedule,
		spec:     cfg.Spec,
		loc:      cfg.Location,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Start begins firing. Ticks stop when ctx is cancelled or Stop is called.
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		return ErrAlreadyStarted
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.cron = cron.New(
		cron.WithLocation(t.loc),
		cron.WithChain(cron.Recover(cronLogger{t.logger}), cron.SkipIfStillRunning(cronLogger{t.logger})),
	)
	t.cron.Schedule(t.schedule, cron.FuncJob(func() {
		t.Fire(t.ctx, t.now())
	}))
	t.cron.Start()

	go func(c *cron.Cron, done <-chan struct{}) {
		<-done
		c.Stop()
	}(t.cron, t.ctx.Done())

	t.logger.Info("tick scheduler started", "schedule", t.spec, "timezone", t.loc.String())
	return nil
}

// Stop halts firing and waits for an in-flight tick to return.
// Programs started by a tick keep running.
func (t *Ticker) Stop() {
	t.mu.Lock()
	c, cancel := t.cron, t.cancel
	t.cron, t.cancel = nil, nil
	t.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	t.logger.Info("tick scheduler stopped")
}

// Fire delivers one tick at now, in the ticker's timezone.
func (t *Ticker) Fire(ctx context.Context, now time.Time) []string {
	now = now.In(t.loc)
	started := t.target.Tick(ctx, now)

	t.mu.Lock()
	t.fired++
	t.lastRun = now
	t.mu.Unlock()

	if len(started) > 0 {
		t.logger.Info("scheduled programs started", "programs", started, "at", now.Format(time.RFC3339))
	} else {
		t.logger.Debug("tick", "at", now.Format(time.RFC3339))
	}
	return started
}

// Next returns the next firing time after from.
func (t *Ticker) Next(from time.Time) time.Time {
	return t.schedule.Next(from.In(t.loc))
}

// Stats reports how many ticks fired and when the last one did.
func (t *Ticker) Stats() (fired int, last time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired, t.lastRun
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
