/*
scheduler.go - Cron trigger for the activation/reconciliation/notification run

PURPOSE:
  Runs engine.Runner on a cron schedule and on demand, keeps the last run
  in memory and appends every run to the store's run history.

DESIGN:
  - robfig/cron with Recover, so a panicking run never kills the process
  - One run at a time per process: a trigger while a run is in progress
    returns ErrRunInProgress instead of queueing. Across processes the
    database unique constraints keep overlapping runs harmless.
  - Scheduled runs use a background context bounded by RunTimeout

CONFIGURATION:
  - RUN_SCHEDULE: standard 5-field cron expression (default "0 6 * * *")
  - TIMEZONE:     location the expression is evaluated in

USAGE:
  scheduler := NewScheduler(runner, store, "0 6 * * *", loc, logger)
  if err := scheduler.Start(); err != nil { ... }
  defer func() { <-scheduler.Stop().Done() }()

SEE ALSO:
  - handlers.go: POST /api/runs, GET /api/runs/last
  - engine/runner.go: the pipeline itself
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/heyjack/giftpool/engine"
)

// Run triggers recorded in the history.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
	TriggerCLI      = "cli"
)

// Runner is the pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context, opts engine.RunOptions) (*engine.RunReport, error)
}

// Scheduler runs the pipeline on a cron schedule and on demand.
type Scheduler struct {
	runner   Runner
	history  engine.RunStore
	logger   *zap.Logger
	cron     *cron.Cron
	schedule string

	// RunTimeout bounds scheduled runs.
	RunTimeout time.Duration

	mu      sync.Mutex
	running bool
	last    *engine.RunRecord
	entry   cron.EntryID
}

// NewScheduler creates a scheduler. A nil loc means UTC.
func NewScheduler(runner Runner, history engine.RunStore, schedule string, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})),
	)
	return &Scheduler{
		runner:     runner,
		history:    history,
		logger:     logger,
		cron:       c,
		schedule:   schedule,
		RunTimeout: 15 * time.Minute,
	}
}

// Start registers the scheduled run and starts the cron loop.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.schedule), zap.Time("next_run", s.NextRun()))
	return nil
}

// Stop stops the cron loop. The returned context is done once a running job finishes.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// NextRun returns when the scheduled run fires next (zero if not started).
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.RunTimeout)
	defer cancel()

	if _, err := s.RunNow(ctx, TriggerSchedule, engine.RunOptions{}); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// RunNow executes one run synchronously and records it. It returns
// engine.ErrRunInProgress when another run is still going. A fatal run
// error is returned together with the recorded (failed) run.
func (s *Scheduler) RunNow(ctx context.Context, trigger string, opts engine.RunOptions) (*engine.RunRecord, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, engine.ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log := s.logger.With(zap.String("trigger", trigger))
	report, runErr := s.runner.Run(ctx, opts)

	record := &engine.RunRecord{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Status:  "completed",
	}
	if report != nil {
		record.Report = *report
	}
	if runErr != nil {
		record.Status = "failed"
		record.Error = runErr.Error()
	}

	// The run context may be spent; history still gets written.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.history.SaveRun(saveCtx, *record); err != nil {
		log.Error("failed to save run record", zap.String("run_id", record.ID), zap.Error(err))
	}

	s.mu.Lock()
	s.last = record
	s.mu.Unlock()

	log.Info("run recorded",
		zap.String("run_id", record.ID),
		zap.String("status", record.Status),
		zap.Int("failures", len(record.Report.Failures)))
	return record, runErr
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the most recent run: the in-memory one, or the newest in
// the history after a restart. nil when nothing ever ran.
func (s *Scheduler) Last(ctx context.Context) (*engine.RunRecord, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		return last, nil
	}

	runs, err := s.history.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
