/*
runner.go - Activation -> Reconciliation -> Notification pipeline

PURPOSE:
  Applies the pure rules in activation.go, reconcile.go and notify.go to
  a Store. Every run re-reads the store; nothing is cached between runs.

FAILURE POLICY:
  Reading the community or member lists is the only fatal failure: Run
  returns an error together with the partial report. Everything else is
  per item: an event list that cannot be read skips one stage, one
  community or one row fails alone, and the failure lands in the report.
  Insert conflicts on events and contributors are counted as "already
  there", never as failures.

TIMEOUTS:
  Each store call and each send gets OperationTimeout. A timeout is a
  retryable per-item failure.

SEE ALSO:
  - api/scheduler.go: cron trigger
  - api/handlers.go: manual trigger (POST /api/runs)
*/
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunConfig holds the knobs of the pipeline.
type RunConfig struct {
	LookaheadDays    int
	Location         *time.Location
	NotifyEnabled    bool
	BatchSize        int
	OperationTimeout time.Duration
}

// RunOptions tweak a single run.
type RunOptions struct {
	SkipNotify bool
	// ResendNotified re-emails contributors already notified.
	ResendNotified bool
}

// Runner executes the pipeline against a Store.
type Runner struct {
	store  Store
	sender Sender
	cfg    RunConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a runner. A nil logger discards logs.
func NewRunner(store Store, sender Sender, cfg RunConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = DefaultLookaheadDays
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Runner{store: store, sender: sender, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock replaces the wall clock, for tests and backfills.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Today is the calendar day the runner considers current.
func (r *Runner) Today() Day { return DayOf(r.now().In(r.cfg.Location)) }

// Run executes one full pass.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	report := &RunReport{StartedAt: r.now().UTC(), Today: r.Today()}
	log := r.logger.With(zap.String("today", report.Today.String()))
	log.Info("run started")

	communities, err := call(ctx, r, func(ctx context.Context) ([]Community, error) {
		return r.store.ListCommunities(ctx)
	})
	if err != nil {
		err = ReadError("list communities", err)
		report.fail(newFailure(StageLoad, "communities", err))
		report.FinishedAt = r.now().UTC()
		log.Error("run aborted", zap.Error(err))
		return report, err
	}

	members, err := call(ctx, r, func(ctx context.Context) ([]Member, error) {
		return r.store.ListMembers(ctx, MemberFilter{})
	})
	if err != nil {
		err = ReadError("list members", err)
		report.fail(newFailure(StageLoad, "members", err))
		report.FinishedAt = r.now().UTC()
		log.Error("run aborted", zap.Error(err))
		return report, err
	}

	r.activate(ctx, report, communities, members)
	r.reconcile(ctx, report, communities, members)
	if r.cfg.NotifyEnabled && !opts.SkipNotify {
		r.notify(ctx, report, communities, members, SelectOptions{IncludeNotified: opts.ResendNotified})
	}

	report.FinishedAt = r.now().UTC()
	log.Info("run finished",
		zap.Int("events_created", report.EventsCreated),
		zap.Int("events_already_active", report.EventsAlreadyActive),
		zap.Int("contributors_added", report.ContributorsAdded),
		zap.Int("contributors_updated", report.ContributorsUpdated),
		zap.Int("contributors_skipped", report.ContributorsSkipped),
		zap.Int("emails_sent", report.EmailsSent),
		zap.Int("emails_failed", report.EmailsFailed),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// =============================================================================
// STAGES
// =============================================================================

func (r *Runner) activate(ctx context.Context, report *RunReport, communities []Community, members []Member) {
	existing, err := call(ctx, r, func(ctx context.Context) ([]Event, error) {
		return r.store.ListEvents(ctx, EventFilter{})
	})
	if err != nil {
		report.fail(newFailure(StageActivation, "events", ReadError("list events", err)))
		r.logger.Error("activation skipped", zap.Error(err))
		return
	}

	res := ActivateUpcoming(ActivationInput{
		Today:         report.Today,
		LookaheadDays: r.cfg.LookaheadDays,
		Communities:   communities,
		Members:       members,
		Existing:      existing,
	})
	for _, f := range res.Failures {
		r.logger.Warn("member skipped", zap.String("item", f.Item), zap.String("reason", f.Reason))
		report.fail(f)
	}
	report.EventsAlreadyActive += len(res.AlreadyActive)

	for _, e := range res.Created {
		now := r.now().UTC()
		e.ID = EventID(uuid.NewString())
		e.CreatedAt, e.UpdatedAt = now, now

		err := exec(ctx, r, func(ctx context.Context) error { return r.store.CreateEvent(ctx, e) })
		switch {
		case IsConflict(err):
			report.EventsAlreadyActive++
		case err != nil:
			report.fail(newFailure(StageActivation, memberItem(e.HonoreeMemberID), WriteError("create event", err)))
		default:
			report.EventsCreated++
			r.logger.Info("event activated",
				zap.String("event_id", string(e.ID)),
				zap.String("community_id", string(e.CommunityID)),
				zap.String("honoree", e.HonoreeName),
				zap.String("occurrence", e.OccurrenceDate.String()),
				zap.String("target", e.Target.String()))
		}
	}
}

func (r *Runner) reconcile(ctx context.Context, report *RunReport, communities []Community, members []Member) {
	active := EventActive
	for _, c := range communities {
		if !c.IsActive() {
			continue
		}
		cid := c.ID
		item := "community:" + string(cid)

		events, err := call(ctx, r, func(ctx context.Context) ([]Event, error) {
			return r.store.ListEvents(ctx, EventFilter{CommunityID: &cid, Status: &active})
		})
		if err != nil {
			report.fail(newFailure(StageReconcile, item, ReadError("list events", err)))
			continue
		}
		if len(events) == 0 {
			continue
		}
		contributors, err := call(ctx, r, func(ctx context.Context) ([]Contributor, error) {
			return r.store.ListContributors(ctx, ContributorFilter{CommunityID: &cid})
		})
		if err != nil {
			report.fail(newFailure(StageReconcile, item, ReadError("list contributors", err)))
			continue
		}

		res := Reconcile(c, members, events, contributors)
		report.ContributorsSkipped += res.Skipped

		for _, added := range res.Added {
			now := r.now().UTC()
			added.ID = ContributorID(uuid.NewString())
			added.CreatedAt, added.UpdatedAt = now, now

			err := exec(ctx, r, func(ctx context.Context) error { return r.store.InsertContributor(ctx, added) })
			switch {
			case IsConflict(err):
				report.ContributorsSkipped++
			case err != nil:
				report.fail(newFailure(StageReconcile, pairItem(added), WriteError("insert contributor", err)))
			default:
				report.ContributorsAdded++
			}
		}

		for _, upd := range res.Updated {
			err := exec(ctx, r, func(ctx context.Context) error {
				return r.store.UpdateContributorContact(ctx, upd, r.now().UTC())
			})
			if IsConflict(err) {
				report.ContributorsSkipped++
				continue
			}
			if err != nil {
				report.fail(newFailure(StageReconcile, pairItem(upd), WriteError("update contributor", err)))
				continue
			}
			report.ContributorsUpdated++
		}
	}
}

func (r *Runner) notify(ctx context.Context, report *RunReport, communities []Community, members []Member, opts SelectOptions) {
	active := EventActive
	pending := PaymentPending
	var reminders []Reminder

	for _, c := range communities {
		if !c.IsActive() {
			continue
		}
		cid := c.ID
		item := "community:" + string(cid)

		events, err := call(ctx, r, func(ctx context.Context) ([]Event, error) {
			return r.store.ListEvents(ctx, EventFilter{CommunityID: &cid, Status: &active})
		})
		if err != nil {
			report.fail(newFailure(StageNotify, item, ReadError("list events", err)))
			continue
		}
		if len(events) == 0 {
			continue
		}
		contributors, err := call(ctx, r, func(ctx context.Context) ([]Contributor, error) {
			return r.store.ListContributors(ctx, ContributorFilter{CommunityID: &cid, Status: &pending})
		})
		if err != nil {
			report.fail(newFailure(StageNotify, item, ReadError("list contributors", err)))
			continue
		}

		byID := make(map[EventID]Event, len(events))
		for _, e := range events {
			byID[e.ID] = e
		}
		for _, contributor := range SelectForNotification(contributors, opts) {
			e, ok := byID[contributor.EventID]
			if !ok {
				continue
			}
			days := DaysBetween(report.Today, e.OccurrenceDate)
			if days < 0 {
				// Birthday already passed; events are not auto-closed but
				// nobody should get a reminder for it.
				continue
			}
			reminders = append(reminders, Reminder{
				Contributor:  contributor,
				Event:        e,
				Community:    c,
				PaymentAlias: paymentAlias(c, e, members),
				DaysUntil:    days,
			})
		}
	}

	if len(reminders) == 0 {
		return
	}

	d := &Dispatcher{
		Sender:    r.sender,
		Marker:    r.store,
		BatchSize: r.cfg.BatchSize,
		Timeout:   r.cfg.OperationTimeout,
		Now:       func() time.Time { return r.now().UTC() },
		Logger:    r.logger,
	}
	res := d.Dispatch(ctx, reminders)
	report.EmailsSent += len(res.Sent)
	for _, f := range res.Failed {
		if isDeliveryFailure(f) {
			report.EmailsFailed++
		}
		report.fail(f)
	}
}

// paymentAlias is where contributors transfer to: the community creator's
// alias, or the honoree family's alias when the creator has none.
func paymentAlias(c Community, e Event, members []Member) string {
	var honoree string
	for _, m := range members {
		if m.CommunityID != c.ID {
			continue
		}
		if m.Role == RoleCreator && m.PaymentAlias != "" {
			return m.PaymentAlias
		}
		if m.ID == e.HonoreeMemberID {
			honoree = m.PaymentAlias
		}
	}
	return honoree
}

func isDeliveryFailure(f Failure) bool {
	_, ok := f.Err.(*DeliveryError)
	return ok
}

func pairItem(c Contributor) string {
	return "event:" + string(c.EventID) + "/" + string(c.Key().Identity)
}

// =============================================================================
// TIMEOUT HELPERS
// =============================================================================

func call[T any](ctx context.Context, r *Runner, fn func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()
	return fn(opCtx)
}

func exec(ctx context.Context, r *Runner, fn func(context.Context) error) error {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()
	return fn(opCtx)
}

func (r *Runner) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.OperationTimeout)
}
