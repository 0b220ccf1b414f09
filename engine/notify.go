/*
notify.go - Notification Dispatch Policy

PURPOSE:
  Picks the contributors that still need the reminder email and sends it,
  flipping the email-notified flag once per successful send.

ELIGIBILITY:
  status == pending AND email_notified == false AND email != ""
  IncludeNotified drops the second condition for an explicit resend.

DELIVERY CONTRACT:
  - Send succeeded  -> MarkEmailNotified(now), item in Sent
  - Send failed     -> flag untouched, item in Failed (a later run retries)
  - Mark failed     -> item in Sent with Marked=false and a failure; the
                       next run will email again (at-least-once)
  Each contributor is attempted once per Dispatch call. There is no
  retry or backoff here; re-invoking is the caller's decision.

CONCURRENCY:
  Sends fan out through an errgroup limited to BatchSize. Items are
  independent: a failing item never cancels its siblings.

SEE ALSO:
  - mail/: Sender implementations
  - runner.go: builds Reminders from the store
*/
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// SENDER - Outbound email capability
// =============================================================================

// Email is one outbound message.
type Email struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// DeliveryReceipt is what the provider returns for an accepted message.
type DeliveryReceipt struct {
	MessageID  string
	AcceptedAt time.Time
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, msg Email) (DeliveryReceipt, error)
}

// NotificationMarker persists the notified flag.
type NotificationMarker interface {
	MarkEmailNotified(ctx context.Context, id ContributorID, at time.Time) error
}

// =============================================================================
// SELECTION
// =============================================================================

type SelectOptions struct {
	// IncludeNotified re-selects contributors already emailed.
	IncludeNotified bool
}

// SelectForNotification filters contributors down to those eligible for the
// reminder email.
func SelectForNotification(contributors []Contributor, opts SelectOptions) []Contributor {
	var eligible []Contributor
	for _, c := range contributors {
		if !c.IsPending() {
			continue
		}
		if c.EmailNotified && !opts.IncludeNotified {
			continue
		}
		if strings.TrimSpace(c.Email) == "" {
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

// =============================================================================
// MESSAGE
// =============================================================================

// Reminder is one contributor together with what its email talks about.
type Reminder struct {
	Contributor  Contributor
	Event        Event
	Community    Community
	PaymentAlias string
	DaysUntil    int
}

// ComposeReminder builds the reminder email for one contributor.
func ComposeReminder(r Reminder) Email {
	subject := fmt.Sprintf("Cumpleaños de %s: %s", r.Event.HonoreeName, daysPhrase(r.DaysUntil))

	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", r.Contributor.Name)
	fmt.Fprintf(&b, "Se acerca el cumpleaños de %s, el %s (%s).\n",
		r.Event.HonoreeName, HumanDate(r.Event.OccurrenceDate), daysPhrase(r.DaysUntil))
	fmt.Fprintf(&b, "La comunidad %s está juntando para el regalo.\n\n", r.Community.Name)
	fmt.Fprintf(&b, "Tu aporte: $%s\n", r.Contributor.Amount.StringFixed(2))
	if r.PaymentAlias != "" {
		fmt.Fprintf(&b, "Alias para transferir: %s\n", r.PaymentAlias)
	}
	b.WriteString("\nCuando transfieras, avisale al organizador para que registre tu pago.\n\n")
	b.WriteString("Hey Jack\n")

	return Email{
		To:      strings.TrimSpace(r.Contributor.Email),
		ToName:  r.Contributor.Name,
		Subject: subject,
		Body:    b.String(),
	}
}

func daysPhrase(n int) string {
	switch {
	case n <= 0:
		return "es hoy"
	case n == 1:
		return "falta 1 día"
	default:
		return fmt.Sprintf("faltan %d días", n)
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

// DefaultBatchSize bounds concurrent sends.
const DefaultBatchSize = 3

// SentEmail is a successful delivery.
type SentEmail struct {
	ContributorID ContributorID
	Email         string
	Receipt       DeliveryReceipt
	NotifiedAt    time.Time
	Marked        bool
}

type DispatchResult struct {
	Sent   []SentEmail
	Failed []Failure
}

// Dispatcher sends reminders and records the notified flag.
type Dispatcher struct {
	Sender    Sender
	Marker    NotificationMarker
	BatchSize int
	Timeout   time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
}

type dispatchOutcome struct {
	sent    *SentEmail
	failure *Failure
	markErr *Failure
}

// Dispatch attempts every reminder once. Results come back in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, reminders []Reminder) DispatchResult {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := d.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	outcomes := make([]dispatchOutcome, len(reminders))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, r := range reminders {
		i, r := i, r
		g.Go(func() error {
			outcomes[i] = d.dispatchOne(ctx, r, logger)
			return nil
		})
	}
	_ = g.Wait()

	var result DispatchResult
	for _, o := range outcomes {
		if o.sent != nil {
			result.Sent = append(result.Sent, *o.sent)
		}
		if o.failure != nil {
			result.Failed = append(result.Failed, *o.failure)
		}
		if o.markErr != nil {
			result.Failed = append(result.Failed, *o.markErr)
		}
	}
	return result
}

func (d *Dispatcher) dispatchOne(ctx context.Context, r Reminder, logger *zap.Logger) dispatchOutcome {
	c := r.Contributor
	item := contributorItem(c.ID)
	msg := ComposeReminder(r)

	sendCtx, cancel := d.withTimeout(ctx)
	receipt, err := d.Sender.Send(sendCtx, msg)
	cancel()
	if err != nil {
		derr := &DeliveryError{ContributorID: c.ID, Email: msg.To, Err: err}
		logger.Warn("reminder delivery failed",
			zap.String("contributor_id", string(c.ID)), zap.String("event_id", string(c.EventID)), zap.Error(err))
		f := newFailure(StageNotify, item, derr)
		return dispatchOutcome{failure: &f}
	}

	at := d.now()
	sent := &SentEmail{ContributorID: c.ID, Email: msg.To, Receipt: receipt, NotifiedAt: at}

	markCtx, cancel := d.withTimeout(ctx)
	err = d.Marker.MarkEmailNotified(markCtx, c.ID, at)
	cancel()
	if err != nil {
		logger.Error("reminder sent but notified flag not stored",
			zap.String("contributor_id", string(c.ID)), zap.Error(err))
		f := newFailure(StageNotify, item, WriteError("mark email notified", err))
		return dispatchOutcome{sent: sent, markErr: &f}
	}

	sent.Marked = true
	logger.Debug("reminder sent", zap.String("contributor_id", string(c.ID)), zap.String("message_id", receipt.MessageID))
	return dispatchOutcome{sent: sent}
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func contributorItem(id ContributorID) string { return "contributor:" + string(id) }
