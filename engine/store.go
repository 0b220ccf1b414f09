/*
store.go - Persistence interface for communities, members, events and contributors

PURPOSE:
  Defines the interface between the engine and the database. The engine
  treats the store as table-like collections with equality filters and
  insert-with-conflict semantics; nothing here assumes a particular driver.

KEY INTERFACES:
  CommunityStore:   Communities and their members
  EventStore:       Active events
  ContributorStore: Contributor roster, notification flags, payments
  RunStore:         History of pipeline runs
  Store:            All of the above

CONFLICT CONTRACT:
  CreateEvent and InsertContributor enforce the uniqueness invariants at
  the database level and return ErrDuplicateEvent / ErrDuplicateContributor
  when a row with the same key already exists. Two overlapping runs can
  both decide to insert the same contributor; the loser gets a conflict
  and the runner treats it as a no-op.

NOT FOUND:
  Get* methods return (nil, nil) when the row does not exist, mutations on
  a missing row return the matching Err*NotFound sentinel.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory, for tests and demos
  - store/sqlite/sqlite.go: SQLite, for local runs
  - store/postgres/postgres.go: PostgreSQL through pgx, for production

SEE ALSO:
  - runner.go: the only writer during scheduled runs
  - errors.go: sentinel errors returned here
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS - Equality filters, nil means "any"
// =============================================================================

type MemberFilter struct {
	CommunityID *CommunityID
}

type EventFilter struct {
	CommunityID *CommunityID
	Status      *EventStatus
}

type ContributorFilter struct {
	EventID     *EventID
	CommunityID *CommunityID
	Status      *PaymentStatus
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// CommunityStore persists communities and memberships.
type CommunityStore interface {
	ListCommunities(ctx context.Context) ([]Community, error)
	GetCommunity(ctx context.Context, id CommunityID) (*Community, error)

	// CreateCommunity inserts a community. ErrDuplicateCommunity if the ID exists.
	CreateCommunity(ctx context.Context, c Community) error

	// CreateCommunityWithCreator inserts a community and its creator member
	// atomically; the creator counts towards member_count.
	CreateCommunityWithCreator(ctx context.Context, c Community, creator Member) error

	// SetCommunityStatus toggles active/inactive.
	SetCommunityStatus(ctx context.Context, id CommunityID, status CommunityStatus) error

	// ListMembers returns members ordered by created_at, then ID.
	ListMembers(ctx context.Context, filter MemberFilter) ([]Member, error)
	GetMember(ctx context.Context, id MemberID) (*Member, error)

	// AddMember inserts a member and increments the community's member count
	// atomically. ErrDuplicateMember if the member ID exists.
	AddMember(ctx context.Context, m Member) error

	// UpdateMember rewrites a member's profile fields (not community or role).
	UpdateMember(ctx context.Context, m Member) error
}

// EventStore persists active events.
type EventStore interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	GetEvent(ctx context.Context, id EventID) (*Event, error)

	// CreateEvent inserts an event. ErrDuplicateEvent if the
	// (community, honoree, year) key exists.
	CreateEvent(ctx context.Context, e Event) error

	SetEventStatus(ctx context.Context, id EventID, status EventStatus) error
}

// ContributorStore persists the contributor roster.
type ContributorStore interface {
	ListContributors(ctx context.Context, filter ContributorFilter) ([]Contributor, error)
	GetContributor(ctx context.Context, id ContributorID) (*Contributor, error)

	// InsertContributor inserts a contributor. ErrDuplicateContributor if
	// the (event, identity) key exists.
	InsertContributor(ctx context.Context, c Contributor) error

	// UpdateContributorContact rewrites name, phone, email and identity of
	// the row with c.ID; payment and notification fields are untouched.
	// ErrDuplicateContributor if the new identity is taken on that event.
	UpdateContributorContact(ctx context.Context, c Contributor, at time.Time) error

	// MarkEmailNotified sets the email-notified flag and timestamp.
	MarkEmailNotified(ctx context.Context, id ContributorID, at time.Time) error

	// ResetNotification clears both notified flags so a later run resends.
	ResetNotification(ctx context.Context, id ContributorID, at time.Time) error

	// ConfirmPayment marks the contributor paid and adds the amount to the
	// parent event's collected total in one transaction. ErrAlreadyPaid if
	// the contributor is already paid.
	ConfirmPayment(ctx context.Context, p PaymentConfirmation) error
}

// RunRecord is one pipeline run as kept in the run history.
type RunRecord struct {
	ID      string
	Trigger string // "schedule", "manual", "startup", "cli"
	Status  string // "completed", "failed"
	Error   string
	Report  RunReport
}

// RunStore keeps the history of pipeline runs.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Store is the full persistence surface used by the runner and the API.
type Store interface {
	CommunityStore
	EventStore
	ContributorStore
	RunStore
}
