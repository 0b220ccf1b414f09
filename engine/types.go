/*
Package engine provides the gift-pool core: birthday recurrence, event
activation, contributor reconciliation and notification dispatch.

PURPOSE:
  A parent community (a classroom, a daycare group) pools money for each
  child's birthday gift. The engine decides when a birthday becomes an
  active fundraising event, keeps the per-event contributor roster in
  sync with the member roster, and picks who still needs an email.

KEY CONCEPTS IN THIS FILE (types.go):
  - Community: the organising group, owner of members and events
  - Member: a parent profile attached to one community
  - Event: one fundraising cycle for one child's upcoming birthday
  - Contributor: a per-(event, member identity) obligation record
  - Identity: how a member is recognised across records (email first)

DESIGN PRINCIPLES:
  1. Pure planning: Activation and Reconcile compute writes, Runner applies them
  2. Precision: every amount is a decimal.Decimal, never a float
  3. Uniqueness: (event, identity) is the source of truth for contributors
  4. Batch tolerance: one bad record never aborts a run

SEE ALSO:
  - time.go: Day and MonthDay, next occurrence arithmetic
  - activation.go: Event Activation Rule
  - reconcile.go: Contributor Reconciliation Engine
  - notify.go: Notification Dispatch Policy
  - runner.go: The pipeline that wires all of them to a Store
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CommunityID string
type MemberID string
type EventID string
type ContributorID string

// Identity is the resolved identity of a member: "email:<lowercased email>"
// when an email is present, "id:<member id>" otherwise. Display names are
// never used because they collide.
type Identity string

const (
	identityEmailPrefix = "email:"
	identityIDPrefix    = "id:"
)

// IdentityFor resolves the identity for an email, falling back to the member ID.
func IdentityFor(email string, memberID MemberID) Identity {
	if e := NormalizeEmail(email); e != "" {
		return Identity(identityEmailPrefix + e)
	}
	return Identity(identityIDPrefix + string(memberID))
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// COMMUNITY
// =============================================================================

type CommunityStatus string

const (
	CommunityActive   CommunityStatus = "active"
	CommunityInactive CommunityStatus = "inactive"
)

// Community is an organising group such as a classroom.
type Community struct {
	ID           CommunityID
	Name         string
	Institution  string
	Grade        string
	Section      string
	CreatorName  string
	CreatorEmail string
	CreatorPhone string

	// MemberCount is denormalised: incremented every time a member joins.
	MemberCount     int
	PerMemberAmount decimal.Decimal
	Status          CommunityStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (c Community) IsActive() bool { return c.Status == CommunityActive }

// =============================================================================
// MEMBER
// =============================================================================

type Role string

const (
	RoleCreator Role = "creator"
	RoleMember  Role = "member"
)

// Member is a parent/guardian profile attached to a community.
type Member struct {
	ID           MemberID
	CommunityID  CommunityID
	Name         string
	Phone        string
	Email        string
	PaymentAlias string
	ChildName    string

	// ChildBirthDate is kept as stored; only month and day matter.
	// It is parsed on every run so malformed rows surface as InvalidDateError.
	ChildBirthDate string

	Role      Role
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m Member) Identity() Identity { return IdentityFor(m.Email, m.ID) }

// =============================================================================
// EVENT
// =============================================================================

type EventStatus string

const (
	EventActive EventStatus = "active"
	EventClosed EventStatus = "closed"
)

// Event is a materialised fundraising cycle for one child's birthday.
// At most one exists per (community, honoree member, occurrence year).
type Event struct {
	ID              EventID
	CommunityID     CommunityID
	HonoreeMemberID MemberID
	HonoreeIdentity Identity
	HonoreeName     string // the child being celebrated
	OccurrenceDate  Day
	Status          EventStatus

	// Collected is only mutated by payment confirmations.
	Collected  decimal.Decimal
	Target     decimal.Decimal
	RosterSize int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (e Event) IsActive() bool { return e.Status == EventActive }

// Key returns the uniqueness key of the event.
func (e Event) Key() EventKey {
	return EventKey{CommunityID: e.CommunityID, HonoreeMemberID: e.HonoreeMemberID, Year: e.OccurrenceDate.Year()}
}

// EventKey identifies an event independently of its generated ID.
type EventKey struct {
	CommunityID     CommunityID
	HonoreeMemberID MemberID
	Year            int
}

// =============================================================================
// CONTRIBUTOR
// =============================================================================

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Contributor is a per-(event, member identity) obligation.
type Contributor struct {
	ID          ContributorID
	EventID     EventID
	CommunityID CommunityID
	MemberID    MemberID
	Identity    Identity

	// Denormalised from Member, kept in sync by Reconcile.
	Name  string
	Phone string
	Email string

	Amount           decimal.Decimal
	Status           PaymentStatus
	AmountPaid       decimal.Decimal
	PaymentMethod    string
	PaymentReference string

	EmailNotified      bool
	EmailNotifiedAt    *time.Time
	WhatsappNotified   bool
	WhatsappNotifiedAt *time.Time

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the (event, identity) uniqueness key. Rows written before the
// identity column existed derive it from their email or member ID.
func (c Contributor) Key() ContributorKey {
	id := c.Identity
	if id == "" {
		id = IdentityFor(c.Email, c.MemberID)
	}
	return ContributorKey{EventID: c.EventID, Identity: id}
}

func (c Contributor) IsPending() bool { return c.Status == PaymentPending }

// ContributorKey is the uniqueness key of a contributor.
type ContributorKey struct {
	EventID  EventID
	Identity Identity
}

// PaymentConfirmation records a manually confirmed payment.
type PaymentConfirmation struct {
	ContributorID ContributorID
	Amount        decimal.Decimal
	Method        string
	Reference     string
	Notes         string
	ConfirmedAt   time.Time
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// TargetAmount is what an event aims to collect: every member but the honoree
// owes one per-member share.
func TargetAmount(memberCount int, perMember decimal.Decimal) decimal.Decimal {
	payers := memberCount - 1
	if payers < 0 {
		payers = 0
	}
	return perMember.Mul(decimal.NewFromInt(int64(payers)))
}

// CollectedFrom sums what paid contributors actually paid. The event's stored
// Collected total is derived from payments and can be audited against this.
func CollectedFrom(contributors []Contributor) decimal.Decimal {
	total := decimal.Zero
	for _, c := range contributors {
		if c.Status == PaymentPaid {
			total = total.Add(c.AmountPaid)
		}
	}
	return total
}
