/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  validate.Struct before touching the store. Amounts travel as decimal
  strings ("5000", "5000.50") and are parsed with shopspring/decimal.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/community.go: turns requests into engine records
*/
package api

import (
	"time"

	"github.com/heyjack/giftpool/engine"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// MemberRequest is a parent's join form.
type MemberRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Phone          string `json:"phone" validate:"omitempty,max=30"`
	Email          string `json:"email" validate:"omitempty,email,max=254"`
	PaymentAlias   string `json:"payment_alias" validate:"omitempty,max=60"`
	ChildName      string `json:"child_name" validate:"omitempty,max=120"`
	ChildBirthDate string `json:"child_birth_date" validate:"required"`
	Amount         string `json:"amount" validate:"omitempty,numeric"`
}

// UpdateMemberRequest edits a member profile. Omitted fields are kept;
// contributor rows pick up contact changes on the next run.
type UpdateMemberRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone          *string `json:"phone" validate:"omitempty,max=30"`
	Email          *string `json:"email" validate:"omitempty,email,max=254"`
	PaymentAlias   *string `json:"payment_alias" validate:"omitempty,max=60"`
	ChildName      *string `json:"child_name" validate:"omitempty,max=120"`
	ChildBirthDate *string `json:"child_birth_date" validate:"omitempty,min=1"`
}

// CreateCommunityRequest opens a community with its creator as first member.
type CreateCommunityRequest struct {
	Name            string        `json:"name" validate:"required,max=120"`
	Institution     string        `json:"institution" validate:"omitempty,max=120"`
	Grade           string        `json:"grade" validate:"omitempty,max=30"`
	Section         string        `json:"section" validate:"omitempty,max=30"`
	PerMemberAmount string        `json:"per_member_amount" validate:"required,numeric"`
	Creator         MemberRequest `json:"creator"`
}

type SetCommunityStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// ConfirmPaymentRequest records a payment confirmed by the organiser.
// Amount defaults to what the contributor owes.
type ConfirmPaymentRequest struct {
	Amount    string `json:"amount" validate:"omitempty,numeric"`
	Method    string `json:"method" validate:"required,oneof=transfer cash mercadopago other"`
	Reference string `json:"reference" validate:"omitempty,max=120"`
	Notes     string `json:"notes" validate:"omitempty,max=500"`
}

type TriggerRunRequest struct {
	SkipNotify     bool `json:"skip_notify"`
	ResendNotified bool `json:"resend_notified"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type CommunityDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Institution     string `json:"institution,omitempty"`
	Grade           string `json:"grade,omitempty"`
	Section         string `json:"section,omitempty"`
	CreatorName     string `json:"creator_name"`
	CreatorEmail    string `json:"creator_email,omitempty"`
	MemberCount     int    `json:"member_count"`
	PerMemberAmount string `json:"per_member_amount"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

type MemberDTO struct {
	ID             string `json:"id"`
	CommunityID    string `json:"community_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	PaymentAlias   string `json:"payment_alias,omitempty"`
	ChildName      string `json:"child_name,omitempty"`
	ChildBirthDate string `json:"child_birth_date"`
	Role           string `json:"role"`
	Amount         string `json:"amount"`
	JoinedAt       string `json:"joined_at"`
}

type EventDTO struct {
	ID              string `json:"id"`
	CommunityID     string `json:"community_id"`
	HonoreeMemberID string `json:"honoree_member_id"`
	HonoreeName     string `json:"honoree_name"`
	OccurrenceDate  string `json:"occurrence_date"`
	OccurrenceLabel string `json:"occurrence_label"`
	Status          string `json:"status"`
	Collected       string `json:"collected"`
	Target          string `json:"target"`
	RosterSize      int    `json:"roster_size"`

	// CollectedFromPayments is the sum of confirmed payments, reported when
	// an event is closed.
	CollectedFromPayments string `json:"collected_from_payments,omitempty"`
}

type ContributorDTO struct {
	ID               string  `json:"id"`
	EventID          string  `json:"event_id"`
	MemberID         string  `json:"member_id"`
	Name             string  `json:"name"`
	Email            string  `json:"email,omitempty"`
	Phone            string  `json:"phone,omitempty"`
	Amount           string  `json:"amount"`
	Status           string  `json:"status"`
	AmountPaid       string  `json:"amount_paid"`
	PaymentMethod    string  `json:"payment_method,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`
	EmailNotified    bool    `json:"email_notified"`
	EmailNotifiedAt  *string `json:"email_notified_at,omitempty"`
	Notes            string  `json:"notes,omitempty"`
}

type FailureDTO struct {
	Stage     string `json:"stage"`
	Item      string `json:"item"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

type RunDTO struct {
	ID                  string       `json:"id"`
	Trigger             string       `json:"trigger"`
	Status              string       `json:"status"`
	Error               string       `json:"error,omitempty"`
	Today               string       `json:"today"`
	StartedAt           string       `json:"started_at"`
	FinishedAt          string       `json:"finished_at"`
	EventsCreated       int          `json:"events_created"`
	EventsAlreadyActive int          `json:"events_already_active"`
	ContributorsAdded   int          `json:"contributors_added"`
	ContributorsUpdated int          `json:"contributors_updated"`
	ContributorsSkipped int          `json:"contributors_skipped"`
	EmailsSent          int          `json:"emails_sent"`
	EmailsFailed        int          `json:"emails_failed"`
	Failures            []FailureDTO `json:"failures"`
}

type CreateCommunityResponse struct {
	Community CommunityDTO `json:"community"`
	Creator   MemberDTO    `json:"creator"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	RunInProgress bool   `json:"run_in_progress"`
	NextRun       string `json:"next_run,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCommunityDTO(c engine.Community) CommunityDTO {
	return CommunityDTO{
		ID:              string(c.ID),
		Name:            c.Name,
		Institution:     c.Institution,
		Grade:           c.Grade,
		Section:         c.Section,
		CreatorName:     c.CreatorName,
		CreatorEmail:    c.CreatorEmail,
		MemberCount:     c.MemberCount,
		PerMemberAmount: c.PerMemberAmount.StringFixed(2),
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
}

func toMemberDTO(m engine.Member) MemberDTO {
	return MemberDTO{
		ID:             string(m.ID),
		CommunityID:    string(m.CommunityID),
		Name:           m.Name,
		Phone:          m.Phone,
		Email:          m.Email,
		PaymentAlias:   m.PaymentAlias,
		ChildName:      m.ChildName,
		ChildBirthDate: m.ChildBirthDate,
		Role:           string(m.Role),
		Amount:         m.Amount.StringFixed(2),
		JoinedAt:       m.CreatedAt.Format(time.RFC3339),
	}
}

func toEventDTO(e engine.Event) EventDTO {
	return EventDTO{
		ID:              string(e.ID),
		CommunityID:     string(e.CommunityID),
		HonoreeMemberID: string(e.HonoreeMemberID),
		HonoreeName:     e.HonoreeName,
		OccurrenceDate:  e.OccurrenceDate.String(),
		OccurrenceLabel: engine.HumanDate(e.OccurrenceDate),
		Status:          string(e.Status),
		Collected:       e.Collected.StringFixed(2),
		Target:          e.Target.StringFixed(2),
		RosterSize:      e.RosterSize,
	}
}

func toContributorDTO(c engine.Contributor) ContributorDTO {
	dto := ContributorDTO{
		ID:               string(c.ID),
		EventID:          string(c.EventID),
		MemberID:         string(c.MemberID),
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		Amount:           c.Amount.StringFixed(2),
		Status:           string(c.Status),
		AmountPaid:       c.AmountPaid.StringFixed(2),
		PaymentMethod:    c.PaymentMethod,
		PaymentReference: c.PaymentReference,
		EmailNotified:    c.EmailNotified,
		Notes:            c.Notes,
	}
	if c.EmailNotifiedAt != nil {
		s := c.EmailNotifiedAt.Format(time.RFC3339)
		dto.EmailNotifiedAt = &s
	}
	return dto
}

// NewRunDTO converts a run record for the API and the -once report.
func NewRunDTO(run engine.RunRecord) RunDTO {
	r := run.Report
	dto := RunDTO{
		ID:                  run.ID,
		Trigger:             run.Trigger,
		Status:              run.Status,
		Error:               run.Error,
		Today:               r.Today.String(),
		StartedAt:           r.StartedAt.Format(time.RFC3339),
		FinishedAt:          r.FinishedAt.Format(time.RFC3339),
		EventsCreated:       r.EventsCreated,
		EventsAlreadyActive: r.EventsAlreadyActive,
		ContributorsAdded:   r.ContributorsAdded,
		ContributorsUpdated: r.ContributorsUpdated,
		ContributorsSkipped: r.ContributorsSkipped,
		EmailsSent:          r.EmailsSent,
		EmailsFailed:        r.EmailsFailed,
		Failures:            make([]FailureDTO, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{
			Stage:     string(f.Stage),
			Item:      f.Item,
			Reason:    f.Reason,
			Retryable: f.Retryable,
		})
	}
	return dto
}
