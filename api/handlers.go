/*
handlers.go - HTTP API handlers for the gift-pool engine

PURPOSE:
  Exposes communities, members, events, contributors and runs via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  factory, the store and the scheduler.

ENDPOINTS:
  Communities:
    GET    /api/communities                 List communities
    POST   /api/communities                 Create community (creator joins as first member)
    GET    /api/communities/{id}            Get community
    POST   /api/communities/{id}/status     Activate / deactivate
    GET    /api/communities/{id}/members    List members
    POST   /api/communities/{id}/members    Join
    PATCH  /api/communities/{id}/members/{memberID}  Edit a member profile
    GET    /api/communities/{id}/events     List events (?status=active|closed)

  Events & contributors:
    POST   /api/events/{id}/close                      Close an event
    GET    /api/events/{id}/contributors               Contributor roster
    POST   /api/contributors/{id}/payment              Confirm a payment
    POST   /api/contributors/{id}/notification/reset   Clear notified flags

  Runs:
    POST   /api/runs         Trigger a run now
    GET    /api/runs/last    Most recent run

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Factory: request to record conversion
  - Scheduler: single-flight runs and run history

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate, already paid, run in progress)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heyjack/giftpool/engine"
	"github.com/heyjack/giftpool/factory"
)

// Store is what the API needs from persistence: the engine store plus a
// reset for demo scenarios.
type Store interface {
	engine.Store
	Reset(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Factory   *factory.CommunityFactory
	Scheduler *Scheduler
	Logger    *zap.Logger

	// Today is the calendar day scenarios are built around. It should
	// agree with the runner's clock and timezone.
	Today func() engine.Day

	validate *validator.Validate

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store Store, scheduler *Scheduler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Factory:   factory.NewCommunityFactory(),
		Scheduler: scheduler,
		Logger:    logger,
		Today:     func() engine.Day { return engine.Today(time.UTC) },
		validate:  validator.New(),
	}
}

// =============================================================================
// COMMUNITIES
// =============================================================================

// ListCommunities returns all communities.
func (h *Handler) ListCommunities(w http.ResponseWriter, r *http.Request) {
	communities, err := h.Store.ListCommunities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list communities", err)
		return
	}

	dtos := make([]CommunityDTO, len(communities))
	for i, c := range communities {
		dtos[i] = toCommunityDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCommunity opens a community and joins its creator.
func (h *Handler) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req CreateCommunityRequest
	if !h.decode(w, r, &req) {
		return
	}

	perMember, err := decimal.NewFromString(req.PerMemberAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid per_member_amount", err)
		return
	}
	creatorIn, err := memberInput(req.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid creator amount", err)
		return
	}

	community, creator, err := h.Factory.NewCommunity(factory.CommunityInput{
		Name:            req.Name,
		Institution:     req.Institution,
		Grade:           req.Grade,
		Section:         req.Section,
		PerMemberAmount: perMember,
		Creator:         creatorIn,
	})
	if err != nil {
		writeError(w, statusFor(err), "Invalid community", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.CreateCommunityWithCreator(ctx, community, creator); err != nil {
		writeError(w, statusFor(err), "Failed to create community", err)
		return
	}

	created, err := h.Store.GetCommunity(ctx, community.ID)
	if err != nil || created == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload community", err)
		return
	}

	h.Logger.Info("community created",
		zap.String("community_id", string(created.ID)),
		zap.String("creator_id", string(creator.ID)))
	writeJSON(w, http.StatusCreated, CreateCommunityResponse{
		Community: toCommunityDTO(*created),
		Creator:   toMemberDTO(creator),
	})
}

// GetCommunity returns one community.
func (h *Handler) GetCommunity(w http.ResponseWriter, r *http.Request) {
	community, ok := h.community(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCommunityDTO(*community))
}

// SetCommunityStatus activates or deactivates a community. Inactive
// communities get no new events and refuse joins.
func (h *Handler) SetCommunityStatus(w http.ResponseWriter, r *http.Request) {
	id := engine.CommunityID(chi.URLParam(r, "id"))

	var req SetCommunityStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := h.Store.SetCommunityStatus(ctx, id, engine.CommunityStatus(req.Status)); err != nil {
		writeError(w, statusFor(err), "Failed to update community status", err)
		return
	}
	community, err := h.Store.GetCommunity(ctx, id)
	if err != nil || community == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload community", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommunityDTO(*community))
}

// =============================================================================
// MEMBERS
// =============================================================================

// ListMembers returns the members of a community in join order.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	community, ok := h.community(w, r)
	if !ok {
		return
	}

	members, err := h.Store.ListMembers(r.Context(), engine.MemberFilter{CommunityID: &community.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddMember joins a parent to a community.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	community, ok := h.community(w, r)
	if !ok {
		return
	}

	var req MemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := memberInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	member, err := h.Factory.NewMember(*community, in)
	if err != nil {
		writeError(w, statusFor(err), "Invalid member", err)
		return
	}
	if err := h.Store.AddMember(r.Context(), member); err != nil {
		writeError(w, statusFor(err), "Failed to add member", err)
		return
	}

	h.Logger.Info("member joined",
		zap.String("community_id", string(community.ID)),
		zap.String("member_id", string(member.ID)))
	writeJSON(w, http.StatusCreated, toMemberDTO(member))
}

// UpdateMember edits a member profile. Contributor rows are not touched
// here; the next run reconciles them.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	community, ok := h.community(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	id := engine.MemberID(chi.URLParam(r, "memberID"))
	member, err := h.Store.GetMember(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if member == nil || member.CommunityID != community.ID {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}

	var req UpdateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.Factory.UpdateMember(*member, factory.MemberUpdate{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		PaymentAlias:   req.PaymentAlias,
		ChildName:      req.ChildName,
		ChildBirthDate: req.ChildBirthDate,
	})
	if err != nil {
		writeError(w, statusFor(err), "Invalid member", err)
		return
	}
	if err := h.Store.UpdateMember(ctx, updated); err != nil {
		writeError(w, statusFor(err), "Failed to update member", err)
		return
	}

	h.Logger.Info("member updated",
		zap.String("community_id", string(community.ID)),
		zap.String("member_id", string(updated.ID)))
	writeJSON(w, http.StatusOK, toMemberDTO(updated))
}

// =============================================================================
// EVENTS & CONTRIBUTORS
// =============================================================================

// ListEvents returns the events of a community, optionally filtered by status.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	community, ok := h.community(w, r)
	if !ok {
		return
	}

	filter := engine.EventFilter{CommunityID: &community.ID}
	if s := r.URL.Query().Get("status"); s != "" {
		status := engine.EventStatus(s)
		if status != engine.EventActive && status != engine.EventClosed {
			writeError(w, http.StatusBadRequest, "Invalid status (use active or closed)", nil)
			return
		}
		filter.Status = &status
	}

	events, err := h.Store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CloseEvent closes an event. Closed events drop out of reconciliation
// and notification.
func (h *Handler) CloseEvent(w http.ResponseWriter, r *http.Request) {
	id := engine.EventID(chi.URLParam(r, "id"))
	ctx := r.Context()

	if err := h.Store.SetEventStatus(ctx, id, engine.EventClosed); err != nil {
		writeError(w, statusFor(err), "Failed to close event", err)
		return
	}
	event, err := h.Store.GetEvent(ctx, id)
	if err != nil || event == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload event", err)
		return
	}

	contributors, err := h.Store.ListContributors(ctx, engine.ContributorFilter{EventID: &id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contributors", err)
		return
	}
	paid := engine.CollectedFrom(contributors)
	if !paid.Equal(event.Collected) {
		h.Logger.Warn("event total differs from confirmed payments",
			zap.String("event_id", string(id)),
			zap.String("collected", event.Collected.StringFixed(2)),
			zap.String("collected_from_payments", paid.StringFixed(2)))
	}

	h.Logger.Info("event closed", zap.String("event_id", string(id)))
	dto := toEventDTO(*event)
	dto.CollectedFromPayments = paid.StringFixed(2)
	writeJSON(w, http.StatusOK, dto)
}

// ListContributors returns the contributor roster of an event.
func (h *Handler) ListContributors(w http.ResponseWriter, r *http.Request) {
	id := engine.EventID(chi.URLParam(r, "id"))
	ctx := r.Context()

	event, err := h.Store.GetEvent(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get event", err)
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "Event not found", nil)
		return
	}

	contributors, err := h.Store.ListContributors(ctx, engine.ContributorFilter{EventID: &id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contributors", err)
		return
	}

	dtos := make([]ContributorDTO, len(contributors))
	for i, c := range contributors {
		dtos[i] = toContributorDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ConfirmPayment marks a contributor paid and credits the event.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id := engine.ContributorID(chi.URLParam(r, "id"))

	var req ConfirmPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	contributor, err := h.Store.GetContributor(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contributor", err)
		return
	}
	if contributor == nil {
		writeError(w, http.StatusNotFound, "Contributor not found", nil)
		return
	}

	amount := contributor.Amount
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
	}
	if !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	err = h.Store.ConfirmPayment(ctx, engine.PaymentConfirmation{
		ContributorID: id,
		Amount:        amount,
		Method:        req.Method,
		Reference:     req.Reference,
		Notes:         req.Notes,
		ConfirmedAt:   time.Now().UTC(),
	})
	if err != nil {
		writeError(w, statusFor(err), "Failed to confirm payment", err)
		return
	}

	updated, err := h.Store.GetContributor(ctx, id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload contributor", err)
		return
	}

	h.Logger.Info("payment confirmed",
		zap.String("contributor_id", string(id)),
		zap.String("event_id", string(updated.EventID)),
		zap.String("amount", amount.String()),
		zap.String("method", req.Method))
	writeJSON(w, http.StatusOK, toContributorDTO(*updated))
}

// ResetNotification clears a contributor's notified flags so the next run
// emails them again.
func (h *Handler) ResetNotification(w http.ResponseWriter, r *http.Request) {
	id := engine.ContributorID(chi.URLParam(r, "id"))
	ctx := r.Context()

	if err := h.Store.ResetNotification(ctx, id, time.Now().UTC()); err != nil {
		writeError(w, statusFor(err), "Failed to reset notification", err)
		return
	}
	contributor, err := h.Store.GetContributor(ctx, id)
	if err != nil || contributor == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload contributor", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributorDTO(*contributor))
}

// =============================================================================
// RUNS
// =============================================================================

// TriggerRun runs the pipeline now and returns its report. The body is optional.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.Scheduler.RunNow(r.Context(), TriggerManual, engine.RunOptions{
		SkipNotify:     req.SkipNotify,
		ResendNotified: req.ResendNotified,
	})
	if errors.Is(err, engine.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "A run is already in progress", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, NewRunDTO(*record))
}

// LastRun returns the most recent run, or null if nothing ran yet.
func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	record, err := h.Scheduler.Last(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get last run", err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, NewRunDTO(*record))
}

// Health reports liveness and scheduler state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.Scheduler != nil {
		resp.RunInProgress = h.Scheduler.Running()
		if next := h.Scheduler.NextRun(); !next.IsZero() {
			resp.NextRun = next.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

// community loads the {id} community, writing 404/500 itself on failure.
func (h *Handler) community(w http.ResponseWriter, r *http.Request) (*engine.Community, bool) {
	id := engine.CommunityID(chi.URLParam(r, "id"))
	community, err := h.Store.GetCommunity(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get community", err)
		return nil, false
	}
	if community == nil {
		writeError(w, http.StatusNotFound, "Community not found", nil)
		return nil, false
	}
	return community, true
}

// decode parses and validates a JSON body, writing 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func memberInput(req MemberRequest) (factory.MemberInput, error) {
	in := factory.MemberInput{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		PaymentAlias:   req.PaymentAlias,
		ChildName:      req.ChildName,
		ChildBirthDate: req.ChildBirthDate,
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return factory.MemberInput{}, fmt.Errorf("amount %q: %w", req.Amount, err)
		}
		in.Amount = amount
	}
	return in, nil
}

// statusFor maps engine and factory errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case engine.IsConflict(err), errors.Is(err, engine.ErrAlreadyPaid), errors.Is(err, engine.ErrRunInProgress):
		return http.StatusConflict
	case engine.IsClientError(err), errors.Is(err, factory.ErrInvalidInput), errors.As(err, &verrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
