/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Community creation, validation and conflicts
- Member joins (unknown / inactive community, bad birth date)
- Manual runs end to end on the sala-roja scenario
- Payment confirmation and notification reset
- Event closure
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyjack/giftpool/engine"
	"github.com/heyjack/giftpool/mail"
	"github.com/heyjack/giftpool/store/sqlite"
)

var testNow = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := engine.NewRunner(store, mail.NewLogSender(nil), engine.RunConfig{
		LookaheadDays:    engine.DefaultLookaheadDays,
		Location:         time.UTC,
		NotifyEnabled:    true,
		BatchSize:        3,
		OperationTimeout: 5 * time.Second,
	}, nil).WithClock(func() time.Time { return testNow })

	scheduler := NewScheduler(runner, store, "0 6 * * *", time.UTC, nil)
	handler := NewHandler(store, scheduler, nil)
	handler.Today = runner.Today

	return &testServer{
		handler: handler,
		router:  NewRouter(handler, RouterOptions{}),
		store:   store,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func salaRojaRequest() CreateCommunityRequest {
	return CreateCommunityRequest{
		Name:            "Sala Roja",
		Institution:     "Jardín Arcoíris",
		PerMemberAmount: "5000",
		Creator: MemberRequest{
			Name:           "Laura Gómez",
			Email:          "laura@example.com",
			PaymentAlias:   "laura.gomez.mp",
			ChildName:      "Sofía",
			ChildBirthDate: "2021-08-02",
		},
	}
}

// =============================================================================
// COMMUNITIES
// =============================================================================

func TestCreateCommunity_CreatorJoins(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating a community
	// THEN: The creator is its first member and the count is 1

	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/communities", salaRojaRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeAs[CreateCommunityResponse](t, rec)
	assert.Equal(t, "jardin-arcoiris-sala-roja", resp.Community.ID)
	assert.Equal(t, 1, resp.Community.MemberCount)
	assert.Equal(t, "5000.00", resp.Community.PerMemberAmount)
	assert.Equal(t, "creator", resp.Creator.Role)

	rec = s.do(t, http.MethodGet, "/api/communities/"+resp.Community.ID+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeAs[[]MemberDTO](t, rec)
	require.Len(t, members, 1)
	assert.Equal(t, resp.Creator.ID, members[0].ID)
}

func TestCreateCommunity_ValidationFails(t *testing.T) {
	s := setupTestServer(t)

	req := salaRojaRequest()
	req.PerMemberAmount = "cinco mil"
	rec := s.do(t, http.MethodPost, "/api/communities", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", decodeAs[ErrorResponse](t, rec).Error)

	req = salaRojaRequest()
	req.Creator.Email = "not-an-email"
	rec = s.do(t, http.MethodPost, "/api/communities", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCommunity_InvalidCreatorBirthDate(t *testing.T) {
	s := setupTestServer(t)

	req := salaRojaRequest()
	req.Creator.ChildBirthDate = "2021-02-30"
	rec := s.do(t, http.MethodPost, "/api/communities", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestCreateCommunity_Duplicate(t *testing.T) {
	s := setupTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/communities", salaRojaRequest()).Code)
	rec := s.do(t, http.MethodPost, "/api/communities", salaRojaRequest())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetCommunity_NotFound(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/communities/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// MEMBERS
// =============================================================================

func TestAddMember_IncrementsCount(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/communities", salaRojaRequest()).Code)

	rec := s.do(t, http.MethodPost, "/api/communities/jardin-arcoiris-sala-roja/members", MemberRequest{
		Name: "Ana Pérez", Email: "ana@example.com", ChildName: "Tomás", ChildBirthDate: "11/03/2021",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	member := decodeAs[MemberDTO](t, rec)
	assert.Equal(t, "member", member.Role)
	assert.Equal(t, "5000.00", member.Amount)

	rec = s.do(t, http.MethodGet, "/api/communities/jardin-arcoiris-sala-roja", nil)
	assert.Equal(t, 2, decodeAs[CommunityDTO](t, rec).MemberCount)

	// Same form again resolves to the same member ID
	rec = s.do(t, http.MethodPost, "/api/communities/jardin-arcoiris-sala-roja/members", MemberRequest{
		Name: "Ana Pérez", Email: "ANA@example.com", ChildBirthDate: "11/03/2021",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddMember_UnknownCommunity(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/communities/nope/members", MemberRequest{
		Name: "Ana", ChildBirthDate: "03-11",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMember_InactiveCommunity(t *testing.T) {
	// GIVEN: A deactivated community
	// WHEN: A parent tries to join
	// THEN: 400, the community refuses joins

	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/communities", salaRojaRequest()).Code)

	rec := s.do(t, http.MethodPost, "/api/communities/jardin-arcoiris-sala-roja/status",
		SetCommunityStatusRequest{Status: "inactive"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inactive", decodeAs[CommunityDTO](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/communities/jardin-arcoiris-sala-roja/members", MemberRequest{
		Name: "Ana", ChildBirthDate: "03-11",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetCommunityStatus_InvalidStatus(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/communities", salaRojaRequest()).Code)

	rec := s.do(t, http.MethodPost, "/api/communities/jardin-arcoiris-sala-roja/status",
		SetCommunityStatusRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// RUNS
// =============================================================================

func loadScenario(t *testing.T, s *testServer, id string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func triggerRun(t *testing.T, s *testServer) RunDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeAs[RunDTO](t, rec)
}

func salaRojaEvent(t *testing.T, s *testServer) EventDTO {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/communities/jardin-arcoiris-sala-roja/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeAs[[]EventDTO](t, rec)
	require.Len(t, events, 1)
	return events[0]
}

func eventContributors(t *testing.T, s *testServer, eventID string) []ContributorDTO {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/events/"+eventID+"/contributors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeAs[[]ContributorDTO](t, rec)
}

func TestTriggerRun_SalaRoja(t *testing.T) {
	// GIVEN: Five families, Milan's birthday in 10 days
	// WHEN: Running twice
	// THEN: One event for 4 x 5000, four pending contributors, four emails,
	//       and nothing new on the second run

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")

	first := triggerRun(t, s)
	assert.Equal(t, "completed", first.Status)
	assert.Equal(t, TriggerManual, first.Trigger)
	assert.Equal(t, "2026-03-01", first.Today)
	assert.Equal(t, 1, first.EventsCreated)
	assert.Equal(t, 4, first.ContributorsAdded)
	assert.Equal(t, 4, first.EmailsSent)
	assert.Empty(t, first.Failures)

	event := salaRojaEvent(t, s)
	assert.Equal(t, "Milan", event.HonoreeName)
	assert.Equal(t, "2026-03-11", event.OccurrenceDate)
	assert.Equal(t, "11 de marzo de 2026", event.OccurrenceLabel)
	assert.Equal(t, "20000.00", event.Target)
	assert.Equal(t, "0.00", event.Collected)

	contributors := eventContributors(t, s, event.ID)
	require.Len(t, contributors, 4)
	for _, c := range contributors {
		assert.Equal(t, "pending", c.Status)
		assert.True(t, c.EmailNotified, c.Name)
		assert.NotEqual(t, "diego@example.com", c.Email, "honoree family must not contribute")
	}

	second := triggerRun(t, s)
	assert.Equal(t, 0, second.EventsCreated)
	assert.Equal(t, 1, second.EventsAlreadyActive)
	assert.Equal(t, 0, second.ContributorsAdded)
	assert.Equal(t, 4, second.ContributorsSkipped)
	assert.Equal(t, 0, second.EmailsSent)

	rec := s.do(t, http.MethodGet, "/api/runs/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.ID, decodeAs[RunDTO](t, rec).ID)
}

func TestTriggerRun_SkipNotify(t *testing.T) {
	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")

	rec := s.do(t, http.MethodPost, "/api/runs", TriggerRunRequest{SkipNotify: true})
	require.Equal(t, http.StatusOK, rec.Code)
	run := decodeAs[RunDTO](t, rec)
	assert.Equal(t, 4, run.ContributorsAdded)
	assert.Equal(t, 0, run.EmailsSent)
}

func TestLastRun_NoneYet(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/runs/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))
}

// =============================================================================
// PAYMENTS & NOTIFICATIONS
// =============================================================================

func TestConfirmPayment(t *testing.T) {
	// GIVEN: The sala-roja event after a run
	// WHEN: Confirming a payment without an amount
	// THEN: The contributor pays its share and the event collects it; a
	//       second confirmation conflicts

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)

	event := salaRojaEvent(t, s)
	contributor := eventContributors(t, s, event.ID)[0]

	rec := s.do(t, http.MethodPost, "/api/contributors/"+contributor.ID+"/payment",
		ConfirmPaymentRequest{Method: "transfer", Reference: "op-123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeAs[ContributorDTO](t, rec)
	assert.Equal(t, "paid", paid.Status)
	assert.Equal(t, "5000.00", paid.AmountPaid)
	assert.Equal(t, "op-123", paid.PaymentReference)

	assert.Equal(t, "5000.00", salaRojaEvent(t, s).Collected)

	rec = s.do(t, http.MethodPost, "/api/contributors/"+contributor.ID+"/payment",
		ConfirmPaymentRequest{Method: "cash"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "5000.00", salaRojaEvent(t, s).Collected)
}

func TestConfirmPayment_Invalid(t *testing.T) {
	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)
	contributor := eventContributors(t, s, salaRojaEvent(t, s).ID)[0]

	tests := []struct {
		name string
		req  ConfirmPaymentRequest
		path string
		want int
	}{
		{"unknown method", ConfirmPaymentRequest{Method: "bitcoin"}, contributor.ID, http.StatusBadRequest},
		{"zero amount", ConfirmPaymentRequest{Method: "cash", Amount: "0"}, contributor.ID, http.StatusBadRequest},
		{"unknown contributor", ConfirmPaymentRequest{Method: "cash"}, "nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/contributors/"+tt.path+"/payment", tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestResetNotification_ResendsOnNextRun(t *testing.T) {
	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)
	contributor := eventContributors(t, s, salaRojaEvent(t, s).ID)[0]

	rec := s.do(t, http.MethodPost, "/api/contributors/"+contributor.ID+"/notification/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reset := decodeAs[ContributorDTO](t, rec)
	assert.False(t, reset.EmailNotified)
	assert.Nil(t, reset.EmailNotifiedAt)

	assert.Equal(t, 1, triggerRun(t, s).EmailsSent)
}

func TestResetNotification_NotFound(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/contributors/nope/notification/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestCloseEvent(t *testing.T) {
	// GIVEN: An active event whose reminders went out
	// WHEN: Closing it and resetting a contributor's flag
	// THEN: The next run neither recreates the event nor emails anyone

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)
	event := salaRojaEvent(t, s)

	rec := s.do(t, http.MethodPost, "/api/events/"+event.ID+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closed", decodeAs[EventDTO](t, rec).Status)

	contributor := eventContributors(t, s, event.ID)[0]
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/contributors/"+contributor.ID+"/notification/reset", nil).Code)

	run := triggerRun(t, s)
	assert.Equal(t, 0, run.EventsCreated)
	assert.Equal(t, 0, run.EmailsSent)

	rec = s.do(t, http.MethodGet, "/api/communities/jardin-arcoiris-sala-roja/events?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAs[[]EventDTO](t, rec))
}

func TestCloseEvent_ReportsConfirmedPayments(t *testing.T) {
	// GIVEN: One of four contributors has paid
	// WHEN: Closing the event
	// THEN: The stored total and the sum of confirmed payments agree

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)
	event := salaRojaEvent(t, s)
	contributor := eventContributors(t, s, event.ID)[0]

	rec := s.do(t, http.MethodPost, "/api/contributors/"+contributor.ID+"/payment",
		ConfirmPaymentRequest{Method: "cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/events/"+event.ID+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decodeAs[EventDTO](t, rec)
	assert.Equal(t, "5000.00", closed.Collected)
	assert.Equal(t, "5000.00", closed.CollectedFromPayments)
}

func TestCloseEvent_NotFound(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/events/nope/close", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEvents_InvalidStatus(t *testing.T) {
	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")

	rec := s.do(t, http.MethodGet, "/api/communities/jardin-arcoiris-sala-roja/events?status=open", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeAs[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.RunInProgress)
	assert.Empty(t, health.NextRun)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{engine.ErrContributorNotFound, http.StatusNotFound},
		{engine.ErrDuplicateCommunity, http.StatusConflict},
		{engine.ErrAlreadyPaid, http.StatusConflict},
		{engine.ErrRunInProgress, http.StatusConflict},
		{&engine.InvalidDateError{Value: "x", Reason: "missing"}, http.StatusBadRequest},
		{engine.ErrCommunityInactive, http.StatusBadRequest},
		{engine.ErrStoreWrite, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "err=%v", tt.err)
	}
}

// =============================================================================
// MEMBER UPDATES
// =============================================================================

func memberByEmail(t *testing.T, s *testServer, email string) MemberDTO {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/communities/jardin-arcoiris-sala-roja/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, m := range decodeAs[[]MemberDTO](t, rec) {
		if m.Email == email {
			return m
		}
	}
	t.Fatalf("no member with email %s", email)
	return MemberDTO{}
}

func TestUpdateMember_NextRunUpdatesContributor(t *testing.T) {
	// GIVEN: Ana already has a notified contributor row
	// WHEN: Her phone is changed through the API and the pipeline runs again
	// THEN: The run updates exactly one contributor and sends nothing new

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)
	ana := memberByEmail(t, s, "ana@example.com")

	rec := s.do(t, http.MethodPatch, "/api/communities/jardin-arcoiris-sala-roja/members/"+ana.ID,
		map[string]string{"phone": " +54 11 4444-2222 ", "name": "Ana María Pérez"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeAs[MemberDTO](t, rec)
	assert.Equal(t, ana.ID, updated.ID)
	assert.Equal(t, "Ana María Pérez", updated.Name)
	assert.NotEmpty(t, updated.Phone)
	assert.Equal(t, "ana@example.com", updated.Email)

	run := triggerRun(t, s)
	assert.Equal(t, 1, run.ContributorsUpdated)
	assert.Equal(t, 0, run.ContributorsAdded)
	assert.Equal(t, 0, run.EmailsSent)

	for _, c := range eventContributors(t, s, salaRojaEvent(t, s).ID) {
		if c.MemberID == ana.ID {
			assert.Equal(t, "Ana María Pérez", c.Name)
			assert.Equal(t, updated.Phone, c.Phone)
			assert.True(t, c.EmailNotified)
		}
	}
}

func TestUpdateMember_EmailChangeKeepsSingleRow(t *testing.T) {
	// GIVEN: Ana was notified under her old address
	// WHEN: She changes email and the pipeline runs again
	// THEN: Her row moves to the new address, no duplicate and no new email

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)
	ana := memberByEmail(t, s, "ana@example.com")

	rec := s.do(t, http.MethodPatch, "/api/communities/jardin-arcoiris-sala-roja/members/"+ana.ID,
		map[string]string{"email": "Ana.Nueva@Example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ana.nueva@example.com", decodeAs[MemberDTO](t, rec).Email)

	run := triggerRun(t, s)
	assert.Equal(t, 1, run.ContributorsUpdated)
	assert.Equal(t, 0, run.ContributorsAdded)
	assert.Equal(t, 0, run.EmailsSent)

	contributors := eventContributors(t, s, salaRojaEvent(t, s).ID)
	require.Len(t, contributors, 4)
	rows := 0
	for _, c := range contributors {
		if c.MemberID == ana.ID {
			rows++
			assert.Equal(t, "ana.nueva@example.com", c.Email)
		}
	}
	assert.Equal(t, 1, rows)
}

func TestUpdateMember_NotFound(t *testing.T) {
	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")

	rec := s.do(t, http.MethodPatch, "/api/communities/jardin-arcoiris-sala-roja/members/nope",
		map[string]string{"phone": "1144441111"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/communities/nope/members/nope",
		map[string]string{"phone": "1144441111"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateMember_Invalid(t *testing.T) {
	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	ana := memberByEmail(t, s, "ana@example.com")
	path := "/api/communities/jardin-arcoiris-sala-roja/members/" + ana.ID

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email"}},
		{"blank name", map[string]string{"name": "   "}},
		{"bad birth date", map[string]string{"child_birth_date": "2015-13-40"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPatch, path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, "ana@example.com", memberByEmail(t, s, "ana@example.com").Email)
}
