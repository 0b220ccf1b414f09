/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Loads each scenario and runs the pipeline once over it, checking the
	report says what the scenario description promises.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyjack/giftpool/engine"
)

func runScenario(t *testing.T, id string) (*testServer, *engine.RunRecord) {
	t.Helper()

	s := setupTestServer(t)
	loadScenario(t, s, id)

	record, err := s.handler.Scheduler.RunNow(context.Background(), TriggerManual, engine.RunOptions{})
	require.NoError(t, err)
	return s, record
}

func TestListScenarios(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeAs[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadScenario_Resets(t *testing.T) {
	// GIVEN: sala-roja loaded and run
	// WHEN: Loading lead-window
	// THEN: Only the new community remains and the run history is empty

	s := setupTestServer(t)
	loadScenario(t, s, "sala-roja")
	triggerRun(t, s)

	loadScenario(t, s, "lead-window")
	assert.Equal(t, "lead-window", s.handler.currentScenario)

	communities, err := s.store.ListCommunities(context.Background())
	require.NoError(t, err)
	require.Len(t, communities, 1)
	assert.Equal(t, engine.CommunityID("jardin-arcoiris-sala-verde"), communities[0].ID)

	runs, err := s.store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestScenario_SalaRoja(t *testing.T) {
	_, record := runScenario(t, "sala-roja")

	r := record.Report
	assert.Equal(t, 1, r.EventsCreated)
	assert.Equal(t, 4, r.ContributorsAdded)
	assert.Equal(t, 4, r.EmailsSent)
	assert.True(t, r.OK())
}

func TestScenario_LeadWindow(t *testing.T) {
	// GIVEN: Birthdays today, in 15 days and in 16 days
	// WHEN: Running
	// THEN: Today and day 15 open events, day 16 waits

	s, record := runScenario(t, "lead-window")

	assert.Equal(t, 2, record.Report.EventsCreated)
	// Each event has two contributors: the other two families.
	assert.Equal(t, 4, record.Report.ContributorsAdded)

	events, err := s.store.ListEvents(context.Background(), engine.EventFilter{})
	require.NoError(t, err)
	var honorees []string
	for _, e := range events {
		honorees = append(honorees, e.HonoreeName)
	}
	assert.ElementsMatch(t, []string{"Lucía", "Benjamín"}, honorees)
}

func TestScenario_SharedEmail(t *testing.T) {
	// GIVEN: Two siblings registered under the same parent email
	// WHEN: Running for the creator's child birthday
	// THEN: The family gets one contributor row and one email

	s, record := runScenario(t, "shared-email")

	assert.Equal(t, 1, record.Report.EventsCreated)
	assert.Equal(t, 1, record.Report.ContributorsAdded)
	assert.Equal(t, 1, record.Report.EmailsSent)

	contributors, err := s.store.ListContributors(context.Background(), engine.ContributorFilter{})
	require.NoError(t, err)
	require.Len(t, contributors, 1)
	assert.Equal(t, "familia.acosta@example.com", contributors[0].Email)
}

func TestScenario_BadDate(t *testing.T) {
	// GIVEN: One member with 31/02 as birth date
	// WHEN: Running
	// THEN: That member is reported, everyone else is processed

	_, record := runScenario(t, "bad-date")

	r := record.Report
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, 1, r.EventsCreated)
	assert.Equal(t, 2, r.ContributorsAdded)
	assert.Equal(t, 2, r.EmailsSent)

	require.Len(t, r.Failures, 1)
	assert.Equal(t, engine.StageActivation, r.Failures[0].Stage)
	assert.Contains(t, r.Failures[0].Item, "member:")
	assert.False(t, r.Failures[0].Retryable)
	assert.ErrorIs(t, r.Failures[0].Err, engine.ErrInvalidDate)
}
