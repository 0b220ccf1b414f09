package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyjack/giftpool/engine"
	"github.com/heyjack/giftpool/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var t0 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCommunity(t *testing.T, store *sqlite.Store) engine.Community {
	c := engine.Community{
		ID:              "sala-roja",
		Name:            "Sala Roja",
		Institution:     "Jardín Arcoíris",
		PerMemberAmount: decimal.NewFromInt(5000),
		Status:          engine.CommunityActive,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	require.NoError(t, store.CreateCommunity(context.Background(), c))
	return c
}

func seedEvent(t *testing.T, store *sqlite.Store, id engine.EventID, honoree engine.MemberID) engine.Event {
	e := engine.Event{
		ID:              id,
		CommunityID:     "sala-roja",
		HonoreeMemberID: honoree,
		HonoreeName:     "Milan",
		OccurrenceDate:  engine.NewDay(2026, time.March, 11),
		Status:          engine.EventActive,
		Collected:       decimal.Zero,
		Target:          decimal.NewFromInt(20000),
		RosterSize:      4,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	require.NoError(t, store.CreateEvent(context.Background(), e))
	return e
}

func contributor(id engine.ContributorID, eventID engine.EventID, email string) engine.Contributor {
	return engine.Contributor{
		ID:          id,
		EventID:     eventID,
		CommunityID: "sala-roja",
		MemberID:    engine.MemberID("m-" + string(id)),
		Identity:    engine.IdentityFor(email, engine.MemberID("m-"+string(id))),
		Name:        "Parent " + string(id),
		Email:       email,
		Amount:      decimal.NewFromInt(5000),
		Status:      engine.PaymentPending,
		AmountPaid:  decimal.Zero,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

// =============================================================================
// COMMUNITIES & MEMBERS
// =============================================================================

func TestStore_AddMember_IncrementsMemberCount(t *testing.T) {
	// GIVEN: An empty community
	// WHEN: Two members join
	// THEN: member_count is 2 and members come back in join order

	store := newTestStore(t)
	ctx := context.Background()
	seedCommunity(t, store)

	for i, name := range []string{"Ana", "Bruno"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.AddMember(ctx, engine.Member{
			ID:             engine.MemberID("m-" + name),
			CommunityID:    "sala-roja",
			Name:           name,
			Email:          name + "@example.com",
			ChildBirthDate: "2021-03-11",
			Role:           engine.RoleMember,
			Amount:         decimal.NewFromInt(5000),
			CreatedAt:      at,
			UpdatedAt:      at,
		}))
	}

	c, err := store.GetCommunity(ctx, "sala-roja")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.MemberCount)
	assert.True(t, c.PerMemberAmount.Equal(decimal.NewFromInt(5000)))

	cid := engine.CommunityID("sala-roja")
	members, err := store.ListMembers(ctx, engine.MemberFilter{CommunityID: &cid})
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ana", members[0].Name)
	assert.Equal(t, "Bruno", members[1].Name)
}

func TestStore_AddMember_UnknownCommunity(t *testing.T) {
	store := newTestStore(t)

	err := store.AddMember(context.Background(), engine.Member{
		ID: "m-1", CommunityID: "nope", Name: "Ana", CreatedAt: t0, UpdatedAt: t0,
	})
	assert.ErrorIs(t, err, engine.ErrCommunityNotFound)
}

func TestStore_GetCommunity_Missing(t *testing.T) {
	store := newTestStore(t)

	c, err := store.GetCommunity(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestStore_CreateCommunity_Duplicate(t *testing.T) {
	store := newTestStore(t)
	c := seedCommunity(t, store)

	err := store.CreateCommunity(context.Background(), c)
	assert.ErrorIs(t, err, engine.ErrDuplicateCommunity)
}

func TestStore_CreateCommunityWithCreator(t *testing.T) {
	// GIVEN: A community created together with its creator
	// WHEN: A second community's creator insert fails
	// THEN: The second community is not left behind

	store := newTestStore(t)
	ctx := context.Background()

	first := engine.Community{
		ID: "sala-roja", Name: "Sala Roja", PerMemberAmount: decimal.NewFromInt(5000),
		Status: engine.CommunityActive, CreatedAt: t0, UpdatedAt: t0,
	}
	creator := engine.Member{
		ID: "m-laura", CommunityID: first.ID, Name: "Laura", ChildBirthDate: "2021-06-01",
		Role: engine.RoleCreator, Amount: decimal.NewFromInt(5000), CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, store.CreateCommunityWithCreator(ctx, first, creator))

	c, err := store.GetCommunity(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.MemberCount)

	second := first
	second.ID, second.Name = "sala-verde", "Sala Verde"
	clash := creator
	clash.CommunityID = second.ID
	err = store.CreateCommunityWithCreator(ctx, second, clash)
	assert.ErrorIs(t, err, engine.ErrDuplicateMember)

	c, err = store.GetCommunity(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, c)
}

// =============================================================================
// UNIQUENESS INVARIANT TESTS
// =============================================================================

func TestStore_CreateEvent_SameHonoreeSameYear_Conflict(t *testing.T) {
	// GIVEN: An event for Milan's 2026 birthday
	// WHEN: Another run tries to create the same occurrence under a new ID
	// THEN: The database rejects it with ErrDuplicateEvent

	store := newTestStore(t)
	seedCommunity(t, store)
	e := seedEvent(t, store, "ev-1", "m-milan")

	e.ID = "ev-2"
	err := store.CreateEvent(context.Background(), e)
	assert.ErrorIs(t, err, engine.ErrDuplicateEvent)
	assert.True(t, engine.IsConflict(err))
}

func TestStore_CreateEvent_NextYear_Allowed(t *testing.T) {
	store := newTestStore(t)
	seedCommunity(t, store)
	e := seedEvent(t, store, "ev-1", "m-milan")

	e.ID = "ev-2"
	e.OccurrenceDate = engine.NewDay(2027, time.March, 11)
	require.NoError(t, store.CreateEvent(context.Background(), e))

	events, err := store.ListEvents(context.Background(), engine.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestStore_InsertContributor_SameIdentity_Conflict(t *testing.T) {
	// GIVEN: A contributor for ana@example.com on an event
	// WHEN: Inserting another row whose email differs only by case
	// THEN: ErrDuplicateContributor, the roster still has one row

	store := newTestStore(t)
	ctx := context.Background()
	seedCommunity(t, store)
	seedEvent(t, store, "ev-1", "m-milan")

	require.NoError(t, store.InsertContributor(ctx, contributor("c-1", "ev-1", "ana@example.com")))

	dup := contributor("c-2", "ev-1", "ana@example.com")
	dup.Email = "ANA@example.com"
	err := store.InsertContributor(ctx, dup)
	assert.ErrorIs(t, err, engine.ErrDuplicateContributor)

	eid := engine.EventID("ev-1")
	list, err := store.ListContributors(ctx, engine.ContributorFilter{EventID: &eid})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_UpdateContributorContact_MovesIdentity(t *testing.T) {
	// GIVEN: Two contributors on one event
	// WHEN: One changes email to a free address, then to the other's address
	// THEN: The first update re-keys the row, the second is a conflict

	store := newTestStore(t)
	ctx := context.Background()
	seedCommunity(t, store)
	seedEvent(t, store, "ev-1", "m-milan")
	require.NoError(t, store.InsertContributor(ctx, contributor("c-1", "ev-1", "ana@example.com")))
	require.NoError(t, store.InsertContributor(ctx, contributor("c-2", "ev-1", "bruno@example.com")))

	moved := contributor("c-1", "ev-1", "ana.nueva@example.com")
	require.NoError(t, store.UpdateContributorContact(ctx, moved, t0.Add(time.Hour)))

	c, err := store.GetContributor(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "ana.nueva@example.com", c.Email)
	assert.Equal(t, engine.Identity("email:ana.nueva@example.com"), c.Identity)

	// The old address is free again.
	require.NoError(t, store.InsertContributor(ctx, contributor("c-3", "ev-1", "ana@example.com")))

	taken := contributor("c-1", "ev-1", "bruno@example.com")
	err = store.UpdateContributorContact(ctx, taken, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, engine.ErrDuplicateContributor)

	err = store.UpdateContributorContact(ctx, contributor("ghost", "ev-1", "x@example.com"), t0)
	assert.ErrorIs(t, err, engine.ErrContributorNotFound)
}

// =============================================================================
// NOTIFICATION FLAGS
// =============================================================================

func TestStore_MarkAndResetNotification(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCommunity(t, store)
	seedEvent(t, store, "ev-1", "m-milan")
	require.NoError(t, store.InsertContributor(ctx, contributor("c-1", "ev-1", "ana@example.com")))

	at := t0.Add(time.Hour)
	require.NoError(t, store.MarkEmailNotified(ctx, "c-1", at))

	c, err := store.GetContributor(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.EmailNotified)
	require.NotNil(t, c.EmailNotifiedAt)
	assert.True(t, c.EmailNotifiedAt.Equal(at))

	require.NoError(t, store.ResetNotification(ctx, "c-1", at.Add(time.Hour)))
	c, err = store.GetContributor(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, c.EmailNotified)
	assert.Nil(t, c.EmailNotifiedAt)
}

func TestStore_MarkEmailNotified_Missing(t *testing.T) {
	store := newTestStore(t)

	err := store.MarkEmailNotified(context.Background(), "ghost", t0)
	assert.ErrorIs(t, err, engine.ErrContributorNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestStore_ConfirmPayment_CreditsEvent(t *testing.T) {
	// GIVEN: A pending contributor on an event with nothing collected
	// WHEN: Confirming a 5000 payment
	// THEN: Contributor is paid, event collected is 5000, a second confirm fails

	store := newTestStore(t)
	ctx := context.Background()
	seedCommunity(t, store)
	seedEvent(t, store, "ev-1", "m-milan")
	require.NoError(t, store.InsertContributor(ctx, contributor("c-1", "ev-1", "ana@example.com")))

	p := engine.PaymentConfirmation{
		ContributorID: "c-1",
		Amount:        decimal.RequireFromString("5000.50"),
		Method:        "transfer",
		Reference:     "op-123",
		ConfirmedAt:   t0.Add(time.Hour),
	}
	require.NoError(t, store.ConfirmPayment(ctx, p))

	c, err := store.GetContributor(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, engine.PaymentPaid, c.Status)
	assert.Equal(t, "5000.5", c.AmountPaid.String())
	assert.Equal(t, "op-123", c.PaymentReference)

	e, err := store.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "5000.5", e.Collected.String())

	err = store.ConfirmPayment(ctx, p)
	assert.ErrorIs(t, err, engine.ErrAlreadyPaid)
}

// =============================================================================
// RUNS
// =============================================================================

func TestStore_Runs_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		start := t0.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.SaveRun(ctx, engine.RunRecord{
			ID:      id,
			Trigger: "schedule",
			Status:  "completed",
			Report: engine.RunReport{
				StartedAt:     start,
				FinishedAt:    start.Add(time.Second),
				Today:         engine.DayOf(start),
				EventsCreated: i,
				Failures: []engine.Failure{
					{Stage: engine.StageNotify, Item: "contributor:x", Reason: "boom", Retryable: true},
				},
			},
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, 2, runs[0].Report.EventsCreated)
	require.Len(t, runs[0].Report.Failures, 1)
	assert.Equal(t, "boom", runs[0].Report.Failures[0].Reason)
}

func TestStore_CorruptRowsAreReported(t *testing.T) {
	// GIVEN: A database file whose rows were edited outside the store
	// WHEN: Reading them back
	// THEN: The store returns an error instead of zero values

	path := filepath.Join(t.TempDir(), "giftpool.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	seedCommunity(t, store)
	seedEvent(t, store, "evt-1", "m-diego")
	require.NoError(t, store.SaveRun(ctx, engine.RunRecord{
		ID: "run-1", Trigger: "manual", Status: "completed",
		Report: engine.RunReport{StartedAt: t0, FinishedAt: t0, Today: engine.DayOf(t0)},
	}))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Exec(`UPDATE runs SET failures_json = 'not json' WHERE id = 'run-1'`)
	require.NoError(t, err)
	_, err = store.ListRuns(ctx, 10)
	assert.ErrorContains(t, err, "run-1")

	_, err = raw.Exec(`UPDATE runs SET failures_json = '[]', today = 'yesterday' WHERE id = 'run-1'`)
	require.NoError(t, err)
	_, err = store.ListRuns(ctx, 10)
	assert.ErrorContains(t, err, "yesterday")

	_, err = raw.Exec(`UPDATE events SET collected = 'lots' WHERE id = 'evt-1'`)
	require.NoError(t, err)
	_, err = store.GetEvent(ctx, "evt-1")
	assert.ErrorContains(t, err, "collected")
}
