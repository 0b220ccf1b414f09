/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Birthdays are placed relative to today, so a
	run right after loading always has something to do.

AVAILABLE SCENARIOS:

	sala-roja:     5 members, Milan's birthday is in 10 days
	lead-window:   Birthdays today, at the window edge and one day past it
	shared-email:  Two siblings registered under one parent email
	bad-date:      One member with an unusable birth date next to a valid one

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the community and its creator via the factory
 3. Join the remaining members

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sala-roja"}

	POST /api/runs

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler, writeJSON/writeError
  - factory/community.go: record construction
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heyjack/giftpool/engine"
	"github.com/heyjack/giftpool/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sala-roja",
		Name:        "Sala Roja",
		Description: "Five families at 5000 each; Milan's birthday is 10 days away",
	},
	{
		ID:          "lead-window",
		Name:        "Lead Window",
		Description: "Birthdays today, in 15 days and in 16 days: two events open, one waits",
	},
	{
		ID:          "shared-email",
		Name:        "Shared Email",
		Description: "Two siblings under one parent email get a single contributor row",
	},
	{
		ID:          "bad-date",
		Name:        "Bad Birth Date",
		Description: "One unusable birth date is reported while the rest of the run succeeds",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "sala-roja":
		load = h.loadSalaRojaScenario
	case "lead-window":
		load = h.loadLeadWindowScenario
	case "shared-email":
		load = h.loadSharedEmailScenario
	case "bad-date":
		load = h.loadBadDateScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = "" // Clear current scenario on reset

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Track the loaded scenario
	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var demoAmount = decimal.NewFromInt(5000)

func (h *Handler) loadSalaRojaScenario(ctx context.Context) error {
	today := h.Today()
	return h.seed(ctx, factory.CommunityInput{
		Name:            "Sala Roja",
		Institution:     "Jardín Arcoíris",
		PerMemberAmount: demoAmount,
		Creator: factory.MemberInput{
			Name: "Laura Gómez", Email: "laura@example.com", PaymentAlias: "laura.gomez.mp",
			ChildName: "Sofía", ChildBirthDate: birthDate(today, 120),
		},
	},
		factory.MemberInput{Name: "Diego Fernández", Email: "diego@example.com",
			ChildName: "Milan", ChildBirthDate: birthDate(today, 10)},
		factory.MemberInput{Name: "Ana Pérez", Email: "ana@example.com",
			ChildName: "Tomás", ChildBirthDate: birthDate(today, 45)},
		factory.MemberInput{Name: "Bruno Díaz", Email: "bruno@example.com",
			ChildName: "Valentina", ChildBirthDate: birthDate(today, 200)},
		factory.MemberInput{Name: "Carla Ruiz", Email: "carla@example.com",
			ChildName: "Joaquín", ChildBirthDate: birthDate(today, 300)},
	)
}

func (h *Handler) loadLeadWindowScenario(ctx context.Context) error {
	today := h.Today()
	return h.seed(ctx, factory.CommunityInput{
		Name:            "Sala Verde",
		Institution:     "Jardín Arcoíris",
		PerMemberAmount: demoAmount,
		Creator: factory.MemberInput{
			Name: "Marta Sosa", Email: "marta@example.com", PaymentAlias: "marta.sosa",
			ChildName: "Lucía", ChildBirthDate: birthDate(today, 0),
		},
	},
		factory.MemberInput{Name: "Pablo Ríos", Email: "pablo@example.com",
			ChildName: "Benjamín", ChildBirthDate: birthDate(today, engine.DefaultLookaheadDays)},
		factory.MemberInput{Name: "Inés Vega", Email: "ines@example.com",
			ChildName: "Emma", ChildBirthDate: birthDate(today, engine.DefaultLookaheadDays+1)},
	)
}

func (h *Handler) loadSharedEmailScenario(ctx context.Context) error {
	today := h.Today()
	return h.seed(ctx, factory.CommunityInput{
		Name:            "Sala Azul",
		Institution:     "Colegio San José",
		PerMemberAmount: demoAmount,
		Creator: factory.MemberInput{
			Name: "Julia Castro", Email: "julia@example.com", PaymentAlias: "julia.castro",
			ChildName: "Mateo", ChildBirthDate: birthDate(today, 7),
		},
	},
		factory.MemberInput{Name: "Ramiro Acosta", Email: "familia.acosta@example.com",
			ChildName: "Olivia", ChildBirthDate: birthDate(today, 90)},
		factory.MemberInput{Name: "Ramiro Acosta (Felipe)", Email: "Familia.Acosta@example.com",
			ChildName: "Felipe", ChildBirthDate: birthDate(today, 150)},
	)
}

// loadBadDateScenario bypasses the factory for one member: rows like this
// exist when data was imported from elsewhere.
func (h *Handler) loadBadDateScenario(ctx context.Context) error {
	today := h.Today()
	in := factory.CommunityInput{
		Name:            "Sala Amarilla",
		Institution:     "Jardín Arcoíris",
		PerMemberAmount: demoAmount,
		Creator: factory.MemberInput{
			Name: "Sergio Molina", Email: "sergio@example.com", PaymentAlias: "sergio.molina",
			ChildName: "Camila", ChildBirthDate: birthDate(today, 5),
		},
	}
	if err := h.seed(ctx, in,
		factory.MemberInput{Name: "Lorena Paz", Email: "lorena@example.com",
			ChildName: "Thiago", ChildBirthDate: birthDate(today, 80)},
	); err != nil {
		return err
	}

	community, err := h.Store.GetCommunity(ctx, engine.CommunityID(factory.CommunitySlug(in.Institution, in.Name)))
	if err != nil {
		return err
	}
	if community == nil {
		return engine.ErrCommunityNotFound
	}

	now := time.Now().UTC()
	email := "nico@example.com"
	return h.Store.AddMember(ctx, engine.Member{
		ID:             factory.MemberID(community.ID, "Nicolás Herrera", email),
		CommunityID:    community.ID,
		Name:           "Nicolás Herrera",
		Email:          email,
		ChildName:      "Martina",
		ChildBirthDate: "31/02/2021",
		Role:           engine.RoleMember,
		Amount:         community.PerMemberAmount,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// seed creates a community with its creator and joins members in order.
func (h *Handler) seed(ctx context.Context, in factory.CommunityInput, members ...factory.MemberInput) error {
	community, creator, err := h.Factory.NewCommunity(in)
	if err != nil {
		return err
	}
	if err := h.Store.CreateCommunityWithCreator(ctx, community, creator); err != nil {
		return err
	}
	for _, mi := range members {
		m, err := h.Factory.NewMember(community, mi)
		if err != nil {
			return fmt.Errorf("member %s: %w", mi.Name, err)
		}
		if err := h.Store.AddMember(ctx, m); err != nil {
			return fmt.Errorf("member %s: %w", mi.Name, err)
		}
	}
	return nil
}

// birthDate returns a YYYY-MM-DD birth date whose next occurrence is
// today+days. Children are four, which keeps Feb 29 valid.
func birthDate(today engine.Day, days int) string {
	d := today.AddDays(days)
	return fmt.Sprintf("%04d-%02d-%02d", d.Year()-4, int(d.Month()), d.Day())
}
