// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/heyjack/giftpool/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one RWMutex. Uniqueness
// invariants are enforced the same way the SQL stores enforce them.
type Memory struct {
	mu           sync.RWMutex
	communities  map[engine.CommunityID]engine.Community
	members      map[engine.MemberID]engine.Member
	events       map[engine.EventID]engine.Event
	eventKeys    map[engine.EventKey]engine.EventID
	contributors map[engine.ContributorID]engine.Contributor
	contribKeys  map[engine.ContributorKey]engine.ContributorID
	runs         []engine.RunRecord

	// Hooks let tests inject failures per operation.
	FailInsertContributor func(c engine.Contributor) error
	FailMarkNotified      func(id engine.ContributorID) error
}

func NewMemory() *Memory {
	return &Memory{
		communities:  make(map[engine.CommunityID]engine.Community),
		members:      make(map[engine.MemberID]engine.Member),
		events:       make(map[engine.EventID]engine.Event),
		eventKeys:    make(map[engine.EventKey]engine.EventID),
		contributors: make(map[engine.ContributorID]engine.Contributor),
		contribKeys:  make(map[engine.ContributorKey]engine.ContributorID),
	}
}

var _ engine.Store = (*Memory)(nil)

// =============================================================================
// COMMUNITIES & MEMBERS
// =============================================================================

func (m *Memory) ListCommunities(_ context.Context) ([]engine.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Community, 0, len(m.communities))
	for _, c := range m.communities {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) GetCommunity(_ context.Context, id engine.CommunityID) (*engine.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.communities[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) CreateCommunity(_ context.Context, c engine.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.communities[c.ID]; ok {
		return engine.ErrDuplicateCommunity
	}
	m.communities[c.ID] = c
	return nil
}

// CreateCommunityWithCreator inserts both rows or neither.
func (m *Memory) CreateCommunityWithCreator(_ context.Context, c engine.Community, creator engine.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.communities[c.ID]; ok {
		return engine.ErrDuplicateCommunity
	}
	if creator.CommunityID != c.ID {
		return engine.ErrCommunityNotFound
	}
	if _, ok := m.members[creator.ID]; ok {
		return engine.ErrDuplicateMember
	}
	c.MemberCount++
	m.communities[c.ID] = c
	m.members[creator.ID] = creator
	return nil
}

func (m *Memory) SetCommunityStatus(_ context.Context, id engine.CommunityID, status engine.CommunityStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.communities[id]
	if !ok {
		return engine.ErrCommunityNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	m.communities[id] = c
	return nil
}

func (m *Memory) ListMembers(_ context.Context, filter engine.MemberFilter) ([]engine.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Member
	for _, mem := range m.members {
		if filter.CommunityID != nil && mem.CommunityID != *filter.CommunityID {
			continue
		}
		result = append(result, mem)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetMember(_ context.Context, id engine.MemberID) (*engine.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mem, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	return &mem, nil
}

// AddMember inserts the member and bumps the community's member count.
func (m *Memory) AddMember(_ context.Context, mem engine.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.communities[mem.CommunityID]
	if !ok {
		return engine.ErrCommunityNotFound
	}
	if _, ok := m.members[mem.ID]; ok {
		return engine.ErrDuplicateMember
	}
	m.members[mem.ID] = mem
	c.MemberCount++
	m.communities[c.ID] = c
	return nil
}

func (m *Memory) UpdateMember(_ context.Context, mem engine.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.members[mem.ID]
	if !ok {
		return engine.ErrMemberNotFound
	}
	existing.Name = mem.Name
	existing.Phone = mem.Phone
	existing.Email = mem.Email
	existing.PaymentAlias = mem.PaymentAlias
	existing.ChildName = mem.ChildName
	existing.ChildBirthDate = mem.ChildBirthDate
	existing.UpdatedAt = mem.UpdatedAt
	m.members[mem.ID] = existing
	return nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (m *Memory) ListEvents(_ context.Context, filter engine.EventFilter) ([]engine.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Event
	for _, e := range m.events {
		if filter.CommunityID != nil && e.CommunityID != *filter.CommunityID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurrenceDate.Equal(result[j].OccurrenceDate) {
			return result[i].OccurrenceDate.Before(result[j].OccurrenceDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetEvent(_ context.Context, id engine.EventID) (*engine.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) CreateEvent(_ context.Context, e engine.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.eventKeys[e.Key()]; ok {
		return engine.ErrDuplicateEvent
	}
	if _, ok := m.events[e.ID]; ok {
		return engine.ErrDuplicateEvent
	}
	m.events[e.ID] = e
	m.eventKeys[e.Key()] = e.ID
	return nil
}

func (m *Memory) SetEventStatus(_ context.Context, id engine.EventID, status engine.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return engine.ErrEventNotFound
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	m.events[id] = e
	return nil
}

// =============================================================================
// CONTRIBUTORS
// =============================================================================

func (m *Memory) ListContributors(_ context.Context, filter engine.ContributorFilter) ([]engine.Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Contributor
	for _, c := range m.contributors {
		if filter.EventID != nil && c.EventID != *filter.EventID {
			continue
		}
		if filter.CommunityID != nil && c.CommunityID != *filter.CommunityID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetContributor(_ context.Context, id engine.ContributorID) (*engine.Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contributors[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) InsertContributor(_ context.Context, c engine.Contributor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsertContributor != nil {
		if err := m.FailInsertContributor(c); err != nil {
			return err
		}
	}
	if c.Identity == "" {
		c.Identity = c.Key().Identity
	}
	if _, ok := m.contribKeys[c.Key()]; ok {
		return engine.ErrDuplicateContributor
	}
	m.contributors[c.ID] = c
	m.contribKeys[c.Key()] = c.ID
	return nil
}

func (m *Memory) UpdateContributorContact(_ context.Context, upd engine.Contributor, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contributors[upd.ID]
	if !ok {
		return engine.ErrContributorNotFound
	}
	oldKey := c.Key()
	c.Identity = upd.Key().Identity
	c.Name, c.Phone, c.Email = upd.Name, upd.Phone, upd.Email
	if newKey := c.Key(); newKey != oldKey {
		if _, taken := m.contribKeys[newKey]; taken {
			return engine.ErrDuplicateContributor
		}
		delete(m.contribKeys, oldKey)
		m.contribKeys[newKey] = c.ID
	}
	c.UpdatedAt = at
	m.contributors[c.ID] = c
	return nil
}

func (m *Memory) MarkEmailNotified(_ context.Context, id engine.ContributorID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailMarkNotified != nil {
		if err := m.FailMarkNotified(id); err != nil {
			return err
		}
	}
	c, ok := m.contributors[id]
	if !ok {
		return engine.ErrContributorNotFound
	}
	c.EmailNotified = true
	c.EmailNotifiedAt = &at
	c.UpdatedAt = at
	m.contributors[id] = c
	return nil
}

func (m *Memory) ResetNotification(_ context.Context, id engine.ContributorID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contributors[id]
	if !ok {
		return engine.ErrContributorNotFound
	}
	c.EmailNotified, c.EmailNotifiedAt = false, nil
	c.WhatsappNotified, c.WhatsappNotifiedAt = false, nil
	c.UpdatedAt = at
	m.contributors[id] = c
	return nil
}

// ConfirmPayment marks the contributor paid and credits the event in one step.
func (m *Memory) ConfirmPayment(_ context.Context, p engine.PaymentConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contributors[p.ContributorID]
	if !ok {
		return engine.ErrContributorNotFound
	}
	if c.Status == engine.PaymentPaid {
		return engine.ErrAlreadyPaid
	}
	e, ok := m.events[c.EventID]
	if !ok {
		return engine.ErrEventNotFound
	}

	c.Status = engine.PaymentPaid
	c.AmountPaid = p.Amount
	c.PaymentMethod = p.Method
	c.PaymentReference = p.Reference
	if p.Notes != "" {
		c.Notes = p.Notes
	}
	c.UpdatedAt = p.ConfirmedAt
	m.contributors[c.ID] = c

	e.Collected = e.Collected.Add(p.Amount)
	e.UpdatedAt = p.ConfirmedAt
	m.events[e.ID] = e
	return nil
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run engine.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]engine.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.RunRecord
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, m.runs[i])
	}
	return result, nil
}

// Reset drops every row, runs included.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.communities = make(map[engine.CommunityID]engine.Community)
	m.members = make(map[engine.MemberID]engine.Member)
	m.events = make(map[engine.EventID]engine.Event)
	m.eventKeys = make(map[engine.EventKey]engine.EventID)
	m.contributors = make(map[engine.ContributorID]engine.Contributor)
	m.contribKeys = make(map[engine.ContributorKey]engine.ContributorID)
	m.runs = nil
	return nil
}
