/*
activation.go - Event Activation Rule

PURPOSE:
  Decides which birthdays become active fundraising events. A member's
  child birthday is "imminent" when its next occurrence is at most
  LookaheadDays away (inclusive). Each imminent birthday needs exactly one
  event per (community, honoree member, occurrence year).

RULES:
  1. Parse the member's child birth date. Malformed -> InvalidDateError,
     member skipped, failure reported, scan continues.
  2. Members of unknown communities are reported; members of inactive
     communities are skipped without a report.
  3. Already-present key (any status) -> AlreadyActive, nothing written.
  4. Absent key -> creation request with
       Target = (memberCount - 1) x community.PerMemberAmount
       Collected = 0
     The honoree does not pay for their own child.

IDEMPOTENCY:
  Pure function of its inputs. Running it twice on the same day with the
  created events fed back as Existing creates nothing the second time and
  never touches an existing event's Collected total.

SEE ALSO:
  - time.go: NextOccurrence
  - runner.go: persists Created, treats insert conflicts as AlreadyActive
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultLookaheadDays is the lead window before a birthday.
const DefaultLookaheadDays = 15

// ActivationInput is everything the rule looks at.
type ActivationInput struct {
	Today         Day
	LookaheadDays int
	Communities   []Community
	Members       []Member
	Existing      []Event
}

// ActivationResult lists events to create (without IDs), events that already
// cover an imminent birthday, and members that could not be evaluated.
type ActivationResult struct {
	Created       []Event
	AlreadyActive []Event
	Failures      []Failure
}

// ActivateUpcoming applies the activation rule.
func ActivateUpcoming(in ActivationInput) ActivationResult {
	var result ActivationResult

	communities := make(map[CommunityID]Community, len(in.Communities))
	for _, c := range in.Communities {
		communities[c.ID] = c
	}

	counted := make(map[CommunityID]int)
	for _, m := range in.Members {
		counted[m.CommunityID]++
	}

	existing := make(map[EventKey]Event, len(in.Existing))
	for _, e := range in.Existing {
		existing[e.Key()] = e
	}

	for _, m := range in.Members {
		community, ok := communities[m.CommunityID]
		if !ok {
			result.Failures = append(result.Failures, newFailure(StageActivation, memberItem(m.ID),
				fmt.Errorf("%w: %s", ErrCommunityNotFound, m.CommunityID)))
			continue
		}
		if !community.IsActive() {
			continue
		}

		md, err := ParseBirthDate(m.ChildBirthDate)
		if err != nil {
			if de, ok := err.(*InvalidDateError); ok {
				de.MemberID = m.ID
			}
			result.Failures = append(result.Failures, newFailure(StageActivation, memberItem(m.ID), err))
			continue
		}

		occ := NextOccurrence(md, in.Today)
		if occ.DaysUntil > in.LookaheadDays {
			continue
		}

		key := EventKey{CommunityID: m.CommunityID, HonoreeMemberID: m.ID, Year: occ.Date.Year()}
		if e, ok := existing[key]; ok {
			result.AlreadyActive = append(result.AlreadyActive, e)
			continue
		}

		memberCount := community.MemberCount
		if memberCount <= 0 {
			memberCount = counted[m.CommunityID]
		}

		e := Event{
			CommunityID:     m.CommunityID,
			HonoreeMemberID: m.ID,
			HonoreeIdentity: m.Identity(),
			HonoreeName:     honoreeName(m),
			OccurrenceDate:  occ.Date,
			Status:          EventActive,
			Collected:       decimal.Zero,
			Target:          TargetAmount(memberCount, community.PerMemberAmount),
			RosterSize:      max(memberCount-1, 0),
		}
		existing[key] = e
		result.Created = append(result.Created, e)
	}

	return result
}

func honoreeName(m Member) string {
	if m.ChildName != "" {
		return m.ChildName
	}
	return m.Name
}

func memberItem(id MemberID) string { return "member:" + string(id) }
