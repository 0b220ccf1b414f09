/*
reconcile.go - Contributor Reconciliation Engine

PURPOSE:
  Makes the contributor roster of a community consistent with its current
  members and active events. Every eligible member ends up with exactly
  one contributor row per active event.

FOR EVERY (active event E, member M) OF THE COMMUNITY:
  - M is the honoree of E        -> not a contributor of E
  - no row for (E, identity(M))  -> Added: pending, not notified,
                                    Amount = community per-member share
  - row exists, contact differs  -> Updated: name/phone/email only
  - row exists, contact matches  -> Skipped
  - no row for the identity, but
    a row for (E, M's member ID) -> Updated: the member changed email,
                                    identity moves with it

IDENTITY:
  identity(M) is the lower-cased email, or "id:<member id>" without one.
  Two member rows with the same email (one parent, two children in the
  same classroom) collapse into one contributor; the earliest member row
  (created_at, then ID) supplies the contact fields so the choice is
  stable across runs.

IDEMPOTENCY:
  Feeding the result back in as contributors yields zero Added and zero
  Updated. A member never ends up with two rows for the same event.
  Payment status, amounts paid and notification flags are never part of
  an update.

SEE ALSO:
  - runner.go: applies Added/Updated one row at a time
  - types.go: Identity, ContributorKey
*/
package engine

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ReconcileResult lists the writes needed for one community. Added rows have
// no ID yet; Updated rows carry the existing ID with fresh contact fields.
type ReconcileResult struct {
	Added   []Contributor
	Updated []Contributor
	Skipped int
}

// Reconcile computes the contributor writes for one community.
func Reconcile(community Community, members []Member, events []Event, contributors []Contributor) ReconcileResult {
	var result ReconcileResult

	roster := uniqueMembers(community.ID, members)

	index := make(map[ContributorKey]Contributor, len(contributors))
	byMember := make(map[memberKey]ContributorKey, len(contributors))
	for _, c := range contributors {
		k := c.Key()
		if _, seen := index[k]; !seen {
			index[k] = c
		}
		mk := memberKey{EventID: c.EventID, MemberID: c.MemberID}
		if _, seen := byMember[mk]; !seen {
			byMember[mk] = k
		}
	}
	// claimed holds rows already matched by identity in this pass; they
	// cannot also be moved to a member's new email.
	claimed := make(map[ContributorKey]bool)

	for _, e := range events {
		if !e.IsActive() || e.CommunityID != community.ID {
			continue
		}
		for _, m := range roster {
			if m.ID == e.HonoreeMemberID || m.Identity() == e.HonoreeIdentity {
				continue
			}

			key := ContributorKey{EventID: e.ID, Identity: m.Identity()}
			existing, ok := index[key]
			if !ok {
				if moved, found := moveToIdentity(index, byMember, claimed, e.ID, m); found {
					claimed[moved.Key()] = true
					result.Updated = append(result.Updated, moved)
					continue
				}
				c := newContributor(community, e, m)
				index[key] = c
				result.Added = append(result.Added, c)
				continue
			}
			claimed[key] = true

			if contactMatches(existing, m) {
				result.Skipped++
				continue
			}

			existing.Name = strings.TrimSpace(m.Name)
			existing.Phone = strings.TrimSpace(m.Phone)
			existing.Email = strings.TrimSpace(m.Email)
			index[key] = existing
			result.Updated = append(result.Updated, existing)
		}
	}

	return result
}

type memberKey struct {
	EventID  EventID
	MemberID MemberID
}

// moveToIdentity re-keys the member's existing row on event eventID to the
// member's current identity and contact fields.
func moveToIdentity(index map[ContributorKey]Contributor, byMember map[memberKey]ContributorKey,
	claimed map[ContributorKey]bool, eventID EventID, m Member) (Contributor, bool) {
	oldKey, ok := byMember[memberKey{EventID: eventID, MemberID: m.ID}]
	if !ok || claimed[oldKey] {
		return Contributor{}, false
	}
	c, ok := index[oldKey]
	if !ok {
		return Contributor{}, false
	}

	c.Identity = m.Identity()
	c.Name = strings.TrimSpace(m.Name)
	c.Phone = strings.TrimSpace(m.Phone)
	c.Email = strings.TrimSpace(m.Email)

	delete(index, oldKey)
	index[c.Key()] = c
	return c, true
}

// uniqueMembers returns the community's members, one per identity, ordered
// by (CreatedAt, ID).
func uniqueMembers(id CommunityID, members []Member) []Member {
	var own []Member
	for _, m := range members {
		if m.CommunityID == id {
			own = append(own, m)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		if !own[i].CreatedAt.Equal(own[j].CreatedAt) {
			return own[i].CreatedAt.Before(own[j].CreatedAt)
		}
		return own[i].ID < own[j].ID
	})

	seen := make(map[Identity]bool, len(own))
	unique := own[:0]
	for _, m := range own {
		if seen[m.Identity()] {
			continue
		}
		seen[m.Identity()] = true
		unique = append(unique, m)
	}
	return unique
}

func newContributor(community Community, e Event, m Member) Contributor {
	return Contributor{
		EventID:     e.ID,
		CommunityID: community.ID,
		MemberID:    m.ID,
		Identity:    m.Identity(),
		Name:        strings.TrimSpace(m.Name),
		Phone:       strings.TrimSpace(m.Phone),
		Email:       strings.TrimSpace(m.Email),
		Amount:      community.PerMemberAmount,
		Status:      PaymentPending,
		AmountPaid:  decimal.Zero,
	}
}

func contactMatches(c Contributor, m Member) bool {
	return c.Name == strings.TrimSpace(m.Name) &&
		c.Phone == strings.TrimSpace(m.Phone) &&
		c.Email == strings.TrimSpace(m.Email)
}
