package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/heyjack/giftpool/engine"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

var (
	// testToday is March 1, 2026; Milan's birthday is 10 days later.
	testToday    = engine.NewDay(2026, time.March, 1)
	testNow      = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	fiveThousand = decimal.NewFromInt(5000)
)

func decimalFrom(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func community(id string) engine.Community {
	return engine.Community{
		ID:              engine.CommunityID(id),
		Name:            "Sala Roja",
		PerMemberAmount: fiveThousand,
		Status:          engine.CommunityActive,
		CreatedAt:       testNow,
	}
}

// member builds a member whose birthday is `days` after testToday. The
// creation order follows seq so roster ordering is deterministic.
func member(cid engine.CommunityID, id, email string, days, seq int) engine.Member {
	d := testToday.AddDays(days)
	return engine.Member{
		ID:             engine.MemberID(id),
		CommunityID:    cid,
		Name:           "Parent " + id,
		Email:          email,
		ChildName:      "Child " + id,
		ChildBirthDate: fmt.Sprintf("%04d-%02d-%02d", d.Year()-4, int(d.Month()), d.Day()),
		Role:           engine.RoleMember,
		Amount:         fiveThousand,
		CreatedAt:      testNow.Add(time.Duration(seq) * time.Minute),
	}
}

// salaRoja is five families with Milan's birthday in 10 days.
func salaRoja() (engine.Community, []engine.Member) {
	c := community("sala-roja")
	c.MemberCount = 5
	c.CreatorName = "Laura"

	creator := member(c.ID, "laura", "laura@example.com", 120, 0)
	creator.Role = engine.RoleCreator
	creator.PaymentAlias = "laura.gomez.mp"

	milan := member(c.ID, "diego", "diego@example.com", 10, 1)
	milan.ChildName = "Milan"

	return c, []engine.Member{
		creator,
		milan,
		member(c.ID, "ana", "ana@example.com", 45, 2),
		member(c.ID, "bruno", "bruno@example.com", 200, 3),
		member(c.ID, "carla", "carla@example.com", 300, 4),
	}
}

// =============================================================================
// STUB SENDER
// =============================================================================

type stubSender struct {
	mu   sync.Mutex
	sent []engine.Email

	// fail returns an error for the given recipient, nil to accept.
	fail func(to string) error
}

func (s *stubSender) Send(ctx context.Context, msg engine.Email) (engine.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return engine.DeliveryReceipt{}, err
	}
	if s.fail != nil {
		if err := s.fail(msg.To); err != nil {
			return engine.DeliveryReceipt{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return engine.DeliveryReceipt{MessageID: fmt.Sprintf("msg-%d", len(s.sent)), AcceptedAt: time.Now()}, nil
}

func (s *stubSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var to []string
	for _, m := range s.sent {
		to = append(to, m.To)
	}
	return to
}
