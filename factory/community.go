/*
Package factory turns API input into engine records.

PURPOSE:
  Builds Community and Member values from request payloads: normalises
  text and emails, derives stable identifiers, validates the child's birth
  date up front and fills defaults. Handlers and demo scenarios go
  through here so every record in the store has the same shape.

IDENTIFIERS:
  Community ID: slug of institution, grade, section and name
                ("Jardín Arcoíris", "3", "B", "Sala Roja" -> "jardin-arcoiris-3-b-sala-roja")
  Member ID:    UUIDv5 over (community ID, lower-cased name, lower-cased email),
                so re-submitting the same join form yields the same ID

DEFAULTS:
  - Member.Amount inherits the community's per-member amount
  - The creator joins as a member with RoleCreator
  - Status starts active

USAGE:
  f := factory.NewCommunityFactory()
  community, creator, err := f.NewCommunity(factory.CommunityInput{...})
  member, err := f.NewMember(community, factory.MemberInput{...})
  member, err = f.UpdateMember(member, factory.MemberUpdate{Email: &email})

SEE ALSO:
  - api/handlers.go: POST /api/communities, POST /api/communities/{id}/members,
    PATCH /api/communities/{id}/members/{memberID}
  - api/scenarios.go: demo data
*/
package factory

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/heyjack/giftpool/engine"
)

// memberNamespace scopes UUIDv5 member IDs.
var memberNamespace = uuid.MustParse("6f1c8f43-2b1e-4d0c-9a43-6d2f8f4b7a11")

// ErrInvalidInput is returned when required fields are missing or malformed.
var ErrInvalidInput = errors.New("invalid input")

// =============================================================================
// INPUT TYPES
// =============================================================================

// CommunityInput is what a creator submits to open a community.
type CommunityInput struct {
	Name            string
	Institution     string
	Grade           string
	Section         string
	PerMemberAmount decimal.Decimal
	Creator         MemberInput
}

// MemberInput is one parent's join form.
type MemberInput struct {
	Name           string
	Phone          string
	Email          string
	PaymentAlias   string
	ChildName      string
	ChildBirthDate string

	// Amount overrides the community default when positive.
	Amount decimal.Decimal
}

// MemberUpdate is a partial edit of a member profile. Nil fields are kept.
type MemberUpdate struct {
	Name           *string
	Phone          *string
	Email          *string
	PaymentAlias   *string
	ChildName      *string
	ChildBirthDate *string
}

// =============================================================================
// FACTORY
// =============================================================================

// CommunityFactory builds communities and members.
type CommunityFactory struct {
	now func() time.Time
}

func NewCommunityFactory() *CommunityFactory {
	return &CommunityFactory{now: time.Now}
}

// WithClock fixes the timestamps the factory stamps on records.
func (f *CommunityFactory) WithClock(now func() time.Time) *CommunityFactory {
	f.now = now
	return f
}

// NewCommunity builds a community and its creator member.
func (f *CommunityFactory) NewCommunity(in CommunityInput) (engine.Community, engine.Member, error) {
	name := cleanText(in.Name)
	if name == "" {
		return engine.Community{}, engine.Member{}, fmt.Errorf("%w: community name is required", ErrInvalidInput)
	}
	if in.PerMemberAmount.IsNegative() {
		return engine.Community{}, engine.Member{}, fmt.Errorf("%w: per-member amount must not be negative", ErrInvalidInput)
	}

	id := CommunitySlug(in.Institution, in.Grade, in.Section, name)
	if id == "" {
		return engine.Community{}, engine.Member{}, fmt.Errorf("%w: community name has no usable characters", ErrInvalidInput)
	}

	now := f.now().UTC()
	community := engine.Community{
		ID:              engine.CommunityID(id),
		Name:            name,
		Institution:     cleanText(in.Institution),
		Grade:           cleanText(in.Grade),
		Section:         cleanText(in.Section),
		CreatorName:     cleanText(in.Creator.Name),
		CreatorEmail:    engine.NormalizeEmail(in.Creator.Email),
		CreatorPhone:    cleanPhone(in.Creator.Phone),
		PerMemberAmount: in.PerMemberAmount,
		Status:          engine.CommunityActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	creator, err := f.member(community, in.Creator, engine.RoleCreator)
	if err != nil {
		return engine.Community{}, engine.Member{}, err
	}
	return community, creator, nil
}

// NewMember builds a member joining community. Inactive communities refuse joins.
func (f *CommunityFactory) NewMember(community engine.Community, in MemberInput) (engine.Member, error) {
	if !community.IsActive() {
		return engine.Member{}, engine.ErrCommunityInactive
	}
	return f.member(community, in, engine.RoleMember)
}

// UpdateMember applies an edit to m with the same normalisation as joining.
// The member ID never changes.
func (f *CommunityFactory) UpdateMember(m engine.Member, in MemberUpdate) (engine.Member, error) {
	if in.Name != nil {
		name := cleanText(*in.Name)
		if name == "" {
			return engine.Member{}, fmt.Errorf("%w: member name is required", ErrInvalidInput)
		}
		m.Name = name
	}
	if in.Phone != nil {
		m.Phone = cleanPhone(*in.Phone)
	}
	if in.Email != nil {
		m.Email = engine.NormalizeEmail(*in.Email)
	}
	if in.PaymentAlias != nil {
		m.PaymentAlias = strings.TrimSpace(*in.PaymentAlias)
	}
	if in.ChildName != nil {
		m.ChildName = cleanText(*in.ChildName)
	}
	if in.ChildBirthDate != nil {
		birth := strings.TrimSpace(*in.ChildBirthDate)
		if _, err := engine.ParseBirthDate(birth); err != nil {
			return engine.Member{}, err
		}
		m.ChildBirthDate = birth
	}
	m.UpdatedAt = f.now().UTC()
	return m, nil
}

func (f *CommunityFactory) member(community engine.Community, in MemberInput, role engine.Role) (engine.Member, error) {
	name := cleanText(in.Name)
	if name == "" {
		return engine.Member{}, fmt.Errorf("%w: member name is required", ErrInvalidInput)
	}

	birth := strings.TrimSpace(in.ChildBirthDate)
	if _, err := engine.ParseBirthDate(birth); err != nil {
		return engine.Member{}, err
	}

	amount := community.PerMemberAmount
	if in.Amount.IsPositive() {
		amount = in.Amount
	}

	email := engine.NormalizeEmail(in.Email)
	now := f.now().UTC()
	return engine.Member{
		ID:             MemberID(community.ID, name, email),
		CommunityID:    community.ID,
		Name:           name,
		Phone:          cleanPhone(in.Phone),
		Email:          email,
		PaymentAlias:   strings.TrimSpace(in.PaymentAlias),
		ChildName:      cleanText(in.ChildName),
		ChildBirthDate: birth,
		Role:           role,
		Amount:         amount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// CommunitySlug joins the non-empty parts into a lower-case ASCII slug.
func CommunitySlug(parts ...string) string {
	var words []string
	for _, p := range parts {
		if s := slugify(p); s != "" {
			words = append(words, s)
		}
	}
	return strings.Join(words, "-")
}

// MemberID derives a stable member ID from community, name and email.
func MemberID(community engine.CommunityID, name, email string) engine.MemberID {
	key := string(community) + "|" + strings.ToLower(cleanText(name)) + "|" + engine.NormalizeEmail(email)
	return engine.MemberID(uuid.NewSHA1(memberNamespace, []byte(key)).String())
}

// =============================================================================
// NORMALISATION HELPERS
// =============================================================================

func slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// cleanText trims and collapses internal whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanPhone keeps digits and a leading plus.
func cleanPhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
