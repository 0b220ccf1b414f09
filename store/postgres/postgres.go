/*
Package postgres provides a PostgreSQL implementation of engine.Store on pgx.

PURPOSE:
  Production persistence. Same tables and uniqueness rules as
  store/sqlite, with NUMERIC amounts, DATE occurrences and TIMESTAMPTZ
  timestamps.

AMOUNTS:
  NUMERIC columns are read as text (col::text) and parsed with
  shopspring/decimal, and written as text cast to NUMERIC, so no float
  ever touches money. The collected total is incremented in SQL.

CONFLICTS:
  Unique violations (SQLSTATE 23505) map to the engine's duplicate
  sentinels. Foreign key violations (23503) on member insert map to
  ErrCommunityNotFound.

USAGE:
  pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
  store := postgres.New(pool)
  if err := store.Migrate(ctx); err != nil { ... }

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
  - engine/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heyjack/giftpool/engine"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements engine.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ engine.Store = (*Store)(nil)

// NewPool creates a pgx connection pool and checks it answers.
func NewPool(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL connection pool established")
	return pool, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Reset empties every table. Demo scenarios only.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE contributors, events, members, communities, runs`)
	if err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS communities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	institution TEXT NOT NULL DEFAULT '',
	grade TEXT NOT NULL DEFAULT '',
	section TEXT NOT NULL DEFAULT '',
	creator_name TEXT NOT NULL DEFAULT '',
	creator_email TEXT NOT NULL DEFAULT '',
	creator_phone TEXT NOT NULL DEFAULT '',
	member_count INTEGER NOT NULL DEFAULT 0,
	per_member_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
	id TEXT PRIMARY KEY,
	community_id TEXT NOT NULL REFERENCES communities(id),
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	payment_alias TEXT NOT NULL DEFAULT '',
	child_name TEXT NOT NULL DEFAULT '',
	child_birth_date TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'member',
	amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_members_community ON members(community_id, created_at);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	community_id TEXT NOT NULL REFERENCES communities(id),
	honoree_member_id TEXT NOT NULL,
	honoree_identity TEXT NOT NULL DEFAULT '',
	honoree_name TEXT NOT NULL DEFAULT '',
	occurrence_date DATE NOT NULL,
	occurrence_year INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	collected NUMERIC(14,2) NOT NULL DEFAULT 0,
	target NUMERIC(14,2) NOT NULL DEFAULT 0,
	roster_size INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_unique_occurrence
	ON events(community_id, honoree_member_id, occurrence_year);
CREATE INDEX IF NOT EXISTS idx_events_community_status ON events(community_id, status);

CREATE TABLE IF NOT EXISTS contributors (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES events(id),
	community_id TEXT NOT NULL,
	member_id TEXT NOT NULL,
	identity TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	amount_paid NUMERIC(14,2) NOT NULL DEFAULT 0,
	payment_method TEXT NOT NULL DEFAULT '',
	payment_reference TEXT NOT NULL DEFAULT '',
	email_notified BOOLEAN NOT NULL DEFAULT FALSE,
	email_notified_at TIMESTAMPTZ,
	whatsapp_notified BOOLEAN NOT NULL DEFAULT FALSE,
	whatsapp_notified_at TIMESTAMPTZ,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contributors_unique_identity ON contributors(event_id, identity);
CREATE INDEX IF NOT EXISTS idx_contributors_community_status ON contributors(community_id, status);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	trigger_source TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	today DATE NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	events_created INTEGER NOT NULL DEFAULT 0,
	events_already_active INTEGER NOT NULL DEFAULT 0,
	contributors_added INTEGER NOT NULL DEFAULT 0,
	contributors_updated INTEGER NOT NULL DEFAULT 0,
	contributors_skipped INTEGER NOT NULL DEFAULT 0,
	emails_sent INTEGER NOT NULL DEFAULT 0,
	emails_failed INTEGER NOT NULL DEFAULT 0,
	failures JSONB NOT NULL DEFAULT '[]',
	seq BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// =============================================================================
// COMMUNITIES
// =============================================================================

const communityColumns = `id, name, institution, grade, section, creator_name, creator_email,
	creator_phone, member_count, per_member_amount::text, status, created_at, updated_at`

func (s *Store) ListCommunities(ctx context.Context) ([]engine.Community, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+communityColumns+" FROM communities ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []engine.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) GetCommunity(ctx context.Context, id engine.CommunityID) (*engine.Community, error) {
	c, err := scanCommunity(s.pool.QueryRow(ctx, "SELECT "+communityColumns+" FROM communities WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) CreateCommunity(ctx context.Context, c engine.Community) error {
	return insertCommunity(ctx, s.pool, c)
}

// CreateCommunityWithCreator inserts the community and its creator in one
// transaction.
func (s *Store) CreateCommunityWithCreator(ctx context.Context, c engine.Community, creator engine.Member) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertCommunity(ctx, tx, c); err != nil {
		return err
	}
	if err := insertMember(ctx, tx, creator); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertCommunity(ctx context.Context, db execer, c engine.Community) error {
	const q = `INSERT INTO communities (id, name, institution, grade, section, creator_name, creator_email,
			creator_phone, member_count, per_member_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13)`
	_, err := db.Exec(ctx, q,
		c.ID, c.Name, c.Institution, c.Grade, c.Section, c.CreatorName, c.CreatorEmail,
		c.CreatorPhone, c.MemberCount, c.PerMemberAmount.String(), c.Status, c.CreatedAt, c.UpdatedAt)
	return mapError(err, engine.ErrDuplicateCommunity)
}

func (s *Store) SetCommunityStatus(ctx context.Context, id engine.CommunityID, status engine.CommunityStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE communities SET status = $1, updated_at = now() WHERE id = $2", status, id)
	return affected(tag, err, engine.ErrCommunityNotFound)
}

// =============================================================================
// MEMBERS
// =============================================================================

const memberColumns = `id, community_id, name, phone, email, payment_alias, child_name,
	child_birth_date, role, amount::text, created_at, updated_at`

func (s *Store) ListMembers(ctx context.Context, filter engine.MemberFilter) ([]engine.Member, error) {
	q := "SELECT " + memberColumns + " FROM members"
	var args []any
	if filter.CommunityID != nil {
		q += " WHERE community_id = $1"
		args = append(args, *filter.CommunityID)
	}
	q += " ORDER BY created_at, id"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []engine.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *Store) GetMember(ctx context.Context, id engine.MemberID) (*engine.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) AddMember(ctx context.Context, m engine.Member) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMember(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// insertMember inserts m and increments its community's member_count.
func insertMember(ctx context.Context, tx execer, m engine.Member) error {
	const insert = `INSERT INTO members (id, community_id, name, phone, email, payment_alias, child_name,
			child_birth_date, role, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12)`
	_, err := tx.Exec(ctx, insert,
		m.ID, m.CommunityID, m.Name, m.Phone, m.Email, m.PaymentAlias, m.ChildName,
		m.ChildBirthDate, m.Role, m.Amount.String(), m.CreatedAt, m.UpdatedAt)
	if err := mapError(err, engine.ErrDuplicateMember); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		"UPDATE communities SET member_count = member_count + 1, updated_at = $1 WHERE id = $2",
		m.CreatedAt, m.CommunityID)
	return affected(tag, err, engine.ErrCommunityNotFound)
}

func (s *Store) UpdateMember(ctx context.Context, m engine.Member) error {
	const q = `UPDATE members
		SET name = $1, phone = $2, email = $3, payment_alias = $4, child_name = $5,
			child_birth_date = $6, updated_at = $7
		WHERE id = $8`
	tag, err := s.pool.Exec(ctx, q,
		m.Name, m.Phone, m.Email, m.PaymentAlias, m.ChildName, m.ChildBirthDate, m.UpdatedAt, m.ID)
	return affected(tag, err, engine.ErrMemberNotFound)
}

// =============================================================================
// EVENTS
// =============================================================================

const eventColumns = `id, community_id, honoree_member_id, honoree_identity, honoree_name,
	occurrence_date, status, collected::text, target::text, roster_size, created_at, updated_at`

func (s *Store) ListEvents(ctx context.Context, filter engine.EventFilter) ([]engine.Event, error) {
	var w where
	if filter.CommunityID != nil {
		w.add("community_id", *filter.CommunityID)
	}
	if filter.Status != nil {
		w.add("status", *filter.Status)
	}

	rows, err := s.pool.Query(ctx, "SELECT "+eventColumns+" FROM events"+w.sql()+" ORDER BY occurrence_date, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []engine.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id engine.EventID) (*engine.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEvent(ctx context.Context, e engine.Event) error {
	const q = `INSERT INTO events (id, community_id, honoree_member_id, honoree_identity, honoree_name,
			occurrence_date, occurrence_year, status, collected, target, roster_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11, $12, $13)`
	_, err := s.pool.Exec(ctx, q,
		e.ID, e.CommunityID, e.HonoreeMemberID, e.HonoreeIdentity, e.HonoreeName,
		e.OccurrenceDate.Time, e.OccurrenceDate.Year(), e.Status, e.Collected.String(), e.Target.String(), e.RosterSize,
		e.CreatedAt, e.UpdatedAt)
	return mapError(err, engine.ErrDuplicateEvent)
}

func (s *Store) SetEventStatus(ctx context.Context, id engine.EventID, status engine.EventStatus) error {
	tag, err := s.pool.Exec(ctx, "UPDATE events SET status = $1, updated_at = now() WHERE id = $2", status, id)
	return affected(tag, err, engine.ErrEventNotFound)
}

// =============================================================================
// CONTRIBUTORS
// =============================================================================

const contributorColumns = `id, event_id, community_id, member_id, identity, name, phone, email,
	amount::text, status, amount_paid::text, payment_method, payment_reference,
	email_notified, email_notified_at, whatsapp_notified, whatsapp_notified_at,
	notes, created_at, updated_at`

func (s *Store) ListContributors(ctx context.Context, filter engine.ContributorFilter) ([]engine.Contributor, error) {
	var w where
	if filter.EventID != nil {
		w.add("event_id", *filter.EventID)
	}
	if filter.CommunityID != nil {
		w.add("community_id", *filter.CommunityID)
	}
	if filter.Status != nil {
		w.add("status", *filter.Status)
	}

	rows, err := s.pool.Query(ctx, "SELECT "+contributorColumns+" FROM contributors"+w.sql()+" ORDER BY created_at, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []engine.Contributor
	for rows.Next() {
		c, err := scanContributor(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) GetContributor(ctx context.Context, id engine.ContributorID) (*engine.Contributor, error) {
	c, err := scanContributor(s.pool.QueryRow(ctx, "SELECT "+contributorColumns+" FROM contributors WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertContributor(ctx context.Context, c engine.Contributor) error {
	const q = `INSERT INTO contributors (id, event_id, community_id, member_id, identity, name, phone, email,
			amount, status, amount_paid, payment_method, payment_reference,
			email_notified, email_notified_at, whatsapp_notified, whatsapp_notified_at,
			notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11::numeric, $12, $13,
			$14, $15, $16, $17, $18, $19, $20)`
	_, err := s.pool.Exec(ctx, q,
		c.ID, c.EventID, c.CommunityID, c.MemberID, c.Key().Identity, c.Name, c.Phone, c.Email,
		c.Amount.String(), c.Status, c.AmountPaid.String(), c.PaymentMethod, c.PaymentReference,
		c.EmailNotified, c.EmailNotifiedAt, c.WhatsappNotified, c.WhatsappNotifiedAt,
		c.Notes, c.CreatedAt, c.UpdatedAt)
	return mapError(err, engine.ErrDuplicateContributor)
}

func (s *Store) UpdateContributorContact(ctx context.Context, c engine.Contributor, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE contributors SET identity = $1, name = $2, phone = $3, email = $4, updated_at = $5 WHERE id = $6",
		c.Key().Identity, c.Name, c.Phone, c.Email, at, c.ID)
	return affected(tag, mapError(err, engine.ErrDuplicateContributor), engine.ErrContributorNotFound)
}

func (s *Store) MarkEmailNotified(ctx context.Context, id engine.ContributorID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE contributors SET email_notified = TRUE, email_notified_at = $1, updated_at = $1 WHERE id = $2",
		at, id)
	return affected(tag, err, engine.ErrContributorNotFound)
}

func (s *Store) ResetNotification(ctx context.Context, id engine.ContributorID, at time.Time) error {
	const q = `UPDATE contributors
		SET email_notified = FALSE, email_notified_at = NULL,
			whatsapp_notified = FALSE, whatsapp_notified_at = NULL, updated_at = $1
		WHERE id = $2`
	tag, err := s.pool.Exec(ctx, q, at, id)
	return affected(tag, err, engine.ErrContributorNotFound)
}

// ConfirmPayment locks the contributor row, marks it paid and credits the event.
func (s *Store) ConfirmPayment(ctx context.Context, p engine.PaymentConfirmation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var eventID, status string
	err = tx.QueryRow(ctx, "SELECT event_id, status FROM contributors WHERE id = $1 FOR UPDATE", p.ContributorID).
		Scan(&eventID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.ErrContributorNotFound
	}
	if err != nil {
		return err
	}
	if engine.PaymentStatus(status) == engine.PaymentPaid {
		return engine.ErrAlreadyPaid
	}

	const pay = `UPDATE contributors
		SET status = $1, amount_paid = $2::numeric, payment_method = $3, payment_reference = $4,
			notes = CASE WHEN $5::text = '' THEN notes ELSE $5::text END, updated_at = $6
		WHERE id = $7`
	if _, err := tx.Exec(ctx, pay, engine.PaymentPaid, p.Amount.String(), p.Method, p.Reference,
		p.Notes, p.ConfirmedAt, p.ContributorID); err != nil {
		return fmt.Errorf("update contributor: %w", err)
	}

	tag, err := tx.Exec(ctx,
		"UPDATE events SET collected = collected + $1::numeric, updated_at = $2 WHERE id = $3",
		p.Amount.String(), p.ConfirmedAt, eventID)
	if err := affected(tag, err, engine.ErrEventNotFound); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run engine.RunRecord) error {
	failures, err := json.Marshal(run.Report.Failures)
	if err != nil {
		return fmt.Errorf("failed to encode run failures: %w", err)
	}
	if run.Report.Failures == nil {
		failures = []byte("[]")
	}
	r := run.Report
	const q = `INSERT INTO runs (id, trigger_source, status, error, today, started_at, finished_at,
			events_created, events_already_active, contributors_added, contributors_updated,
			contributors_skipped, emails_sent, emails_failed, failures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = s.pool.Exec(ctx, q,
		run.ID, run.Trigger, run.Status, run.Error, r.Today.Time, r.StartedAt, r.FinishedAt,
		r.EventsCreated, r.EventsAlreadyActive, r.ContributorsAdded, r.ContributorsUpdated,
		r.ContributorsSkipped, r.EmailsSent, r.EmailsFailed, failures)
	return err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]engine.RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, trigger_source, status, error, today, started_at, finished_at,
			events_created, events_already_active, contributors_added, contributors_updated,
			contributors_skipped, emails_sent, emails_failed, failures
		FROM runs ORDER BY started_at DESC, seq DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []engine.RunRecord
	for rows.Next() {
		var run engine.RunRecord
		var today time.Time
		var failures []byte
		r := &run.Report
		if err := rows.Scan(&run.ID, &run.Trigger, &run.Status, &run.Error, &today, &r.StartedAt, &r.FinishedAt,
			&r.EventsCreated, &r.EventsAlreadyActive, &r.ContributorsAdded, &r.ContributorsUpdated,
			&r.ContributorsSkipped, &r.EmailsSent, &r.EmailsFailed, &failures); err != nil {
			return nil, err
		}
		r.Today = engine.DayOf(today)
		if err := json.Unmarshal(failures, &r.Failures); err != nil {
			return nil, fmt.Errorf("run %s: decode failures: %w", run.ID, err)
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

func scanCommunity(row pgx.Row) (engine.Community, error) {
	var c engine.Community
	var amount string
	err := row.Scan(&c.ID, &c.Name, &c.Institution, &c.Grade, &c.Section, &c.CreatorName, &c.CreatorEmail,
		&c.CreatorPhone, &c.MemberCount, &amount, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.PerMemberAmount, err = decimal.NewFromString(amount)
	return c, err
}

func scanMember(row pgx.Row) (engine.Member, error) {
	var m engine.Member
	var amount string
	err := row.Scan(&m.ID, &m.CommunityID, &m.Name, &m.Phone, &m.Email, &m.PaymentAlias, &m.ChildName,
		&m.ChildBirthDate, &m.Role, &amount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.Amount, err = decimal.NewFromString(amount)
	return m, err
}

func scanEvent(row pgx.Row) (engine.Event, error) {
	var e engine.Event
	var occurrence time.Time
	var collected, target string
	err := row.Scan(&e.ID, &e.CommunityID, &e.HonoreeMemberID, &e.HonoreeIdentity, &e.HonoreeName,
		&occurrence, &e.Status, &collected, &target, &e.RosterSize, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	e.OccurrenceDate = engine.DayOf(occurrence)
	if e.Collected, err = decimal.NewFromString(collected); err != nil {
		return e, err
	}
	e.Target, err = decimal.NewFromString(target)
	return e, err
}

func scanContributor(row pgx.Row) (engine.Contributor, error) {
	var c engine.Contributor
	var amount, paid string
	err := row.Scan(&c.ID, &c.EventID, &c.CommunityID, &c.MemberID, &c.Identity, &c.Name, &c.Phone, &c.Email,
		&amount, &c.Status, &paid, &c.PaymentMethod, &c.PaymentReference,
		&c.EmailNotified, &c.EmailNotifiedAt, &c.WhatsappNotified, &c.WhatsappNotifiedAt,
		&c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return c, err
	}
	c.AmountPaid, err = decimal.NewFromString(paid)
	return c, err
}

// =============================================================================
// HELPERS
// =============================================================================

// where builds a positional AND clause.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(column string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func affected(tag pgconn.CommandTag, err error, notFound error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// mapError translates constraint violations into engine sentinels.
func mapError(err error, duplicate error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return duplicate
		case codeForeignKeyViolation:
			if strings.Contains(pgErr.ConstraintName, "community") {
				return engine.ErrCommunityNotFound
			}
			return engine.ErrEventNotFound
		}
	}
	return err
}
