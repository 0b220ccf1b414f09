/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Local and test persistence for communities, members, events and
  contributors. The production deployment talks to PostgreSQL through
  store/postgres; the schema and the conflict semantics are the same.

KEY TABLES:
  communities:  Organising groups, with the denormalised member_count
  members:      Parent profiles, one row per child
  events:       Active fundraising events
  contributors: Per-(event, identity) obligations
  runs:         Pipeline run history

UNIQUENESS:
  Enforced by the database, not by read-then-write checks:
  - idx_events_unique_occurrence: one event per community/honoree/year
  - idx_contributors_unique_identity: one contributor per event/identity
  A violation comes back as engine.ErrDuplicateEvent or
  engine.ErrDuplicateContributor.

AMOUNTS:
  Decimal amounts are stored as TEXT and parsed with shopspring/decimal,
  so the collected total is updated with a read-modify-write inside a
  transaction (SQLite has no exact decimal type).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, which
  also keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/heyjack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for unit tests
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/heyjack/giftpool/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
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
		per_member_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
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
		amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_community
		ON members(community_id, created_at);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		community_id TEXT NOT NULL REFERENCES communities(id),
		honoree_member_id TEXT NOT NULL,
		honoree_identity TEXT NOT NULL DEFAULT '',
		honoree_name TEXT NOT NULL DEFAULT '',
		occurrence_date TEXT NOT NULL,
		occurrence_year INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		collected TEXT NOT NULL DEFAULT '0',
		target TEXT NOT NULL DEFAULT '0',
		roster_size INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One event per honoree birthday per year, whatever its status
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_unique_occurrence
		ON events(community_id, honoree_member_id, occurrence_year);
	CREATE INDEX IF NOT EXISTS idx_events_community_status
		ON events(community_id, status);

	CREATE TABLE IF NOT EXISTS contributors (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		community_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		identity TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		amount_paid TEXT NOT NULL DEFAULT '0',
		payment_method TEXT NOT NULL DEFAULT '',
		payment_reference TEXT NOT NULL DEFAULT '',
		email_notified BOOLEAN NOT NULL DEFAULT FALSE,
		email_notified_at TEXT,
		whatsapp_notified BOOLEAN NOT NULL DEFAULT FALSE,
		whatsapp_notified_at TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: a member identity owes at most once per event
	CREATE UNIQUE INDEX IF NOT EXISTS idx_contributors_unique_identity
		ON contributors(event_id, identity);
	CREATE INDEX IF NOT EXISTS idx_contributors_community_status
		ON contributors(community_id, status);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trigger_source TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		today TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		events_created INTEGER NOT NULL DEFAULT 0,
		events_already_active INTEGER NOT NULL DEFAULT 0,
		contributors_added INTEGER NOT NULL DEFAULT 0,
		contributors_updated INTEGER NOT NULL DEFAULT 0,
		contributors_skipped INTEGER NOT NULL DEFAULT 0,
		emails_sent INTEGER NOT NULL DEFAULT 0,
		emails_failed INTEGER NOT NULL DEFAULT 0,
		failures_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all rows (demo scenarios and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"contributors", "events", "members", "communities", "runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// COMMUNITIES
// =============================================================================

const communityColumns = `id, name, institution, grade, section, creator_name, creator_email,
	creator_phone, member_count, per_member_amount, status, created_at, updated_at`

func (s *Store) ListCommunities(ctx context.Context) ([]engine.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+communityColumns+" FROM communities ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query communities: %w", err)
	}
	defer rows.Close()

	var result []engine.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) GetCommunity(ctx context.Context, id engine.CommunityID) (*engine.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+communityColumns+" FROM communities WHERE id = ?", id)
	c, err := scanCommunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) CreateCommunity(ctx context.Context, c engine.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertCommunity(ctx, s.db, c)
}

// CreateCommunityWithCreator inserts the community and its creator in one
// transaction; neither row exists if either insert fails.
func (s *Store) CreateCommunityWithCreator(ctx context.Context, c engine.Community, creator engine.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCommunity(ctx, tx, c); err != nil {
		return err
	}
	if err := insertMember(ctx, tx, creator); err != nil {
		return err
	}
	return tx.Commit()
}

func insertCommunity(ctx context.Context, db execer, c engine.Community) error {
	query := `
		INSERT INTO communities (` + communityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.Name, c.Institution, c.Grade, c.Section,
		c.CreatorName, c.CreatorEmail, c.CreatorPhone,
		c.MemberCount, c.PerMemberAmount.String(), c.Status,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return engine.ErrDuplicateCommunity
	}
	return err
}

func (s *Store) SetCommunityStatus(ctx context.Context, id engine.CommunityID, status engine.CommunityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE communities SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now().UTC()), id,
	)
	return affectedOrNotFound(res, err, engine.ErrCommunityNotFound)
}

// =============================================================================
// MEMBERS
// =============================================================================

const memberColumns = `id, community_id, name, phone, email, payment_alias, child_name,
	child_birth_date, role, amount, created_at, updated_at`

func (s *Store) ListMembers(ctx context.Context, filter engine.MemberFilter) ([]engine.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + memberColumns + " FROM members"
	var args []any
	if filter.CommunityID != nil {
		query += " WHERE community_id = ?"
		args = append(args, *filter.CommunityID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var result []engine.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) GetMember(ctx context.Context, id engine.MemberID) (*engine.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMember inserts the member and increments member_count in one transaction.
func (s *Store) AddMember(ctx context.Context, m engine.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMember(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

// insertMember inserts m and increments its community's member_count.
func insertMember(ctx context.Context, tx execer, m engine.Member) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE communities SET member_count = member_count + 1, updated_at = ? WHERE id = ?",
		formatTime(m.CreatedAt), m.CommunityID,
	)
	if err := affectedOrNotFound(res, err, engine.ErrCommunityNotFound); err != nil {
		return err
	}

	query := `INSERT INTO members (` + memberColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		m.ID, m.CommunityID, m.Name, m.Phone, m.Email, m.PaymentAlias, m.ChildName,
		m.ChildBirthDate, m.Role, m.Amount.String(), formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return engine.ErrDuplicateMember
	}
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (s *Store) UpdateMember(ctx context.Context, m engine.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET name = ?, phone = ?, email = ?, payment_alias = ?, child_name = ?,
			child_birth_date = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.Phone, m.Email, m.PaymentAlias, m.ChildName, m.ChildBirthDate,
		formatTime(m.UpdatedAt), m.ID,
	)
	return affectedOrNotFound(res, err, engine.ErrMemberNotFound)
}

// =============================================================================
// EVENTS
// =============================================================================

const eventColumns = `id, community_id, honoree_member_id, honoree_identity, honoree_name,
	occurrence_date, status, collected, target, roster_size, created_at, updated_at`

func (s *Store) ListEvents(ctx context.Context, filter engine.EventFilter) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.CommunityID != nil {
		where = append(where, "community_id = ?")
		args = append(args, *filter.CommunityID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurrence_date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var result []engine.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id engine.EventID) (*engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEvent(ctx context.Context, e engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO events (id, community_id, honoree_member_id, honoree_identity, honoree_name,
			occurrence_date, occurrence_year, status, collected, target, roster_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.CommunityID, e.HonoreeMemberID, e.HonoreeIdentity, e.HonoreeName,
		e.OccurrenceDate.String(), e.OccurrenceDate.Year(), e.Status,
		e.Collected.String(), e.Target.String(), e.RosterSize,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return engine.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *Store) SetEventStatus(ctx context.Context, id engine.EventID, status engine.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE events SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now().UTC()), id,
	)
	return affectedOrNotFound(res, err, engine.ErrEventNotFound)
}

// =============================================================================
// CONTRIBUTORS
// =============================================================================

const contributorColumns = `id, event_id, community_id, member_id, identity, name, phone, email,
	amount, status, amount_paid, payment_method, payment_reference,
	email_notified, email_notified_at, whatsapp_notified, whatsapp_notified_at,
	notes, created_at, updated_at`

func (s *Store) ListContributors(ctx context.Context, filter engine.ContributorFilter) ([]engine.Contributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.EventID != nil {
		where = append(where, "event_id = ?")
		args = append(args, *filter.EventID)
	}
	if filter.CommunityID != nil {
		where = append(where, "community_id = ?")
		args = append(args, *filter.CommunityID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT " + contributorColumns + " FROM contributors"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributors: %w", err)
	}
	defer rows.Close()

	var result []engine.Contributor
	for rows.Next() {
		c, err := scanContributor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) GetContributor(ctx context.Context, id engine.ContributorID) (*engine.Contributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+contributorColumns+" FROM contributors WHERE id = ?", id)
	c, err := scanContributor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertContributor(ctx context.Context, c engine.Contributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO contributors (` + contributorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.EventID, c.CommunityID, c.MemberID, c.Key().Identity,
		c.Name, c.Phone, c.Email,
		c.Amount.String(), c.Status, c.AmountPaid.String(), c.PaymentMethod, c.PaymentReference,
		c.EmailNotified, nullTime(c.EmailNotifiedAt), c.WhatsappNotified, nullTime(c.WhatsappNotifiedAt),
		c.Notes, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return engine.ErrDuplicateContributor
	}
	if err != nil {
		return fmt.Errorf("failed to insert contributor: %w", err)
	}
	return nil
}

func (s *Store) UpdateContributorContact(ctx context.Context, c engine.Contributor, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE contributors SET identity = ?, name = ?, phone = ?, email = ?, updated_at = ? WHERE id = ?",
		c.Key().Identity, c.Name, c.Phone, c.Email, formatTime(at), c.ID,
	)
	if isUniqueConstraintError(err) {
		return engine.ErrDuplicateContributor
	}
	return affectedOrNotFound(res, err, engine.ErrContributorNotFound)
}

func (s *Store) MarkEmailNotified(ctx context.Context, id engine.ContributorID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE contributors SET email_notified = TRUE, email_notified_at = ?, updated_at = ? WHERE id = ?",
		formatTime(at), formatTime(at), id,
	)
	return affectedOrNotFound(res, err, engine.ErrContributorNotFound)
}

func (s *Store) ResetNotification(ctx context.Context, id engine.ContributorID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE contributors
		SET email_notified = FALSE, email_notified_at = NULL,
			whatsapp_notified = FALSE, whatsapp_notified_at = NULL, updated_at = ?
		WHERE id = ?`,
		formatTime(at), id,
	)
	return affectedOrNotFound(res, err, engine.ErrContributorNotFound)
}

// ConfirmPayment marks the contributor paid and credits the event atomically.
func (s *Store) ConfirmPayment(ctx context.Context, p engine.PaymentConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var eventID, status string
	err = tx.QueryRowContext(ctx, "SELECT event_id, status FROM contributors WHERE id = ?", p.ContributorID).
		Scan(&eventID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ErrContributorNotFound
	}
	if err != nil {
		return err
	}
	if engine.PaymentStatus(status) == engine.PaymentPaid {
		return engine.ErrAlreadyPaid
	}

	var collected string
	err = tx.QueryRowContext(ctx, "SELECT collected FROM events WHERE id = ?", eventID).Scan(&collected)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ErrEventNotFound
	}
	if err != nil {
		return err
	}

	at := formatTime(p.ConfirmedAt)
	_, err = tx.ExecContext(ctx, `
		UPDATE contributors
		SET status = ?, amount_paid = ?, payment_method = ?, payment_reference = ?,
			notes = CASE WHEN ? = '' THEN notes ELSE ? END, updated_at = ?
		WHERE id = ?`,
		engine.PaymentPaid, p.Amount.String(), p.Method, p.Reference, p.Notes, p.Notes, at, p.ContributorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contributor: %w", err)
	}

	prior, err := decimal.NewFromString(collected)
	if err != nil {
		return fmt.Errorf("event %s: failed to parse collected %q: %w", eventID, collected, err)
	}
	total := prior.Add(p.Amount)
	_, err = tx.ExecContext(ctx, "UPDATE events SET collected = ?, updated_at = ? WHERE id = ?",
		total.String(), at, eventID)
	if err != nil {
		return fmt.Errorf("failed to update event total: %w", err)
	}

	return tx.Commit()
}

// =============================================================================
// RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run engine.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures, err := json.Marshal(run.Report.Failures)
	if err != nil {
		return fmt.Errorf("failed to encode run failures: %w", err)
	}
	r := run.Report
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, trigger_source, status, error, today, started_at, finished_at,
			events_created, events_already_active, contributors_added, contributors_updated,
			contributors_skipped, emails_sent, emails_failed, failures_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.Status, run.Error, r.Today.String(),
		formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.EventsCreated, r.EventsAlreadyActive, r.ContributorsAdded, r.ContributorsUpdated,
		r.ContributorsSkipped, r.EmailsSent, r.EmailsFailed, string(failures),
	)
	return err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]engine.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_source, status, error, today, started_at, finished_at,
			events_created, events_already_active, contributors_added, contributors_updated,
			contributors_skipped, emails_sent, emails_failed, failures_json
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []engine.RunRecord
	for rows.Next() {
		var run engine.RunRecord
		var today, startedAt, finishedAt, failures string
		r := &run.Report
		if err := rows.Scan(&run.ID, &run.Trigger, &run.Status, &run.Error, &today, &startedAt, &finishedAt,
			&r.EventsCreated, &r.EventsAlreadyActive, &r.ContributorsAdded, &r.ContributorsUpdated,
			&r.ContributorsSkipped, &r.EmailsSent, &r.EmailsFailed, &failures); err != nil {
			return nil, err
		}
		if r.Today, err = engine.ParseDay(today); err != nil {
			return nil, fmt.Errorf("run %s: failed to parse day %q: %w", run.ID, today, err)
		}
		var d columns
		r.StartedAt = d.time("started_at", startedAt)
		r.FinishedAt = d.time("finished_at", finishedAt)
		if d.err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, d.err)
		}
		if err := json.Unmarshal([]byte(failures), &r.Failures); err != nil {
			return nil, fmt.Errorf("run %s: failed to decode failures: %w", run.ID, err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanCommunity(row scanner) (engine.Community, error) {
	var c engine.Community
	var amount, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.Institution, &c.Grade, &c.Section,
		&c.CreatorName, &c.CreatorEmail, &c.CreatorPhone,
		&c.MemberCount, &amount, &c.Status, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	var d columns
	c.PerMemberAmount = d.decimal("per_member_amount", amount)
	c.CreatedAt = d.time("created_at", createdAt)
	c.UpdatedAt = d.time("updated_at", updatedAt)
	if d.err != nil {
		return c, fmt.Errorf("community %s: %w", c.ID, d.err)
	}
	return c, nil
}

func scanMember(row scanner) (engine.Member, error) {
	var m engine.Member
	var amount, createdAt, updatedAt string
	err := row.Scan(&m.ID, &m.CommunityID, &m.Name, &m.Phone, &m.Email, &m.PaymentAlias,
		&m.ChildName, &m.ChildBirthDate, &m.Role, &amount, &createdAt, &updatedAt)
	if err != nil {
		return m, err
	}
	var d columns
	m.Amount = d.decimal("amount", amount)
	m.CreatedAt = d.time("created_at", createdAt)
	m.UpdatedAt = d.time("updated_at", updatedAt)
	if d.err != nil {
		return m, fmt.Errorf("member %s: %w", m.ID, d.err)
	}
	return m, nil
}

func scanEvent(row scanner) (engine.Event, error) {
	var e engine.Event
	var occurrence, collected, target, createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.CommunityID, &e.HonoreeMemberID, &e.HonoreeIdentity, &e.HonoreeName,
		&occurrence, &e.Status, &collected, &target, &e.RosterSize, &createdAt, &updatedAt)
	if err != nil {
		return e, err
	}
	e.OccurrenceDate, err = engine.ParseDay(occurrence)
	if err != nil {
		return e, fmt.Errorf("event %s: bad occurrence_date %q: %w", e.ID, occurrence, err)
	}
	var d columns
	e.Collected = d.decimal("collected", collected)
	e.Target = d.decimal("target", target)
	e.CreatedAt = d.time("created_at", createdAt)
	e.UpdatedAt = d.time("updated_at", updatedAt)
	if d.err != nil {
		return e, fmt.Errorf("event %s: %w", e.ID, d.err)
	}
	return e, nil
}

func scanContributor(row scanner) (engine.Contributor, error) {
	var c engine.Contributor
	var amount, amountPaid, createdAt, updatedAt string
	var emailAt, whatsappAt sql.NullString
	err := row.Scan(&c.ID, &c.EventID, &c.CommunityID, &c.MemberID, &c.Identity,
		&c.Name, &c.Phone, &c.Email,
		&amount, &c.Status, &amountPaid, &c.PaymentMethod, &c.PaymentReference,
		&c.EmailNotified, &emailAt, &c.WhatsappNotified, &whatsappAt,
		&c.Notes, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	var d columns
	c.Amount = d.decimal("amount", amount)
	c.AmountPaid = d.decimal("amount_paid", amountPaid)
	c.EmailNotifiedAt = d.nullTime("email_notified_at", emailAt)
	c.WhatsappNotifiedAt = d.nullTime("whatsapp_notified_at", whatsappAt)
	c.CreatedAt = d.time("created_at", createdAt)
	c.UpdatedAt = d.time("updated_at", updatedAt)
	if d.err != nil {
		return c, fmt.Errorf("contributor %s: %w", c.ID, d.err)
	}
	return c, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// columns decodes TEXT columns and keeps the first failure.
type columns struct {
	err error
}

func (d *columns) fail(column, value string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("failed to parse %s %q: %w", column, value, err)
	}
}

func (d *columns) time(column, s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		d.fail(column, s, err)
	}
	return t
}

func (d *columns) nullTime(column string, s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := d.time(column, s.String)
	return &t
}

func (d *columns) decimal(column, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		d.fail(column, s, err)
		return decimal.Zero
	}
	return v
}

func affectedOrNotFound(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
