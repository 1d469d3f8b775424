/*
Package sqlite provides a SQLite-backed timeoff.Repository and timeoff.UserLookup.

PURPOSE:
  Mirrors the source database: one table per request kind, snake_case
  columns, free-text approval status. Rows come back as snake_case raw
  records, so everything read from here goes through the same normalizer as
  the remote API.

KEY TABLES:
  request_ids:            Shared id sequence, one row per request (id -> kind)
  richiesta_ferie:        Holiday requests
  richiesta_malattia:     Sick-leave requests (optional certificate)
  richiesta_straordinari: Overtime requests (timestamps in data_inizio/data_fine)
  utenti:                 Users (nome, cognome, email, ruolo)
  festivi:                Extra holidays kept in the database

IDS:
  Request ids are unique across the three request tables. The id sequence
  lives in request_ids and also tells MutateStatus which table to update.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are limited to
  one connection so every query sees the same database.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/absence.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  requests := timeoff.NewStore(store, store, normalizer, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - timeoff/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
)

// Store implements timeoff.Repository and timeoff.UserLookup using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	labels timeoff.StatusLabels
}

var (
	_ timeoff.Repository = (*Store)(nil)
	_ timeoff.UserLookup = (*Store)(nil)
)

type Option func(*Store)

// WithLabels sets the status strings written by MutateStatus and CreateRequest.
func WithLabels(labels timeoff.StatusLabels) Option {
	return func(s *Store) { s.labels = labels }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, labels: timeoff.DefaultStatusLabels()}
	for _, opt := range opts {
		opt(store)
	}
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

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS utenti (
		id_utente INTEGER PRIMARY KEY,
		nome TEXT NOT NULL,
		cognome TEXT NOT NULL DEFAULT '',
		email TEXT,
		ruolo TEXT NOT NULL DEFAULT 'Utente'
	);

	-- Shared request id sequence (ids are unique across request tables)
	CREATE TABLE IF NOT EXISTS request_ids (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS richiesta_ferie (
		id_richiesta INTEGER PRIMARY KEY REFERENCES request_ids(id) ON DELETE CASCADE,
		id_utente INTEGER NOT NULL REFERENCES utenti(id_utente),
		data_inizio TEXT NOT NULL,
		data_fine TEXT NOT NULL,
		stato_approvazione TEXT NOT NULL DEFAULT 'in attesa',
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ferie_utente
		ON richiesta_ferie(id_utente);

	CREATE TABLE IF NOT EXISTS richiesta_malattia (
		id_malattia INTEGER PRIMARY KEY REFERENCES request_ids(id) ON DELETE CASCADE,
		id_utente INTEGER NOT NULL REFERENCES utenti(id_utente),
		data_inizio TEXT NOT NULL,
		data_fine TEXT NOT NULL,
		stato_approvazione TEXT NOT NULL DEFAULT 'in attesa',
		certificato TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_malattia_utente
		ON richiesta_malattia(id_utente);

	CREATE TABLE IF NOT EXISTS richiesta_straordinari (
		id_straordinari INTEGER PRIMARY KEY REFERENCES request_ids(id) ON DELETE CASCADE,
		id_utente INTEGER NOT NULL REFERENCES utenti(id_utente),
		data_inizio TEXT NOT NULL,
		data_fine TEXT NOT NULL,
		stato_approvazione TEXT NOT NULL DEFAULT 'in attesa',
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_straordinari_utente
		ON richiesta_straordinari(id_utente);

	-- Holidays kept in the database, added to the configured set
	CREATE TABLE IF NOT EXISTS festivi (
		data TEXT NOT NULL,
		nome TEXT NOT NULL,
		ricorrente BOOLEAN DEFAULT FALSE,
		UNIQUE(data, nome)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST TABLES
// =============================================================================

type table struct {
	name     string
	idColumn string
	extra    []string // kind-specific columns
}

var tables = map[timeoff.Kind]table{
	timeoff.KindHoliday:   {name: "richiesta_ferie", idColumn: "id_richiesta"},
	timeoff.KindSickLeave: {name: "richiesta_malattia", idColumn: "id_malattia", extra: []string{"certificato"}},
	timeoff.KindOvertime:  {name: "richiesta_straordinari", idColumn: "id_straordinari"},
}

// fetch order
var tableKinds = []timeoff.Kind{timeoff.KindHoliday, timeoff.KindSickLeave, timeoff.KindOvertime}

func (t table) columns() []string {
	cols := []string{t.idColumn, "id_utente", "data_inizio", "data_fine", "stato_approvazione", "note"}
	return append(cols, t.extra...)
}

// =============================================================================
// REPOSITORY (timeoff.Repository interface)
// =============================================================================

// FetchRequests returns every request row as a snake_case record, holidays
// first, then sick leave, then overtime, each ordered by start date.
func (s *Store) FetchRequests(ctx context.Context, ownerID string) ([]timeoff.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []timeoff.RawRecord
	for _, kind := range tableKinds {
		records, err := s.fetchTable(ctx, tables[kind], ownerID)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

func (s *Store) fetchTable(ctx context.Context, t table, ownerID string) ([]timeoff.RawRecord, error) {
	cols := t.columns()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.name)
	var args []any
	if ownerID != "" {
		query += " WHERE id_utente = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY data_inizio ASC, " + t.idColumn + " ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []timeoff.RawRecord
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.name, err)
		}

		r := make(timeoff.RawRecord, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case nil:
				continue
			case []byte:
				r[col] = string(v)
			default:
				r[col] = v
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MutateStatus writes the status label for status.
func (s *Store) MutateStatus(ctx context.Context, requestID string, status timeoff.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tableOf(ctx, requestID)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET stato_approvazione = ? WHERE %s = ?", t.name, t.idColumn)
	res, err := s.db.ExecContext(ctx, query, s.labels.Label(status), requestID)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", requestID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeoff.ErrRequestNotFound
	}
	return nil
}

// CreateRequest stores a Pending request and returns its id.
func (s *Store) CreateRequest(ctx context.Context, req timeoff.Request) (string, error) {
	t, ok := tables[req.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", timeoff.ErrUnsupportedKind, req.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "INSERT INTO request_ids (kind) VALUES (?)", string(req.Kind))
	if err != nil {
		return "", fmt.Errorf("failed to allocate request id: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}

	start, end := req.Start.String(), req.End.String()
	if req.Kind == timeoff.KindOvertime && req.Overtime != nil &&
		!req.Overtime.StartAt.IsZero() && !req.Overtime.EndAt.IsZero() {
		start = req.Overtime.StartAt.Format("2006-01-02T15:04:05")
		end = req.Overtime.EndAt.Format("2006-01-02T15:04:05")
	}

	cols := t.columns()
	args := []any{id, req.OwnerID, start, end, s.labels.Label(timeoff.StatusPending), nullString(req.Note)}
	if req.Kind == timeoff.KindSickLeave {
		var cert string
		if req.SickLeave != nil {
			cert = req.SickLeave.Certificate
		}
		args = append(args, nullString(cert))
	}
	cols = append(cols, "created_at")
	args = append(args, time.Now().UTC().Format(time.RFC3339))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", t.name, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// DeleteRequest removes a request row and its id.
func (s *Store) DeleteRequest(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.tableOf(ctx, requestID); err != nil {
		return err
	}
	// The request row goes with it (ON DELETE CASCADE).
	if _, err := s.db.ExecContext(ctx, "DELETE FROM request_ids WHERE id = ?", requestID); err != nil {
		return fmt.Errorf("failed to delete request %s: %w", requestID, err)
	}
	return nil
}

func (s *Store) tableOf(ctx context.Context, requestID string) (table, error) {
	var kind string
	err := s.db.QueryRowContext(ctx, "SELECT kind FROM request_ids WHERE id = ?", requestID).Scan(&kind)
	if err == sql.ErrNoRows {
		return table{}, timeoff.ErrRequestNotFound
	}
	if err != nil {
		return table{}, err
	}
	t, ok := tables[timeoff.Kind(kind)]
	if !ok {
		return table{}, fmt.Errorf("%w: %s", timeoff.ErrUnsupportedKind, kind)
	}
	return t, nil
}

// =============================================================================
// USERS (timeoff.UserLookup interface)
// =============================================================================

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u timeoff.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO utenti (id_utente, nome, cognome, email, ruolo)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id_utente) DO UPDATE SET
			nome = excluded.nome,
			cognome = excluded.cognome,
			email = excluded.email,
			ruolo = excluded.ruolo
	`

	_, err := s.db.ExecContext(ctx, query, u.ID, u.Name, u.Surname, nullString(u.Email), roleLabel(u.Role))
	return err
}

// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*timeoff.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u timeoff.User
	var email sql.NullString
	var role string

	err := s.db.QueryRowContext(ctx,
		"SELECT id_utente, nome, cognome, email, ruolo FROM utenti WHERE id_utente = ?",
		id,
	).Scan(&u.ID, &u.Name, &u.Surname, &email, &role)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.Role = timeoff.ParseRole(role)
	return &u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]timeoff.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id_utente, nome, cognome, email, ruolo FROM utenti ORDER BY id_utente")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []timeoff.User
	for rows.Next() {
		var u timeoff.User
		var email sql.NullString
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Surname, &email, &role); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.Role = timeoff.ParseRole(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// roleLabel is the source database spelling of a role.
func roleLabel(r timeoff.Role) string {
	switch r {
	case timeoff.RoleAdmin:
		return "Admin"
	case timeoff.RoleExternal:
		return "Utente_Esterno"
	default:
		return "Utente"
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday stores an extra holiday.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO festivi (data, nome, ricorrente)
		VALUES (?, ?, ?)
		ON CONFLICT(data, nome) DO UPDATE SET
			ricorrente = excluded.ricorrente
	`

	_, err := s.db.ExecContext(ctx, query, h.Date.String(), h.Name, h.Recurring)
	return err
}

// Holidays returns every stored holiday ordered by date.
func (s *Store) Holidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT data, nome, ricorrente FROM festivi ORDER BY data ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(date); err != nil {
			return nil, fmt.Errorf("festivi %q: %w", date, err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// DEMO DATA
// =============================================================================

// SeedDemo fills an empty database with the demo users and one request of
// each kind. It does nothing when any user exists.
func (s *Store) SeedDemo(ctx context.Context) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	for _, u := range []timeoff.User{
		{ID: "1", Name: "Mario", Surname: "Rossi", Email: "mario@synncpoint.it", Role: timeoff.RoleAdmin},
		{ID: "2", Name: "Giulia", Surname: "Verdi", Email: "giulia@example.com", Role: timeoff.RoleEmployee},
	} {
		if err := s.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	for _, req := range []timeoff.Request{
		{OwnerID: "1", Kind: timeoff.KindHoliday, Start: generic.MustParseDate("2025-08-18"), End: generic.MustParseDate("2025-08-21")},
		{OwnerID: "2", Kind: timeoff.KindHoliday, Start: generic.MustParseDate("2025-04-14"), End: generic.MustParseDate("2025-04-17")},
		{OwnerID: "1", Kind: timeoff.KindSickLeave, Start: generic.MustParseDate("2025-02-10"), End: generic.MustParseDate("2025-02-12"),
			SickLeave: &timeoff.SickLeaveDetail{Certificate: "XYZ-123"}},
		{OwnerID: "2", Kind: timeoff.KindOvertime, Start: generic.MustParseDate("2025-03-01"), End: generic.MustParseDate("2025-03-01"),
			Overtime: &timeoff.OvertimeDetail{
				StartAt: time.Date(2025, time.March, 1, 18, 0, 0, 0, time.UTC),
				EndAt:   time.Date(2025, time.March, 1, 20, 0, 0, 0, time.UTC),
			}},
	} {
		if _, err := s.CreateRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
