/*
Package sqlite provides a SQLite-backed implementation of the nota store interfaces.

PURPOSE:
  Implements every collaborator the payroll service needs (catalogs,
  directory, OSIs, pay config, pay cycles) on SQLite through sqlx. In
  production the host application usually owns catalogs, users and OSIs;
  this store mirrors them so the engine can run standalone.

INTERFACES IMPLEMENTED:
  nota.Stores:          CatalogProvider, Directory, OSIStore, ConfigStore, CycleStore
  nota.ReferenceWriter: SetCatalogs, SetUsers, Reset

KEY TABLES:
  event_types, base_qualification_types,
  shab_types, allowance_types:   catalog snapshots
  users:                         directory entries (JSON document per user)
  osis:                          OSI aggregate; events and plan embedded as JSON
  pay_config_versions:           every saved config version (append-only)
  pay_cycles:                    derived cycles; PAID rows are never updated

OSI AGGREGATE:
  Events are owned by their OSI and only ever written together with it, so
  they live in a JSON column next to an integer revision. SaveOSIs compares
  revisions inside one transaction and bumps them on write.

CONFIG VERSIONING:
  SaveConfig inserts a new row and requires version == MAX(version) + 1.
  The primary key on version rejects a concurrent writer that raced past
  the check.

CONCURRENCY:
  A single connection is kept open (SQLite has one writer, and ":memory:"
  databases are per connection). The RWMutex serializes writers in-process.

USAGE:
  store, err := sqlite.New("./data/nota.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - nota/store.go: Interface definitions and write contract
  - nota/store/memory.go: In-memory implementation for testing
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

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/nota-engine/factory"
	"github.com/warp/nota-engine/nota"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex

	configs *factory.PayConfigFactory
}

var (
	_ nota.Stores          = (*Store)(nil)
	_ nota.ReferenceWriter = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, configs: factory.NewPayConfigFactory("")}
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

// Ping checks the connection (used by /healthz).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalogs
	CREATE TABLE IF NOT EXISTS event_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		base_rate TEXT NOT NULL DEFAULT '0',
		required_qualification_id TEXT NOT NULL DEFAULT '',
		min_grade_value INTEGER,
		required_shab_code TEXT NOT NULL DEFAULT '',
		requires_evidence BOOLEAN NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS base_qualification_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS shab_types (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS allowance_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0'
	);

	-- Directory
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		data_json TEXT NOT NULL
	);

	-- OSI aggregates
	CREATE TABLE IF NOT EXISTS osis (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		revision INTEGER NOT NULL,
		plan_json TEXT,
		events_json TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Pay configuration history
	CREATE TABLE IF NOT EXISTS pay_config_versions (
		version INTEGER PRIMARY KEY,
		config_id TEXT NOT NULL,
		config_json TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		updated_by TEXT NOT NULL DEFAULT ''
	);

	-- Pay cycles
	CREATE TABLE IF NOT EXISTS pay_cycles (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		slot INTEGER NOT NULL,
		label TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		pay_date TEXT NOT NULL,
		status TEXT NOT NULL,
		config_version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pay_cycles_month
		ON pay_cycles(year, month, slot);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOGS (nota.CatalogProvider)
// =============================================================================

// Catalogs loads every catalog table.
func (s *Store) Catalogs(ctx context.Context) (nota.Catalogs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c nota.Catalogs
	if err := s.db.SelectContext(ctx, &c.EventTypes, `
		SELECT id, code, name, unit, base_rate, required_qualification_id,
		       min_grade_value, required_shab_code, requires_evidence, active
		FROM event_types ORDER BY id`); err != nil {
		return nota.Catalogs{}, fmt.Errorf("list event types: %w", err)
	}
	if err := s.db.SelectContext(ctx, &c.BaseQualificationTypes,
		`SELECT id, code, name FROM base_qualification_types ORDER BY id`); err != nil {
		return nota.Catalogs{}, fmt.Errorf("list base qualification types: %w", err)
	}
	if err := s.db.SelectContext(ctx, &c.ShabTypes,
		`SELECT code, name FROM shab_types ORDER BY code`); err != nil {
		return nota.Catalogs{}, fmt.Errorf("list shab types: %w", err)
	}
	if err := s.db.SelectContext(ctx, &c.AllowanceTypes,
		`SELECT id, code, name, amount FROM allowance_types ORDER BY id`); err != nil {
		return nota.Catalogs{}, fmt.Errorf("list allowance types: %w", err)
	}
	return c, nil
}

// SetCatalogs replaces every catalog table in one transaction.
func (s *Store) SetCatalogs(ctx context.Context, c nota.Catalogs) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"event_types", "base_qualification_types", "shab_types", "allowance_types"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, et := range c.EventTypes {
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO event_types (id, code, name, unit, base_rate, required_qualification_id,
			                         min_grade_value, required_shab_code, requires_evidence, active)
			VALUES (:id, :code, :name, :unit, :base_rate, :required_qualification_id,
			        :min_grade_value, :required_shab_code, :requires_evidence, :active)`, et); err != nil {
			return fmt.Errorf("insert event type %s: %w", et.ID, err)
		}
	}
	for _, q := range c.BaseQualificationTypes {
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO base_qualification_types (id, code, name) VALUES (:id, :code, :name)`, q); err != nil {
			return fmt.Errorf("insert base qualification type %s: %w", q.ID, err)
		}
	}
	for _, st := range c.ShabTypes {
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO shab_types (code, name) VALUES (:code, :name)`, st); err != nil {
			return fmt.Errorf("insert shab type %s: %w", st.Code, err)
		}
	}
	for _, a := range c.AllowanceTypes {
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO allowance_types (id, code, name, amount) VALUES (:id, :code, :name, :amount)`, a); err != nil {
			return fmt.Errorf("insert allowance type %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// DIRECTORY (nota.Directory)
// =============================================================================

type userRow struct {
	ID       string `db:"id"`
	Code     string `db:"code"`
	DataJSON string `db:"data_json"`
}

// Users loads every directory entry.
func (s *Store) Users(ctx context.Context) ([]nota.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, code, data_json FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]nota.User, 0, len(rows))
	for _, r := range rows {
		var u nota.User
		if err := json.Unmarshal([]byte(r.DataJSON), &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", r.ID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// SetUsers replaces the directory.
func (s *Store) SetUsers(ctx context.Context, users []nota.User) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	for _, u := range users {
		data, mErr := json.Marshal(u)
		if mErr != nil {
			return fmt.Errorf("encode user %s: %w", u.ID, mErr)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO users (id, code, data_json) VALUES (?, ?, ?)`,
			u.ID, u.Code, string(data)); err != nil {
			return fmt.Errorf("insert user %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// OSIs (nota.OSIStore)
// =============================================================================

type osiRow struct {
	ID         string         `db:"id"`
	Code       string         `db:"code"`
	Revision   int            `db:"revision"`
	PlanJSON   sql.NullString `db:"plan_json"`
	EventsJSON string         `db:"events_json"`
}

func (r osiRow) toOSI() (nota.OSI, error) {
	o := nota.OSI{ID: r.ID, Code: r.Code, Revision: r.Revision}
	if err := json.Unmarshal([]byte(r.EventsJSON), &o.NotaEvents); err != nil {
		return nota.OSI{}, fmt.Errorf("decode events of osi %s: %w", r.ID, err)
	}
	if r.PlanJSON.Valid && r.PlanJSON.String != "" {
		var plan nota.OsiNotaPlan
		if err := json.Unmarshal([]byte(r.PlanJSON.String), &plan); err != nil {
			return nota.OSI{}, fmt.Errorf("decode plan of osi %s: %w", r.ID, err)
		}
		o.NotaPlan = &plan
	}
	if o.NotaEvents == nil {
		o.NotaEvents = []nota.NotaEvent{}
	}
	return o, nil
}

// ListOSIs loads every OSI with its events.
func (s *Store) ListOSIs(ctx context.Context) ([]nota.OSI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []osiRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, code, revision, plan_json, events_json FROM osis ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list osis: %w", err)
	}

	osis := make([]nota.OSI, 0, len(rows))
	for _, r := range rows {
		o, err := r.toOSI()
		if err != nil {
			return nil, err
		}
		osis = append(osis, o)
	}
	return osis, nil
}

// GetOSI loads one OSI.
func (s *Store) GetOSI(ctx context.Context, id string) (*nota.OSI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r osiRow
	err := s.db.GetContext(ctx, &r,
		`SELECT id, code, revision, plan_json, events_json FROM osis WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", nota.ErrOSINotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get osi %s: %w", id, err)
	}

	o, err := r.toOSI()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOSIs writes all OSIs in one transaction after checking every revision.
func (s *Store) SaveOSIs(ctx context.Context, osis []nota.OSI) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin osi transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, o := range osis {
		var stored int
		qErr := tx.GetContext(ctx, &stored, `SELECT revision FROM osis WHERE id = ?`, o.ID)
		switch {
		case errors.Is(qErr, sql.ErrNoRows):
		case qErr != nil:
			return fmt.Errorf("read revision of osi %s: %w", o.ID, qErr)
		case stored != o.Revision:
			return fmt.Errorf("%w: osi %s revision %d, stored %d",
				nota.ErrConcurrentModification, o.ID, o.Revision, stored)
		}

		events := o.NotaEvents
		if events == nil {
			events = []nota.NotaEvent{}
		}
		eventsJSON, mErr := json.Marshal(events)
		if mErr != nil {
			return fmt.Errorf("encode events of osi %s: %w", o.ID, mErr)
		}
		var plan sql.NullString
		if o.NotaPlan != nil {
			b, pErr := json.Marshal(o.NotaPlan)
			if pErr != nil {
				return fmt.Errorf("encode plan of osi %s: %w", o.ID, pErr)
			}
			plan = sql.NullString{String: string(b), Valid: true}
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO osis (id, code, revision, plan_json, events_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				code = excluded.code,
				revision = excluded.revision,
				plan_json = excluded.plan_json,
				events_json = excluded.events_json,
				updated_at = excluded.updated_at`,
			o.ID, o.Code, o.Revision+1, plan, string(eventsJSON), now); err != nil {
			return fmt.Errorf("save osi %s: %w", o.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// PAY CONFIG (nota.ConfigStore)
// =============================================================================

type configRow struct {
	Version    int       `db:"version"`
	ConfigID   string    `db:"config_id"`
	ConfigJSON string    `db:"config_json"`
	UpdatedAt  time.Time `db:"updated_at"`
	UpdatedBy  string    `db:"updated_by"`
}

// CurrentConfig returns the highest saved version.
func (s *Store) CurrentConfig(ctx context.Context) (nota.PayConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r configRow
	err := s.db.GetContext(ctx, &r, `
		SELECT version, config_id, config_json, updated_at, updated_by
		FROM pay_config_versions ORDER BY version DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nota.PayConfig{}, nota.ErrConfigNotFound
	}
	if err != nil {
		return nota.PayConfig{}, fmt.Errorf("get pay config: %w", err)
	}
	return s.decodeConfig(r)
}

// ConfigHistory returns every saved version, oldest first.
func (s *Store) ConfigHistory(ctx context.Context) ([]nota.PayConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []configRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT version, config_id, config_json, updated_at, updated_by
		FROM pay_config_versions ORDER BY version`); err != nil {
		return nil, fmt.Errorf("list pay config versions: %w", err)
	}

	out := make([]nota.PayConfig, 0, len(rows))
	for _, r := range rows {
		cfg, err := s.decodeConfig(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *Store) decodeConfig(r configRow) (nota.PayConfig, error) {
	var pj factory.PayConfigJSON
	if err := json.Unmarshal([]byte(r.ConfigJSON), &pj); err != nil {
		return nota.PayConfig{}, fmt.Errorf("decode pay config v%d: %w", r.Version, err)
	}
	cfg, err := s.configs.FromJSON(pj)
	if err != nil {
		return nota.PayConfig{}, fmt.Errorf("decode pay config v%d: %w", r.Version, err)
	}
	cfg.ID = r.ConfigID
	cfg.Version = r.Version
	cfg.UpdatedAt = r.UpdatedAt
	cfg.UpdatedBy = r.UpdatedBy
	return cfg, nil
}

// SaveConfig appends cfg as the next version.
func (s *Store) SaveConfig(ctx context.Context, cfg nota.PayConfig) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var stored int
	if err = tx.GetContext(ctx, &stored, `SELECT COALESCE(MAX(version), 0) FROM pay_config_versions`); err != nil {
		return fmt.Errorf("read config version: %w", err)
	}
	if cfg.Version != stored+1 {
		return fmt.Errorf("%w: config version %d, stored %d", nota.ErrConcurrentModification, cfg.Version, stored)
	}

	data, mErr := json.Marshal(s.configs.ToJSON(cfg))
	if mErr != nil {
		return fmt.Errorf("encode pay config: %w", mErr)
	}
	updatedAt := cfg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO pay_config_versions (version, config_id, config_json, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?)`,
		cfg.Version, cfg.ID, string(data), updatedAt, cfg.UpdatedBy); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: config version %d", nota.ErrConcurrentModification, cfg.Version)
		}
		return fmt.Errorf("insert pay config: %w", err)
	}

	return tx.Commit()
}

// =============================================================================
// PAY CYCLES (nota.CycleStore)
// =============================================================================

const cycleColumns = `id, year, month, slot, label, period_start, period_end, pay_date,
	status, config_version, created_at`

// ListCycles returns every cycle ordered by (year, month, slot).
func (s *Store) ListCycles(ctx context.Context) ([]nota.PayCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cycles []nota.PayCycle
	if err := s.db.SelectContext(ctx, &cycles,
		`SELECT `+cycleColumns+` FROM pay_cycles ORDER BY year, month, slot`); err != nil {
		return nil, fmt.Errorf("list pay cycles: %w", err)
	}
	return cycles, nil
}

// SaveCycles upserts cycles by id. Rows already PAID are left untouched.
func (s *Store) SaveCycles(ctx context.Context, cycles []nota.PayCycle) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cycle transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, c := range cycles {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO pay_cycles (`+cycleColumns+`)
			VALUES (:id, :year, :month, :slot, :label, :period_start, :period_end, :pay_date,
			        :status, :config_version, :created_at)
			ON CONFLICT(id) DO UPDATE SET
				label = excluded.label,
				period_start = excluded.period_start,
				period_end = excluded.period_end,
				pay_date = excluded.pay_date,
				status = excluded.status,
				config_version = excluded.config_version
			WHERE pay_cycles.status <> 'PAID'`, c); err != nil {
			return fmt.Errorf("save pay cycle %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"event_types", "base_qualification_types", "shab_types", "allowance_types",
		"users", "osis", "pay_config_versions", "pay_cycles",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
