/*
store.go - Collaborator interfaces for the host application's persistence

PURPOSE:
  The engine itself is pure. These interfaces describe the snapshots the
  payroll service reads before a computation and the collections it writes
  back afterwards.

KEY INTERFACES:
  CatalogProvider: event types, qualification/SHAB/allowance catalogs
  Directory:       users with grades and SHAB licenses
  OSIStore:        OSIs with their embedded event lists
  ConfigStore:     the single active PayConfig
  CycleStore:      pay cycles (append-only, PAID immutable)
  ReferenceWriter: seeding of catalogs and users (dev and demos)

WRITE CONTRACT:
  SaveOSIs and SaveCycles are atomic: all records are written or none are.
  SaveOSIs compares each OSI's Revision against the stored one and fails
  with ErrConcurrentModification on mismatch. SaveConfig requires
  cfg.Version == stored version + 1 so two editors cannot both win.

IMPLEMENTATIONS:
  - nota/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite
*/
package nota

import "context"

type CatalogProvider interface {
	Catalogs(ctx context.Context) (Catalogs, error)
}

type Directory interface {
	Users(ctx context.Context) ([]User, error)
}

type OSIStore interface {
	ListOSIs(ctx context.Context) ([]OSI, error)
	GetOSI(ctx context.Context, id string) (*OSI, error)

	// SaveOSIs writes new or changed OSIs atomically and bumps their Revision.
	SaveOSIs(ctx context.Context, osis []OSI) error
}

type ConfigStore interface {
	// CurrentConfig returns ErrConfigNotFound before the first SaveConfig.
	CurrentConfig(ctx context.Context) (PayConfig, error)
	SaveConfig(ctx context.Context, cfg PayConfig) error
}

type CycleStore interface {
	ListCycles(ctx context.Context) ([]PayCycle, error)

	// SaveCycles upserts cycles by id. A stored PAID cycle is never overwritten.
	SaveCycles(ctx context.Context, cycles []PayCycle) error
}

// Stores bundles every collaborator.
type Stores interface {
	CatalogProvider
	Directory
	OSIStore
	ConfigStore
	CycleStore
}

// ReferenceWriter mirrors host-owned reference data (catalogs and users)
// into a local store. Used by seeding and demo scenarios.
type ReferenceWriter interface {
	SetCatalogs(ctx context.Context, c Catalogs) error
	SetUsers(ctx context.Context, users []User) error

	// Reset removes every record, including config and cycles.
	Reset(ctx context.Context) error
}
