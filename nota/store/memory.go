// Package store provides in-memory collaborator implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/nota-engine/nota"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	catalogs nota.Catalogs
	users    []nota.User
	osis     []nota.OSI
	osiIndex map[string]int
	config   *nota.PayConfig
	cycles   []nota.PayCycle
}

var (
	_ nota.Stores          = (*Memory)(nil)
	_ nota.ReferenceWriter = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{osiIndex: make(map[string]int)}
}

// SetCatalogs replaces the catalog snapshot.
func (m *Memory) SetCatalogs(_ context.Context, c nota.Catalogs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogs = c
	return nil
}

// SetUsers replaces the directory snapshot.
func (m *Memory) SetUsers(_ context.Context, users []nota.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append([]nota.User(nil), users...)
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogs = nota.Catalogs{}
	m.users = nil
	m.osis = nil
	m.osiIndex = make(map[string]int)
	m.config = nil
	m.cycles = nil
	return nil
}

func (m *Memory) Catalogs(_ context.Context) (nota.Catalogs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalogs, nil
}

func (m *Memory) Users(_ context.Context) ([]nota.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]nota.User(nil), m.users...), nil
}

// =============================================================================
// OSIs
// =============================================================================

func (m *Memory) ListOSIs(_ context.Context) ([]nota.OSI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return nota.CloneOSIs(m.osis), nil
}

func (m *Memory) GetOSI(_ context.Context, id string) (*nota.OSI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.osiIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", nota.ErrOSINotFound, id)
	}
	o := m.osis[i].Clone()
	return &o, nil
}

// SaveOSIs checks every revision first, then writes all (atomic).
func (m *Memory) SaveOSIs(_ context.Context, osis []nota.OSI) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range osis {
		if i, ok := m.osiIndex[o.ID]; ok && m.osis[i].Revision != o.Revision {
			return fmt.Errorf("%w: osi %s revision %d, stored %d",
				nota.ErrConcurrentModification, o.ID, o.Revision, m.osis[i].Revision)
		}
	}

	for _, o := range osis {
		saved := o.Clone()
		saved.Revision++
		if i, ok := m.osiIndex[o.ID]; ok {
			m.osis[i] = saved
			continue
		}
		m.osiIndex[o.ID] = len(m.osis)
		m.osis = append(m.osis, saved)
	}
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

func (m *Memory) CurrentConfig(_ context.Context) (nota.PayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nota.PayConfig{}, nota.ErrConfigNotFound
	}
	return *m.config, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg nota.PayConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := 0
	if m.config != nil {
		stored = m.config.Version
	}
	if cfg.Version != stored+1 {
		return fmt.Errorf("%w: config version %d, stored %d",
			nota.ErrConcurrentModification, cfg.Version, stored)
	}
	m.config = &cfg
	return nil
}

// =============================================================================
// CYCLES
// =============================================================================

func (m *Memory) ListCycles(_ context.Context) ([]nota.PayCycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]nota.PayCycle(nil), m.cycles...), nil
}

// SaveCycles upserts by id; stored PAID cycles are kept as they are.
func (m *Memory) SaveCycles(_ context.Context, cycles []nota.PayCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range cycles {
		replaced := false
		for i := range m.cycles {
			if m.cycles[i].ID != c.ID {
				continue
			}
			if m.cycles[i].Status != nota.CyclePaid {
				m.cycles[i] = c
			}
			replaced = true
			break
		}
		if !replaced {
			m.cycles = append(m.cycles, c)
		}
	}
	return nil
}
