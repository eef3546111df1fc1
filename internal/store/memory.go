package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/advisorhub/mira/pkg/models"
)

// MemoryStore is an in-memory Store. Values are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	configs  map[string][]models.TenantModelConfig
	rows     map[string]*Row
	atoms    map[string]KnowledgeAtom
	triggers []ScenarioTrigger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[string][]models.TenantModelConfig),
		rows:    make(map[string]*Row),
		atoms:   make(map[string]KnowledgeAtom),
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

func key(parts ...string) string {
	return strings.Join(parts, "/")
}

// ── Tenant Config ───────────────────────────────────────────

func (m *MemoryStore) ListTenantModelConfigs(_ context.Context, tenantID string) ([]models.TenantModelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.TenantModelConfig(nil), m.configs[tenantID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *MemoryStore) UpsertTenantModelConfig(_ context.Context, cfg *models.TenantModelConfig) error {
	if cfg == nil || cfg.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	c := *cfg
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.configs[c.TenantID]
	for i := range list {
		if list[i].Provider == c.Provider && list[i].Model == c.Model {
			list[i] = c
			return nil
		}
	}
	m.configs[c.TenantID] = append(list, c)
	return nil
}

// ── Rows ────────────────────────────────────────────────────

func copyRow(r *Row) *Row {
	c := *r
	c.Data = make(map[string]interface{}, len(r.Data))
	for k, v := range r.Data {
		c.Data[k] = v
	}
	return &c
}

func (m *MemoryStore) InsertRow(_ context.Context, row *Row) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now

	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(row.TenantID, row.Collection, row.ID)
	if _, exists := m.rows[k]; exists {
		return &ConstraintError{SQLState: sqlStateUniqueViolation, Constraint: "mira_rows_pkey"}
	}
	m.rows[k] = copyRow(row)
	return nil
}

func (m *MemoryStore) GetRow(_ context.Context, tenantID, collection, id string) (*Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[key(tenantID, collection, id)]
	if !ok {
		return nil, &ErrNotFound{Entity: collection, Key: id}
	}
	return copyRow(r), nil
}

func (m *MemoryStore) ListRows(_ context.Context, tenantID, collection string, filter RowFilter) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, r := range m.rows {
		if r.TenantID != tenantID || r.Collection != collection || !matches(r.Data, filter.Match) {
			continue
		}
		out = append(out, *copyRow(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(data map[string]interface{}, match map[string]string) bool {
	for k, want := range match {
		if fmt.Sprint(data[k]) != want {
			return false
		}
	}
	return true
}

func (m *MemoryStore) UpdateRow(_ context.Context, row *Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[key(row.TenantID, row.Collection, row.ID)]
	if !ok {
		return &ErrNotFound{Entity: row.Collection, Key: row.ID}
	}
	for k, v := range row.Data {
		existing.Data[k] = v
	}
	existing.UpdatedAt = time.Now().UTC()
	*row = *copyRow(existing)
	return nil
}

func (m *MemoryStore) DeleteRow(_ context.Context, tenantID, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(tenantID, collection, id)
	if _, ok := m.rows[k]; !ok {
		return &ErrNotFound{Entity: collection, Key: id}
	}
	delete(m.rows, k)
	return nil
}

// ── Knowledge ───────────────────────────────────────────────

func (m *MemoryStore) GetKnowledgeAtom(_ context.Context, id string) (*KnowledgeAtom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.atoms[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "knowledge atom", Key: id}
	}
	return &a, nil
}

func (m *MemoryStore) ListKnowledgeByTopic(_ context.Context, topic string, limit int) ([]KnowledgeAtom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []KnowledgeAtom
	for _, a := range m.atoms {
		if a.Topic == topic {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MatchScenarioTriggers(_ context.Context, scenario string, limit int) ([]string, error) {
	phrase := strings.ToLower(strings.TrimSpace(scenario))
	if phrase == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	seen := make(map[string]bool)
	for _, t := range m.triggers {
		trigger := strings.ToLower(t.TriggerPhrase)
		if !strings.Contains(trigger, phrase) && !strings.Contains(phrase, trigger) {
			continue
		}
		if !seen[t.AtomID] {
			seen[t.AtomID] = true
			ids = append(ids, t.AtomID)
		}
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *MemoryStore) ListKnowledgeAtoms(_ context.Context, ids []string) ([]KnowledgeAtom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]KnowledgeAtom, 0, len(ids))
	for _, id := range ids {
		if a, ok := m.atoms[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertKnowledge(_ context.Context, atoms []KnowledgeAtom, triggers []ScenarioTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range atoms {
		m.atoms[a.ID] = a
	}
	for _, t := range triggers {
		dup := false
		for _, existing := range m.triggers {
			if existing == t {
				dup = true
				break
			}
		}
		if !dup {
			m.triggers = append(m.triggers, t)
		}
	}
	return nil
}
