package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/pkg/models"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

// ─── Tenant Config ──────────────────────────────────────────

func TestTenantModelConfigs_OrderedByPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertTenantModelConfig(ctx, &models.TenantModelConfig{TenantID: "t1", Provider: "anthropic", Model: "claude", Priority: 20})
	s.UpsertTenantModelConfig(ctx, &models.TenantModelConfig{TenantID: "t1", Provider: "openai", Model: "gpt-4o-mini", Priority: 10})
	s.UpsertTenantModelConfig(ctx, &models.TenantModelConfig{TenantID: "t2", Provider: "mock", Priority: 1})

	got, err := s.ListTenantModelConfigs(ctx, "t1")
	if err != nil {
		t.Fatalf("ListTenantModelConfigs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListTenantModelConfigs() len = %d, want 2", len(got))
	}
	if got[0].Provider != "openai" {
		t.Errorf("first provider = %q, want %q", got[0].Provider, "openai")
	}
	if got[0].UpdatedAt.IsZero() {
		t.Errorf("UpdatedAt should be set on upsert")
	}
}

func TestTenantModelConfigs_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertTenantModelConfig(ctx, &models.TenantModelConfig{TenantID: "t1", Provider: "openai", Model: "m", Priority: 10})
	s.UpsertTenantModelConfig(ctx, &models.TenantModelConfig{TenantID: "t1", Provider: "openai", Model: "m", Priority: 5})

	got, _ := s.ListTenantModelConfigs(ctx, "t1")
	if len(got) != 1 || got[0].Priority != 5 {
		t.Errorf("after upsert = %+v, want single row with priority 5", got)
	}

	if err := s.UpsertTenantModelConfig(ctx, &models.TenantModelConfig{Provider: "openai"}); err == nil {
		t.Errorf("UpsertTenantModelConfig() without tenant should fail")
	}
}

// ─── Rows ───────────────────────────────────────────────────

func TestRows_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	row := &store.Row{TenantID: "t1", Collection: "leads", Data: map[string]interface{}{"name": "Sarah Lee", "status": "new"}}
	if err := s.InsertRow(ctx, row); err != nil {
		t.Fatalf("InsertRow() error = %v", err)
	}
	if row.ID == "" {
		t.Fatalf("InsertRow() should assign an id")
	}

	got, err := s.GetRow(ctx, "t1", "leads", row.ID)
	if err != nil {
		t.Fatalf("GetRow() error = %v", err)
	}
	if got.Data["name"] != "Sarah Lee" {
		t.Errorf("GetRow().Data[name] = %v", got.Data["name"])
	}

	upd := &store.Row{TenantID: "t1", Collection: "leads", ID: row.ID, Data: map[string]interface{}{"status": "qualified"}}
	if err := s.UpdateRow(ctx, upd); err != nil {
		t.Fatalf("UpdateRow() error = %v", err)
	}
	if upd.Data["name"] != "Sarah Lee" || upd.Data["status"] != "qualified" {
		t.Errorf("UpdateRow() should merge data, got %v", upd.Data)
	}

	list, _ := s.ListRows(ctx, "t1", "leads", store.RowFilter{Match: map[string]string{"status": "qualified"}})
	if len(list) != 1 {
		t.Errorf("ListRows(status=qualified) len = %d, want 1", len(list))
	}
	list, _ = s.ListRows(ctx, "t2", "leads", store.RowFilter{})
	if len(list) != 0 {
		t.Errorf("rows leaked across tenants: %v", list)
	}

	if err := s.DeleteRow(ctx, "t1", "leads", row.ID); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}
	_, err = s.GetRow(ctx, "t1", "leads", row.ID)
	var nf *store.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("GetRow() after delete error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("ErrNotFound should unwrap to pgx.ErrNoRows")
	}
}

func TestRows_DuplicateInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertRow(ctx, &store.Row{TenantID: "t1", Collection: "tasks", ID: "T-1"})
	err := s.InsertRow(ctx, &store.Row{TenantID: "t1", Collection: "tasks", ID: "T-1"})

	var ce *store.ConstraintError
	if !errors.As(err, &ce) || ce.Code() != "23505" {
		t.Errorf("duplicate InsertRow() error = %v, want unique violation", err)
	}
}

func TestRows_ReturnedCopiesAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertRow(ctx, &store.Row{TenantID: "t1", Collection: "leads", ID: "L-1", Data: map[string]interface{}{"name": "A"}})
	got, _ := s.GetRow(ctx, "t1", "leads", "L-1")
	got.Data["name"] = "mutated"

	again, _ := s.GetRow(ctx, "t1", "leads", "L-1")
	if again.Data["name"] != "A" {
		t.Errorf("store state mutated through returned row")
	}
}

// ─── Knowledge ──────────────────────────────────────────────

func TestKnowledge_ScenarioMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertKnowledge(ctx,
		[]store.KnowledgeAtom{
			{ID: "KA-1", Title: "Retirement basics", Content: "Start early.", Topic: "retirement"},
			{ID: "KA-2", Title: "CI riders", Content: "Explain riders.", Topic: "protection"},
		},
		[]store.ScenarioTrigger{
			{AtomID: "KA-1", TriggerPhrase: "retirement planning"},
			{AtomID: "KA-1", TriggerPhrase: "retirement planning tips"},
			{AtomID: "KA-2", TriggerPhrase: "critical illness"},
		})
	if err != nil {
		t.Fatalf("UpsertKnowledge() error = %v", err)
	}

	ids, _ := s.MatchScenarioTriggers(ctx, "Retirement Planning Tips", 3)
	if len(ids) != 1 || ids[0] != "KA-1" {
		t.Errorf("MatchScenarioTriggers() = %v, want [KA-1]", ids)
	}

	atoms, _ := s.ListKnowledgeAtoms(ctx, []string{"KA-2", "missing"})
	if len(atoms) != 1 || atoms[0].Title != "CI riders" {
		t.Errorf("ListKnowledgeAtoms() = %v", atoms)
	}

	byTopic, _ := s.ListKnowledgeByTopic(ctx, "protection", 3)
	if len(byTopic) != 1 {
		t.Errorf("ListKnowledgeByTopic() len = %d", len(byTopic))
	}

	if _, err := s.GetKnowledgeAtom(ctx, "nope"); err == nil {
		t.Errorf("GetKnowledgeAtom(nope) should fail")
	}
}
