// Package store provides the storage interface and implementations used by
// Mira: tenant model configuration, the generic row store behind module
// tools, and the knowledge base.
//
// The in-memory implementation serves tests and database-less deployments;
// PostgreSQL is used when a database URL is configured.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/advisorhub/mira/pkg/models"
)

// Store is the full persistence surface.
type Store interface {
	TenantConfigStore
	RowStore
	KnowledgeStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate creates tables if needed.
	Migrate(ctx context.Context) error
}

// ── Tenant Config Store ─────────────────────────────────────

type TenantConfigStore interface {
	// ListTenantModelConfigs returns a tenant's configs, lowest priority first.
	ListTenantModelConfigs(ctx context.Context, tenantID string) ([]models.TenantModelConfig, error)
	UpsertTenantModelConfig(ctx context.Context, cfg *models.TenantModelConfig) error
}

// ── Row Store ───────────────────────────────────────────────

// Row is one record of a module collection (leads, tasks, proposals, ...).
type Row struct {
	ID         string                 `json:"id"`
	TenantID   string                 `json:"tenantId"`
	Collection string                 `json:"collection"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// RowFilter narrows ListRows. Match compares top-level data fields as strings.
type RowFilter struct {
	Match map[string]string
	Limit int
}

type RowStore interface {
	InsertRow(ctx context.Context, row *Row) error
	GetRow(ctx context.Context, tenantID, collection, id string) (*Row, error)
	ListRows(ctx context.Context, tenantID, collection string, filter RowFilter) ([]Row, error)
	// UpdateRow merges row.Data into the stored record.
	UpdateRow(ctx context.Context, row *Row) error
	DeleteRow(ctx context.Context, tenantID, collection, id string) error
}

// ── Knowledge Store ─────────────────────────────────────────

// KnowledgeAtom is one knowledge-base entry.
type KnowledgeAtom struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
	Topic   string `json:"topic" yaml:"topic"`
}

// ScenarioTrigger links a phrase to an atom.
type ScenarioTrigger struct {
	AtomID        string `json:"atomId" yaml:"atom_id"`
	TriggerPhrase string `json:"triggerPhrase" yaml:"trigger_phrase"`
}

type KnowledgeStore interface {
	GetKnowledgeAtom(ctx context.Context, id string) (*KnowledgeAtom, error)
	ListKnowledgeByTopic(ctx context.Context, topic string, limit int) ([]KnowledgeAtom, error)
	// MatchScenarioTriggers returns the distinct atom ids whose trigger
	// phrase contains the scenario, or is contained in it, case-insensitively.
	MatchScenarioTriggers(ctx context.Context, scenario string, limit int) ([]string, error)
	ListKnowledgeAtoms(ctx context.Context, ids []string) ([]KnowledgeAtom, error)
	UpsertKnowledge(ctx context.Context, atoms []KnowledgeAtom, triggers []ScenarioTrigger) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// Unwrap lets callers treat ErrNotFound like a driver no-rows result.
func (e *ErrNotFound) Unwrap() error { return pgx.ErrNoRows }

// ConstraintError reports a violated constraint with its SQLSTATE code.
type ConstraintError struct {
	SQLState   string
	Constraint string
}

func (e *ConstraintError) Error() string {
	return "constraint " + e.Constraint + " violated (SQLSTATE " + e.SQLState + ")"
}

// Code returns the SQLSTATE code.
func (e *ConstraintError) Code() string { return e.SQLState }

const sqlStateUniqueViolation = "23505"
