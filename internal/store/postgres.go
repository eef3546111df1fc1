package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/advisorhub/mira/pkg/models"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and migrates.
func NewPostgresStore(ctx context.Context, connURL string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Int32("maxConns", cfg.MaxConns).Msg("✅ PostgreSQL store initialized")
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS mira_model_configs (
			tenant_id   TEXT NOT NULL,
			provider    TEXT NOT NULL,
			model       TEXT NOT NULL DEFAULT '',
			priority    INTEGER NOT NULL DEFAULT 100,
			temperature DOUBLE PRECISION,
			max_tokens  INTEGER,
			max_retries INTEGER,
			timeout_ms  INTEGER,
			metadata    JSONB NOT NULL DEFAULT '{}',
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, provider, model)
		);

		CREATE TABLE IF NOT EXISTS mira_rows (
			tenant_id   TEXT NOT NULL,
			collection  TEXT NOT NULL,
			id          TEXT NOT NULL,
			data        JSONB NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, collection, id)
		);

		CREATE TABLE IF NOT EXISTS knowledge_atoms (
			id      TEXT PRIMARY KEY,
			title   TEXT,
			content TEXT NOT NULL DEFAULT '',
			topic   TEXT
		);

		CREATE TABLE IF NOT EXISTS scenario_triggers (
			atom_id        TEXT NOT NULL REFERENCES knowledge_atoms(id) ON DELETE CASCADE,
			trigger_phrase TEXT NOT NULL,
			PRIMARY KEY (atom_id, trigger_phrase)
		);

		CREATE INDEX IF NOT EXISTS idx_knowledge_atoms_topic ON knowledge_atoms (topic);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// ── Tenant Config ───────────────────────────────────────────

func (s *PostgresStore) ListTenantModelConfigs(ctx context.Context, tenantID string) ([]models.TenantModelConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, provider, model, priority, temperature, max_tokens, max_retries, timeout_ms, metadata, updated_at
		FROM mira_model_configs
		WHERE tenant_id = $1
		ORDER BY priority ASC, updated_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TenantModelConfig
	for rows.Next() {
		var c models.TenantModelConfig
		if err := rows.Scan(&c.TenantID, &c.Provider, &c.Model, &c.Priority, &c.Temperature,
			&c.MaxTokens, &c.MaxRetries, &c.TimeoutMs, &c.Metadata, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertTenantModelConfig(ctx context.Context, cfg *models.TenantModelConfig) error {
	metadata := cfg.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mira_model_configs
			(tenant_id, provider, model, priority, temperature, max_tokens, max_retries, timeout_ms, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (tenant_id, provider, model) DO UPDATE SET
			priority = EXCLUDED.priority,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			max_retries = EXCLUDED.max_retries,
			timeout_ms = EXCLUDED.timeout_ms,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()`,
		cfg.TenantID, cfg.Provider, cfg.Model, cfg.Priority, cfg.Temperature,
		cfg.MaxTokens, cfg.MaxRetries, cfg.TimeoutMs, metadata)
	return err
}

// ── Rows ────────────────────────────────────────────────────

func (s *PostgresStore) InsertRow(ctx context.Context, row *Row) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Data == nil {
		row.Data = map[string]interface{}{}
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO mira_rows (tenant_id, collection, id, data)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		row.TenantID, row.Collection, row.ID, row.Data).Scan(&row.CreatedAt, &row.UpdatedAt)
}

func (s *PostgresStore) GetRow(ctx context.Context, tenantID, collection, id string) (*Row, error) {
	r := Row{TenantID: tenantID, Collection: collection, ID: id}
	err := s.pool.QueryRow(ctx, `
		SELECT data, created_at, updated_at FROM mira_rows
		WHERE tenant_id = $1 AND collection = $2 AND id = $3`,
		tenantID, collection, id).Scan(&r.Data, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: collection, Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRows(ctx context.Context, tenantID, collection string, filter RowFilter) ([]Row, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data, created_at, updated_at FROM mira_rows
		WHERE tenant_id = $1 AND collection = $2`)
	args := []interface{}{tenantID, collection}

	for k, v := range filter.Match {
		args = append(args, k, v)
		sb.WriteString(fmt.Sprintf(" AND data->>$%d = $%d", len(args)-1, len(args)))
	}
	sb.WriteString(" ORDER BY created_at DESC, id ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r := Row{TenantID: tenantID, Collection: collection}
		if err := rows.Scan(&r.ID, &r.Data, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateRow(ctx context.Context, row *Row) error {
	data := row.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	var merged map[string]interface{}
	var created, updated time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE mira_rows SET data = data || $4, updated_at = NOW()
		WHERE tenant_id = $1 AND collection = $2 AND id = $3
		RETURNING data, created_at, updated_at`,
		row.TenantID, row.Collection, row.ID, data).Scan(&merged, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return &ErrNotFound{Entity: row.Collection, Key: row.ID}
	}
	if err != nil {
		return err
	}
	row.Data, row.CreatedAt, row.UpdatedAt = merged, created, updated
	return nil
}

func (s *PostgresStore) DeleteRow(ctx context.Context, tenantID, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mira_rows WHERE tenant_id = $1 AND collection = $2 AND id = $3`,
		tenantID, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: collection, Key: id}
	}
	return nil
}

// ── Knowledge ───────────────────────────────────────────────

func scanAtoms(rows pgx.Rows) ([]KnowledgeAtom, error) {
	defer rows.Close()
	var out []KnowledgeAtom
	for rows.Next() {
		var a KnowledgeAtom
		var title, topic *string
		if err := rows.Scan(&a.ID, &title, &a.Content, &topic); err != nil {
			return nil, err
		}
		if title != nil {
			a.Title = *title
		}
		if topic != nil {
			a.Topic = *topic
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetKnowledgeAtom(ctx context.Context, id string) (*KnowledgeAtom, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, content, topic FROM knowledge_atoms WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	atoms, err := scanAtoms(rows)
	if err != nil {
		return nil, err
	}
	if len(atoms) == 0 {
		return nil, &ErrNotFound{Entity: "knowledge atom", Key: id}
	}
	return &atoms[0], nil
}

func (s *PostgresStore) ListKnowledgeByTopic(ctx context.Context, topic string, limit int) ([]KnowledgeAtom, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, content, topic FROM knowledge_atoms
		WHERE topic = $1 ORDER BY id LIMIT $2`, topic, limit)
	if err != nil {
		return nil, err
	}
	return scanAtoms(rows)
}

func (s *PostgresStore) MatchScenarioTriggers(ctx context.Context, scenario string, limit int) ([]string, error) {
	phrase := strings.ToLower(strings.TrimSpace(scenario))
	if phrase == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT atom_id FROM (
			SELECT atom_id, MIN(trigger_phrase) AS first_phrase FROM scenario_triggers
			WHERE trigger_phrase ILIKE '%' || $1 || '%' OR $1 ILIKE '%' || trigger_phrase || '%'
			GROUP BY atom_id
		) t ORDER BY first_phrase LIMIT $2`, phrase, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ListKnowledgeAtoms(ctx context.Context, ids []string) ([]KnowledgeAtom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, title, content, topic FROM knowledge_atoms
		WHERE id = ANY($1) ORDER BY array_position($1, id)`, ids)
	if err != nil {
		return nil, err
	}
	return scanAtoms(rows)
}

func (s *PostgresStore) UpsertKnowledge(ctx context.Context, atoms []KnowledgeAtom, triggers []ScenarioTrigger) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range atoms {
			batch.Queue(`INSERT INTO knowledge_atoms (id, title, content, topic) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, topic = EXCLUDED.topic`,
				a.ID, a.Title, a.Content, a.Topic)
		}
		for _, t := range triggers {
			batch.Queue(`INSERT INTO scenario_triggers (atom_id, trigger_phrase) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, t.AtomID, t.TriggerPhrase)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
