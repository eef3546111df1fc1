// Package knowledge looks up knowledge-base atoms by id, topic or free-text
// scenario and summarizes them for chat replies.
package knowledge

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/advisorhub/mira/internal/store"
)

const (
	defaultLimit  = 3
	maxLimit      = 10
	triggerLimit  = 10
	summaryMaxLen = 280
)

// Query selects atoms. The first non-empty field wins: AtomID, then Topic,
// then Scenario.
type Query struct {
	AtomID   string
	Topic    string
	Scenario string
	Limit    int
}

// Item is one summarized lookup result.
type Item struct {
	AtomID  string `json:"atom_id"`
	Title   string `json:"title,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Summary string `json:"summary"`
}

// Result holds lookup items in relevance order.
type Result struct {
	Items []Item `json:"items"`
}

// Service queries the knowledge store.
type Service struct {
	store store.KnowledgeStore
}

// NewService creates a knowledge lookup service.
func NewService(st store.KnowledgeStore) *Service {
	return &Service{store: st}
}

// Lookup resolves q against the store.
func (s *Service) Lookup(ctx context.Context, q Query) (Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	switch {
	case q.AtomID != "":
		atom, err := s.store.GetKnowledgeAtom(ctx, q.AtomID)
		if err != nil {
			var nf *store.ErrNotFound
			if errors.As(err, &nf) {
				return Result{Items: []Item{}}, nil
			}
			return Result{}, fmt.Errorf("knowledge atom %s: %w", q.AtomID, err)
		}
		return Result{Items: []Item{toItem(*atom)}}, nil

	case q.Topic != "":
		atoms, err := s.store.ListKnowledgeByTopic(ctx, q.Topic, limit)
		if err != nil {
			return Result{}, fmt.Errorf("knowledge topic %s: %w", q.Topic, err)
		}
		return toResult(atoms), nil

	case strings.TrimSpace(q.Scenario) != "":
		ids, err := s.store.MatchScenarioTriggers(ctx, q.Scenario, triggerLimit)
		if err != nil {
			return Result{}, fmt.Errorf("scenario triggers: %w", err)
		}
		if len(ids) > limit {
			ids = ids[:limit]
		}
		if len(ids) == 0 {
			return Result{Items: []Item{}}, nil
		}
		atoms, err := s.store.ListKnowledgeAtoms(ctx, ids)
		if err != nil {
			return Result{}, fmt.Errorf("knowledge atoms: %w", err)
		}
		return toResult(atoms), nil
	}

	return Result{Items: []Item{}}, nil
}

func toItem(a store.KnowledgeAtom) Item {
	return Item{AtomID: a.ID, Title: a.Title, Topic: a.Topic, Summary: Summarize(a.Content)}
}

func toResult(atoms []store.KnowledgeAtom) Result {
	items := make([]Item, 0, len(atoms))
	for _, a := range atoms {
		items = append(items, toItem(a))
	}
	return Result{Items: items}
}

// Summarize flattens line breaks to " ¶ " and truncates to 280 runes with
// a trailing "...".
func Summarize(content string) string {
	s := strings.ReplaceAll(content, "\r", "")
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' })
	s = strings.TrimSpace(strings.Join(lines, " ¶ "))
	if utf8.RuneCountInString(s) <= summaryMaxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:summaryMaxLen-3]) + "..."
}

// ── Seed data ───────────────────────────────────────────────

//go:embed seed.yaml
var seedYAML []byte

type seedAtom struct {
	store.KnowledgeAtom `yaml:",inline"`
	Triggers            []string `yaml:"triggers"`
}

// Seed loads the embedded starter knowledge base into st.
func Seed(ctx context.Context, st store.KnowledgeStore) error {
	var doc struct {
		Atoms []seedAtom `yaml:"atoms"`
	}
	if err := yaml.Unmarshal(seedYAML, &doc); err != nil {
		return fmt.Errorf("decode knowledge seed: %w", err)
	}

	atoms := make([]store.KnowledgeAtom, 0, len(doc.Atoms))
	var triggers []store.ScenarioTrigger
	for _, a := range doc.Atoms {
		atoms = append(atoms, a.KnowledgeAtom)
		for _, phrase := range a.Triggers {
			triggers = append(triggers, store.ScenarioTrigger{AtomID: a.ID, TriggerPhrase: phrase})
		}
	}
	return st.UpsertKnowledge(ctx, atoms, triggers)
}
