// Package router classifies advisor utterances into topic, subtopic and
// intent, scores confidence, tracks topic switches and decides which skill
// should handle the turn.
//
// Everything here is pure and CPU-bound except the intent cache, which is an
// owned handle that can be swapped out with ResetCache.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/pkg/models"
)

var tracer = otel.Tracer("mira-router")

// Fallback reasons.
const (
	ReasonEmptyMessage        = "empty_message"
	ReasonNoMatch             = "no_match"
	ReasonClassificationError = "classification_error"
)

// FallbackIntent is the intent reported when nothing could be classified.
const FallbackIntent = catalog.SkillAgentPassthrough

const maxCandidates = 3

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Taxonomy             *Taxonomy
	Weights              *Weights
	CacheTTL             time.Duration
	CacheMaxSize         int
	CacheCleanupInterval time.Duration
}

// Service is the intent router.
type Service struct {
	taxonomy *Taxonomy
	weights  Weights
	opts     Options
	cache    atomic.Pointer[IntentCache]
}

// NewService creates an intent router with its own cache.
func NewService(opts Options) *Service {
	s := &Service{
		taxonomy: opts.Taxonomy,
		weights:  DefaultWeights(),
		opts:     opts,
	}
	if s.taxonomy == nil {
		s.taxonomy = DefaultTaxonomy()
	}
	if opts.Weights != nil {
		s.weights = *opts.Weights
	}
	s.cache.Store(s.newCache())
	return s
}

func (s *Service) newCache() *IntentCache {
	return NewIntentCache(s.opts.CacheTTL, s.opts.CacheMaxSize, s.opts.CacheCleanupInterval)
}

// Taxonomy returns the taxonomy the service scores against.
func (s *Service) Taxonomy() *Taxonomy { return s.taxonomy }

// ResetCache atomically replaces the intent cache with an empty one.
func (s *Service) ResetCache() {
	old := s.cache.Swap(s.newCache())
	if old != nil {
		old.Close()
	}
}

// CacheStats reports the current cache's statistics.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Load().Stats()
}

// Close stops the cache's background cleanup.
func (s *Service) Close() {
	s.cache.Load().Close()
}

// ClassifyOptions carries per-call classification inputs.
type ClassifyOptions struct {
	PreviousTopic string
}

// ClassifyIntent classifies message in the given UI context. It never fails:
// empty input, no match and internal faults all degrade to a zero-confidence
// passthrough classification.
func (s *Service) ClassifyIntent(ctx context.Context, message string, miraCtx *models.MiraContext, opts ClassifyOptions) models.IntentClassification {
	_, span := tracer.Start(ctx, "router.ClassifyIntent")
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return fallbackClassification(miraCtx, ReasonEmptyMessage)
	}

	cache := s.cache.Load()
	key := CacheKey(message, miraCtx)
	if cached, ok := cache.Get(key); ok {
		cached.ShouldSwitchTopic = DetectTopicSwitch(opts.PreviousTopic, cached.Topic, cached.Confidence).ShouldSwitch
		span.SetAttributes(attribute.Bool("mira.cache_hit", true), attribute.String("mira.intent", cached.Intent))
		return cached
	}

	result, err := s.classify(message, miraCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Intent classification failed, falling back to passthrough")
		return fallbackClassification(miraCtx, ReasonClassificationError)
	}
	cache.Set(key, result)

	result.ShouldSwitchTopic = DetectTopicSwitch(opts.PreviousTopic, result.Topic, result.Confidence).ShouldSwitch
	span.SetAttributes(
		attribute.String("mira.intent", result.Intent),
		attribute.Float64("mira.confidence", result.Confidence),
	)
	log.Debug().
		Str("intent", result.Intent).
		Str("topic", result.Topic).
		Float64("confidence", result.Confidence).
		Str("tier", string(result.ConfidenceTier)).
		Msg("Intent classified")
	return result
}

// classify scores every taxonomy intent. Switch state is left to the caller.
func (s *Service) classify(message string, miraCtx *models.MiraContext) (result models.IntentClassification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring panic: %v", r)
		}
	}()

	var boosts map[string]float64
	if miraCtx != nil {
		boosts = BehavioralBoosts(miraCtx.Behavioral)
	}

	scores := make([]IntentScore, 0, len(s.taxonomy.Intents))
	for _, def := range s.taxonomy.Intents {
		sc := s.weights.ScoreIntent(message, def, miraCtx)
		if b := boosts[def.Topic]; b > 0 && sc.Score > 0 {
			sc.Score += b
			if sc.Score > 1 {
				sc.Score = 1
			}
			sc.Reasons = append(sc.Reasons, behavioralReasonPrefix+def.Topic)
		}
		scores = append(scores, sc)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	if len(scores) == 0 || scores[0].Score <= 0 {
		return fallbackClassification(miraCtx, ReasonNoMatch), nil
	}
	top := scores[0]

	return models.IntentClassification{
		Topic:           top.Intent.Topic,
		Subtopic:        top.Intent.Subtopic,
		Intent:          top.Intent.Name,
		Confidence:      top.Score,
		ConfidenceTier:  ApplyThresholds(top.Score),
		CandidateAgents: rankCandidates(scores),
		Reasons:         top.Reasons,
	}, nil
}

// rankCandidates keeps the best score per agent, highest first.
func rankCandidates(sorted []IntentScore) []models.CandidateAgentScore {
	seen := make(map[string]bool)
	var out []models.CandidateAgentScore
	for _, sc := range sorted {
		if sc.Score <= 0 {
			break
		}
		agent := catalog.AgentForModule(sc.Intent.Topic)
		if seen[agent] {
			continue
		}
		seen[agent] = true
		out = append(out, models.CandidateAgentScore{
			AgentID: agent,
			Score:   sc.Score,
			Reason:  "intent:" + sc.Intent.Name,
		})
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

func fallbackClassification(miraCtx *models.MiraContext, reason string) models.IntentClassification {
	topic := string(models.ModuleCustomer)
	if miraCtx != nil && miraCtx.Module != "" {
		topic = string(miraCtx.Module)
	}
	return models.IntentClassification{
		Topic:          topic,
		Subtopic:       "general",
		Intent:         FallbackIntent,
		Confidence:     0,
		ConfidenceTier: models.TierLow,
		CandidateAgents: []models.CandidateAgentScore{
			{AgentID: catalog.AgentForModule(topic), Score: 0, Reason: reason},
		},
		Reasons: []string{reason},
	}
}

// SelectAgent picks the top candidate, or the topic's default agent with a
// zero score when there are no candidates.
func (s *Service) SelectAgent(c models.IntentClassification) models.AgentSelection {
	if len(c.CandidateAgents) > 0 {
		return models.AgentSelection{AgentID: c.CandidateAgents[0].AgentID, Score: c.CandidateAgents[0].Score}
	}
	return models.AgentSelection{AgentID: catalog.AgentForModule(c.Topic), Score: 0}
}
