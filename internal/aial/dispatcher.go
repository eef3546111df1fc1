// Package aial dispatches Advisor Impact Automation Layer events: structured
// advisor-context events that are turned into a short recommended action.
package aial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/skills"
	"github.com/advisorhub/mira/pkg/models"
)

var tracer = otel.Tracer("mira-aial")

// ErrInvalidEvent is returned for events missing required fields.
var ErrInvalidEvent = errors.New("invalid aial event")

const systemPrompt = "You are Mira's Advisor Impact Automation Layer (AIAL). " +
	"Given a JSON payload describing advisor context, produce a short recommended action summary. " +
	"Respond in plain English with at most three bullet points."

const defaultSource = "aial"

// TenantConfigs resolves a tenant's model config.
type TenantConfigs interface {
	Get(ctx context.Context, tenantID string) (*models.TenantModelConfig, error)
}

// Chatter sends a batch chat request.
type Chatter interface {
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error)
}

// ClientFactory builds the chat client for a tenant config, which may be nil.
type ClientFactory func(ctx context.Context, cfg *models.TenantModelConfig) (Chatter, error)

// SkillRunner executes local skills.
type SkillRunner interface {
	HasSkill(name string) bool
	ExecuteSkill(ctx context.Context, name string, sc skills.SkillContext) (skills.SkillResult, error)
}

// Dispatcher routes AIAL events to a local skill or the agent client.
type Dispatcher struct {
	configs   TenantConfigs
	newClient ClientFactory
	skills    SkillRunner
}

// NewDispatcher creates a dispatcher. configs and skills may be nil.
func NewDispatcher(configs TenantConfigs, newClient ClientFactory, skillRunner SkillRunner) *Dispatcher {
	return &Dispatcher{configs: configs, newClient: newClient, skills: skillRunner}
}

// Dispatch handles one event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *models.AIALEvent) (*models.AIALResult, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: event is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.Intent) == "" {
		return nil, fmt.Errorf("%w: event.intent is required", ErrInvalidEvent)
	}
	ctx, span := tracer.Start(ctx, "aial.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("mira.intent", ev.Intent), attribute.String("mira.event_id", ev.ID))

	tenantID := models.StringFrom(ev.Metadata, "tenantId", "tenant_id", "tenant")
	var cfg *models.TenantModelConfig
	if tenantID != "" && d.configs != nil {
		c, err := d.configs.Get(ctx, tenantID)
		if err != nil {
			log.Warn().Err(err).Str("tenant", tenantID).Msg("Tenant model config unavailable, using defaults")
		} else {
			cfg = c
		}
	}

	req, err := buildRequest(ev, tenantID, cfg)
	if err != nil {
		return nil, err
	}
	result := &models.AIALResult{EventID: ev.ID, Intent: ev.Intent, Metadata: req.Metadata}

	if decision := router.FastRoute(routeProbe(ev)); d.runsLocally(decision) {
		span.SetAttributes(attribute.String("mira.skill", decision.NextSkill))
		res, err := d.skills.ExecuteSkill(ctx, decision.NextSkill, skills.SkillContext{
			Request:   routeProbe(ev),
			RequestID: firstNonEmpty(ev.ID, uuid.NewString()),
			TenantID:  tenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("aial skill %s: %w", decision.NextSkill, err)
		}
		log.Debug().Str("event", ev.ID).Str("skill", decision.NextSkill).Msg("AIAL event handled by local skill")
		result.Message = models.ChatMessage{Role: models.RoleAssistant, Content: res.Content, HasContent: true}
		result.ToolCalls = []models.ToolCall{}
		if a, ok := skills.PrimaryAction(res.Actions); ok {
			result.ToolCalls = append(result.ToolCalls, skills.ActionToolCall(a))
		}
		return result, nil
	}

	client, err := d.newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("aial client: %w", err)
	}
	res, err := client.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("aial chat: %w", err)
	}
	result.Message = res.Message
	result.ToolCalls = res.ToolCalls
	if result.ToolCalls == nil {
		result.ToolCalls = []models.ToolCall{}
	}
	return result, nil
}

func (d *Dispatcher) runsLocally(decision models.SkillDecision) bool {
	return d.skills != nil &&
		decision.NextSkill != catalog.SkillAgentPassthrough &&
		d.skills.HasSkill(decision.NextSkill)
}

func buildRequest(ev *models.AIALEvent, tenantID string, cfg *models.TenantModelConfig) (*models.ChatRequest, error) {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	evMeta := ev.Metadata
	if evMeta == nil {
		evMeta = map[string]interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"intent": ev.Intent, "payload": payload, "metadata": evMeta})
	if err != nil {
		return nil, fmt.Errorf("%w: encode event: %v", ErrInvalidEvent, err)
	}

	meta := map[string]interface{}{
		"eventId": ev.ID,
		"intent":  ev.Intent,
		"source":  firstNonEmpty(models.StringFrom(ev.Metadata, "source"), defaultSource),
	}
	if tenantID != "" {
		meta["tenantId"] = tenantID
	}
	if ch := models.StringFrom(ev.Metadata, "channel"); ch != "" {
		meta["channel"] = ch
	}
	if cfg != nil {
		meta["tenantModelConfig"] = cfg
	}

	return &models.ChatRequest{
		Mode: models.ModeBatch,
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: systemPrompt, HasContent: true},
			{Role: models.RoleUser, Content: string(body), HasContent: true},
		},
		Metadata: meta,
	}, nil
}

// routeProbe is the request the fast pre-route sees: the event's free text
// (payload text or message, else the intent) plus its metadata hints.
func routeProbe(ev *models.AIALEvent) *models.ChatRequest {
	text := firstNonEmpty(models.StringFrom(ev.Payload, "text", "message", "query"), ev.Intent)
	return &models.ChatRequest{
		Mode:     models.ModeBatch,
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: text, HasContent: true}},
		Metadata: ev.Metadata,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
