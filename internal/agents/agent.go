// Package agents holds the seven module agents of the advisor portal and
// the registry that resolves them.
//
// Each agent turns a classified intent into a templated reply and an
// ordered list of UI actions, invoking its module tools through the tool
// registry on the way. Agents never fail a reply because a tool failed:
// tool results are logged and the reply degrades gracefully.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

// ErrAgentNotFound is returned when no agent matches an id or module.
var ErrAgentNotFound = errors.New("agent not found")

// DefaultTenant scopes tool data when a request carries no tenant.
const DefaultTenant = "default"

// Agent is a module responder.
type Agent interface {
	ID() string
	Module() models.MiraModule
	SystemPrompt() string
	Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, userMessage string) (*models.MiraResponse, error)
	GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent
	GenerateInsights(ctx context.Context, advisorID string, miraCtx *models.MiraContext) ([]models.ProactiveInsight, error)
}

// ExecutionInput resolves an agent by AgentID, else by Context.Module.
type ExecutionInput struct {
	AgentID     string
	Intent      string
	Context     *models.MiraContext
	UserMessage string
}

// ── Registry ────────────────────────────────────────────────

// Registry is the closed set of module agents.
type Registry struct {
	byID     map[string]Agent
	byModule map[models.MiraModule]Agent
	order    []Agent
}

// NewRegistry builds the seven module agents over the tool registry.
func NewRegistry(reg *tools.Registry) (*Registry, error) {
	rules, err := loadInsightRules()
	if err != nil {
		return nil, err
	}
	r := &Registry{
		byID:     make(map[string]Agent),
		byModule: make(map[models.MiraModule]Agent),
	}
	for _, a := range []Agent{
		newCustomerAgent(newBase(catalog.CustomerAgent, models.ModuleCustomer, customerPrompt, reg, rules)),
		newNewBusinessAgent(newBase(catalog.NewBusinessAgent, models.ModuleNewBusiness, newBusinessPrompt, reg, rules)),
		newProductAgent(newBase(catalog.ProductAgent, models.ModuleProduct, productPrompt, reg, rules)),
		newAnalyticsAgent(newBase(catalog.AnalyticsAgent, models.ModuleAnalytics, analyticsPrompt, reg, rules)),
		newToDoAgent(newBase(catalog.ToDoAgent, models.ModuleTodo, todoPrompt, reg, rules)),
		newBroadcastAgent(newBase(catalog.BroadcastAgent, models.ModuleBroadcast, broadcastPrompt, reg, rules)),
		newVisualizerAgent(newBase(catalog.VisualizerAgent, models.ModuleVisualizer, visualizerPrompt, reg, rules)),
	} {
		r.byID[a.ID()] = a
		r.byModule[a.Module()] = a
		r.order = append(r.order, a)
	}
	return r, nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (Agent, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// ForModule returns the agent serving module.
func (r *Registry) ForModule(module models.MiraModule) (Agent, bool) {
	a, ok := r.byModule[module]
	return a, ok
}

// All returns every agent in registration order.
func (r *Registry) All() []Agent {
	return append([]Agent(nil), r.order...)
}

// Resolve picks the agent by explicit id first, then by module.
func (r *Registry) Resolve(agentID string, module models.MiraModule) (Agent, bool) {
	if agentID != "" {
		if a, ok := r.byID[agentID]; ok {
			return a, true
		}
	}
	return r.ForModule(module)
}

// Has reports whether Resolve would find an agent.
func (r *Registry) Has(agentID string, module models.MiraModule) bool {
	_, ok := r.Resolve(agentID, module)
	return ok
}

// Execute resolves and runs an agent.
func (r *Registry) Execute(ctx context.Context, in ExecutionInput) (*models.MiraResponse, error) {
	var module models.MiraModule
	if in.Context != nil {
		module = in.Context.Module
	}
	a, ok := r.Resolve(in.AgentID, module)
	if !ok {
		return nil, fmt.Errorf("%w: id %q module %q", ErrAgentNotFound, in.AgentID, module)
	}
	miraCtx := in.Context
	if miraCtx == nil {
		miraCtx = &models.MiraContext{Module: a.Module(), Page: a.Module().HomePage()}
	}
	return a.Execute(ctx, in.Intent, miraCtx, in.UserMessage)
}

// ── Base ────────────────────────────────────────────────────

type base struct {
	id     string
	module models.MiraModule
	prompt string
	tools  *tools.Registry
	rules  []insightRule
}

func newBase(id string, module models.MiraModule, prompt string, reg *tools.Registry, rules []insightRule) base {
	var own []insightRule
	for _, r := range rules {
		if r.module == module {
			own = append(own, r)
		}
	}
	return base{id: id, module: module, prompt: strings.TrimSpace(prompt), tools: reg, rules: own}
}

func (b *base) ID() string                { return b.id }
func (b *base) Module() models.MiraModule { return b.module }
func (b *base) SystemPrompt() string      { return b.prompt }

// invoke runs a module tool with retry. Failures are logged by the tool
// layer and returned for the caller to ignore or inspect.
func (b *base) invoke(ctx context.Context, miraCtx *models.MiraContext, name string, args map[string]interface{}) models.ToolResult {
	if b.tools == nil {
		return models.ToolResult{Success: false, Error: &tools.ToolError{Code: tools.CodeToolNotFound, Message: "no tool registry"}}
	}
	logger := log.With().Str("agent", b.id).Logger()
	return b.tools.ExecuteWithRetry(ctx, name, tools.ExecuteInput{Args: args, TenantID: tenantOf(miraCtx)}, &logger, nil)
}

func (b *base) respond(intent, subtopic string, reply string, actions []models.UIAction) *models.MiraResponse {
	if actions == nil {
		actions = []models.UIAction{}
	}
	return &models.MiraResponse{
		AssistantReply: reply,
		UIActions:      actions,
		Metadata: models.ResponseMetadata{
			Topic:    string(b.module),
			Subtopic: subtopic,
			Intent:   intent,
			Agent:    b.id,
		},
	}
}

// fallback acknowledges an unhandled intent and opens the module home page.
func (b *base) fallback(intent, reply string) *models.MiraResponse {
	log.Debug().Str("agent", b.id).Str("intent", intent).Msg("Unhandled intent, opening module home")
	return b.respond(intent, "general", reply, []models.UIAction{NavigateAction(b.module, b.module.HomePage(), nil)})
}

func (b *base) suggestion(intent, title, description, prompt string, confidence float64) models.SuggestedIntent {
	return models.SuggestedIntent{
		ID:          fmt.Sprintf("%s-%s", b.module, intent),
		Title:       title,
		PromptText:  prompt,
		Module:      b.module,
		Intent:      intent,
		Description: description,
		Confidence:  confidence,
	}
}

// GenerateInsights evaluates the agent's insight rules against page data.
func (b *base) GenerateInsights(ctx context.Context, advisorID string, miraCtx *models.MiraContext) ([]models.ProactiveInsight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pageData map[string]interface{}
	if miraCtx != nil {
		pageData = miraCtx.PageData
	}
	return evaluateRules(b.rules, advisorID, pageData)
}

// ── Helpers ─────────────────────────────────────────────────

func tenantOf(miraCtx *models.MiraContext) string {
	if miraCtx != nil && miraCtx.TenantID != "" {
		return miraCtx.TenantID
	}
	return DefaultTenant
}

// pageString returns a trimmed page-data string or fallback.
func pageString(miraCtx *models.MiraContext, key, fallback string) string {
	return strings.TrimSpace(miraCtx.PageString(key, fallback))
}

func pageNumber(miraCtx *models.MiraContext, key string, fallback float64) float64 {
	if miraCtx == nil || miraCtx.PageData == nil {
		return fallback
	}
	switch v := miraCtx.PageData[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

func pageBool(miraCtx *models.MiraContext, key string) bool {
	if miraCtx == nil || miraCtx.PageData == nil {
		return false
	}
	b, _ := miraCtx.PageData[key].(bool)
	return b
}

// resultRecord returns the single record a successful tool call produced.
func resultRecord(res models.ToolResult) (map[string]interface{}, bool) {
	if !res.Success {
		return nil, false
	}
	rec, ok := res.Data.(map[string]interface{})
	return rec, ok
}

func resultRecords(res models.ToolResult) ([]map[string]interface{}, bool) {
	if !res.Success {
		return nil, false
	}
	recs, ok := res.Data.([]map[string]interface{})
	return recs, ok
}

func field(rec map[string]interface{}, key string) string {
	s, _ := rec[key].(string)
	return s
}

// joinField lists key from up to limit records, noting how many were left out.
func joinField(recs []map[string]interface{}, key string, limit int) string {
	var parts []string
	for i, r := range recs {
		if i == limit {
			parts = append(parts, fmt.Sprintf("%d more", len(recs)-limit))
			break
		}
		if s := field(r, key); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func money(v interface{}) string {
	return fmt.Sprintf("$%.0f", number(v))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
