// Package skills executes the namespaced skills of the knowledge, FNA and
// ops agents and bridges module-agent execution for the chat surface.
package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/advisorhub/mira/internal/agents"
	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/knowledge"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

// ErrUnknownSkill is returned for names missing from the catalog.
var ErrUnknownSkill = errors.New("unknown skill")

// Skill action types, in the vocabulary the chat front end renders.
const (
	ActionNavigate    = "navigate"
	ActionPrefillForm = "prefill_form"
	ActionUpdateField = "update_field"
	ActionCreateTask  = "create_task"
	ActionLogNote     = "log_note"
)

// SkillContext is the input of a skill execution.
type SkillContext struct {
	Request   *models.ChatRequest
	RequestID string
	TenantID  string
}

// SkillResult is the output of a skill execution.
type SkillResult struct {
	Content string               `json:"content"`
	Actions []models.SkillAction `json:"actions,omitempty"`
}

// AgentExecutionInput resolves a module agent by id, else by context module.
type AgentExecutionInput = agents.ExecutionInput

// KnowledgeLookup is the knowledge collaborator used by kb skills.
type KnowledgeLookup interface {
	Lookup(ctx context.Context, q knowledge.Query) (knowledge.Result, error)
}

type handler func(ctx context.Context, sc *skillCall) (SkillResult, error)

// Registry executes cataloged skills.
type Registry struct {
	knowledge KnowledgeLookup
	agents    *agents.Registry
	tools     *tools.Registry
	handlers  map[string]handler
	now       func() time.Time
}

// NewRegistry wires the skill handlers. toolReg may be nil, in which case
// handlers that enrich replies with module data skip that step.
func NewRegistry(kb KnowledgeLookup, agentReg *agents.Registry, toolReg *tools.Registry) *Registry {
	r := &Registry{knowledge: kb, agents: agentReg, tools: toolReg, now: time.Now}
	r.handlers = map[string]handler{
		catalog.SkillKnowledgeLookup:   r.knowledgeLookup,
		catalog.SkillRiskNudge:         r.riskNudge,
		catalog.SkillSalesHelp:         r.salesHelp,
		catalog.SkillCaptureUpdateData: r.captureUpdateData,
		catalog.SkillCaseOverview:      r.caseOverview,
		catalog.SkillGenerateRecommend: r.generateRecommendation,
		catalog.SkillSystemHelp:        r.systemHelp,
		catalog.SkillPrepareMeeting:    r.prepareMeeting,
		catalog.SkillPostMeetingWrap:   r.postMeetingWrap,
		catalog.SkillAnalyticsExplain:  r.analyticsExplain,
	}
	return r
}

// HasSkill reports whether name is a cataloged skill.
func (r *Registry) HasSkill(name string) bool { return catalog.HasSkill(name) }

// GetAgentForSkill returns the owning agent, or "" for uncataloged names.
func (r *Registry) GetAgentForSkill(name string) string {
	if e, ok := catalog.Lookup(name); ok {
		return e.Agent
	}
	return ""
}

// ExecuteSkill runs a cataloged skill. Skills without a dedicated handler
// answer with a generic acknowledgement.
func (r *Registry) ExecuteSkill(ctx context.Context, name string, sc SkillContext) (SkillResult, error) {
	if !catalog.HasSkill(name) {
		return SkillResult{}, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
	}
	if err := ctx.Err(); err != nil {
		return SkillResult{}, err
	}
	call := newSkillCall(sc)

	log.Debug().
		Str("skill", name).
		Str("request_id", sc.RequestID).
		Str("tenant", call.tenantID).
		Msg("Executing skill")

	h, ok := r.handlers[name]
	if !ok {
		return SkillResult{Content: genericContent(name)}, nil
	}
	res, err := h(ctx, call)
	if err != nil {
		return SkillResult{}, fmt.Errorf("skill %s: %w", name, err)
	}
	return res, nil
}

func genericContent(name string) string {
	return fmt.Sprintf("I can help you %s. Tell me a little more about what you need and I'll take it from there.",
		router.IntentLabel(name))
}

// HasModuleAgent reports whether a module agent resolves for the input.
func (r *Registry) HasModuleAgent(agentID string, module models.MiraModule) bool {
	return r.agents != nil && r.agents.Has(agentID, module)
}

// ExecuteModuleAgent resolves and runs a module agent.
func (r *Registry) ExecuteModuleAgent(ctx context.Context, in AgentExecutionInput) (*models.MiraResponse, error) {
	if r.agents == nil {
		return nil, agents.ErrAgentNotFound
	}
	return r.agents.Execute(ctx, in)
}

// PrimaryAction picks the action surfaced as a tool call, preferring
// create_task, then update_field, prefill_form, navigate, log_note.
func PrimaryAction(actions []models.SkillAction) (models.SkillAction, bool) {
	for _, typ := range []string{ActionCreateTask, ActionUpdateField, ActionPrefillForm, ActionNavigate, ActionLogNote} {
		for _, a := range actions {
			if a.Type == typ {
				return a, true
			}
		}
	}
	return models.SkillAction{}, false
}

// ActionToolCall wraps a skill action as a tool call named after the action
// type, with the action itself as arguments.
func ActionToolCall(a models.SkillAction) models.ToolCall {
	args, err := json.Marshal(a)
	if err != nil {
		args = []byte("{}")
	}
	return models.ToolCall{
		ID:       "call_" + uuid.NewString(),
		Type:     "function",
		Function: models.ToolCallFunction{Name: a.Type, Arguments: string(args)},
	}
}

// ── Call context ────────────────────────────────────────────

// skillCall is the request view shared by handlers.
type skillCall struct {
	message      string
	tenantID     string
	advisorID    string
	customerID   string
	customerName string
	route        string
	dryRun       bool
}

func newSkillCall(sc SkillContext) *skillCall {
	c := &skillCall{tenantID: sc.TenantID}
	req := sc.Request
	if req == nil {
		req = &models.ChatRequest{}
	}
	c.message = strings.TrimSpace(req.LastUserMessage())
	meta := req.Metadata

	if c.tenantID == "" {
		c.tenantID = models.StringFrom(meta, "tenantId", "tenant_id")
	}
	if c.tenantID == "" {
		c.tenantID = agents.DefaultTenant
	}
	c.advisorID = models.StringFrom(meta, "advisorId", "advisor_id")
	if advisor, ok := meta["advisor"].(map[string]interface{}); ok && c.advisorID == "" {
		c.advisorID = models.StringFrom(advisor, "id")
	}
	c.customerID = models.StringFrom(meta, "customerId", "customer_id")
	c.customerName = models.StringFrom(meta, "customerName", "customer_name")
	c.route = models.StringFrom(meta, "route")
	if c.route == "" {
		c.route = "/"
	}
	c.dryRun, _ = meta["dryRun"].(bool)
	return c
}

// clientLabel names the customer for reply text.
func (c *skillCall) clientLabel() string {
	switch {
	case c.customerName != "":
		return c.customerName
	case c.customerID != "":
		return c.customerID
	}
	return "this client"
}

// tool runs a module tool, returning its data on success.
func (r *Registry) tool(ctx context.Context, c *skillCall, name string, args map[string]interface{}) (interface{}, bool) {
	if r.tools == nil {
		return nil, false
	}
	logger := log.With().Str("skill_tool", name).Logger()
	res := r.tools.ExecuteWithRetry(ctx, name, tools.ExecuteInput{Args: args, TenantID: c.tenantID}, &logger, nil)
	return res.Data, res.Success
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}
