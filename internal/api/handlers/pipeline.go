package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/skills"
	"github.com/advisorhub/mira/pkg/models"
)

// Reply sources.
const (
	sourceSkill         = "local-skill"
	sourceModuleAgent   = "module-agent"
	sourceClarification = "clarification"
)

// turn is one validated stream or batch request.
type turn struct {
	req       *models.ChatRequest
	requestID string
	tenantID  string
	miraCtx   *models.MiraContext
}

// reply is an answer produced in-process, without the agent client.
type reply struct {
	source    string
	content   string
	toolCalls []models.ToolCall
	metadata  map[string]interface{}
}

func (h *Handlers) chat(w http.ResponseWriter, r *http.Request, t *turn) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	rep, meta := h.route(ctx, t)
	if rep != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("mira.reply_source", rep.source))
		logger.Info().
			Str("source", rep.source).
			Dur("latency", time.Since(started)).
			Int("content_length", len(rep.content)).
			Msg("Chat answered locally")
		if t.req.Mode == models.ModeStream {
			h.streamReply(w, r, t.requestID, rep)
			return
		}
		toolCalls := rep.toolCalls
		if toolCalls == nil {
			toolCalls = []models.ToolCall{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message":    models.ChatMessage{Role: models.RoleAssistant, Content: rep.content},
			"toolCalls":  toolCalls,
			"tokensUsed": nil,
			"metadata":   rep.metadata,
		})
		return
	}

	client, err := h.newClient(ctx, h.tenantConfig(ctx, t.tenantID))
	if err != nil {
		logger.Error().Err(err).Msg("Agent client unavailable")
		respondError(w, providerStatus(err), err.Error())
		return
	}
	req := withSystemPrompt(t.req, t.miraCtx)

	if t.req.Mode == models.ModeStream {
		h.streamClient(w, r, client, req, meta)
		return
	}

	res, err := client.Chat(ctx, req)
	info := client.AdapterInfo()
	if err != nil {
		logger.Error().Err(err).Str("adapter", info.ID).Msg("Agent chat failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	logger.Info().
		Str("adapter", info.ID).
		Dur("latency", time.Since(started)).
		Msg("Chat batch completed")
	toolCalls := res.ToolCalls
	if toolCalls == nil {
		toolCalls = []models.ToolCall{}
	}
	meta["adapter"] = info.ID
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    res.Message,
		"toolCalls":  toolCalls,
		"tokensUsed": res.TokensUsed,
		"metadata":   meta,
	})
}

// route answers the turn in-process when it can. A nil reply means the turn
// goes to the agent client with the returned metadata.
func (h *Handlers) route(ctx context.Context, t *turn) (*reply, map[string]interface{}) {
	logger := zerolog.Ctx(ctx)

	history := topicHistory(t.req.Metadata)

	fast := router.FastRoute(t.req)
	if fast.NextSkill != catalog.SkillAgentPassthrough && h.skills.HasSkill(fast.NextSkill) {
		cls := fastRouteClassification(fast, t.miraCtx.Module)
		meta := classificationMetadata(cls, fast, router.UpdateTopicHistory(history, cls.Topic))
		if rep := h.runSkill(ctx, t, fast, meta); rep != nil {
			return rep, meta
		}
	}

	userMessage := t.req.LastUserMessage()
	previous := ""
	if len(history) > 0 {
		previous = history[len(history)-1]
	}
	cls := h.router.ClassifyIntent(ctx, userMessage, t.miraCtx, router.ClassifyOptions{PreviousTopic: previous})
	sel := h.router.SelectAgent(cls)
	decision := router.DecideSkill(router.DecideInput{
		Classification: cls,
		Selection:      sel,
		Request:        t.req,
		UserMessage:    userMessage,
	})
	history = router.UpdateTopicHistory(history, cls.Topic)
	meta := classificationMetadata(cls, decision, history)

	logger.Debug().
		Str("intent", cls.Intent).
		Str("topic", cls.Topic).
		Str("tier", string(cls.ConfidenceTier)).
		Str("agent", sel.AgentID).
		Str("skill", decision.NextSkill).
		Str("reason", decision.Reason).
		Msg("Turn classified")
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("mira.intent", cls.Intent),
		attribute.String("mira.agent", sel.AgentID),
		attribute.String("mira.skill", decision.NextSkill),
	)

	transition := router.DetectTopicSwitch(previous, cls.Topic, cls.Confidence)
	confirmSwitch := router.ShouldPromptForSwitch(transition)
	if router.NeedsClarification(cls.ConfidenceTier) || confirmSwitch {
		in := router.ClarificationInput{Intent: cls.Intent, Tier: cls.ConfidenceTier}
		if confirmSwitch {
			in.TransitionMessage = router.GenerateTransitionMessage(transition.FromTopic, transition.ToTopic)
		}
		meta["needs_clarification"] = true
		return &reply{source: sourceClarification, content: router.BuildClarificationMessage(in), metadata: meta}, meta
	}

	module := models.MiraModule(cls.Topic)
	if !module.Valid() {
		module = t.miraCtx.Module
	}
	if h.skills.HasModuleAgent(sel.AgentID, module) {
		agentCtx := *t.miraCtx
		agentCtx.Module = module
		resp, err := h.skills.ExecuteModuleAgent(ctx, skills.AgentExecutionInput{
			AgentID:     sel.AgentID,
			Intent:      cls.Intent,
			Context:     &agentCtx,
			UserMessage: userMessage,
		})
		if err == nil {
			meta["agent"] = resp.Metadata.Agent
			meta["module_agent"] = resp.Metadata.Agent
			meta["ui_actions"] = resp.UIActions
			meta["mira_response"] = resp
			return &reply{source: sourceModuleAgent, content: resp.AssistantReply, metadata: meta}, meta
		}
		logger.Warn().Err(err).Str("agent", sel.AgentID).Str("intent", cls.Intent).Msg("Module agent failed")
	}

	if decision.NextSkill != catalog.SkillAgentPassthrough && h.skills.HasSkill(decision.NextSkill) {
		if rep := h.runSkill(ctx, t, decision, meta); rep != nil {
			return rep, meta
		}
	}
	return nil, meta
}

// runSkill executes a local skill. Failures are logged and yield nil so the
// turn falls through to the next handler.
func (h *Handlers) runSkill(ctx context.Context, t *turn, d models.SkillDecision, meta map[string]interface{}) *reply {
	res, err := h.skills.ExecuteSkill(ctx, d.NextSkill, skills.SkillContext{
		Request:   t.req,
		RequestID: t.requestID,
		TenantID:  t.tenantID,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("skill", d.NextSkill).Msg("Skill failed")
		return nil
	}
	rep := &reply{source: sourceSkill, content: res.Content, metadata: meta}
	if a, ok := skills.PrimaryAction(res.Actions); ok {
		rep.toolCalls = []models.ToolCall{skills.ActionToolCall(a)}
	}
	if len(res.Actions) > 0 {
		meta["actions"] = res.Actions
	}
	return rep
}

// fastRouteClassification describes a fast-route match as a certain
// classification within the current module.
func fastRouteClassification(d models.SkillDecision, module models.MiraModule) models.IntentClassification {
	return models.IntentClassification{
		Topic:           string(module),
		Subtopic:        "fast_route",
		Intent:          d.NextSkill,
		Confidence:      1,
		ConfidenceTier:  models.TierHigh,
		CandidateAgents: []models.CandidateAgentScore{{AgentID: d.NextAgent, Score: 1}},
	}
}

func decisionMetadata(d models.SkillDecision) map[string]interface{} {
	return map[string]interface{}{
		"agent":  d.NextAgent,
		"skill":  d.NextSkill,
		"reason": d.Reason,
	}
}

func classificationMetadata(c models.IntentClassification, d models.SkillDecision, history []string) map[string]interface{} {
	meta := decisionMetadata(d)
	meta["topic"] = c.Topic
	meta["subtopic"] = c.Subtopic
	meta["intent"] = c.Intent
	meta["confidence"] = math.Round(c.Confidence*1000) / 1000
	meta["confidenceTier"] = c.ConfidenceTier
	meta["candidateAgents"] = c.CandidateAgents
	meta["shouldSwitchTopic"] = c.ShouldSwitchTopic
	meta["topic_history"] = history
	return meta
}

// withSystemPrompt prepends the routing system prompt unless the
// conversation already carries a system message.
func withSystemPrompt(req *models.ChatRequest, miraCtx *models.MiraContext) *models.ChatRequest {
	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			return req
		}
	}
	out := *req
	out.Messages = append([]models.ChatMessage{{
		Role:       models.RoleSystem,
		Content:    router.BuildSystemPrompt(miraCtx),
		HasContent: true,
	}}, req.Messages...)
	return &out
}

func (h *Handlers) streamReply(w http.ResponseWriter, r *http.Request, messageID string, rep *reply) {
	sse, ok := startSSE(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	for _, ev := range replyEvents(messageID, rep) {
		if err := sse.send(ev); err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Stream client disconnected")
			return
		}
	}
}

// streamClient forwards the agent client's events. Completed messages
// without metadata get the routing metadata.
func (h *Handlers) streamClient(w http.ResponseWriter, r *http.Request, client AgentClient, req *models.ChatRequest, meta map[string]interface{}) {
	ctx := r.Context()
	sse, ok := startSSE(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	terminated := false
	for ev := range client.StreamChat(ctx, req) {
		if ev.Type == models.EventMessageCompleted {
			if data, ok := ev.Data.(models.MessageCompletedData); ok && data.Metadata == nil {
				meta["adapter"] = client.AdapterInfo().ID
				data.Metadata = meta
				ev.Data = data
			}
		}
		if err := sse.send(ev); err != nil {
			logger.Debug().Err(err).Msg("Stream client disconnected")
			return
		}
		if ev.Terminal() {
			terminated = true
		}
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		logger.Debug().Msg("Stream cancelled")
	case !terminated:
		sse.sendError("stream ended unexpectedly", "stream_error", "adapter_error")
	default:
		logger.Info().
			Str("adapter", client.AdapterInfo().ID).
			Dur("latency", time.Since(started)).
			Msg("Chat stream completed")
	}
}
