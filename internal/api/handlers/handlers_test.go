package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisorhub/mira/internal/adapter"
	"github.com/advisorhub/mira/internal/agents"
	"github.com/advisorhub/mira/internal/aial"
	"github.com/advisorhub/mira/internal/api/handlers"
	"github.com/advisorhub/mira/internal/api/middleware"
	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/config"
	"github.com/advisorhub/mira/internal/knowledge"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/skills"
	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

// opsTaxonomy has a single operations intent, which no module agent or
// local skill serves, so turns that match it reach the agent client.
const opsTaxonomy = `
topics:
  - topic: operations
    subtopics:
      - subtopic: tickets
        intents:
          - intent_name: escalate_ticket
            display_name: Escalate a ticket
            example_phrases:
              - escalate this ticket
            terms: [ticket]
`

type fakeClient struct {
	mu       sync.Mutex
	requests []*models.ChatRequest

	result    *models.ChatResult
	chatErr   error
	events    []models.AgentEvent
	secret    string
	secretErr error
}

func (c *fakeClient) record(req *models.ChatRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
}

func (c *fakeClient) lastRequest(t *testing.T) *models.ChatRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.requests, "agent client was not called")
	return c.requests[len(c.requests)-1]
}

func (c *fakeClient) Chat(_ context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	c.record(req)
	if c.chatErr != nil {
		return nil, c.chatErr
	}
	return c.result, nil
}

func (c *fakeClient) StreamChat(_ context.Context, req *models.ChatRequest) <-chan models.AgentEvent {
	c.record(req)
	ch := make(chan models.AgentEvent, len(c.events))
	for _, ev := range c.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func (c *fakeClient) GetClientSecret(context.Context) (string, error) { return c.secret, c.secretErr }
func (c *fakeClient) AdapterInfo() adapter.Info                       { return adapter.Info{ID: "fake", Name: "Fake"} }

type fakeConfigs struct {
	mu      sync.Mutex
	tenants []string
}

func (f *fakeConfigs) Get(_ context.Context, tenantID string) (*models.TenantModelConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants = append(f.tenants, tenantID)
	return &models.TenantModelConfig{TenantID: tenantID, Provider: "mock"}, nil
}

type testEnv struct {
	handler    http.Handler
	h          *handlers.Handlers
	client     *fakeClient
	configs    *fakeConfigs
	tools      *tools.Registry
	factoryErr error
	factoryCfg *models.TenantModelConfig
}

type envOption func(*config.Config, *router.Options)

func withTaxonomy(t *testing.T, doc string) envOption {
	tax, err := router.ParseTaxonomy([]byte(doc))
	require.NoError(t, err)
	return func(_ *config.Config, o *router.Options) { o.Taxonomy = tax }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	cfg := config.Defaults()
	routerOpts := router.Options{}
	for _, o := range opts {
		o(cfg, &routerOpts)
	}

	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, knowledge.Seed(ctx, st))
	require.NoError(t, agents.SeedDemoData(ctx, st, agents.DefaultTenant))
	toolReg := tools.NewRegistry()
	require.NoError(t, agents.RegisterTools(toolReg, st))
	agentReg, err := agents.NewRegistry(toolReg)
	require.NoError(t, err)
	skillReg := skills.NewRegistry(knowledge.NewService(st), agentReg, toolReg)

	rt := router.NewService(routerOpts)
	t.Cleanup(rt.Close)

	env := &testEnv{
		client:  &fakeClient{result: &models.ChatResult{Message: models.ChatMessage{Role: models.RoleAssistant, Content: "from the model"}}},
		configs: &fakeConfigs{},
		tools:   toolReg,
	}
	factory := handlers.ClientFactory(func(_ context.Context, tc *models.TenantModelConfig) (handlers.AgentClient, error) {
		env.factoryCfg = tc
		if env.factoryErr != nil {
			return nil, env.factoryErr
		}
		return env.client, nil
	})
	env.h = handlers.New(handlers.Deps{
		Router:       rt,
		Skills:       skillReg,
		Agents:       agentReg,
		Tools:        toolReg,
		ModelConfigs: env.configs,
		AIAL:         aial.NewDispatcher(env.configs, factory.Chatter(), skillReg),
		NewClient:    factory,
		Config:       cfg,
	})
	env.handler = middleware.TenantExtractor(http.HandlerFunc(env.h.AgentChat))
	return env
}

func (e *testEnv) post(t *testing.T, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent-chat", &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

type sseEvent struct {
	Type string
	Data map[string]interface{}
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.Data))
			}
		}
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []sseEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func userTurn(mode, msg string) map[string]interface{} {
	return map[string]interface{}{
		"mode":     mode,
		"messages": []map[string]interface{}{{"role": "user", "content": msg}},
	}
}

func opsTurn(mode string) map[string]interface{} {
	body := userTurn(mode, "escalate this ticket")
	body["context"] = map[string]interface{}{"module": "operations", "page": "/operations"}
	return body
}

// ── Validation ──────────────────────────────────────────────

func TestAgentChat_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{`, "Invalid request body"},
		{"missing mode", `{}`, "Missing required field: mode"},
		{"missing messages", `{"mode":"batch"}`, "Missing required field: messages"},
		{"null messages", `{"mode":"stream","messages":null}`, "Missing required field: messages"},
		{"messages not array", `{"mode":"batch","messages":"hi"}`, "messages must be an array"},
		{"empty messages", `{"mode":"batch","messages":[]}`, "messages array cannot be empty"},
		{"bad role", `{"mode":"batch","messages":[{"role":"robot","content":"hi"}]}`, "Invalid message role: robot"},
		{"missing content", `{"mode":"batch","messages":[{"role":"user"}]}`, "Each message must have content"},
		{"no user message", `{"mode":"batch","messages":[{"role":"assistant","content":"hi"}]}`, "At least one user message is required"},
		{"unsupported mode", `{"mode":"chat"}`, "Unsupported mode: chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}
}

func TestAgentChat_UserMessageMustSurviveTrimming(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config, _ *router.Options) { c.Chat.MaxMessages = 3 })

	msgs := []map[string]interface{}{{"role": "user", "content": "show my leads"}}
	for i := 0; i < 3; i++ {
		msgs = append(msgs, map[string]interface{}{"role": "assistant", "content": fmt.Sprintf("reply %d", i)})
	}
	w := env.post(t, map[string]interface{}{"mode": "batch", "messages": msgs})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "At least one user message is required", decode(t, w)["error"])

	// A bad role outside the kept window no longer matters.
	msgs = []map[string]interface{}{
		{"role": "robot", "content": "old"},
		{"role": "assistant", "content": "hello"},
		{"role": "user", "content": "show my leads"},
		{"role": "assistant", "content": "sure"},
	}
	w = env.post(t, map[string]interface{}{"mode": "batch", "messages": msgs})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAgentChat_Health(t *testing.T) {
	env := newTestEnv(t)
	w := env.post(t, map[string]string{"mode": "health"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Nil(t, env.factoryCfg, "health must not build an agent client")
}

// ── Client secret ───────────────────────────────────────────

func TestAgentChat_ClientSecret(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		env := newTestEnv(t, func(c *config.Config, _ *router.Options) { c.Agent.ClientSecret = "env-secret" })
		w := env.post(t, map[string]string{"mode": "get_client_secret"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "env-secret", body["secret"])
		assert.Equal(t, "env", body["source"])
	})

	t.Run("adapter", func(t *testing.T) {
		env := newTestEnv(t)
		env.client.secret = "adapter-secret"
		w := env.post(t, map[string]string{"mode": "get_client_secret"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "adapter-secret", body["secret"])
		assert.Equal(t, "adapter", body["source"])
		assert.NotEmpty(t, body["updatedAt"])
	})

	t.Run("unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.client.secretErr = adapter.ErrNoClientSecret
		w := env.post(t, map[string]string{"mode": "get_client_secret"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "Unable to load client secret", decode(t, w)["error"])
	})
}

// ── AIAL ────────────────────────────────────────────────────

func TestAgentChat_AIAL(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, map[string]string{"mode": "aial"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "event payload is required for mode 'aial'", decode(t, w)["error"])

	w = env.post(t, map[string]interface{}{"mode": "aial", "event": map[string]interface{}{"id": "ev-1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.post(t, map[string]interface{}{
		"mode": "aial",
		"event": map[string]interface{}{
			"id":       "ev-2",
			"intent":   "advisor_nudge",
			"metadata": map[string]interface{}{"tenantId": "acme"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)["result"].(map[string]interface{})
	assert.Equal(t, "ev-2", result["eventId"])
	assert.Equal(t, "from the model", result["message"].(map[string]interface{})["content"])
	assert.Equal(t, "acme", env.factoryCfg.TenantID)
}

func TestAgentChat_AIALError(t *testing.T) {
	env := newTestEnv(t)
	env.client.chatErr = errors.New("upstream down")

	w := env.post(t, map[string]interface{}{
		"mode":  "aial",
		"event": map[string]interface{}{"id": "ev-3", "intent": "advisor_nudge"},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ── Suggest & insights ──────────────────────────────────────

func TestAgentChat_Suggest(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, map[string]string{"mode": "suggest"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Context required for suggest mode", decode(t, w)["error"])

	w = env.post(t, map[string]interface{}{
		"mode":    "suggest",
		"context": map[string]interface{}{"module": "customer", "page": "/customer"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	suggestions := decode(t, w)["suggestions"].([]interface{})
	require.NotEmpty(t, suggestions)
	for _, s := range suggestions {
		assert.Equal(t, "customer", s.(map[string]interface{})["module"])
	}
}

func TestAgentChat_Insights(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, map[string]string{"mode": "insights"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Advisor ID required for insights mode", decode(t, w)["error"])

	w = env.post(t, map[string]interface{}{
		"mode":     "insights",
		"metadata": map[string]interface{}{"advisor": map[string]interface{}{"id": "adv-1"}},
		"context": map[string]interface{}{
			"module": "customer",
			"page":   "/customer",
			"pageData": map[string]interface{}{
				"staleLeads":     2,
				"overdueTasks":   1,
				"newProductName": "Shield Plus",
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	insights := decode(t, w)["insights"].([]interface{})
	require.Len(t, insights, 3)

	var priorities []string
	for _, in := range insights {
		priorities = append(priorities, in.(map[string]interface{})["priority"].(string))
	}
	assert.Equal(t, []string{"critical", "important", "info"}, priorities)
}

// ── Local handling ──────────────────────────────────────────

func TestAgentChat_KnowledgeSkillBatch(t *testing.T) {
	env := newTestEnv(t)
	w := env.post(t, userTurn("batch", "kb: retirement planning tips"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	msg := body["message"].(map[string]interface{})
	assert.Equal(t, "assistant", msg["role"])
	assert.True(t, strings.HasPrefix(msg["content"].(string), "Here’s what I found:"), msg["content"])
	assert.Equal(t, []interface{}{}, body["toolCalls"])
	assert.Nil(t, body["tokensUsed"])

	meta := body["metadata"].(map[string]interface{})
	assert.Equal(t, catalog.SkillKnowledgeLookup, meta["skill"])
	assert.Equal(t, catalog.KnowledgeAgent, meta["agent"])
	assert.Equal(t, catalog.SkillKnowledgeLookup, meta["intent"])
	assert.Equal(t, "customer", meta["topic"])
	assert.Equal(t, 1.0, meta["confidence"])
	assert.Equal(t, "high", meta["confidenceTier"])
	assert.Equal(t, false, meta["shouldSwitchTopic"])
	assert.Equal(t, []interface{}{"customer"}, meta["topic_history"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"agentId": catalog.KnowledgeAgent, "score": 1.0},
	}, meta["candidateAgents"])
	assert.Empty(t, env.client.requests, "local skills must not call the agent client")
}

func TestAgentChat_KnowledgeSkillStream(t *testing.T) {
	env := newTestEnv(t)
	body := userTurn("stream", "kb: retirement planning tips")
	body["requestId"] = "req-42"
	w := env.post(t, body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"message.delta", "message.completed", "done"}, eventTypes(events))
	for _, ev := range events {
		assert.Equal(t, "req-42", ev.Data["message_id"])
	}
	assert.True(t, strings.HasPrefix(events[0].Data["delta"].(string), "Here’s what I found:"))
	assert.Equal(t, "stop", events[1].Data["finish_reason"])
}

func TestAgentChat_SkillActionSurfacesToolCall(t *testing.T) {
	env := newTestEnv(t)
	body := userTurn("stream", "prepare meeting with Kim Tan")
	body["metadata"] = map[string]interface{}{
		"nextSkill":    catalog.SkillPrepareMeeting,
		"customerId":   "cust-1",
		"customerName": "Kim Tan",
	}
	w := env.post(t, body)

	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"message.delta", "tool_call.created", "message.completed", "done"}, eventTypes(events))
	tc := events[1].Data["tool_call"].(map[string]interface{})
	assert.Equal(t, "function", tc["type"])
	assert.Equal(t, skills.ActionCreateTask, tc["function"].(map[string]interface{})["name"])
}

func TestAgentChat_CreateLeadRunsModuleAgent(t *testing.T) {
	env := newTestEnv(t)
	body := userTurn("batch", "Add a new lead named Sarah Lee with contact 91234567")
	body["context"] = map[string]interface{}{"module": "customer", "page": "/customer"}
	w := env.post(t, body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	meta := resp["metadata"].(map[string]interface{})
	assert.Equal(t, "create_lead", meta["intent"])
	assert.Equal(t, catalog.CustomerAgent, meta["agent"])
	assert.Equal(t, catalog.CustomerAgent, meta["module_agent"])
	assert.NotEmpty(t, meta["ui_actions"])
	assert.NotEmpty(t, resp["message"].(map[string]interface{})["content"])
	assert.Empty(t, env.client.requests)
}

func TestAgentChat_TopicSwitchAsksToConfirm(t *testing.T) {
	env := newTestEnv(t)
	body := userTurn("batch", "Create a broadcast campaign for the Q4 promo")
	body["context"] = map[string]interface{}{"module": "broadcast", "page": "/broadcast"}
	body["metadata"] = map[string]interface{}{"topic": "customer"}
	w := env.post(t, body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	meta := resp["metadata"].(map[string]interface{})
	assert.Equal(t, true, meta["needs_clarification"])
	assert.Equal(t, []interface{}{"customer", "broadcast"}, meta["topic_history"])
	assert.Contains(t, resp["message"].(map[string]interface{})["content"], "switch from customer to broadcast")
}

func TestAgentChat_LowConfidenceAsksToClarify(t *testing.T) {
	env := newTestEnv(t)
	w := env.post(t, userTurn("batch", "zzqx"))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["metadata"].(map[string]interface{})["needs_clarification"])
	assert.Contains(t, resp["message"].(map[string]interface{})["content"], "or something else?")
}

// ── Agent client ────────────────────────────────────────────

func TestAgentChat_ClientBatch(t *testing.T) {
	env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
	tokens := int64(17)
	env.client.result.TokensUsed = &tokens

	w := env.post(t, opsTurn("batch"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "from the model", resp["message"].(map[string]interface{})["content"])
	assert.Equal(t, []interface{}{}, resp["toolCalls"])
	assert.Equal(t, float64(17), resp["tokensUsed"])
	meta := resp["metadata"].(map[string]interface{})
	assert.Equal(t, "escalate_ticket", meta["intent"])
	assert.Equal(t, "fake", meta["adapter"])

	sent := env.client.lastRequest(t)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, models.RoleSystem, sent.Messages[0].Role)
	assert.Equal(t, router.BuildSystemPrompt(&models.MiraContext{Module: models.ModuleOperations, Page: "/operations"}), sent.Messages[0].Content)
}

func TestAgentChat_ClientKeepsCallerSystemPrompt(t *testing.T) {
	env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
	body := opsTurn("batch")
	body["messages"] = []map[string]interface{}{
		{"role": "system", "content": "custom"},
		{"role": "user", "content": "escalate this ticket"},
	}
	w := env.post(t, body)

	require.Equal(t, http.StatusOK, w.Code)
	sent := env.client.lastRequest(t)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, "custom", sent.Messages[0].Content)
}

func TestAgentChat_ClientErrors(t *testing.T) {
	t.Run("chat failure", func(t *testing.T) {
		env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
		env.client.chatErr = errors.New("all adapters failed")
		w := env.post(t, opsTurn("batch"))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("missing provider", func(t *testing.T) {
		env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
		env.factoryErr = adapter.ErrMissingProviderConfig
		w := env.post(t, opsTurn("stream"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAgentChat_ClientStream(t *testing.T) {
	env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
	env.client.events = []models.AgentEvent{
		{Type: models.EventMessageDelta, Data: models.MessageDeltaData{Delta: "from ", MessageID: "m1"}},
		{Type: models.EventMessageDelta, Data: models.MessageDeltaData{Delta: "the model", MessageID: "m1"}},
		{Type: models.EventMessageCompleted, Data: models.MessageCompletedData{
			Message: models.ChatMessage{Role: models.RoleAssistant, Content: "from the model"}, MessageID: "m1", FinishReason: "stop",
		}},
		{Type: models.EventDone, Data: models.DoneData{MessageID: "m1"}},
	}

	w := env.post(t, opsTurn("stream"))
	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"message.delta", "message.delta", "message.completed", "done"}, eventTypes(events))
	meta := events[2].Data["metadata"].(map[string]interface{})
	assert.Equal(t, "escalate_ticket", meta["intent"])
	assert.Equal(t, "fake", meta["adapter"])
}

func TestAgentChat_ClientStreamEndsWithoutTerminal(t *testing.T) {
	env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
	env.client.events = []models.AgentEvent{
		{Type: models.EventMessageDelta, Data: models.MessageDeltaData{Delta: "partial"}},
	}

	w := env.post(t, opsTurn("stream"))
	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"message.delta", "error"}, eventTypes(events))
	assert.Equal(t, "stream_error", events[1].Data["error"].(map[string]interface{})["code"])
}

// ── Sanitization & tenants ──────────────────────────────────

func TestAgentChat_SanitizesMessages(t *testing.T) {
	env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))

	var msgs []map[string]interface{}
	for i := 0; i < 103; i++ {
		msgs = append(msgs, map[string]interface{}{"role": "user", "content": "filler"})
	}
	msgs = append(msgs,
		map[string]interface{}{"role": "assistant", "content": strings.Repeat("a", 50010)},
		map[string]interface{}{"role": "user", "content": "escalate this ticket"},
	)
	body := opsTurn("batch")
	body["messages"] = msgs

	w := env.post(t, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sent := env.client.lastRequest(t)
	require.Len(t, sent.Messages, 101, "system prompt plus the latest 100 messages")
	long := sent.Messages[99].Content
	assert.Equal(t, strings.Repeat("a", 50000)+"... [truncated]", long)
	assert.Equal(t, "escalate this ticket", sent.Messages[100].Content)
}

func TestAgentChat_TenantResolution(t *testing.T) {
	tests := []struct {
		name   string
		extra  map[string]interface{}
		header string
		want   string
	}{
		{"body", map[string]interface{}{"tenantId": "t-body", "metadata": map[string]interface{}{"tenantId": "t-meta"}}, "", "t-body"},
		{"body snake", map[string]interface{}{"tenant_id": "t-snake"}, "", "t-snake"},
		{"metadata", map[string]interface{}{"metadata": map[string]interface{}{"tenant_id": "t-meta"}}, "", "t-meta"},
		{"advisor", map[string]interface{}{"metadata": map[string]interface{}{"advisor": map[string]interface{}{"tenantId": "t-adv"}}}, "", "t-adv"},
		{"header", nil, "t-header", "t-header"},
		{"none", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
			body := opsTurn("batch")
			for k, v := range tt.extra {
				body[k] = v
			}
			var headers []string
			if tt.header != "" {
				headers = []string{"X-Tenant-Id", tt.header}
			}
			w := env.post(t, body, headers...)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			if tt.want == "" {
				assert.Empty(t, env.configs.tenants)
				assert.Nil(t, env.factoryCfg)
				return
			}
			assert.Equal(t, []string{tt.want}, env.configs.tenants)
			require.NotNil(t, env.factoryCfg)
			assert.Equal(t, tt.want, env.factoryCfg.TenantID)
		})
	}
}

func TestAgentChat_ContextTenant(t *testing.T) {
	env := newTestEnv(t, withTaxonomy(t, opsTaxonomy))
	body := opsTurn("batch")
	body["context"] = map[string]interface{}{"module": "operations", "page": "/operations", "tenantId": "t-ctx"}
	w := env.post(t, body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"t-ctx"}, env.configs.tenants)
}

// ── Client factory ──────────────────────────────────────────

func TestDefaultClientFactory_RequireProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("AGENT_REST_BASE_URL", "")

	factory := handlers.DefaultClientFactory(config.AgentConfig{RequireProvider: true})
	_, err := factory(context.Background(), nil)
	assert.ErrorIs(t, err, adapter.ErrMissingProviderConfig)

	factory = handlers.DefaultClientFactory(config.AgentConfig{})
	c, err := factory(context.Background(), nil)
	require.NoError(t, err)
	res, err := c.Chat(context.Background(), &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[mock-response] hello", res.Message.Content)
	assert.Equal(t, "mock", c.AdapterInfo().ID)
}
