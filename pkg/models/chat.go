package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// ── Chat Messages ────────────────────────────────────────────

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
	RoleSystem    MessageRole = "system"
)

// Valid reports whether r is one of the four accepted roles.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		return true
	}
	return false
}

// ChatMessage is a single turn in a conversation.
// Content arrives either as a string or as structured JSON; structured
// content is kept as its JSON text.
type ChatMessage struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Name       string      `json:"name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`

	// HasContent is false when the content field was absent or null.
	HasContent bool `json:"-"`
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role       MessageRole     `json:"role"`
		Content    json.RawMessage `json:"content"`
		Name       string          `json:"name"`
		ToolCallID string          `json:"tool_call_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Name = raw.Name
	m.ToolCallID = raw.ToolCallID
	m.Content = ""
	m.HasContent = false

	content := bytes.TrimSpace(raw.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil
	}
	m.HasContent = true
	if content[0] == '"' {
		return json.Unmarshal(content, &m.Content)
	}
	m.Content = string(content)
	return nil
}

// ── Chat Requests ────────────────────────────────────────────

type ChatMode string

const (
	ModeStream          ChatMode = "stream"
	ModeBatch           ChatMode = "batch"
	ModeHealth          ChatMode = "health"
	ModeGetClientSecret ChatMode = "get_client_secret"
	ModeAIAL            ChatMode = "aial"
	ModeSuggest         ChatMode = "suggest"
	ModeInsights        ChatMode = "insights"
)

// ChatRequest is the body accepted by the chat endpoint.
type ChatRequest struct {
	Mode        ChatMode               `json:"mode"`
	Messages    []ChatMessage          `json:"messages,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Context     *MiraContext           `json:"context,omitempty"`
	Event       *AIALEvent             `json:"event,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   *int                   `json:"max_tokens,omitempty"`
}

// LastUserMessage returns the content of the latest user-role message.
func (r *ChatRequest) LastUserMessage() string {
	if r == nil {
		return ""
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// MetadataString returns the first non-empty string value among keys.
func (r *ChatRequest) MetadataString(keys ...string) string {
	if r == nil {
		return ""
	}
	return StringFrom(r.Metadata, keys...)
}

// StringFrom returns the first non-empty string value in m among keys.
func StringFrom(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ChatResult is the outcome of a non-streaming chat call.
type ChatResult struct {
	Message    ChatMessage `json:"message"`
	ToolCalls  []ToolCall  `json:"toolCalls"`
	TokensUsed *int64      `json:"tokensUsed"`
}

// ── Streaming Events ─────────────────────────────────────────

type EventType string

const (
	EventMessageDelta      EventType = "message.delta"
	EventMessageCompleted  EventType = "message.completed"
	EventToolCallCreated   EventType = "tool_call.created"
	EventToolCallDelta     EventType = "tool_call.delta"
	EventToolCallCompleted EventType = "tool_call.completed"
	EventError             EventType = "error"
	EventDone              EventType = "done"
)

// AgentEvent is one element of a streamed response.
type AgentEvent struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Terminal reports whether the stream ends after this event.
func (e AgentEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

type MessageDeltaData struct {
	Delta     string `json:"delta"`
	MessageID string `json:"message_id,omitempty"`
}

type MessageCompletedData struct {
	Message      ChatMessage            `json:"message"`
	MessageID    string                 `json:"message_id"`
	FinishReason string                 `json:"finish_reason"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

type ToolCallCreatedData struct {
	ToolCall  ToolCall `json:"tool_call"`
	MessageID string   `json:"message_id,omitempty"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
}

type ErrorData struct {
	Error ErrorDetail `json:"error"`
}

type DoneData struct {
	MessageID string `json:"message_id,omitempty"`
}

// ── AIAL ─────────────────────────────────────────────────────

// AIALEvent is an automation-triggered dispatch that bypasses chat messages.
type AIALEvent struct {
	ID       string                 `json:"id"`
	Intent   string                 `json:"intent"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AIALResult is the dispatcher's response for one event.
type AIALResult struct {
	EventID   string                 `json:"eventId"`
	Intent    string                 `json:"intent"`
	Message   ChatMessage            `json:"message"`
	ToolCalls []ToolCall             `json:"toolCalls"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// ── Tenant Model Config ──────────────────────────────────────

// TenantModelConfig selects the LLM backend for one tenant.
type TenantModelConfig struct {
	TenantID    string                 `json:"tenantId"`
	Provider    string                 `json:"provider"`
	Model       string                 `json:"model"`
	Priority    int                    `json:"priority"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   *int                   `json:"maxTokens,omitempty"`
	MaxRetries  *int                   `json:"maxRetries,omitempty"`
	TimeoutMs   *int                   `json:"timeoutMs,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// MetaString reads a string field from the config metadata.
func (c *TenantModelConfig) MetaString(key string) string {
	if c == nil {
		return ""
	}
	return StringFrom(c.Metadata, key)
}

// ClientSecret is returned by the get_client_secret mode.
type ClientSecret struct {
	Secret    string    `json:"secret"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    string    `json:"source"`
}
