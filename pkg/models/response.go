package models

// ── UI Actions ───────────────────────────────────────────────

type UIActionType string

const (
	ActionNavigate        UIActionType = "navigate"
	ActionFrontendPrefill UIActionType = "frontend_prefill"
	ActionExecute         UIActionType = "execute"
	ActionSubmit          UIActionType = "submit_action"
)

type APICall struct {
	Method   string                 `json:"method"`
	Endpoint string                 `json:"endpoint"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// UIAction is a side effect for the presentation layer to perform.
type UIAction struct {
	Action          UIActionType           `json:"action"`
	Module          MiraModule             `json:"module,omitempty"`
	Page            string                 `json:"page,omitempty"`
	Params          map[string]interface{} `json:"params,omitempty"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
	ConfirmRequired bool                   `json:"confirm_required,omitempty"`
	Description     string                 `json:"description,omitempty"`
	APICall         *APICall               `json:"api_call,omitempty"`
}

// ── Responses ────────────────────────────────────────────────

type ResponseMetadata struct {
	Topic      string  `json:"topic"`
	Subtopic   string  `json:"subtopic,omitempty"`
	Intent     string  `json:"intent"`
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence,omitempty"`
}

// MiraResponse is a module agent's reply.
type MiraResponse struct {
	AssistantReply string           `json:"assistant_reply"`
	UIActions      []UIAction       `json:"ui_actions"`
	Metadata       ResponseMetadata `json:"metadata"`
}

// SkillAction is a lightweight action suggested by a standalone skill.
type SkillAction struct {
	Type       string                 `json:"type"`
	Route      string                 `json:"route,omitempty"`
	CustomerID string                 `json:"customerId,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Due        string                 `json:"due,omitempty"`
	Text       string                 `json:"text,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Value      interface{}            `json:"value,omitempty"`
	Form       string                 `json:"form,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// ── Co-pilot ─────────────────────────────────────────────────

// SuggestedIntent is a clickable prompt offered in co-pilot mode.
type SuggestedIntent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	PromptText  string     `json:"promptText"`
	Icon        string     `json:"icon,omitempty"`
	Module      MiraModule `json:"module"`
	Priority    string     `json:"priority,omitempty"`
	Intent      string     `json:"intent"`
	Description string     `json:"description,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
}

type InsightType string

const (
	InsightAlert  InsightType = "alert"
	InsightMetric InsightType = "metric"
	InsightIdea   InsightType = "idea"
)

type InsightPriority string

const (
	PriorityCritical  InsightPriority = "critical"
	PriorityImportant InsightPriority = "important"
	PriorityInfo      InsightPriority = "info"
)

// Rank orders priorities: critical > important > info > unknown.
func (p InsightPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityImportant:
		return 2
	case PriorityInfo:
		return 1
	}
	return 0
}

// ProactiveInsight is an alert or recommendation surfaced without a prompt.
type ProactiveInsight struct {
	ID          string          `json:"id"`
	Type        InsightType     `json:"type"`
	Priority    InsightPriority `json:"priority"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	UIActions   []UIAction      `json:"ui_actions,omitempty"`
	Tag         string          `json:"tag,omitempty"`
	Dismissible bool            `json:"dismissible"`
	Module      MiraModule      `json:"module,omitempty"`
}

// ── Tools ────────────────────────────────────────────────────

// ToolError is a categorized tool failure.
type ToolError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *ToolError) Error() string {
	return e.Code + ": " + e.Message
}

// ToolResult is the uniform outcome of a tool invocation.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ToolError  `json:"error,omitempty"`
}
