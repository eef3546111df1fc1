package models

import "time"

// ── Modules ──────────────────────────────────────────────────

// MiraModule names a workspace of the advisor portal.
type MiraModule string

const (
	ModuleCustomer    MiraModule = "customer"
	ModuleNewBusiness MiraModule = "new_business"
	ModuleProduct     MiraModule = "product"
	ModuleAnalytics   MiraModule = "analytics"
	ModuleTodo        MiraModule = "todo"
	ModuleBroadcast   MiraModule = "broadcast"
	ModuleVisualizer  MiraModule = "visualizer"
	ModuleFNA         MiraModule = "fna"
	ModuleKnowledge   MiraModule = "knowledge"
	ModuleOperations  MiraModule = "operations"
	ModuleCompliance  MiraModule = "compliance"
)

// AgentModules lists the seven modules served by a module agent.
var AgentModules = []MiraModule{
	ModuleCustomer,
	ModuleNewBusiness,
	ModuleProduct,
	ModuleAnalytics,
	ModuleTodo,
	ModuleBroadcast,
	ModuleVisualizer,
}

// Valid reports whether m is a known module.
func (m MiraModule) Valid() bool {
	switch m {
	case ModuleCustomer, ModuleNewBusiness, ModuleProduct, ModuleAnalytics, ModuleTodo,
		ModuleBroadcast, ModuleVisualizer, ModuleFNA, ModuleKnowledge, ModuleOperations, ModuleCompliance:
		return true
	}
	return false
}

// HomePage is the module's landing route, e.g. new_business → /new-business.
func (m MiraModule) HomePage() string {
	b := []byte(m)
	for i, c := range b {
		if c == '_' {
			b[i] = '-'
		}
	}
	return "/" + string(b)
}

// ── Context ──────────────────────────────────────────────────

// MiraContext is the per-request UI context sent by the portal.
type MiraContext struct {
	Module     MiraModule             `json:"module"`
	Page       string                 `json:"page"`
	PageData   map[string]interface{} `json:"pageData,omitempty"`
	TenantID   string                 `json:"tenantId,omitempty"`
	AdvisorID  string                 `json:"advisorId,omitempty"`
	Behavioral *BehavioralContext     `json:"behavioral_context,omitempty"`
}

// PageString returns a trimmed string from PageData, or fallback.
func (c *MiraContext) PageString(key, fallback string) string {
	if c == nil || c.PageData == nil {
		return fallback
	}
	if v, ok := c.PageData[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// PageStrings returns a string slice from PageData, or fallback.
func (c *MiraContext) PageStrings(key string, fallback []string) []string {
	if c == nil || c.PageData == nil {
		return fallback
	}
	switch v := c.PageData[key].(type) {
	case []string:
		if len(v) > 0 {
			return v
		}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}

// BehavioralContext is navigation and interaction history tracked by the portal.
type BehavioralContext struct {
	CurrentPage       string             `json:"currentPage,omitempty"`
	CurrentModule     string             `json:"currentModule,omitempty"`
	NavigationHistory []NavigationEvent  `json:"navigationHistory,omitempty"`
	RecentActions     []BehavioralAction `json:"recentActions,omitempty"`
	SessionID         string             `json:"sessionId,omitempty"`
	DetectedPatterns  []string           `json:"detectedPatterns,omitempty"`
}

type NavigationEvent struct {
	Timestamp time.Time `json:"timestamp"`
	FromPage  string    `json:"fromPage"`
	ToPage    string    `json:"toPage"`
	Module    string    `json:"module"`
	Trigger   string    `json:"trigger,omitempty"`
	TimeSpent int64     `json:"timeSpent,omitempty"`
}

type BehavioralAction struct {
	Timestamp    time.Time              `json:"timestamp"`
	ActionType   string                 `json:"actionType"`
	ElementLabel string                 `json:"elementLabel,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// ── Classification ───────────────────────────────────────────

type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

type CandidateAgentScore struct {
	AgentID string  `json:"agentId"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
}

// IntentClassification is the router's verdict for one utterance.
type IntentClassification struct {
	Topic             string                `json:"topic"`
	Subtopic          string                `json:"subtopic"`
	Intent            string                `json:"intent"`
	Confidence        float64               `json:"confidence"`
	ConfidenceTier    ConfidenceTier        `json:"confidenceTier"`
	CandidateAgents   []CandidateAgentScore `json:"candidateAgents"`
	ShouldSwitchTopic bool                  `json:"shouldSwitchTopic"`
	Reasons           []string              `json:"reasons"`
}

// Clone returns a deep copy so cached values are never shared mutably.
func (c IntentClassification) Clone() IntentClassification {
	out := c
	if c.CandidateAgents != nil {
		out.CandidateAgents = append([]CandidateAgentScore(nil), c.CandidateAgents...)
	}
	if c.Reasons != nil {
		out.Reasons = append([]string(nil), c.Reasons...)
	}
	return out
}

type AgentSelection struct {
	AgentID string  `json:"agentId"`
	Score   float64 `json:"score"`
}

// SkillDecision names the skill to run and the agent that owns it.
type SkillDecision struct {
	NextAgent string `json:"next_agent"`
	NextSkill string `json:"next_skill"`
	Reason    string `json:"reason,omitempty"`
}
