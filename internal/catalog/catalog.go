// Package catalog is the static skill catalog shared by the skill decider
// and the skills registry.
//
// Skills are namespaced by owning agent:
//
//   - kb__*  → mira_knowledge_brain_agent
//   - fna__* → mira_fna_advisor_agent
//   - ops__* → mira_ops_task_agent
//
// Both routing and execution resolve ownership here, so a decision can never
// pair a skill with an agent that does not own it.
package catalog

import (
	"sort"
	"strings"
)

// Skill agents.
const (
	KnowledgeAgent = "mira_knowledge_brain_agent"
	FNAAgent       = "mira_fna_advisor_agent"
	OpsAgent       = "mira_ops_task_agent"
)

// Module agents.
const (
	CustomerAgent    = "CustomerAgent"
	NewBusinessAgent = "NewBusinessAgent"
	ProductAgent     = "ProductAgent"
	AnalyticsAgent   = "AnalyticsAgent"
	ToDoAgent        = "ToDoAgent"
	BroadcastAgent   = "BroadcastAgent"
	VisualizerAgent  = "VisualizerAgent"
)

var moduleAgents = map[string]string{
	"customer":     CustomerAgent,
	"new_business": NewBusinessAgent,
	"product":      ProductAgent,
	"analytics":    AnalyticsAgent,
	"todo":         ToDoAgent,
	"broadcast":    BroadcastAgent,
	"visualizer":   VisualizerAgent,
	"fna":          FNAAgent,
	"knowledge":    KnowledgeAgent,
	"operations":   OpsAgent,
	"compliance":   OpsAgent,
}

// AgentForModule returns the agent serving a module or topic, defaulting to
// the customer agent.
func AgentForModule(module string) string {
	if a, ok := moduleAgents[module]; ok {
		return a
	}
	return CustomerAgent
}

// Skill names.
const (
	SkillKnowledgeLookup   = "kb__knowledge_lookup"
	SkillRiskNudge         = "kb__risk_nudge"
	SkillSalesHelp         = "kb__sales_help_explicit"
	SkillCaptureUpdateData = "fna__capture_update_data"
	SkillCaseOverview      = "fna__case_overview"
	SkillGenerateRecommend = "fna__generate_recommendation"
	SkillSystemHelp        = "ops__system_help"
	SkillPrepareMeeting    = "ops__prepare_meeting"
	SkillPostMeetingWrap   = "ops__post_meeting_wrap"
	SkillAnalyticsExplain  = "ops__analytics_explain"
	SkillAgentPassthrough  = "ops__agent_passthrough"
)

// Entry describes one cataloged skill.
type Entry struct {
	Name  string `json:"name"`
	Agent string `json:"agent"`
	// Routable is false for router hints that no handler executes.
	Routable bool `json:"routable"`
}

var entries = map[string]Entry{
	SkillKnowledgeLookup:   {Name: SkillKnowledgeLookup, Agent: KnowledgeAgent, Routable: true},
	SkillRiskNudge:         {Name: SkillRiskNudge, Agent: KnowledgeAgent, Routable: true},
	SkillSalesHelp:         {Name: SkillSalesHelp, Agent: KnowledgeAgent, Routable: true},
	SkillCaptureUpdateData: {Name: SkillCaptureUpdateData, Agent: FNAAgent, Routable: true},
	SkillCaseOverview:      {Name: SkillCaseOverview, Agent: FNAAgent, Routable: true},
	SkillGenerateRecommend: {Name: SkillGenerateRecommend, Agent: FNAAgent, Routable: true},
	SkillSystemHelp:        {Name: SkillSystemHelp, Agent: OpsAgent, Routable: true},
	SkillPrepareMeeting:    {Name: SkillPrepareMeeting, Agent: OpsAgent, Routable: true},
	SkillPostMeetingWrap:   {Name: SkillPostMeetingWrap, Agent: OpsAgent, Routable: true},
	SkillAnalyticsExplain:  {Name: SkillAnalyticsExplain, Agent: OpsAgent, Routable: true},
	SkillAgentPassthrough:  {Name: SkillAgentPassthrough, Agent: OpsAgent, Routable: false},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Entry, bool) {
	e, ok := entries[name]
	return e, ok
}

// HasSkill reports whether name is cataloged.
func HasSkill(name string) bool {
	_, ok := entries[name]
	return ok
}

// AgentForSkill returns the owning agent. Uncataloged names resolve by
// namespace prefix, defaulting to the ops agent.
func AgentForSkill(name string) string {
	if e, ok := entries[name]; ok {
		return e.Agent
	}
	switch {
	case strings.HasPrefix(name, "kb__"):
		return KnowledgeAgent
	case strings.HasPrefix(name, "fna__"):
		return FNAAgent
	default:
		return OpsAgent
	}
}

// IsNamespaced reports whether name carries a known skill prefix.
func IsNamespaced(name string) bool {
	return strings.HasPrefix(name, "kb__") || strings.HasPrefix(name, "fna__") || strings.HasPrefix(name, "ops__")
}

// Skills returns all cataloged entries sorted by name.
func Skills() []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
