package router

import (
	"regexp"
	"strings"

	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/pkg/models"
)

// Decision reasons.
const (
	ReasonHintSkill    = "hint_skill"
	ReasonTopicDefault = "topic_default"
	ReasonFallback     = "fallback"
	ReasonOpsJourney   = "ops_journey"
)

// skillRule maps a message pattern to a skill. Rules are evaluated in order
// and the first match wins.
type skillRule struct {
	reason  string
	pattern *regexp.Regexp
	skill   string
}

var (
	ruleKnowledgeLookup = skillRule{"knowledge_lookup", regexp.MustCompile(`(?:\bkb__knowledge_lookup\b|\bkb\s*:|knowledge lookup|lookup knowledge)`), catalog.SkillKnowledgeLookup}
	ruleRiskNudge       = skillRule{"risk_nudge", regexp.MustCompile(`(?:risk nudge|compliance nudge|nudge)`), catalog.SkillRiskNudge}
	ruleSalesHelp       = skillRule{"sales_help", regexp.MustCompile(`(?:sales help|sales script|what to say)`), catalog.SkillSalesHelp}
	ruleFNAGenerate     = skillRule{"fna_generate", regexp.MustCompile(`(?:\bfna\b|needs analysis|recommendation plan|cashflow gap)`), catalog.SkillGenerateRecommend}
	ruleCaseOverview    = skillRule{"fna_case_overview", regexp.MustCompile(`(?:case overview|summarize case|snapshot)`), catalog.SkillCaseOverview}
	ruleCaptureData     = skillRule{"fna_capture", regexp.MustCompile(`(?:update|set|change)\s+(?:income|child|kyc|fact[- ]?find|data)`), catalog.SkillCaptureUpdateData}
	ruleAnalytics       = skillRule{"ops_analytics", regexp.MustCompile(`(?:analytics|dashboard|kpi|performance snapshot|premium this month|new policies|leads this week)`), catalog.SkillAnalyticsExplain}
	rulePrepareMeeting  = skillRule{"ops_prepare_meeting", regexp.MustCompile(`(?:prepare meeting|prep meeting|meeting agenda)`), catalog.SkillPrepareMeeting}
	rulePostMeeting     = skillRule{"ops_post_meeting", regexp.MustCompile(`(?:post[- ]?meeting wrap|wrap[- ]?up|follow[- ]?ups?)`), catalog.SkillPostMeetingWrap}
	ruleOpsTask         = skillRule{"ops_task", regexp.MustCompile(`(?:\btask\b|\btodo\b|follow[- ]?up|\bnote\b)`), catalog.SkillAgentPassthrough}
)

// decideRules is the ordered heuristic table used after classification.
var decideRules = []skillRule{
	ruleKnowledgeLookup,
	ruleRiskNudge,
	ruleSalesHelp,
	ruleFNAGenerate,
	ruleCaseOverview,
	ruleCaptureData,
	ruleAnalytics,
	rulePrepareMeeting,
	rulePostMeeting,
	ruleOpsTask,
}

// fastRules is the narrower table used before classification.
var fastRules = []skillRule{
	ruleKnowledgeLookup,
	ruleFNAGenerate,
}

var topicDefaultSkill = map[string]string{
	"analytics":    catalog.SkillAnalyticsExplain,
	"customer":     catalog.SkillSystemHelp,
	"visualizer":   catalog.SkillGenerateRecommend,
	"fna":          catalog.SkillCaseOverview,
	"knowledge":    catalog.SkillKnowledgeLookup,
	"todo":         catalog.SkillAgentPassthrough,
	"new_business": catalog.SkillAgentPassthrough,
	"product":      catalog.SkillAgentPassthrough,
	"broadcast":    catalog.SkillAgentPassthrough,
}

// DecideInput is what DecideSkill decides from.
type DecideInput struct {
	Classification models.IntentClassification
	Selection      models.AgentSelection
	Request        *models.ChatRequest
	// UserMessage overrides the request's latest user message when set.
	UserMessage string
}

// DecideSkill picks the skill for a classified turn: metadata hint, then the
// keyword rules, then the topic default, then passthrough. The agent is
// always the catalog owner of the chosen skill.
func DecideSkill(in DecideInput) models.SkillDecision {
	if d, ok := hintDecision(in.Request); ok {
		return d
	}

	text := in.UserMessage
	if text == "" {
		text = in.Request.LastUserMessage()
	}
	if d, ok := matchRules(decideRules, strings.ToLower(text)); ok {
		return d
	}

	if skill, ok := topicDefaultSkill[in.Classification.Topic]; ok {
		return decision(skill, ReasonTopicDefault)
	}
	return decision(catalog.SkillAgentPassthrough, ReasonFallback)
}

// FastRoute is the keyword pre-route applied before classification. It only
// recognises explicit signals and otherwise returns passthrough.
func FastRoute(req *models.ChatRequest) models.SkillDecision {
	if d, ok := hintDecision(req); ok {
		return d
	}
	text := strings.ToLower(req.LastUserMessage())
	if d, ok := matchRules(fastRules, text); ok {
		return d
	}

	journey := strings.ToLower(req.MetadataString("journey_type", "journeyType"))
	if journey == "ops" {
		return decision(catalog.SkillAgentPassthrough, ReasonOpsJourney)
	}
	if ruleOpsTask.pattern.MatchString(text) {
		return decision(ruleOpsTask.skill, ruleOpsTask.reason)
	}
	return decision(catalog.SkillAgentPassthrough, ReasonFallback)
}

// hintDecision honours metadata.nextSkill / next_skill naming a cataloged skill.
func hintDecision(req *models.ChatRequest) (models.SkillDecision, bool) {
	hint := strings.ToLower(strings.TrimSpace(req.MetadataString("nextSkill", "next_skill")))
	if hint == "" || !catalog.HasSkill(hint) {
		return models.SkillDecision{}, false
	}
	return decision(hint, ReasonHintSkill), true
}

func matchRules(rules []skillRule, text string) (models.SkillDecision, bool) {
	if text == "" {
		return models.SkillDecision{}, false
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return decision(r.skill, r.reason), true
		}
	}
	return models.SkillDecision{}, false
}

func decision(skill, reason string) models.SkillDecision {
	return models.SkillDecision{
		NextAgent: catalog.AgentForSkill(skill),
		NextSkill: skill,
		Reason:    reason,
	}
}
