package router

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/advisorhub/mira/internal/catalog"
)

// GenericIntentLabel is used when an id has no known phrasing.
const GenericIntentLabel = "continue with this action"

var skillLabels = map[string]string{
	catalog.SkillKnowledgeLookup:   "look up guidance in the knowledge base",
	catalog.SkillRiskNudge:         "review a compliance nudge",
	catalog.SkillSalesHelp:         "get help with what to say",
	catalog.SkillCaptureUpdateData: "update the client's fact-find data",
	catalog.SkillCaseOverview:      "review the case overview",
	catalog.SkillGenerateRecommend: "generate an FNA recommendation",
	catalog.SkillSystemHelp:        "get help using Mira",
	catalog.SkillPrepareMeeting:    "prepare for the meeting",
	catalog.SkillPostMeetingWrap:   "wrap up the meeting",
	catalog.SkillAnalyticsExplain:  "explain your analytics",
}

// Leading verbs recognised in slug ids, with their conversational form.
var slugVerbs = map[string]string{
	"view":     "show",
	"list":     "show",
	"show":     "show",
	"create":   "add",
	"add":      "add",
	"start":    "start",
	"search":   "search",
	"find":     "find",
	"update":   "update",
	"edit":     "update",
	"delete":   "remove",
	"remove":   "remove",
	"mark":     "mark",
	"generate": "generate",
	"compare":  "compare",
	"submit":   "submit",
	"schedule": "schedule",
	"check":    "check",
	"identify": "identify",
	"navigate": "go to",
	"open":     "open",
}

var slugWords = map[string]string{
	"ytd": "year-to-date",
	"uw":  "underwriting",
	"fna": "FNA",
	"kpi": "KPI",
}

// IntentLabel returns a verb phrase for an intent or skill id, suitable for
// "would you like me to <label>?". It never fails.
func IntentLabel(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return GenericIntentLabel
	}
	if def, ok := DefaultTaxonomy().Lookup(id); ok {
		if def.DisplayName != "" {
			return lowerFirst(def.DisplayName)
		}
		if def.Description != "" {
			return lowerFirst(def.Description)
		}
	}
	if label, ok := skillLabels[id]; ok {
		return label
	}
	return humanizeSlug(id)
}

func humanizeSlug(id string) string {
	if i := strings.Index(id, "__"); i >= 0 {
		id = id[i+2:]
	}
	words := strings.FieldsFunc(strings.ToLower(id), func(r rune) bool { return r == '_' || r == '-' })
	if len(words) == 0 {
		return GenericIntentLabel
	}
	verb, ok := slugVerbs[words[0]]
	if !ok {
		return GenericIntentLabel
	}
	out := []string{verb}
	for _, w := range words[1:] {
		if r, ok := slugWords[w]; ok {
			w = r
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// lowerFirst lowercases the first rune unless the first word is an acronym.
func lowerFirst(s string) string {
	first := strings.Fields(s)
	if len(first) > 0 && len(first[0]) > 1 && strings.ToUpper(first[0]) == first[0] {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
