package skills

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/advisorhub/mira/internal/knowledge"
	"github.com/advisorhub/mira/pkg/models"
)

const (
	lookupLimit    = 3
	maxListedItems = 5
	dateLayout     = "2006-01-02"
)

// ── Knowledge ───────────────────────────────────────────────

var lookupTrigger = regexp.MustCompile(`(?is)(?:knowledge lookup\s*:?|\bkb\s*:)\s*(.+)$`)

// lookupScenario returns the text after a lookup trigger, else the whole
// message.
func lookupScenario(message string) string {
	if m := lookupTrigger.FindStringSubmatch(message); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}
	return strings.TrimSpace(message)
}

func (r *Registry) knowledgeLookup(ctx context.Context, c *skillCall) (SkillResult, error) {
	if r.knowledge == nil {
		return SkillResult{Content: formatKnowledge(nil)}, nil
	}
	res, err := r.knowledge.Lookup(ctx, knowledge.Query{Scenario: lookupScenario(c.message), Limit: lookupLimit})
	if err != nil {
		return SkillResult{}, err
	}
	return SkillResult{Content: formatKnowledge(res.Items)}, nil
}

func formatKnowledge(items []knowledge.Item) string {
	if len(items) == 0 {
		return "No knowledge items found."
	}
	if len(items) > maxListedItems {
		items = items[:maxListedItems]
	}
	var b strings.Builder
	b.WriteString("Here’s what I found:")
	for _, it := range items {
		title := "Untitled"
		if it.Title != "" {
			title = "“" + it.Title + "”"
		}
		topic := ""
		if it.Topic != "" {
			topic = " [" + it.Topic + "]"
		}
		fmt.Fprintf(&b, "\n• %s%s: %s", title, topic, it.Summary)
	}
	return b.String()
}

func (r *Registry) riskNudge(_ context.Context, _ *skillCall) (SkillResult, error) {
	return SkillResult{Content: "This is a placeholder for risk nudges (e.g. heavy premium vs income, missing fact-find). " +
		"In production, this skill surfaces gentle reminders based on your firm's compliance rules."}, nil
}

var salesScript = []string{
	"You could say something like:",
	"",
	`"From what you've shared, I want to first make sure we're protecting your basics, your income and your family's day-to-day needs, before we look at growing your savings.`,
	`Let me walk you through two options side by side, and you tell me which one feels more comfortable for your monthly budget.`,
	`We don't have to decide everything today; we can start with what fits your budget and review regularly."`,
}

func (r *Registry) salesHelp(_ context.Context, _ *skillCall) (SkillResult, error) {
	return SkillResult{Content: strings.Join(salesScript, "\n")}, nil
}

// ── FNA ─────────────────────────────────────────────────────

var (
	incomePattern   = regexp.MustCompile(`(?i)income\s*(?:is|of|:|=)?\s*(?:about|around|roughly)?\s*\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k|m)?\b`)
	childAgePattern = regexp.MustCompile(`(?i)(\d{1,2})[- ]?(?:years?|yrs?)[- ]old\s+(?:son|daughter|child|kid|boy|girl)|(?:son|daughter|child|kid)(?:'s)?\s+(?:is\s+)?(?:age\s+|aged\s+)?(\d{1,2})\b`)
)

// extractIncome returns the annual income stated in message.
func extractIncome(message string) (float64, bool) {
	m := incomePattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

// extractChildAge returns the first dependant age stated in message.
func extractChildAge(message string) (int, bool) {
	m := childAgePattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	age, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return age, true
}

func (r *Registry) captureUpdateData(_ context.Context, c *skillCall) (SkillResult, error) {
	fields := map[string]interface{}{}
	var actions []models.SkillAction
	var captured []string

	if income, ok := extractIncome(c.message); ok {
		fields["annualIncome"] = income
		actions = append(actions, models.SkillAction{Type: ActionUpdateField, Path: "fna.annualIncome", Value: income})
		captured = append(captured, "annual income "+strconv.FormatFloat(income, 'f', -1, 64))
	}
	if age, ok := extractChildAge(c.message); ok {
		fields["childAge"] = age
		actions = append(actions, models.SkillAction{Type: ActionUpdateField, Path: "fna.dependents.0.age", Value: age})
		captured = append(captured, "child age "+strconv.Itoa(age))
	}

	if len(captured) == 0 {
		return SkillResult{Content: "I couldn't spot an income or a dependant's age in that message. " +
			`Try something like "income is 85k, daughter is 7 years old".`}, nil
	}
	actions = append(actions, models.SkillAction{Type: ActionPrefillForm, Form: "FNA", Fields: fields})

	content := fmt.Sprintf("Got it. I'll update the fact-find for %s: %s. Review the FNA form before saving.",
		c.clientLabel(), strings.Join(captured, "; "))
	if c.dryRun {
		return SkillResult{Content: content + " (Dry run: nothing was changed.)"}, nil
	}
	return SkillResult{Content: content, Actions: actions}, nil
}

func (r *Registry) caseOverview(ctx context.Context, c *skillCall) (SkillResult, error) {
	if c.customerID == "" {
		return SkillResult{
			Content: "Which client should I pull up? Open a customer record or mention the client and I'll summarise the case.",
			Actions: []models.SkillAction{{Type: ActionNavigate, Route: "/customer"}},
		}, nil
	}

	content := fmt.Sprintf("Case overview for %s: open the customer record to review policies, proposals in flight, and the latest fact-find.",
		c.clientLabel())
	if data, ok := r.tool(ctx, c, "customer__customers.get", map[string]interface{}{"id": c.customerID}); ok {
		if rec, ok := data.(map[string]interface{}); ok {
			name, _ := rec["name"].(string)
			if name == "" {
				name = c.clientLabel()
			}
			content = fmt.Sprintf("Case overview for %s: %v policies in force, total annual premium %v. "+
				"Open the customer record to review proposals in flight and the latest fact-find.",
				name, rec["policies"], rec["total_premium"])
		}
	}
	return SkillResult{
		Content: content,
		Actions: []models.SkillAction{{Type: ActionNavigate, Route: "/customer/detail/" + c.customerID, CustomerID: c.customerID}},
	}, nil
}

var recommendationSteps = []string{
	"1. Close protection gaps (income, critical illness, hospitalisation) before adding savings products.",
	"2. Keep total premiums within a comfortable share of monthly take-home pay.",
	"3. Match savings plans to dated goals such as education or retirement.",
	"4. Schedule a review after any major life event.",
}

func (r *Registry) generateRecommendation(_ context.Context, c *skillCall) (SkillResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft FNA recommendation for %s", c.clientLabel())
	if c.message != "" {
		fmt.Fprintf(&b, " based on %q", truncate(c.message, 140))
	}
	b.WriteString(":\n")
	b.WriteString(strings.Join(recommendationSteps, "\n"))
	b.WriteString("\nOpen the Financial Visualizer to test the numbers before presenting.")

	action := models.SkillAction{Type: ActionNavigate, Route: "/visualizer", CustomerID: c.customerID}
	return SkillResult{Content: b.String(), Actions: []models.SkillAction{action}}, nil
}

// ── Ops ─────────────────────────────────────────────────────

var helpTopics = []struct {
	pattern *regexp.Regexp
	name    string
	route   string
}{
	{regexp.MustCompile(`(?i)\b(lead|leads|customer|client|contact)\b`), "Customer 360", "/customer"},
	{regexp.MustCompile(`(?i)\b(proposal|quote|underwriting|application)\b`), "New Business", "/new-business"},
	{regexp.MustCompile(`(?i)\b(product|catalog|rider)\b`), "Products", "/product"},
	{regexp.MustCompile(`(?i)\b(analytics|performance|target|dashboard)\b`), "Analytics", "/analytics"},
	{regexp.MustCompile(`(?i)\b(task|todo|to-do|calendar|reminder)\b`), "To-Do", "/todo"},
	{regexp.MustCompile(`(?i)\b(broadcast|campaign|newsletter)\b`), "Broadcast", "/broadcast"},
	{regexp.MustCompile(`(?i)\b(plan|scenario|projection|visuali[sz]er)\b`), "Financial Visualizer", "/visualizer"},
}

func (r *Registry) systemHelp(_ context.Context, c *skillCall) (SkillResult, error) {
	for _, t := range helpTopics {
		if t.pattern.MatchString(c.message) {
			return SkillResult{
				Content: fmt.Sprintf("You'll find that in %s. I've opened it for you; ask me to take the next step from there.", t.name),
				Actions: []models.SkillAction{{Type: ActionNavigate, Route: t.route}},
			}, nil
		}
	}
	return SkillResult{Content: "I can open any workspace (Customer 360, New Business, Products, Analytics, To-Do, Broadcast, " +
		"Financial Visualizer), prefill forms, and look up guidance. Tell me what you're trying to do."}, nil
}

func (r *Registry) prepareMeeting(_ context.Context, c *skillCall) (SkillResult, error) {
	checklist := "Before the meeting:\n" +
		"• Review open proposals and any pending underwriting requirements.\n" +
		"• Check the fact-find for changes since the last review.\n" +
		"• Note one protection gap and one savings goal to discuss."
	if c.customerID == "" {
		return SkillResult{
			Content: checklist + "\nWhich client is the meeting with? I'll add a prep task once I know.",
			Actions: []models.SkillAction{{Type: ActionNavigate, Route: "/todo/calendar"}},
		}, nil
	}
	due := r.now().UTC().Add(24 * time.Hour).Format(dateLayout)
	return SkillResult{
		Content: fmt.Sprintf("Meeting prep for %s.\n%s\nI've drafted a prep task due %s.", c.clientLabel(), checklist, due),
		Actions: []models.SkillAction{
			{Type: ActionCreateTask, CustomerID: c.customerID, Title: "Prepare meeting pack for " + c.clientLabel(), Due: due},
			{Type: ActionNavigate, Route: "/customer/detail/" + c.customerID, CustomerID: c.customerID},
		},
	}, nil
}

func (r *Registry) postMeetingWrap(_ context.Context, c *skillCall) (SkillResult, error) {
	if c.customerID == "" {
		return SkillResult{
			Content: "Which client was the meeting with? Open their record and I'll log the notes and a follow-up.",
			Actions: []models.SkillAction{{Type: ActionNavigate, Route: "/customer"}},
		}, nil
	}
	due := r.now().UTC().Add(3 * 24 * time.Hour).Format(dateLayout)
	note := truncate(c.message, 500)
	return SkillResult{
		Content: fmt.Sprintf("Wrapped up the meeting with %s. I've drafted a note from your summary and a follow-up due %s.",
			c.clientLabel(), due),
		Actions: []models.SkillAction{
			{Type: ActionLogNote, CustomerID: c.customerID, Text: note},
			{Type: ActionCreateTask, CustomerID: c.customerID, Title: "Follow up with " + c.clientLabel(), Due: due},
		},
	}, nil
}

func (r *Registry) analyticsExplain(ctx context.Context, c *skillCall) (SkillResult, error) {
	content := "Your analytics track premium written, proposal counts, and conversion from lead to submission. " +
		"Open Analytics to see the year-to-date view and the stage funnel."
	data, ok := r.tool(ctx, c, "analytics__performance.get", map[string]interface{}{"advisorId": c.advisorID, "period": "YTD"})
	if perf, isMap := data.(map[string]interface{}); ok && isMap {
		rate, _ := perf["conversionRate"].(float64)
		content = fmt.Sprintf("Year to date you've written %v in premium across %v proposals, converting %.0f%% past draft. "+
			"Open Analytics for the monthly trend and the stage funnel.", perf["premium"], perf["proposals"], rate*100)
	}
	return SkillResult{Content: content, Actions: []models.SkillAction{{Type: ActionNavigate, Route: "/analytics"}}}, nil
}
