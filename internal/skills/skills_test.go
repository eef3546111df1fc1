package skills_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/advisorhub/mira/internal/agents"
	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/knowledge"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/skills"
	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

func newTestRegistry(t *testing.T) *skills.Registry {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := knowledge.Seed(ctx, st); err != nil {
		t.Fatalf("knowledge.Seed() error = %v", err)
	}
	if err := agents.SeedDemoData(ctx, st, agents.DefaultTenant); err != nil {
		t.Fatalf("SeedDemoData() error = %v", err)
	}
	toolReg := tools.NewRegistry()
	if err := agents.RegisterTools(toolReg, st); err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}
	agentReg, err := agents.NewRegistry(toolReg)
	if err != nil {
		t.Fatalf("agents.NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return skills.NewRegistry(knowledge.NewService(st), agentReg, toolReg)
}

func request(msg string, meta map[string]interface{}) skills.SkillContext {
	return skills.SkillContext{
		Request: &models.ChatRequest{
			Messages: []models.ChatMessage{{Role: "user", Content: msg}},
			Metadata: meta,
		},
		RequestID: "req-1",
	}
}

func run(t *testing.T, r *skills.Registry, name, msg string, meta map[string]interface{}) skills.SkillResult {
	t.Helper()
	res, err := r.ExecuteSkill(context.Background(), name, request(msg, meta))
	if err != nil {
		t.Fatalf("ExecuteSkill(%s) error = %v", name, err)
	}
	return res
}

// ── Catalog agreement ───────────────────────────────────────

func TestGetAgentForSkill_MatchesDecider(t *testing.T) {
	r := newTestRegistry(t)

	for _, e := range catalog.Skills() {
		if !r.HasSkill(e.Name) {
			t.Errorf("HasSkill(%q) = false", e.Name)
		}
		d := router.DecideSkill(router.DecideInput{
			Request: &models.ChatRequest{Metadata: map[string]interface{}{"nextSkill": e.Name}},
		})
		if d.NextSkill != e.Name {
			t.Errorf("DecideSkill(nextSkill=%s).NextSkill = %q", e.Name, d.NextSkill)
			continue
		}
		if got := r.GetAgentForSkill(e.Name); got != d.NextAgent {
			t.Errorf("GetAgentForSkill(%q) = %q, decider chose %q", e.Name, got, d.NextAgent)
		}
	}
	if got := r.GetAgentForSkill("kb__unknown"); got != "" {
		t.Errorf("GetAgentForSkill(unknown) = %q, want empty", got)
	}
}

func TestExecuteSkill_Unknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.ExecuteSkill(context.Background(), "ops__create_task", request("hi", nil))
	if !errors.Is(err, skills.ErrUnknownSkill) {
		t.Errorf("ExecuteSkill() error = %v, want ErrUnknownSkill", err)
	}
}

func TestExecuteSkill_EveryCatalogedSkill(t *testing.T) {
	r := newTestRegistry(t)

	for _, e := range catalog.Skills() {
		res := run(t, r, e.Name, "help me with Kim", map[string]interface{}{"customerId": "C-2001"})
		if strings.TrimSpace(res.Content) == "" {
			t.Errorf("%s: empty content", e.Name)
		}
	}
}

// ── Knowledge ───────────────────────────────────────────────

func TestKnowledgeLookup_TriggerPhrase(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillKnowledgeLookup, "kb: retirement planning tips", nil)
	if !strings.HasPrefix(res.Content, "Here’s what I found:") {
		t.Fatalf("Content = %q, want found prefix", res.Content)
	}
	lines := strings.Split(res.Content, "\n")
	if len(lines) < 2 || len(lines) > 4 {
		t.Errorf("got %d lines, want 1-3 items", len(lines)-1)
	}
	if !strings.Contains(lines[1], "[RET]") || !strings.HasPrefix(lines[1], "• “") {
		t.Errorf("first item = %q", lines[1])
	}
}

func TestKnowledgeLookup_WholeMessage(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillKnowledgeLookup, "retirement planning", nil)
	if !strings.HasPrefix(res.Content, "Here’s what I found:") {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestKnowledgeLookup_NoMatch(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillKnowledgeLookup, "knowledge lookup: quantum tax havens on mars", nil)
	if res.Content != "No knowledge items found." {
		t.Errorf("Content = %q, want no items", res.Content)
	}
}

type failingLookup struct{}

func (failingLookup) Lookup(context.Context, knowledge.Query) (knowledge.Result, error) {
	return knowledge.Result{}, errors.New("store down")
}

func TestKnowledgeLookup_Error(t *testing.T) {
	r := skills.NewRegistry(failingLookup{}, nil, nil)

	if _, err := r.ExecuteSkill(context.Background(), catalog.SkillKnowledgeLookup, request("kb: x", nil)); err == nil {
		t.Error("ExecuteSkill() error = nil, want lookup failure")
	}
}

func TestSalesHelpAndRiskNudge(t *testing.T) {
	r := newTestRegistry(t)

	sales := run(t, r, catalog.SkillSalesHelp, "what do I say", nil)
	if !strings.HasPrefix(sales.Content, "You could say something like:") {
		t.Errorf("sales Content = %q", sales.Content)
	}
	nudge := run(t, r, catalog.SkillRiskNudge, "check this", nil)
	if !strings.Contains(nudge.Content, "compliance rules") {
		t.Errorf("nudge Content = %q", nudge.Content)
	}
}

// ── FNA ─────────────────────────────────────────────────────

func TestCaptureUpdateData(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillCaptureUpdateData, "Client income is 85k and her daughter is 7 years old", nil)
	var income, age bool
	for _, a := range res.Actions {
		if a.Type != skills.ActionUpdateField {
			continue
		}
		switch a.Path {
		case "fna.annualIncome":
			income = a.Value == float64(85000)
		case "fna.dependents.0.age":
			age = a.Value == 7
		}
	}
	if !income || !age {
		t.Errorf("Actions = %+v, want income 85000 and age 7", res.Actions)
	}
	primary, ok := skills.PrimaryAction(res.Actions)
	if !ok || primary.Type != skills.ActionUpdateField {
		t.Errorf("PrimaryAction() = %+v, want update_field", primary)
	}
}

func TestCaptureUpdateData_Variants(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillCaptureUpdateData, "annual income of $120,000, has a 4-year-old son", nil)
	if len(res.Actions) != 3 {
		t.Fatalf("Actions = %+v, want two updates and a prefill", res.Actions)
	}
	if res.Actions[2].Type != skills.ActionPrefillForm || res.Actions[2].Fields["childAge"] != 4 {
		t.Errorf("prefill = %+v", res.Actions[2])
	}

	none := run(t, r, catalog.SkillCaptureUpdateData, "nothing useful here", nil)
	if len(none.Actions) != 0 {
		t.Errorf("Actions = %+v, want none", none.Actions)
	}

	dry := run(t, r, catalog.SkillCaptureUpdateData, "income is 50k", map[string]interface{}{"dryRun": true})
	if len(dry.Actions) != 0 || !strings.Contains(dry.Content, "Dry run") {
		t.Errorf("dry run = %+v", dry)
	}
}

func TestCaseOverview_UsesCustomerRecord(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillCaseOverview, "overview please", map[string]interface{}{"customerId": "C-2001"})
	if !strings.Contains(res.Content, "Kim Tan") || !strings.Contains(res.Content, "2 policies") {
		t.Errorf("Content = %q", res.Content)
	}
	if len(res.Actions) != 1 || res.Actions[0].Route != "/customer/detail/C-2001" {
		t.Errorf("Actions = %+v", res.Actions)
	}
}

// ── Ops ─────────────────────────────────────────────────────

func TestPrepareMeeting_CreatesTask(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillPrepareMeeting, "prep for my meeting", map[string]interface{}{
		"customer_id": "C-2002", "customer_name": "Amanda Lim",
	})
	primary, ok := skills.PrimaryAction(res.Actions)
	if !ok || primary.Type != skills.ActionCreateTask {
		t.Fatalf("PrimaryAction() = %+v, want create_task", primary)
	}
	if primary.CustomerID != "C-2002" || !strings.Contains(primary.Title, "Amanda Lim") || primary.Due == "" {
		t.Errorf("task = %+v", primary)
	}
}

func TestPostMeetingWrap(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillPostMeetingWrap, "Discussed CI cover, client wants a quote", map[string]interface{}{"customerId": "C-2001"})
	var note bool
	for _, a := range res.Actions {
		if a.Type == skills.ActionLogNote && strings.Contains(a.Text, "CI cover") {
			note = true
		}
	}
	if !note {
		t.Errorf("Actions = %+v, want log_note", res.Actions)
	}

	none := run(t, r, catalog.SkillPostMeetingWrap, "wrap up", nil)
	if len(none.Actions) != 1 || none.Actions[0].Type != skills.ActionNavigate {
		t.Errorf("no-customer Actions = %+v", none.Actions)
	}
}

func TestSystemHelp_Navigates(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillSystemHelp, "where do I start a campaign?", nil)
	if len(res.Actions) != 1 || res.Actions[0].Route != "/broadcast" {
		t.Errorf("Actions = %+v, want /broadcast", res.Actions)
	}
}

func TestAnalyticsExplain_UsesPerformance(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillAnalyticsExplain, "explain my numbers", nil)
	if !strings.Contains(res.Content, "2 proposals") {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestPassthroughFallsBackToGeneric(t *testing.T) {
	r := newTestRegistry(t)

	res := run(t, r, catalog.SkillAgentPassthrough, "anything", nil)
	if !strings.Contains(res.Content, router.GenericIntentLabel) {
		t.Errorf("Content = %q, want generic label", res.Content)
	}
}

// ── Module agents ───────────────────────────────────────────

func TestExecuteModuleAgent(t *testing.T) {
	r := newTestRegistry(t)

	if !r.HasModuleAgent("", models.ModuleTodo) {
		t.Fatal("HasModuleAgent(todo) = false")
	}
	resp, err := r.ExecuteModuleAgent(context.Background(), skills.AgentExecutionInput{
		Intent:  "list_tasks",
		Context: &models.MiraContext{Module: models.ModuleTodo, Page: "/todo"},
	})
	if err != nil {
		t.Fatalf("ExecuteModuleAgent() error = %v", err)
	}
	if resp.Metadata.Agent != catalog.ToDoAgent {
		t.Errorf("Metadata.Agent = %q, want %q", resp.Metadata.Agent, catalog.ToDoAgent)
	}

	resp, err = r.ExecuteModuleAgent(context.Background(), skills.AgentExecutionInput{
		AgentID: catalog.BroadcastAgent,
		Intent:  "list_campaigns",
		Context: &models.MiraContext{Module: models.ModuleTodo},
	})
	if err != nil {
		t.Fatalf("ExecuteModuleAgent(explicit) error = %v", err)
	}
	if resp.Metadata.Agent != catalog.BroadcastAgent {
		t.Errorf("Metadata.Agent = %q, want %q", resp.Metadata.Agent, catalog.BroadcastAgent)
	}
}

func TestPrimaryAction_Order(t *testing.T) {
	actions := []models.SkillAction{
		{Type: skills.ActionLogNote},
		{Type: skills.ActionNavigate},
		{Type: skills.ActionPrefillForm},
	}
	got, ok := skills.PrimaryAction(actions)
	if !ok || got.Type != skills.ActionPrefillForm {
		t.Errorf("PrimaryAction() = %+v, want prefill_form", got)
	}
	if _, ok := skills.PrimaryAction(nil); ok {
		t.Error("PrimaryAction(nil) ok = true")
	}
}
