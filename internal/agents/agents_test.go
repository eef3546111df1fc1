package agents_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/advisorhub/mira/internal/agents"
	"github.com/advisorhub/mira/internal/catalog"
	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

type testEnv struct {
	agents *agents.Registry
	tools  *tools.Registry
	rows   *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rows := store.NewMemoryStore()
	if err := agents.SeedDemoData(context.Background(), rows, agents.DefaultTenant); err != nil {
		t.Fatalf("SeedDemoData() error = %v", err)
	}
	toolReg := tools.NewRegistry()
	if err := agents.RegisterTools(toolReg, rows); err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}
	reg, err := agents.NewRegistry(toolReg)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = rows.Close() })
	return &testEnv{agents: reg, tools: toolReg, rows: rows}
}

func execute(t *testing.T, env *testEnv, module models.MiraModule, intent string, pageData map[string]interface{}, msg string) *models.MiraResponse {
	t.Helper()
	resp, err := env.agents.Execute(context.Background(), agents.ExecutionInput{
		Intent:      intent,
		Context:     &models.MiraContext{Module: module, Page: module.HomePage(), PageData: pageData},
		UserMessage: msg,
	})
	if err != nil {
		t.Fatalf("Execute(%s, %s) error = %v", module, intent, err)
	}
	return resp
}

// ── Registry ────────────────────────────────────────────────

func TestRegistry_AllModules(t *testing.T) {
	env := newTestEnv(t)

	all := env.agents.All()
	if len(all) != len(models.AgentModules) {
		t.Fatalf("All() len = %d, want %d", len(all), len(models.AgentModules))
	}
	for _, m := range models.AgentModules {
		a, ok := env.agents.ForModule(m)
		if !ok {
			t.Errorf("ForModule(%q) missing", m)
			continue
		}
		if want := catalog.AgentForModule(string(m)); a.ID() != want {
			t.Errorf("ForModule(%q).ID() = %q, want %q", m, a.ID(), want)
		}
		if a.SystemPrompt() == "" {
			t.Errorf("%s SystemPrompt() is empty", a.ID())
		}
		if got, ok := env.agents.Get(a.ID()); !ok || got.Module() != m {
			t.Errorf("Get(%q) = %v, %v", a.ID(), got, ok)
		}
	}
}

func TestRegistry_Resolve(t *testing.T) {
	env := newTestEnv(t)

	a, ok := env.agents.Resolve(catalog.ToDoAgent, models.ModuleCustomer)
	if !ok || a.ID() != catalog.ToDoAgent {
		t.Errorf("Resolve(explicit id) = %v, want %s", a, catalog.ToDoAgent)
	}
	a, ok = env.agents.Resolve("no_such_agent", models.ModuleProduct)
	if !ok || a.ID() != catalog.ProductAgent {
		t.Errorf("Resolve(unknown id, product) = %v, want module fallback", a)
	}
	if env.agents.Has("", models.ModuleFNA) {
		t.Error("Has(fna) = true, want false")
	}
}

func TestRegistry_ExecuteUnknown(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.agents.Execute(context.Background(), agents.ExecutionInput{
		Intent:  "anything",
		Context: &models.MiraContext{Module: models.ModuleKnowledge},
	})
	if !errors.Is(err, agents.ErrAgentNotFound) {
		t.Errorf("Execute() error = %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_ExecuteNilContext(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.agents.Execute(context.Background(), agents.ExecutionInput{
		AgentID: catalog.AnalyticsAgent,
		Intent:  "view_ytd_progress",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Metadata.Agent != catalog.AnalyticsAgent {
		t.Errorf("Metadata.Agent = %q, want %q", resp.Metadata.Agent, catalog.AnalyticsAgent)
	}
}

// ── Execute ─────────────────────────────────────────────────

func TestExecute_MetadataAndFallback(t *testing.T) {
	env := newTestEnv(t)

	for _, m := range models.AgentModules {
		resp := execute(t, env, m, "does_not_exist", nil, "hello")
		if resp.Metadata.Agent != catalog.AgentForModule(string(m)) {
			t.Errorf("%s: Metadata.Agent = %q", m, resp.Metadata.Agent)
		}
		if resp.Metadata.Topic != string(m) {
			t.Errorf("%s: Metadata.Topic = %q", m, resp.Metadata.Topic)
		}
		if resp.Metadata.Subtopic != "general" {
			t.Errorf("%s: Metadata.Subtopic = %q, want general", m, resp.Metadata.Subtopic)
		}
		if len(resp.UIActions) != 1 || resp.UIActions[0].Action != models.ActionNavigate || resp.UIActions[0].Page != m.HomePage() {
			t.Errorf("%s: fallback actions = %+v, want navigate to %s", m, resp.UIActions, m.HomePage())
		}
		if resp.AssistantReply == "" {
			t.Errorf("%s: empty reply", m)
		}
	}
}

func TestExecute_ReadOnlyIntentsNavigateOnly(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		module models.MiraModule
		intent string
	}{
		{models.ModuleCustomer, "list_leads"},
		{models.ModuleCustomer, "view_lead_detail"},
		{models.ModuleNewBusiness, "view_proposals"},
		{models.ModuleAnalytics, "view_ytd_progress"},
		{models.ModuleAnalytics, "compare_to_team"},
		{models.ModuleTodo, "list_tasks"},
		{models.ModuleTodo, "view_calendar"},
		{models.ModuleBroadcast, "list_campaigns"},
		{models.ModuleVisualizer, "view_scenarios"},
	}
	for _, tt := range tests {
		resp := execute(t, env, tt.module, tt.intent, nil, "")
		for _, a := range resp.UIActions {
			if a.Action == models.ActionExecute || a.ConfirmRequired {
				t.Errorf("%s/%s: unexpected mutating action %+v", tt.module, tt.intent, a)
			}
		}
		if resp.Metadata.Intent != tt.intent {
			t.Errorf("%s/%s: Metadata.Intent = %q", tt.module, tt.intent, resp.Metadata.Intent)
		}
	}
}

func TestExecute_MutationsRequireConfirmation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		module models.MiraModule
		intent string
		method string
	}{
		{models.ModuleCustomer, "update_lead_status", http.MethodPatch},
		{models.ModuleNewBusiness, "update_proposal_stage", http.MethodPatch},
		{models.ModuleTodo, "mark_complete", http.MethodPatch},
		{models.ModuleTodo, "delete_task", http.MethodDelete},
	}
	for _, tt := range tests {
		resp := execute(t, env, tt.module, tt.intent, nil, "")
		var exec *models.UIAction
		for i := range resp.UIActions {
			if resp.UIActions[i].Action == models.ActionExecute {
				exec = &resp.UIActions[i]
			}
		}
		if exec == nil {
			t.Errorf("%s/%s: no execute action in %+v", tt.module, tt.intent, resp.UIActions)
			continue
		}
		if !exec.ConfirmRequired {
			t.Errorf("%s/%s: execute action not confirm_required", tt.module, tt.intent)
		}
		if exec.APICall == nil || exec.APICall.Method != tt.method {
			t.Errorf("%s/%s: APICall = %+v, want method %s", tt.module, tt.intent, exec.APICall, tt.method)
		}
	}
}

func TestExecute_DraftingDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	execute(t, env, models.ModuleTodo, "mark_complete", map[string]interface{}{"taskId": "T-2"}, "")
	execute(t, env, models.ModuleTodo, "delete_task", map[string]interface{}{"taskId": "T-2"}, "")
	execute(t, env, models.ModuleCustomer, "create_lead", map[string]interface{}{"leadName": "Zed Ong"}, "add Zed Ong")

	row, err := env.rows.GetRow(ctx, agents.DefaultTenant, "tasks", "T-2")
	if err != nil {
		t.Fatalf("GetRow(T-2) error = %v", err)
	}
	if row.Data["status"] != "pending" {
		t.Errorf("T-2 status = %v, want pending", row.Data["status"])
	}
	leads, _ := env.rows.ListRows(ctx, agents.DefaultTenant, "leads", store.RowFilter{})
	if len(leads) != 3 {
		t.Errorf("leads = %d, want 3", len(leads))
	}
}

func TestExecute_CreateLeadPrefill(t *testing.T) {
	env := newTestEnv(t)

	resp := execute(t, env, models.ModuleCustomer, "create_lead",
		map[string]interface{}{"leadName": "Kim Tan", "contactNumber": "98765432"}, "create a lead for Kim Tan")

	kinds := make([]models.UIActionType, 0, len(resp.UIActions))
	for _, a := range resp.UIActions {
		kinds = append(kinds, a.Action)
	}
	want := []models.UIActionType{models.ActionNavigate, models.ActionFrontendPrefill, models.ActionExecute}
	if len(kinds) != len(want) {
		t.Fatalf("actions = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
	if got := resp.UIActions[1].Payload["name"]; got != "Kim Tan" {
		t.Errorf("prefill name = %v, want Kim Tan", got)
	}
	if !strings.Contains(resp.AssistantReply, "already match") {
		t.Errorf("reply = %q, want duplicate note", resp.AssistantReply)
	}
}

func TestExecute_SearchLeadFromMessage(t *testing.T) {
	env := newTestEnv(t)

	resp := execute(t, env, models.ModuleCustomer, "search_lead", nil, "please find Amanda")
	if got := resp.UIActions[0].Params["search"]; got != "Amanda" {
		t.Errorf("search param = %v, want Amanda", got)
	}
}

func TestExecute_BroadcastStats(t *testing.T) {
	env := newTestEnv(t)

	resp := execute(t, env, models.ModuleBroadcast, "view_campaign_stats", map[string]interface{}{"campaignId": "B-1"}, "")
	if !strings.Contains(resp.AssistantReply, "52% open rate") {
		t.Errorf("reply = %q, want open rate", resp.AssistantReply)
	}
}

func TestExecute_QuoteAndPlanArePreviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote := execute(t, env, models.ModuleNewBusiness, "generate_quote",
		map[string]interface{}{"productId": "PR-1001", "customerId": "C-2001"}, "")
	plan := execute(t, env, models.ModuleVisualizer, "generate_plan",
		map[string]interface{}{"customerId": "C-2001"}, "")

	for _, c := range []string{"quotes", "plans"} {
		rows, err := env.rows.ListRows(ctx, agents.DefaultTenant, c, store.RowFilter{})
		if err != nil {
			t.Fatalf("ListRows(%s) error = %v", c, err)
		}
		if len(rows) != 0 {
			t.Errorf("%s rows = %d after chat, want 0", c, len(rows))
		}
	}

	if !strings.Contains(quote.AssistantReply, "LifeShield Prime") || !strings.Contains(quote.AssistantReply, "$1440 a year") {
		t.Errorf("quote reply = %q, want product name and annual premium", quote.AssistantReply)
	}
	if !strings.Contains(plan.AssistantReply, "Kim Tan") {
		t.Errorf("plan reply = %q, want customer name", plan.AssistantReply)
	}
	for name, resp := range map[string]*models.MiraResponse{"quote": quote, "plan": plan} {
		last := resp.UIActions[len(resp.UIActions)-1]
		if last.Action != models.ActionExecute || !last.ConfirmRequired || last.APICall == nil || last.APICall.Method != http.MethodPost {
			t.Errorf("%s: last action = %+v, want confirmed POST", name, last)
		}
	}
}

func TestExecute_RepliesUseStoredRecords(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		module   models.MiraModule
		intent   string
		pageData map[string]interface{}
		msg      string
		want     []string
	}{
		{models.ModuleCustomer, "list_leads", map[string]interface{}{"status": "qualified"}, "",
			[]string{"1 matching lead", "Amanda Lim"}},
		{models.ModuleCustomer, "search_lead", nil, "find Wei",
			[]string{"Wei Zhang", "L-1003", "contacted"}},
		{models.ModuleCustomer, "view_lead_detail", map[string]interface{}{"leadId": "L-1002"}, "",
			[]string{"Amanda Lim", "Referral"}},
		{models.ModuleCustomer, "update_lead_status", map[string]interface{}{"leadId": "L-1001", "status": "contacted"}, "",
			[]string{"Kim Tan (L-1001)", `from "new"`}},
		{models.ModuleAnalytics, "view_monthly_trend", nil, "", []string{"$4300"}},
		{models.ModuleAnalytics, "compare_to_team", nil, "", []string{"$38000", "Gina Wong"}},
		{models.ModuleAnalytics, "view_stage_counts", nil, "", []string{"Leads 3", "Qualified 1", "Proposals 2", "Submitted 1"}},
		{models.ModuleAnalytics, "identify_drop_off", nil, "", []string{"between Leads and Qualified", "2 prospects"}},
		{models.ModuleBroadcast, "list_campaigns", map[string]interface{}{"status": "draft"}, "",
			[]string{"1 draft campaign", "Term Promo"}},
		{models.ModuleNewBusiness, "view_proposals", nil, "",
			[]string{"2 proposals", "1 in fact find", "1 in underwriting"}},
		{models.ModuleNewBusiness, "start_new_proposal", map[string]interface{}{"productId": "PR-1002"}, "start a proposal",
			[]string{"EduGrow Plus"}},
		{models.ModuleNewBusiness, "update_proposal_stage", map[string]interface{}{"proposalId": "P-3002", "stage": "issued"}, "",
			[]string{"from underwriting to the issued stage"}},
		{models.ModuleProduct, "list_by_category", map[string]interface{}{"category": "Savings"}, "",
			[]string{"1 Savings product:", "EduGrow Plus"}},
		{models.ModuleProduct, "view_product_detail", map[string]interface{}{"productId": "PR-1001"}, "",
			[]string{"LifeShield Prime", "$120 a month", "$250000", "Critical Illness"}},
		{models.ModuleProduct, "compare_products", nil, "", []string{"PR-1001 at $120", "PR-1002 at $150"}},
		{models.ModuleTodo, "mark_complete", map[string]interface{}{"taskId": "T-2"}, "",
			[]string{`"Prepare review deck"`}},
		{models.ModuleTodo, "mark_complete", map[string]interface{}{"taskId": "T-3"}, "",
			[]string{"already completed"}},
		{models.ModuleTodo, "view_calendar", map[string]interface{}{"startDate": "2024-01-01T00:00:00Z", "endDate": "2024-01-31T00:00:00Z"}, "",
			[]string{"1 event", "Annual review with Amanda Lim"}},
		{models.ModuleVisualizer, "view_scenarios", map[string]interface{}{"customerId": "C-2001"}, "",
			[]string{"2 scenarios", "Balanced growth", "Aggressive growth"}},
		{models.ModuleVisualizer, "compare_scenarios", nil, "", []string{"C-2001-S2 projects the highest value"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.module)+"/"+tt.intent, func(t *testing.T) {
			resp := execute(t, env, tt.module, tt.intent, tt.pageData, tt.msg)
			for _, w := range tt.want {
				if !strings.Contains(resp.AssistantReply, w) {
					t.Errorf("reply = %q, want it to contain %q", resp.AssistantReply, w)
				}
			}
		})
	}
}

func TestExecute_LeadDetailNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := execute(t, env, models.ModuleCustomer, "view_lead_detail", map[string]interface{}{"leadId": "L-404"}, "")
	if !strings.Contains(resp.AssistantReply, "couldn't find lead L-404") {
		t.Errorf("reply = %q, want not-found note", resp.AssistantReply)
	}
	if resp.UIActions[0].Page != "/customer" {
		t.Errorf("page = %q, want /customer", resp.UIActions[0].Page)
	}
}

func TestExecute_SubmittedProposalNotResubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.tools.Execute(ctx, "new_business__underwriting.submit",
		tools.ExecuteInput{Args: map[string]interface{}{"proposalId": "P-3001"}, TenantID: agents.DefaultTenant})
	if !res.Success {
		t.Fatalf("submit error = %+v", res.Error)
	}

	resp := execute(t, env, models.ModuleNewBusiness, "submit_for_uw", map[string]interface{}{"proposalId": "P-3001"}, "")
	for _, a := range resp.UIActions {
		if a.Action == models.ActionExecute {
			t.Errorf("unexpected execute action %+v for a proposal already in underwriting", a)
		}
	}
	if !strings.Contains(resp.AssistantReply, `status "pending"`) {
		t.Errorf("reply = %q, want pending status", resp.AssistantReply)
	}
}

func TestExecute_AliasIntentEchoed(t *testing.T) {
	env := newTestEnv(t)

	resp := execute(t, env, models.ModuleNewBusiness, "submit_for_uw", nil, "")
	if resp.Metadata.Intent != "submit_for_uw" {
		t.Errorf("Metadata.Intent = %q, want submit_for_uw", resp.Metadata.Intent)
	}
}

// ── Suggestions ─────────────────────────────────────────────

func TestGenerateSuggestions(t *testing.T) {
	env := newTestEnv(t)

	pages := []map[string]interface{}{nil, {"leadName": "Kim Tan", "customerId": "C-2001"}}
	for _, a := range env.agents.All() {
		for _, pd := range pages {
			for _, page := range []string{a.Module().HomePage(), "/todo/calendar", "/analytics/trend"} {
				got := a.GenerateSuggestions(&models.MiraContext{Module: a.Module(), Page: page, PageData: pd})
				if len(got) == 0 {
					t.Errorf("%s on %s: no suggestions", a.ID(), page)
				}
				for _, s := range got {
					if s.Intent == "" || s.PromptText == "" || s.Title == "" {
						t.Errorf("%s: incomplete suggestion %+v", a.ID(), s)
					}
					if s.Module != a.Module() {
						t.Errorf("%s: suggestion module = %q", a.ID(), s.Module)
					}
					if s.Confidence <= 0 || s.Confidence > 1 {
						t.Errorf("%s: confidence = %v", a.ID(), s.Confidence)
					}
				}
			}
		}
	}
}

func TestGenerateSuggestions_NilContext(t *testing.T) {
	env := newTestEnv(t)

	for _, a := range env.agents.All() {
		if got := a.GenerateSuggestions(nil); len(got) == 0 {
			t.Errorf("%s: GenerateSuggestions(nil) empty", a.ID())
		}
	}
}

// ── Insights ────────────────────────────────────────────────

func TestGenerateInsights(t *testing.T) {
	env := newTestEnv(t)
	todo, _ := env.agents.ForModule(models.ModuleTodo)

	got, err := todo.GenerateInsights(context.Background(), "adv-7", &models.MiraContext{
		Module:   models.ModuleTodo,
		PageData: map[string]interface{}{"overdueTasks": 4},
	})
	if err != nil {
		t.Fatalf("GenerateInsights() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GenerateInsights() len = %d, want 1", len(got))
	}
	in := got[0]
	if in.ID != "todo-overdue:adv-7" {
		t.Errorf("ID = %q", in.ID)
	}
	if in.Priority != models.PriorityCritical || in.Dismissible {
		t.Errorf("priority = %q dismissible = %v, want critical and not dismissible", in.Priority, in.Dismissible)
	}
	if !strings.Contains(in.Title, "4") {
		t.Errorf("Title = %q, want interpolated count", in.Title)
	}

	none, err := todo.GenerateInsights(context.Background(), "adv-7", &models.MiraContext{Module: models.ModuleTodo})
	if err != nil {
		t.Fatalf("GenerateInsights(empty) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("GenerateInsights(empty) = %+v, want none", none)
	}
}

func TestGenerateInsights_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.agents.ForModule(models.ModuleCustomer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.GenerateInsights(ctx, "adv", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateInsights() error = %v, want context.Canceled", err)
	}
}

// ── Actions ─────────────────────────────────────────────────

func TestNavigateAction_DropsEmptyParams(t *testing.T) {
	a := agents.NavigateAction(models.ModuleCustomer, "/customer", map[string]interface{}{"status": "", "source": nil})
	if a.Params != nil {
		t.Errorf("Params = %v, want nil", a.Params)
	}
	a = agents.NavigateAction(models.ModuleCustomer, "/customer", map[string]interface{}{"status": "new"})
	if a.Params["status"] != "new" {
		t.Errorf("Params = %v", a.Params)
	}
}

func TestCRUDFlow(t *testing.T) {
	tests := []struct {
		op       agents.CRUDOperation
		payload  map[string]interface{}
		want     []models.UIActionType
		endpoint string
	}{
		{agents.OpRead, nil, []models.UIActionType{models.ActionNavigate}, ""},
		{agents.OpDelete, map[string]interface{}{"id": "T-1"}, []models.UIActionType{models.ActionExecute}, "/api/todo/delete"},
		{agents.OpCreate, map[string]interface{}{"title": "x"}, []models.UIActionType{models.ActionNavigate, models.ActionFrontendPrefill, models.ActionExecute}, "/api/todo/create"},
		{agents.OpCreate, nil, []models.UIActionType{models.ActionNavigate, models.ActionExecute}, "/api/todo/create"},
		{agents.OpUpdate, map[string]interface{}{"status": "done"}, []models.UIActionType{models.ActionNavigate, models.ActionFrontendPrefill, models.ActionExecute}, "/api/todo/update"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got := agents.CRUDFlow(tt.op, models.ModuleTodo, agents.CRUDOptions{Payload: tt.payload})
			if len(got) != len(tt.want) {
				t.Fatalf("CRUDFlow() = %+v, want kinds %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i].Action != tt.want[i] {
					t.Errorf("action[%d] = %q, want %q", i, got[i].Action, tt.want[i])
				}
			}
			last := got[len(got)-1]
			if tt.endpoint != "" && (last.APICall == nil || last.APICall.Endpoint != tt.endpoint) {
				t.Errorf("APICall = %+v, want endpoint %s", last.APICall, tt.endpoint)
			}
			if tt.op == agents.OpRead && got[0].Page != "/todo" {
				t.Errorf("read page = %q, want /todo", got[0].Page)
			}
			wantConfirm := tt.op == agents.OpUpdate || tt.op == agents.OpDelete
			if tt.op != agents.OpRead && last.ConfirmRequired != wantConfirm {
				t.Errorf("ConfirmRequired = %v, want %v", last.ConfirmRequired, wantConfirm)
			}
		})
	}
}

// ── Tools ───────────────────────────────────────────────────

func TestTools_MutationsViaRegistry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := func(args map[string]interface{}) tools.ExecuteInput {
		return tools.ExecuteInput{Args: args, TenantID: agents.DefaultTenant}
	}

	res := env.tools.Execute(ctx, "todo__tasks.markComplete", in(map[string]interface{}{"id": "T-2"}))
	if !res.Success {
		t.Fatalf("markComplete error = %+v", res.Error)
	}
	row, _ := env.rows.GetRow(ctx, agents.DefaultTenant, "tasks", "T-2")
	if row.Data["status"] != "completed" {
		t.Errorf("T-2 status = %v, want completed", row.Data["status"])
	}

	res = env.tools.Execute(ctx, "customer__leads.create", in(map[string]interface{}{"name": "Zed Ong"}))
	if !res.Success {
		t.Fatalf("leads.create error = %+v", res.Error)
	}
	created, _ := res.Data.(map[string]interface{})
	if id, _ := created["id"].(string); !strings.HasPrefix(id, "L-") {
		t.Errorf("created id = %v, want L- prefix", created["id"])
	}

	res = env.tools.Execute(ctx, "todo__tasks.delete", in(map[string]interface{}{"id": "T-404"}))
	if res.Success || res.Error == nil || res.Error.Code != tools.CodeNotFound {
		t.Errorf("delete missing = %+v, want %s", res.Error, tools.CodeNotFound)
	}
}

func TestTools_ForEveryModule(t *testing.T) {
	env := newTestEnv(t)

	for _, m := range models.AgentModules {
		if len(env.tools.ForModule(m)) == 0 {
			t.Errorf("no tools registered for %s", m)
		}
		for _, d := range env.tools.ForModule(m) {
			if !strings.HasPrefix(d.Name, string(m)+"__") {
				t.Errorf("tool %q not namespaced under %s", d.Name, m)
			}
		}
	}
}

func TestTools_TenantScoped(t *testing.T) {
	env := newTestEnv(t)

	res := env.tools.Execute(context.Background(), "customer__leads.list", tools.ExecuteInput{TenantID: "other"})
	if !res.Success {
		t.Fatalf("list error = %+v", res.Error)
	}
	if leads, _ := res.Data.([]map[string]interface{}); len(leads) != 0 {
		t.Errorf("other tenant leads = %d, want 0", len(leads))
	}
}

func TestSeedDemoData_Idempotent(t *testing.T) {
	env := newTestEnv(t)

	if err := agents.SeedDemoData(context.Background(), env.rows, agents.DefaultTenant); err != nil {
		t.Fatalf("second SeedDemoData() error = %v", err)
	}
	leads, _ := env.rows.ListRows(context.Background(), agents.DefaultTenant, "leads", store.RowFilter{})
	if len(leads) != 3 {
		t.Errorf("leads = %d, want 3", len(leads))
	}
}
