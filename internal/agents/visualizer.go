package agents

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

const visualizerPrompt = `You are a financial planning and visualization expert.
Guide advisors through plan generation, scenario exploration, and comparisons.`

type visualizerAgent struct{ base }

func newVisualizerAgent(b base) *visualizerAgent { return &visualizerAgent{b} }

func (a *visualizerAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, _ string) (*models.MiraResponse, error) {
	switch intent {
	case "generate_plan":
		return a.generatePlan(ctx, miraCtx), nil
	case "view_scenarios":
		return a.viewScenarios(ctx, miraCtx), nil
	case "compare_scenarios":
		return a.compareScenarios(ctx, miraCtx), nil
	}
	return a.fallback(intent, "Opening Financial Visualizer."), nil
}

// generatePlan previews the projection and leaves saving it to the advisor.
func (a *visualizerAgent) generatePlan(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	customerID := pageString(miraCtx, "customerId", "C-2001")
	args := map[string]interface{}{"customerId": customerID}
	res := a.invoke(ctx, miraCtx, "visualizer__plans.preview", args)

	actions := []models.UIAction{NavigateAction(a.module, "/visualizer", args)}
	reply := fmt.Sprintf("Generating a tailored plan for %s and loading the chart with projections.", customerID)
	if plan, ok := resultRecord(res); ok {
		actions = append(actions,
			PrefillAction(map[string]interface{}{"plan": plan}, false, "Preview plan projections"),
			ExecuteAction(http.MethodPost, "/api/visualizer/plans", args, true, "Save this plan"),
		)
		if proj, _ := plan["projections"].([]map[string]interface{}); len(proj) > 0 {
			last := proj[len(proj)-1]
			reply = fmt.Sprintf("Here's a baseline plan for %s: projected value reaches %s by %v. Confirm to save it to their file.",
				field(plan, "customerName"), money(last["value"]), last["year"])
		}
	}
	return a.respond("generate_plan", "plan", reply, actions)
}

func (a *visualizerAgent) viewScenarios(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	customerID := pageString(miraCtx, "customerId", "C-2001")
	res := a.invoke(ctx, miraCtx, "visualizer__scenarios.list", map[string]interface{}{"customerId": customerID})

	actions := []models.UIAction{NavigateAction(a.module, "/visualizer/scenarios", map[string]interface{}{"customerId": customerID})}
	reply := "Listing the saved scenarios so you can toggle between growth assumptions."
	if scenarios, ok := resultRecords(res); ok {
		if len(scenarios) == 0 {
			reply = fmt.Sprintf("There are no saved scenarios for %s yet. Opening the scenario list so you can add one.", customerID)
		} else {
			reply = fmt.Sprintf("%s has %s saved: %s. Toggle between them to compare growth assumptions.",
				customerID, plural(len(scenarios), "scenario"), joinField(scenarios, "name", 5))
		}
	}
	return a.respond("view_scenarios", "scenario", reply, actions)
}

func (a *visualizerAgent) compareScenarios(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	ids := miraCtx.PageStrings("scenarioIds", []string{"C-2001-S1", "C-2001-S2"})
	res := a.invoke(ctx, miraCtx, "visualizer__scenarios.compare", map[string]interface{}{"scenarioIds": ids})

	actions := []models.UIAction{
		NavigateAction(a.module, "/visualizer/compare", map[string]interface{}{"scenarioIds": strings.Join(ids, ",")}),
	}
	reply := "Comparing the selected scenarios and surfacing the key differences in projected value."
	if cmp, ok := resultRecord(res); ok {
		if table, _ := cmp["table"].([]map[string]interface{}); len(table) > 0 {
			projected, _ := table[0]["values"].(map[string]interface{})
			best, bestValue := "", -1.0
			for _, id := range ids {
				if v := number(projected[id]); v > bestValue {
					best, bestValue = id, v
				}
			}
			reply = fmt.Sprintf("Comparing %d scenarios. %s projects the highest value at %s after 30 years.",
				len(ids), best, money(bestValue))
			actions = append(actions, PrefillAction(map[string]interface{}{"comparison": table}, false, ""))
		}
	}
	return a.respond("compare_scenarios", "comparison", reply, actions)
}

func (a *visualizerAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	customer := pageString(miraCtx, "customerName", "this client")
	return []models.SuggestedIntent{
		a.suggestion("generate_plan", "Generate a plan",
			fmt.Sprintf("Project %s's coverage and savings.", customer),
			fmt.Sprintf("Generate a financial plan for %s.", customer), 0.77),
		a.suggestion("compare_scenarios", "Compare scenarios",
			"Contrast growth assumptions side by side.",
			"Compare the saved scenarios for this client.", 0.7),
	}
}
