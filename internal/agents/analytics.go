package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

const analyticsPrompt = `You are a performance analytics advisor.
Interpret dashboards, guide advisors to relevant charts, and explain what to watch.
Always reference the Analytics pages and remind the advisor how to adjust filters.`

type analyticsAgent struct{ base }

func newAnalyticsAgent(b base) *analyticsAgent { return &analyticsAgent{b} }

func (a *analyticsAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, _ string) (*models.MiraResponse, error) {
	switch intent {
	case "view_ytd_progress":
		return a.ytd(ctx, miraCtx), nil
	case "view_monthly_trend":
		return a.monthlyTrend(ctx, miraCtx), nil
	case "compare_to_team":
		return a.teamComparison(ctx, miraCtx), nil
	case "view_stage_counts":
		return a.stageCounts(ctx, miraCtx), nil
	case "identify_drop_off":
		return a.dropOff(ctx, miraCtx), nil
	}
	return a.fallback(intent, "Opening analytics overview."), nil
}

func advisorOf(miraCtx *models.MiraContext) string {
	if miraCtx != nil && miraCtx.AdvisorID != "" {
		return miraCtx.AdvisorID
	}
	return "advisor-1"
}

func (a *analyticsAgent) ytd(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	res := a.invoke(ctx, miraCtx, "analytics__performance.get", map[string]interface{}{"advisorId": advisorOf(miraCtx), "period": "YTD"})

	reply := "Showing your YTD premium, proposals, and conversion. Use the range toggle to switch periods."
	if perf, ok := res.Data.(map[string]interface{}); ok && res.Success {
		reply = fmt.Sprintf("Showing your YTD progress: %v in premium across %v proposals. Use the range toggle to switch periods.",
			perf["premium"], perf["proposals"])
	}
	actions := []models.UIAction{NavigateAction(a.module, "/analytics", map[string]interface{}{"range": "YTD"})}
	return a.respond("view_ytd_progress", "performance", reply, actions)
}

func (a *analyticsAgent) monthlyTrend(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	res := a.invoke(ctx, miraCtx, "analytics__trend.getMonthly", map[string]interface{}{"advisorId": advisorOf(miraCtx)})
	actions := []models.UIAction{NavigateAction(a.module, "/analytics/monthly", nil)}
	reply := "Highlighting month-over-month premium trend. I'll annotate the peaks and dips for you."
	if trend, ok := resultRecord(res); ok {
		months, _ := trend["months"].([]string)
		premiums, _ := trend["premiums"].([]float64)
		if n := len(months); n > 0 && len(premiums) == n {
			peak := 0
			for i := range premiums {
				if premiums[i] > premiums[peak] {
					peak = i
				}
			}
			reply = fmt.Sprintf("%s was your peak month at %s in premium, and the latest month (%s) closed at %s. Opening the monthly trend chart.",
				months[peak], money(premiums[peak]), months[n-1], money(premiums[n-1]))
		}
	}
	return a.respond("view_monthly_trend", "trend", reply, actions)
}

func (a *analyticsAgent) teamComparison(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	res := a.invoke(ctx, miraCtx, "analytics__team.getStats", map[string]interface{}{})
	actions := []models.UIAction{NavigateAction(a.module, "/analytics/team-comparison", nil)}
	reply := "Comparing your metrics with the team average and identifying the top performers."
	if stats, ok := resultRecord(res); ok {
		reply = fmt.Sprintf("The team averages %s in premium and %s is the current top performer. Comparing your metrics against them now.",
			money(stats["averagePremium"]), field(stats, "topAdvisor"))
	}
	return a.respond("compare_to_team", "team", reply, actions)
}

// funnelStages unpacks the analytics__funnel.get result.
func funnelStages(res models.ToolResult) []map[string]interface{} {
	f, ok := resultRecord(res)
	if !ok {
		return nil
	}
	stages, _ := f["stages"].([]map[string]interface{})
	return stages
}

func (a *analyticsAgent) stageCounts(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	res := a.invoke(ctx, miraCtx, "analytics__funnel.get", map[string]interface{}{"period": "30D"})
	actions := []models.UIAction{NavigateAction(a.module, "/analytics/funnel", nil)}
	reply := "Opening funnel view to show counts across each stage. I'll flag any bottlenecks."
	if stages := funnelStages(res); len(stages) > 0 {
		parts := make([]string, 0, len(stages))
		for _, st := range stages {
			parts = append(parts, fmt.Sprintf("%v %v", st["stage"], st["count"]))
		}
		reply = fmt.Sprintf("Funnel counts: %s. Opening the funnel view so you can spot bottlenecks.", strings.Join(parts, ", "))
	}
	return a.respond("view_stage_counts", "funnel", reply, actions)
}

func (a *analyticsAgent) dropOff(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	res := a.invoke(ctx, miraCtx, "analytics__funnel.get", map[string]interface{}{"period": "90D"})
	params := map[string]interface{}{"highlight": "dropoff"}
	reply := "Analyzing the conversion funnel to highlight where prospects drop off most. I'll suggest follow-up actions."

	stages := funnelStages(res)
	worst, lost := -1, 0
	for i := 1; i < len(stages); i++ {
		prev, _ := stages[i-1]["count"].(int)
		cur, _ := stages[i]["count"].(int)
		if d := prev - cur; d > lost {
			worst, lost = i, d
		}
	}
	if worst > 0 {
		from, to := stages[worst-1]["stage"], stages[worst]["stage"]
		params["stage"] = to
		reply = fmt.Sprintf("The biggest drop-off is between %v and %v, where %d prospects fall out. Highlighting that stage so you can plan follow-ups.",
			from, to, lost)
	}
	actions := []models.UIAction{NavigateAction(a.module, "/analytics/funnel", params)}
	return a.respond("identify_drop_off", "funnel", reply, actions)
}

func (a *analyticsAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	rangeLabel := pageString(miraCtx, "range", "YTD")
	out := []models.SuggestedIntent{
		a.suggestion("view_ytd_progress", "Check YTD progress",
			"See premium, proposals and conversion at a glance.",
			"Show my YTD progress against target.", 0.8),
		a.suggestion("identify_drop_off", "Find funnel drop-off",
			"Spot the stage where prospects stall.",
			"Where are prospects dropping off in my funnel?", 0.72),
	}
	if miraCtx != nil && miraCtx.Page == "/analytics/team-comparison" {
		return append([]models.SuggestedIntent{
			a.suggestion("compare_to_team", "Compare with team",
				fmt.Sprintf("Benchmark your %s numbers against the team.", rangeLabel),
				fmt.Sprintf("Compare my %s performance to the team average.", rangeLabel), 0.82),
		}, out...)
	}
	return append(out, a.suggestion("view_monthly_trend", "Review monthly trend",
		"Look for peaks and dips month over month.",
		"Show my monthly premium trend.", 0.68))
}
