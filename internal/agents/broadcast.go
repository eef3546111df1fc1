package agents

import (
	"context"
	"fmt"

	"github.com/advisorhub/mira/pkg/models"
)

const broadcastPrompt = `You are a campaign and messaging specialist.
Assist advisors in reviewing broadcasts, drafting new campaigns, and monitoring performance.`

type broadcastAgent struct{ base }

func newBroadcastAgent(b base) *broadcastAgent { return &broadcastAgent{b} }

func (a *broadcastAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, _ string) (*models.MiraResponse, error) {
	switch intent {
	case "list_campaigns":
		return a.listCampaigns(ctx, miraCtx), nil
	case "create_broadcast":
		return a.createBroadcast(ctx, miraCtx), nil
	case "view_campaign_stats":
		return a.viewStats(ctx, miraCtx), nil
	}
	return a.fallback(intent, "Opening Broadcast workspace."), nil
}

func (a *broadcastAgent) listCampaigns(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	status := pageString(miraCtx, "status", "")
	res := a.invoke(ctx, miraCtx, "broadcast__broadcasts.list", map[string]interface{}{"status": status})

	actions := []models.UIAction{NavigateAction(a.module, "/broadcast", map[string]interface{}{"status": status})}
	reply := "Showing campaign list with the filters you specified."
	if campaigns, ok := resultRecords(res); ok {
		label := "campaign"
		if status != "" {
			label = status + " campaign"
		}
		reply = "You have " + plural(len(campaigns), label)
		if len(campaigns) > 0 {
			reply += ": " + joinField(campaigns, "title", 5)
		}
		reply += ". Showing the list with your filters applied."
	}
	return a.respond("list_campaigns", "campaigns", reply, actions)
}

func (a *broadcastAgent) createBroadcast(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	payload := map[string]interface{}{
		"title":    pageString(miraCtx, "title", "Nurture Series"),
		"audience": pageString(miraCtx, "audience", "Warm leads"),
	}
	actions := CRUDFlow(OpCreate, a.module, CRUDOptions{
		Page:        "/broadcast/new",
		Payload:     payload,
		Description: "Prefill the broadcast composer",
	})
	reply := "Drafting a new broadcast and prefilling the title + audience you mentioned."
	return a.respond("create_broadcast", "campaigns", reply, actions)
}

func (a *broadcastAgent) viewStats(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	campaignID := pageString(miraCtx, "campaignId", "B-1")
	res := a.invoke(ctx, miraCtx, "broadcast__broadcasts.getStats", map[string]interface{}{"id": campaignID})

	reply := fmt.Sprintf("Opening stats for campaign %s with delivery, open, and click metrics.", campaignID)
	if stats, ok := res.Data.(map[string]interface{}); ok && res.Success {
		if rate, ok := stats["openRate"].(float64); ok {
			reply = fmt.Sprintf("Campaign %s has a %.0f%% open rate. Opening the full delivery, open, and click metrics.", campaignID, rate*100)
		}
	}
	actions := []models.UIAction{
		NavigateAction(a.module, fmt.Sprintf("/broadcast/detail/%s/stats", campaignID), nil),
		PrefillAction(map[string]interface{}{"campaignId": campaignID}, false, ""),
	}
	return a.respond("view_campaign_stats", "analytics", reply, actions)
}

func (a *broadcastAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	audience := pageString(miraCtx, "audience", "warm leads")
	draft := pageString(miraCtx, "title", "Nurture touch")
	campaignID := pageString(miraCtx, "campaignId", "B-1")

	return []models.SuggestedIntent{
		a.suggestion("create_broadcast", "Draft "+draft,
			"Spin up a new campaign with the current filters.",
			fmt.Sprintf("Create a broadcast titled %q targeting %s.", draft, audience), 0.8),
		a.suggestion("list_campaigns", fmt.Sprintf("Review %s campaigns", audience),
			"Pull up the latest sends for this audience.",
			fmt.Sprintf("Show my recent broadcasts targeting %s.", audience), 0.72),
		a.suggestion("view_campaign_stats", "Check stats for "+campaignID,
			"See opens, clicks, and bounce notes.",
			fmt.Sprintf("Open the analytics for campaign %s and summarize open/click rate.", campaignID), 0.69),
	}
}
