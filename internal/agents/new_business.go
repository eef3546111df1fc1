package agents

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

const newBusinessPrompt = `You are a proposal and underwriting specialist.
Guide advisors through proposal creation, quote generation, and underwriting submission.
Respond with concrete steps and reference the New Business workspace.`

// proposalSearch captures the name in "search Kim's proposal" style requests.
var proposalSearch = []*regexp.Regexp{
	regexp.MustCompile(`(?i)search\s+([^']+?)(?:'s\b|\s+proposals?\b|$)`),
	regexp.MustCompile(`(?i)find\s+([^']+?)(?:'s\b|\s+proposals?\b|$)`),
}

type newBusinessAgent struct{ base }

func newNewBusinessAgent(b base) *newBusinessAgent { return &newBusinessAgent{b} }

func (a *newBusinessAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, userMessage string) (*models.MiraResponse, error) {
	switch intent {
	case "start_new_proposal", "create_proposal":
		return a.startProposal(ctx, intent, miraCtx, userMessage), nil
	case "view_proposals", "navigate_to_stage":
		return a.viewProposals(ctx, intent, miraCtx, userMessage), nil
	case "generate_quote":
		return a.generateQuote(ctx, miraCtx), nil
	case "compare_products":
		return a.compareProducts(miraCtx), nil
	case "update_proposal_stage":
		return a.updateStage(ctx, miraCtx), nil
	case "submit_for_uw", "submit_for_underwriting":
		return a.submitForUnderwriting(ctx, intent, miraCtx), nil
	case "check_underwriting_status":
		return a.checkUnderwriting(ctx, miraCtx), nil
	}
	return a.fallback(intent, "I'll open the New Business workspace so you can continue."), nil
}

func (a *newBusinessAgent) viewProposals(ctx context.Context, intent string, miraCtx *models.MiraContext, userMessage string) *models.MiraResponse {
	var term string
	for _, re := range proposalSearch {
		if m := re.FindStringSubmatch(userMessage); m != nil {
			term = strings.TrimSpace(m[1])
			break
		}
	}
	stage := pageString(miraCtx, "stage", "")
	res := a.invoke(ctx, miraCtx, "new_business__proposals.list", map[string]interface{}{"stage": stage})

	actions := []models.UIAction{NavigateAction(a.module, "/new-business", map[string]interface{}{"search": term, "stage": stage})}
	reply := "I'll show you the New Business page with all your proposals."
	if proposals, ok := resultRecords(res); ok {
		reply = fmt.Sprintf("You have %s in the pipeline (%s). Opening the New Business page.",
			plural(len(proposals), "proposal"), stageSummary(proposals))
		if len(proposals) == 0 {
			reply = "You have no proposals in the pipeline yet. Opening the New Business page so you can start one."
		}
	}
	if term != "" {
		reply = fmt.Sprintf("Opening New Business page and searching for proposals related to %q.", term)
	}
	return a.respond(intent, "proposal", reply, actions)
}

// stageSummary counts proposals per stage in first-seen order.
func stageSummary(proposals []map[string]interface{}) string {
	counts := map[string]int{}
	var order []string
	for _, p := range proposals {
		st := strings.ReplaceAll(field(p, "stage"), "_", " ")
		if _, seen := counts[st]; !seen {
			order = append(order, st)
		}
		counts[st]++
	}
	parts := make([]string, 0, len(order))
	for _, st := range order {
		parts = append(parts, fmt.Sprintf("%d in %s", counts[st], st))
	}
	return strings.Join(parts, ", ")
}

func (a *newBusinessAgent) startProposal(ctx context.Context, intent string, miraCtx *models.MiraContext, userMessage string) *models.MiraResponse {
	payload := map[string]interface{}{
		"customerId": pageString(miraCtx, "customerId", "C-2001"),
		"productId":  pageString(miraCtx, "productId", "PR-1001"),
		"premium":    pageNumber(miraCtx, "premium", 1800),
	}
	product := fmt.Sprint(payload["productId"])
	if p, ok := resultRecord(a.invoke(ctx, miraCtx, "product__products.getDetails", map[string]interface{}{"id": payload["productId"]})); ok {
		product = field(p, "name")
		payload["productName"] = product
	}

	actions := CRUDFlow(OpCreate, a.module, CRUDOptions{
		Page:        "/new-business",
		Payload:     payload,
		Description: "Open proposal builder with customer + product prefilled",
	})
	reply := fmt.Sprintf("Starting a new proposal for %s with %s. I'll prefill the product and premium from your last message %q.",
		payload["customerId"], product, truncate(userMessage, 60))
	return a.respond(intent, "proposal", reply, actions)
}

// generateQuote prices the product without saving. The execute action
// persists the quote once the advisor confirms.
func (a *newBusinessAgent) generateQuote(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	productID := pageString(miraCtx, "productId", "PR-1001")
	customerID := pageString(miraCtx, "customerId", "C-2001")
	args := map[string]interface{}{"productId": productID, "customerId": customerID}
	res := a.invoke(ctx, miraCtx, "new_business__quotes.preview", args)

	reply := fmt.Sprintf("Preparing a quick quote for product %s. I'll show the premium and coverage breakdown now.", productID)
	var actions []models.UIAction
	if quote, ok := resultRecord(res); ok {
		actions = append(actions, PrefillAction(map[string]interface{}{"quote": quote}, false, "Preview quote"))
		reply = fmt.Sprintf("%s for %s comes to %s a year for %s of coverage, valid until %s. Confirm to save the quote.",
			field(quote, "productName"), customerID, money(quote["premium"]), money(quote["coverage"]), dateOnly(field(quote, "validUntil")))
	}
	actions = append(actions, ExecuteAction(http.MethodPost, "/api/new-business/quotes", args, true, "Save this quote"))
	return a.respond("generate_quote", "proposal", reply, actions)
}

func dateOnly(rfc3339 string) string {
	if i := strings.IndexByte(rfc3339, 'T'); i > 0 {
		return rfc3339[:i]
	}
	return rfc3339
}

func (a *newBusinessAgent) compareProducts(miraCtx *models.MiraContext) *models.MiraResponse {
	ids := miraCtx.PageStrings("productIds", []string{"PR-1001", "PR-1002"})
	actions := []models.UIAction{
		NavigateAction(a.module, "/new-business/compare", map[string]interface{}{"ids": strings.Join(ids, ",")}),
	}
	reply := fmt.Sprintf("Opening comparison view for %d product options so you can contrast premiums and coverage.", len(ids))
	return a.respond("compare_products", "product_selection", reply, actions)
}

func (a *newBusinessAgent) updateStage(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	proposalID := pageString(miraCtx, "proposalId", "P-3001")
	stage := pageString(miraCtx, "stage", "recommendation")
	res := a.invoke(ctx, miraCtx, "new_business__proposals.get", map[string]interface{}{"id": proposalID})

	payload := map[string]interface{}{"stage": stage}
	reply := fmt.Sprintf("Moving proposal %s to the %s stage. Review the change before I save it.", proposalID, strings.ReplaceAll(stage, "_", " "))
	if p, ok := resultRecord(res); ok && field(p, "stage") != "" {
		payload["previousStage"] = field(p, "stage")
		reply = fmt.Sprintf("Moving proposal %s from %s to the %s stage. Review the change before I save it.",
			proposalID, strings.ReplaceAll(field(p, "stage"), "_", " "), strings.ReplaceAll(stage, "_", " "))
	}
	actions := CRUDFlow(OpUpdate, a.module, CRUDOptions{
		Page:        "/new-business/detail/" + proposalID,
		Payload:     payload,
		Endpoint:    "/api/new-business/proposals/" + proposalID,
		Description: "Confirm stage change",
	})
	return a.respond("update_proposal_stage", "pipeline", reply, actions)
}

func (a *newBusinessAgent) submitForUnderwriting(ctx context.Context, intent string, miraCtx *models.MiraContext) *models.MiraResponse {
	proposalID := pageString(miraCtx, "proposalId", "P-3001")
	res := a.invoke(ctx, miraCtx, "new_business__underwriting.checkStatus", map[string]interface{}{"proposalId": proposalID})

	if st, ok := resultRecord(res); ok && field(st, "status") != "not_submitted" {
		reply := fmt.Sprintf("Proposal %s is already in underwriting with status %q. Opening the status page instead of resubmitting.",
			proposalID, field(st, "status"))
		actions := []models.UIAction{NavigateAction(a.module, "/new-business/status/"+proposalID, nil)}
		return a.respond(intent, "underwriting", reply, actions)
	}

	actions := CRUDFlow(OpUpdate, a.module, CRUDOptions{
		Page:        "/new-business/status/" + proposalID,
		Endpoint:    "/api/new-business/proposals/" + proposalID + "/submit",
		Payload:     map[string]interface{}{"proposalId": proposalID},
		Description: "Confirm underwriting submission",
		Confirm:     true,
	})
	reply := fmt.Sprintf("Submitting proposal %s to underwriting. I'll show you the confirmation modal before sending.", proposalID)
	return a.respond(intent, "underwriting", reply, actions)
}

func (a *newBusinessAgent) checkUnderwriting(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	proposalID := pageString(miraCtx, "proposalId", "P-3001")
	res := a.invoke(ctx, miraCtx, "new_business__underwriting.checkStatus", map[string]interface{}{"proposalId": proposalID})

	reply := fmt.Sprintf("Opening the underwriting status for proposal %s.", proposalID)
	if data, ok := res.Data.(map[string]interface{}); ok && res.Success {
		reply = fmt.Sprintf("Proposal %s is currently %q in underwriting. Opening the status page.", proposalID, data["status"])
	}
	actions := []models.UIAction{NavigateAction(a.module, "/new-business/status/"+proposalID, nil)}
	return a.respond("check_underwriting_status", "underwriting", reply, actions)
}

func (a *newBusinessAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	customer := pageString(miraCtx, "customerName", "my latest lead")
	product := pageString(miraCtx, "productName", "the recommended plan")

	return []models.SuggestedIntent{
		a.suggestion("start_new_proposal", "Start proposal draft",
			fmt.Sprintf("Use %s's info to prefill the form.", customer),
			fmt.Sprintf("Start a new proposal for %s and reuse any product selection already on this page.", customer), 0.84),
		a.suggestion("generate_quote", "Quote "+product,
			"Get quick premium guidance before presenting.",
			fmt.Sprintf("Generate a quote for %s using the customer I'm viewing.", product), 0.76),
		a.suggestion("submit_for_uw", "Check underwriting queue",
			"See which proposals are ready to submit.",
			"Show me proposals that are ready for underwriting submission and prepare the submit flow.", 0.71),
	}
}
