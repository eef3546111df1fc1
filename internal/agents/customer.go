package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

const customerPrompt = `You are a customer management specialist for AdvisorHub.
You help advisors manage leads, update statuses, and quickly drill into customer records.
Always provide a concise acknowledgement and outline the UI steps Mira will take.`

var searchQuery = regexp.MustCompile(`(?i)(?:find|search)\s+(.+)$`)

type customerAgent struct{ base }

func newCustomerAgent(b base) *customerAgent { return &customerAgent{b} }

func (a *customerAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, userMessage string) (*models.MiraResponse, error) {
	switch intent {
	case "create_lead":
		return a.createLead(ctx, miraCtx, userMessage), nil
	case "list_leads":
		return a.listLeads(ctx, miraCtx), nil
	case "search_lead":
		return a.searchLead(ctx, miraCtx, userMessage), nil
	case "view_lead_detail":
		return a.viewLeadDetail(ctx, miraCtx), nil
	case "update_lead_status":
		return a.updateLeadStatus(ctx, miraCtx), nil
	case "schedule_appointment":
		return a.scheduleAppointment(ctx, miraCtx), nil
	}
	return a.fallback(intent, "Let me check the customer workspace for you."), nil
}

func (a *customerAgent) createLead(ctx context.Context, miraCtx *models.MiraContext, userMessage string) *models.MiraResponse {
	payload := map[string]interface{}{
		"name":           pageString(miraCtx, "leadName", "New Prospect"),
		"contact_number": pageString(miraCtx, "contactNumber", "00000000"),
		"lead_source":    pageString(miraCtx, "leadSource", "Manual Entry"),
	}
	actions := CRUDFlow(OpCreate, a.module, CRUDOptions{
		Page:        "/customer",
		Payload:     payload,
		Endpoint:    "/api/customer/leads",
		Description: "Prepare new lead form with captured details",
	})
	reply := fmt.Sprintf("I'll open the lead form on Customer 360 and prefill the name, contact, and source from your message "+
		"(%q). Once you confirm, I'll submit the record.", truncate(userMessage, 80))

	res := a.invoke(ctx, miraCtx, "customer__leads.search", map[string]interface{}{"query": payload["name"]})
	if dupes, ok := res.Data.([]map[string]interface{}); ok && res.Success && len(dupes) > 0 {
		reply += fmt.Sprintf(" Note: %d existing lead(s) already match %q.", len(dupes), payload["name"])
	}
	return a.respond("create_lead", "lead_management", reply, actions)
}

func (a *customerAgent) listLeads(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	filters := map[string]interface{}{
		"status":      pageString(miraCtx, "status", ""),
		"lead_source": pageString(miraCtx, "lead_source", ""),
	}
	res := a.invoke(ctx, miraCtx, "customer__leads.list", filters)

	actions := CRUDFlow(OpRead, a.module, CRUDOptions{Page: "/customer", Filters: filters})
	reply := "I'll surface the lead list with the filters you care about. Use the chips on the left to refine by status or source."
	if leads, ok := resultRecords(res); ok {
		reply = "You have " + plural(len(leads), "matching lead")
		if len(leads) > 0 {
			reply += " (" + joinField(leads, "name", 5) + ")"
		}
		reply += ". Use the chips on the left to refine by status or source."
	}
	return a.respond("list_leads", "lead_management", reply, actions)
}

func (a *customerAgent) searchLead(ctx context.Context, miraCtx *models.MiraContext, userMessage string) *models.MiraResponse {
	query := pageString(miraCtx, "searchTerm", "")
	if query == "" {
		if m := searchQuery.FindStringSubmatch(userMessage); m != nil {
			query = strings.TrimSpace(m[1])
		}
	}
	res := a.invoke(ctx, miraCtx, "customer__leads.search", map[string]interface{}{"query": query})

	prefill := map[string]interface{}{"search": query}
	shown := query
	if shown == "" {
		shown = "your criteria"
	}
	reply := fmt.Sprintf("Searching leads for %q and showing results in Customer 360.", shown)
	if matches, ok := resultRecords(res); ok {
		switch len(matches) {
		case 0:
			reply = fmt.Sprintf("No leads match %q yet. I've opened Customer 360 with the search applied.", shown)
		case 1:
			prefill["leadId"] = matches[0]["id"]
			reply = fmt.Sprintf("Found %s (%s, status %s) for %q in Customer 360.",
				field(matches[0], "name"), matches[0]["id"], field(matches[0], "status"), shown)
		default:
			reply = fmt.Sprintf("Found %d leads matching %q: %s.", len(matches), shown, joinField(matches, "name", 5))
		}
	}
	actions := []models.UIAction{
		NavigateAction(a.module, "/customer", map[string]interface{}{"search": query}),
		PrefillAction(prefill, false, ""),
	}
	return a.respond("search_lead", "lead_management", reply, actions)
}

func (a *customerAgent) viewLeadDetail(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	leadID := pageString(miraCtx, "leadId", "L-1001")
	res := a.invoke(ctx, miraCtx, "customer__leads.get", map[string]interface{}{"id": leadID})

	actions := []models.UIAction{NavigateAction(a.module, "/customer/detail/"+leadID, nil)}
	reply := fmt.Sprintf("Opening the lead record %s so you can review notes, tasks, and history.", leadID)
	if lead, ok := resultRecord(res); ok {
		reply = fmt.Sprintf("Opening %s's lead record (%s). Current status is %q, sourced from %s.",
			field(lead, "name"), leadID, field(lead, "status"), field(lead, "lead_source"))
	} else if res.Error != nil && res.Error.Code == tools.CodeNotFound {
		reply = fmt.Sprintf("I couldn't find lead %s. Opening Customer 360 so you can pick the right record.", leadID)
		actions = []models.UIAction{NavigateAction(a.module, "/customer", nil)}
	}
	return a.respond("view_lead_detail", "lead_detail", reply, actions)
}

func (a *customerAgent) updateLeadStatus(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	leadID := pageString(miraCtx, "leadId", "L-1001")
	status := pageString(miraCtx, "status", "qualified")
	res := a.invoke(ctx, miraCtx, "customer__leads.get", map[string]interface{}{"id": leadID})

	label := "lead " + leadID
	from := ""
	if lead, ok := resultRecord(res); ok {
		label = fmt.Sprintf("%s (%s)", field(lead, "name"), leadID)
		from = field(lead, "status")
	}
	payload := map[string]interface{}{"status": status}
	if from != "" {
		payload["previousStatus"] = from
	}
	actions := CRUDFlow(OpUpdate, a.module, CRUDOptions{
		Page:        "/customer/detail/" + leadID,
		Payload:     payload,
		Endpoint:    "/api/customer/leads/" + leadID,
		Description: "Confirm status change before submitting",
	})
	reply := fmt.Sprintf("Updating %s to status %q. I'll show you the summary first before submitting.", label, status)
	if from != "" {
		reply = fmt.Sprintf("Updating %s from %q to %q. I'll show you the summary first before submitting.", label, from, status)
	}
	return a.respond("update_lead_status", "lead_management", reply, actions)
}

func (a *customerAgent) scheduleAppointment(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	leadID := pageString(miraCtx, "leadId", "L-1001")
	payload := map[string]interface{}{
		"title":  "Meeting with " + pageString(miraCtx, "leadName", leadID),
		"leadId": leadID,
		"start":  pageString(miraCtx, "appointmentTime", ""),
	}

	actions := CRUDFlow(OpCreate, a.module, CRUDOptions{
		Page:        "/customer/detail/" + leadID,
		Payload:     payload,
		Endpoint:    "/api/customer/appointments",
		Description: "Prefill the appointment form",
	})
	reply := fmt.Sprintf("I'll open the appointment form for %s. Pick a slot and confirm to send the invite.", leadID)
	return a.respond("schedule_appointment", "appointments", reply, actions)
}

func (a *customerAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	leadName := pageString(miraCtx, "leadName", "a new prospect")
	warm := pageString(miraCtx, "status", "warm")
	overdue := pageString(miraCtx, "followUpStatus", "overdue")

	return []models.SuggestedIntent{
		a.suggestion("create_lead", "Capture a new lead",
			fmt.Sprintf("Prefill Customer 360 with %s.", leadName),
			fmt.Sprintf("Create a new lead for %s and fill any missing phone or source details you can infer.", leadName), 0.86),
		a.suggestion("list_leads", fmt.Sprintf("Review %s leads", warm),
			"Surface the filtered list so I can triage quickly.",
			fmt.Sprintf("Show me my %s leads in Customer 360 and highlight ones without recent activity.", warm), 0.74),
		a.suggestion("update_lead_status", fmt.Sprintf("Nudge %s follow-ups", overdue),
			"Open the detail view so I can update statuses.",
			fmt.Sprintf("Open the lead detail for my %s follow-ups and prepare the status dropdown so I can update them.", overdue), 0.71),
	}
}
