package agents

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

// Collections of the row store used by module tools.
const (
	colLeads        = "leads"
	colCustomers    = "customers"
	colAppointments = "appointments"
	colProducts     = "products"
	colProposals    = "proposals"
	colQuotes       = "quotes"
	colTasks        = "tasks"
	colEvents       = "events"
	colBroadcasts   = "broadcasts"
	colPlans        = "plans"
	colScenarios    = "scenarios"
	colTeamStats    = "team_stats"
)

// RegisterTools registers every module tool on reg, backed by rows.
func RegisterTools(reg *tools.Registry, rows store.RowStore) error {
	t := &toolSet{rows: rows, now: time.Now}
	for _, d := range t.descriptors() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

type toolSet struct {
	rows store.RowStore
	now  func() time.Time
}

func schema(required []string, props map[string]string) map[string]interface{} {
	p := make(map[string]interface{}, len(props))
	for name, typ := range props {
		p[name] = map[string]interface{}{"type": typ}
	}
	req := make([]interface{}, len(required))
	for i, r := range required {
		req[i] = r
	}
	return map[string]interface{}{"required": req, "properties": p}
}

func (t *toolSet) descriptors() []tools.ToolDescriptor {
	idOnly := schema([]string{"id"}, map[string]string{"id": "string"})
	return []tools.ToolDescriptor{
		// customer
		{Name: "customer__leads.list", Module: models.ModuleCustomer, Description: "List leads filtered by status or source",
			Handler: t.list(colLeads, "status", "lead_source")},
		{Name: "customer__leads.create", Module: models.ModuleCustomer, Description: "Create a new lead record",
			Schema:  schema([]string{"name"}, map[string]string{"name": "string", "contact_number": "string", "lead_source": "string"}),
			Handler: t.create(colLeads, "L", map[string]interface{}{"status": "new"})},
		{Name: "customer__leads.update", Module: models.ModuleCustomer, Description: "Update an existing lead by id",
			Schema: schema([]string{"id"}, map[string]string{"id": "string", "status": "string"}), Handler: t.update(colLeads)},
		{Name: "customer__leads.search", Module: models.ModuleCustomer, Description: "Search leads by keyword",
			Schema: schema(nil, map[string]string{"query": "string"}), Handler: t.search(colLeads, "query", "name", "contact_number", "email")},
		{Name: "customer__leads.get", Module: models.ModuleCustomer, Description: "Fetch one lead",
			Schema: idOnly, Handler: t.get(colLeads)},
		{Name: "customer__customers.get", Module: models.ModuleCustomer, Description: "Fetch customer summary",
			Schema: idOnly, Handler: t.get(colCustomers)},
		{Name: "customer__appointments.create", Module: models.ModuleCustomer, Description: "Book an appointment with a lead or customer",
			Schema:  schema([]string{"title"}, map[string]string{"title": "string", "leadId": "string", "start": "string"}),
			Handler: t.create(colAppointments, "A", map[string]interface{}{"status": "scheduled"})},

		// new business
		{Name: "new_business__proposals.create", Module: models.ModuleNewBusiness, Description: "Create a proposal draft",
			Schema:  schema([]string{"customerId", "productId"}, map[string]string{"customerId": "string", "productId": "string", "premium": "number"}),
			Handler: t.create(colProposals, "P", map[string]interface{}{"status": "draft", "stage": "fact_find"})},
		{Name: "new_business__proposals.list", Module: models.ModuleNewBusiness, Description: "List proposals by status or customer",
			Handler: t.list(colProposals, "status", "customerId", "stage")},
		{Name: "new_business__proposals.get", Module: models.ModuleNewBusiness, Description: "Fetch one proposal",
			Schema: idOnly, Handler: t.get(colProposals)},
		{Name: "new_business__proposals.update", Module: models.ModuleNewBusiness, Description: "Move a proposal to another stage",
			Schema: schema([]string{"id"}, map[string]string{"id": "string", "stage": "string"}), Handler: t.update(colProposals)},
		{Name: "new_business__quotes.generate", Module: models.ModuleNewBusiness, Description: "Generate a premium quote",
			Schema:  schema([]string{"productId"}, map[string]string{"productId": "string", "customerId": "string"}),
			Handler: t.generateQuote},
		{Name: "new_business__quotes.preview", Module: models.ModuleNewBusiness, Description: "Price a quote without saving it",
			Schema:  schema([]string{"productId"}, map[string]string{"productId": "string", "customerId": "string"}),
			Handler: t.previewQuote},
		{Name: "new_business__underwriting.submit", Module: models.ModuleNewBusiness, Description: "Submit a proposal to underwriting",
			Schema: schema([]string{"proposalId"}, map[string]string{"proposalId": "string"}), Handler: t.submitUnderwriting},
		{Name: "new_business__underwriting.checkStatus", Module: models.ModuleNewBusiness, Description: "Check underwriting status",
			Schema: schema([]string{"proposalId"}, map[string]string{"proposalId": "string"}), Handler: t.underwritingStatus},

		// product
		{Name: "product__products.search", Module: models.ModuleProduct, Description: "Search the product catalog",
			Schema: schema(nil, map[string]string{"keyword": "string", "category": "string"}), Handler: t.searchProducts},
		{Name: "product__products.getDetails", Module: models.ModuleProduct, Description: "Fetch product details",
			Schema: idOnly, Handler: t.get(colProducts)},
		{Name: "product__products.compare", Module: models.ModuleProduct, Description: "Compare products side by side",
			Schema: schema([]string{"ids"}, map[string]string{"ids": "array"}), Handler: t.compareProducts},
		{Name: "product__products.listCategories", Module: models.ModuleProduct, Description: "List product categories",
			Handler: t.listCategories},

		// analytics
		{Name: "analytics__performance.get", Module: models.ModuleAnalytics, Description: "Premium, proposals and conversion for a period",
			Schema: schema(nil, map[string]string{"advisorId": "string", "period": "string"}), Handler: t.performance},
		{Name: "analytics__funnel.get", Module: models.ModuleAnalytics, Description: "Counts per pipeline stage",
			Schema: schema(nil, map[string]string{"period": "string"}), Handler: t.funnel},
		{Name: "analytics__team.getStats", Module: models.ModuleAnalytics, Description: "Team averages and leaderboard",
			Handler: t.teamStats},
		{Name: "analytics__trend.getMonthly", Module: models.ModuleAnalytics, Description: "Monthly premium trend",
			Handler: t.monthlyTrend},

		// todo
		{Name: "todo__tasks.list", Module: models.ModuleTodo, Description: "List tasks",
			Schema: schema(nil, map[string]string{"status": "string", "overdue": "boolean"}), Handler: t.listTasks},
		{Name: "todo__tasks.create", Module: models.ModuleTodo, Description: "Create a task",
			Schema:  schema([]string{"title"}, map[string]string{"title": "string", "dueDate": "string", "customerId": "string"}),
			Handler: t.create(colTasks, "T", map[string]interface{}{"status": "pending"})},
		{Name: "todo__tasks.update", Module: models.ModuleTodo, Description: "Update a task",
			Schema: schema([]string{"id"}, map[string]string{"id": "string"}), Handler: t.update(colTasks)},
		{Name: "todo__tasks.markComplete", Module: models.ModuleTodo, Description: "Mark a task complete",
			Schema: idOnly, Handler: t.markComplete},
		{Name: "todo__tasks.get", Module: models.ModuleTodo, Description: "Fetch one task",
			Schema: idOnly, Handler: t.get(colTasks)},
		{Name: "todo__tasks.delete", Module: models.ModuleTodo, Description: "Delete a task",
			Schema: idOnly, Handler: t.remove(colTasks)},
		{Name: "todo__calendar.getEvents", Module: models.ModuleTodo, Description: "Calendar events within a range",
			Schema: schema(nil, map[string]string{"startDate": "string", "endDate": "string"}), Handler: t.calendarEvents},

		// broadcast
		{Name: "broadcast__broadcasts.list", Module: models.ModuleBroadcast, Description: "List broadcasts",
			Handler: t.list(colBroadcasts, "status")},
		{Name: "broadcast__broadcasts.create", Module: models.ModuleBroadcast, Description: "Draft a broadcast",
			Schema:  schema([]string{"title", "audience"}, map[string]string{"title": "string", "audience": "string"}),
			Handler: t.create(colBroadcasts, "B", map[string]interface{}{"status": "draft"})},
		{Name: "broadcast__broadcasts.get", Module: models.ModuleBroadcast, Description: "Fetch one broadcast",
			Schema: idOnly, Handler: t.get(colBroadcasts)},
		{Name: "broadcast__broadcasts.getStats", Module: models.ModuleBroadcast, Description: "Delivery, open and click metrics",
			Schema: idOnly, Handler: t.broadcastStats},

		// visualizer
		{Name: "visualizer__plans.generate", Module: models.ModuleVisualizer, Description: "Generate a financial plan projection",
			Schema: schema([]string{"customerId"}, map[string]string{"customerId": "string"}), Handler: t.generatePlan},
		{Name: "visualizer__plans.preview", Module: models.ModuleVisualizer, Description: "Project a financial plan without saving it",
			Schema: schema([]string{"customerId"}, map[string]string{"customerId": "string"}), Handler: t.previewPlan},
		{Name: "visualizer__scenarios.list", Module: models.ModuleVisualizer, Description: "List saved scenarios",
			Schema: schema([]string{"customerId"}, map[string]string{"customerId": "string"}), Handler: t.listScenarios},
		{Name: "visualizer__scenarios.compare", Module: models.ModuleVisualizer, Description: "Compare scenario projections",
			Schema: schema([]string{"scenarioIds"}, map[string]string{"scenarioIds": "array"}), Handler: t.compareScenarios},
	}
}

// ── Generic handlers ────────────────────────────────────────

func (t *toolSet) list(collection string, filterKeys ...string) tools.Handler {
	return func(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
		match := map[string]string{}
		for _, k := range filterKeys {
			if s := argString(in.Args, k); s != "" {
				match[k] = s
			}
		}
		rows, err := t.rows.ListRows(ctx, in.TenantID, collection, store.RowFilter{Match: match})
		if err != nil {
			return nil, err
		}
		return records(rows), nil
	}
}

func (t *toolSet) create(collection, prefix string, defaults map[string]interface{}) tools.Handler {
	return func(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
		data := make(map[string]interface{}, len(defaults)+len(in.Args))
		for k, v := range defaults {
			data[k] = v
		}
		for k, v := range in.Args {
			if v != nil {
				data[k] = v
			}
		}
		row := &store.Row{
			ID:         fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8])),
			TenantID:   in.TenantID,
			Collection: collection,
			Data:       data,
		}
		if err := t.rows.InsertRow(ctx, row); err != nil {
			return nil, err
		}
		return record(*row), nil
	}
}

func (t *toolSet) get(collection string) tools.Handler {
	return func(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
		row, err := t.rows.GetRow(ctx, in.TenantID, collection, argString(in.Args, "id"))
		if err != nil {
			return nil, err
		}
		return record(*row), nil
	}
}

func (t *toolSet) update(collection string) tools.Handler {
	return func(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
		data := make(map[string]interface{}, len(in.Args))
		for k, v := range in.Args {
			if k != "id" && v != nil {
				data[k] = v
			}
		}
		row := &store.Row{ID: argString(in.Args, "id"), TenantID: in.TenantID, Collection: collection, Data: data}
		if err := t.rows.UpdateRow(ctx, row); err != nil {
			return nil, err
		}
		return record(*row), nil
	}
}

func (t *toolSet) remove(collection string) tools.Handler {
	return func(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
		id := argString(in.Args, "id")
		if err := t.rows.DeleteRow(ctx, in.TenantID, collection, id); err != nil {
			return nil, err
		}
		return map[string]interface{}{"id": id, "deleted": true}, nil
	}
}

func (t *toolSet) search(collection, queryArg string, fields ...string) tools.Handler {
	return func(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
		q := strings.ToLower(argString(in.Args, queryArg))
		rows, err := t.rows.ListRows(ctx, in.TenantID, collection, store.RowFilter{})
		if err != nil {
			return nil, err
		}
		var out []map[string]interface{}
		for _, r := range rows {
			for _, f := range fields {
				if s, ok := r.Data[f].(string); ok && strings.Contains(strings.ToLower(s), q) {
					out = append(out, record(r))
					break
				}
			}
		}
		return out, nil
	}
}

// ── New business ────────────────────────────────────────────

// quoteData prices productId for a year without touching the quotes
// collection.
func (t *toolSet) quoteData(ctx context.Context, in tools.ExecuteInput) (map[string]interface{}, error) {
	productID := argString(in.Args, "productId")
	product, err := t.rows.GetRow(ctx, in.TenantID, colProducts, productID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"productId":   productID,
		"productName": product.Data["name"],
		"customerId":  argString(in.Args, "customerId"),
		"premium":     number(product.Data["premium"]) * 12,
		"coverage":    number(product.Data["coverage"]),
		"validUntil":  t.now().AddDate(0, 0, 30).UTC().Format(time.RFC3339),
	}, nil
}

func (t *toolSet) previewQuote(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	return t.quoteData(ctx, in)
}

func (t *toolSet) generateQuote(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	data, err := t.quoteData(ctx, in)
	if err != nil {
		return nil, err
	}
	quote := &store.Row{
		ID:         "Q-" + strings.ToUpper(uuid.NewString()[:8]),
		TenantID:   in.TenantID,
		Collection: colQuotes,
		Data:       data,
	}
	if err := t.rows.InsertRow(ctx, quote); err != nil {
		return nil, err
	}
	return record(*quote), nil
}

func (t *toolSet) submitUnderwriting(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	id := argString(in.Args, "proposalId")
	row := &store.Row{
		ID: id, TenantID: in.TenantID, Collection: colProposals,
		Data: map[string]interface{}{"status": "submitted", "stage": "underwriting", "uwStatus": "pending"},
	}
	if err := t.rows.UpdateRow(ctx, row); err != nil {
		return nil, err
	}
	return map[string]interface{}{"proposalId": id, "status": "pending", "notes": "Submitted to underwriting queue"}, nil
}

func (t *toolSet) underwritingStatus(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	id := argString(in.Args, "proposalId")
	row, err := t.rows.GetRow(ctx, in.TenantID, colProposals, id)
	if err != nil {
		return nil, err
	}
	status, _ := row.Data["uwStatus"].(string)
	if status == "" {
		status = "not_submitted"
	}
	return map[string]interface{}{"proposalId": id, "status": status}, nil
}

// ── Product ─────────────────────────────────────────────────

func (t *toolSet) searchProducts(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	keyword := strings.ToLower(argString(in.Args, "keyword"))
	category := argString(in.Args, "category")
	rows, err := t.rows.ListRows(ctx, in.TenantID, colProducts, store.RowFilter{})
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for _, r := range rows {
		if category != "" && !strings.EqualFold(fmt.Sprint(r.Data["category"]), category) {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(fmt.Sprint(r.Data["name"])), keyword) {
			continue
		}
		out = append(out, record(r))
	}
	return out, nil
}

func (t *toolSet) compareProducts(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	ids := argStrings(in.Args, "ids")
	premium := map[string]interface{}{}
	coverage := map[string]interface{}{}
	for _, id := range ids {
		row, err := t.rows.GetRow(ctx, in.TenantID, colProducts, id)
		if err != nil {
			return nil, err
		}
		premium[id] = fmt.Sprintf("$%v", row.Data["premium"])
		coverage[id] = row.Data["coverage"]
	}
	return map[string]interface{}{
		"ids": ids,
		"metrics": []map[string]interface{}{
			{"metric": "Premium", "values": premium},
			{"metric": "Coverage", "values": coverage},
		},
	}, nil
}

func (t *toolSet) listCategories(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	rows, err := t.rows.ListRows(ctx, in.TenantID, colProducts, store.RowFilter{})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		c, _ := r.Data["category"].(string)
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ── Analytics ───────────────────────────────────────────────

func (t *toolSet) performance(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	proposals, err := t.rows.ListRows(ctx, in.TenantID, colProposals, store.RowFilter{})
	if err != nil {
		return nil, err
	}
	var premium float64
	var converted int
	for _, p := range proposals {
		premium += number(p.Data["premium"])
		if p.Data["status"] != "draft" {
			converted++
		}
	}
	rate := 0.0
	if len(proposals) > 0 {
		rate = math.Round(float64(converted)/float64(len(proposals))*100) / 100
	}
	period := argString(in.Args, "period")
	if period == "" {
		period = "YTD"
	}
	return map[string]interface{}{
		"advisorId":      argString(in.Args, "advisorId"),
		"period":         period,
		"premium":        premium,
		"proposals":      len(proposals),
		"conversionRate": rate,
	}, nil
}

func (t *toolSet) funnel(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	stages := []struct{ label, collection, status string }{
		{"Leads", colLeads, ""},
		{"Qualified", colLeads, "qualified"},
		{"Proposals", colProposals, ""},
		{"Submitted", colProposals, "submitted"},
	}
	out := make([]map[string]interface{}, 0, len(stages))
	for _, s := range stages {
		f := store.RowFilter{}
		if s.status != "" {
			f.Match = map[string]string{"status": s.status}
		}
		rows, err := t.rows.ListRows(ctx, in.TenantID, s.collection, f)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{"stage": s.label, "count": len(rows)})
	}
	return map[string]interface{}{"period": argString(in.Args, "period"), "stages": out}, nil
}

func (t *toolSet) teamStats(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	row, err := t.rows.GetRow(ctx, in.TenantID, colTeamStats, "team")
	if err != nil {
		return nil, err
	}
	return record(*row), nil
}

func (t *toolSet) monthlyTrend(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	proposals, err := t.rows.ListRows(ctx, in.TenantID, colProposals, store.RowFilter{})
	if err != nil {
		return nil, err
	}
	byMonth := map[string]float64{}
	for _, p := range proposals {
		byMonth[p.CreatedAt.UTC().Format("2006-01")] += number(p.Data["premium"])
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	premiums := make([]float64, len(months))
	for i, m := range months {
		premiums[i] = byMonth[m]
	}
	return map[string]interface{}{"months": months, "premiums": premiums}, nil
}

// ── To-Do ───────────────────────────────────────────────────

func (t *toolSet) listTasks(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	match := map[string]string{}
	if s := argString(in.Args, "status"); s != "" {
		match["status"] = s
	}
	rows, err := t.rows.ListRows(ctx, in.TenantID, colTasks, store.RowFilter{Match: match})
	if err != nil {
		return nil, err
	}
	overdue, _ := in.Args["overdue"].(bool)
	now := t.now()
	var out []map[string]interface{}
	for _, r := range rows {
		if overdue {
			due, err := time.Parse(time.RFC3339, fmt.Sprint(r.Data["dueDate"]))
			if err != nil || due.After(now) {
				continue
			}
		}
		out = append(out, record(r))
	}
	return out, nil
}

func (t *toolSet) markComplete(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	row := &store.Row{
		ID: argString(in.Args, "id"), TenantID: in.TenantID, Collection: colTasks,
		Data: map[string]interface{}{"status": "completed", "completedAt": t.now().UTC().Format(time.RFC3339)},
	}
	if err := t.rows.UpdateRow(ctx, row); err != nil {
		return nil, err
	}
	return record(*row), nil
}

func (t *toolSet) calendarEvents(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	start := argString(in.Args, "startDate")
	end := argString(in.Args, "endDate")
	rows, err := t.rows.ListRows(ctx, in.TenantID, colEvents, store.RowFilter{})
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for _, r := range rows {
		s := fmt.Sprint(r.Data["start"])
		// RFC 3339 UTC timestamps order lexically.
		if (start != "" && s < start) || (end != "" && s > end) {
			continue
		}
		out = append(out, record(r))
	}
	return out, nil
}

// ── Broadcast ───────────────────────────────────────────────

func (t *toolSet) broadcastStats(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	id := argString(in.Args, "id")
	row, err := t.rows.GetRow(ctx, in.TenantID, colBroadcasts, id)
	if err != nil {
		return nil, err
	}
	sent := number(row.Data["sent"])
	opened := number(row.Data["opened"])
	stats := map[string]interface{}{
		"id":      id,
		"sent":    sent,
		"opened":  opened,
		"clicked": number(row.Data["clicked"]),
	}
	if sent > 0 {
		stats["openRate"] = math.Round(opened/sent*100) / 100
	}
	return stats, nil
}

// ── Visualizer ──────────────────────────────────────────────

const defaultGrowthRate = 0.06

func (t *toolSet) planData(ctx context.Context, in tools.ExecuteInput) (map[string]interface{}, error) {
	customerID := argString(in.Args, "customerId")
	customer, err := t.rows.GetRow(ctx, in.TenantID, colCustomers, customerID)
	if err != nil {
		return nil, err
	}
	annual := number(customer.Data["total_premium"])
	year := t.now().Year()
	var projections []map[string]interface{}
	for _, horizon := range []int{0, 5, 15} {
		projections = append(projections, map[string]interface{}{
			"year":  year + horizon,
			"value": math.Round(futureValue(annual, defaultGrowthRate, horizon)),
		})
	}
	return map[string]interface{}{
		"customerId":   customerID,
		"customerName": customer.Data["name"],
		"summary":      "Baseline retirement plan with balanced growth.",
		"projections":  projections,
	}, nil
}

func (t *toolSet) previewPlan(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	return t.planData(ctx, in)
}

func (t *toolSet) generatePlan(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	data, err := t.planData(ctx, in)
	if err != nil {
		return nil, err
	}
	plan := &store.Row{
		ID: "PL-" + strings.ToUpper(uuid.NewString()[:8]), TenantID: in.TenantID, Collection: colPlans,
		Data: data,
	}
	if err := t.rows.InsertRow(ctx, plan); err != nil {
		return nil, err
	}
	return record(*plan), nil
}

func (t *toolSet) listScenarios(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	rows, err := t.rows.ListRows(ctx, in.TenantID, colScenarios, store.RowFilter{
		Match: map[string]string{"customerId": argString(in.Args, "customerId")},
	})
	if err != nil {
		return nil, err
	}
	return records(rows), nil
}

// compareScenarios projects each scenario's annual premium over 30 years.
func (t *toolSet) compareScenarios(ctx context.Context, in tools.ExecuteInput) (interface{}, error) {
	ids := argStrings(in.Args, "scenarioIds")
	projected := map[string]interface{}{}
	paid := map[string]interface{}{}
	for _, id := range ids {
		row, err := t.rows.GetRow(ctx, in.TenantID, colScenarios, id)
		if err != nil {
			return nil, err
		}
		annual := number(row.Data["premium"]) * 12
		projected[id] = math.Round(annuityValue(annual, number(row.Data["growthRate"]), 30))
		paid[id] = annual * 30
	}
	return map[string]interface{}{
		"scenarios": ids,
		"table": []map[string]interface{}{
			{"metric": "Projected Value @ 65", "values": projected},
			{"metric": "Total Premium Paid", "values": paid},
		},
	}, nil
}

func futureValue(present, rate float64, years int) float64 {
	return present * math.Pow(1+rate, float64(years))
}

func annuityValue(payment, rate float64, years int) float64 {
	if rate == 0 {
		return payment * float64(years)
	}
	return payment * (math.Pow(1+rate, float64(years)) - 1) / rate
}

// ── Demo data ───────────────────────────────────────────────

//go:embed demo.yaml
var demoYAML []byte

// SeedDemoData loads the embedded demo records for tenant. Existing records
// are left untouched.
func SeedDemoData(ctx context.Context, rows store.RowStore, tenant string) error {
	var doc map[string][]map[string]interface{}
	if err := yaml.Unmarshal(demoYAML, &doc); err != nil {
		return fmt.Errorf("decode demo data: %w", err)
	}
	collections := make([]string, 0, len(doc))
	for c := range doc {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	for _, c := range collections {
		for _, data := range doc[c] {
			id := fmt.Sprint(data["id"])
			if _, err := rows.GetRow(ctx, tenant, c, id); err == nil {
				continue
			}
			if err := rows.InsertRow(ctx, &store.Row{ID: id, TenantID: tenant, Collection: c, Data: data}); err != nil {
				return fmt.Errorf("seed %s/%s: %w", c, id, err)
			}
		}
	}
	return nil
}

// ── Arg helpers ─────────────────────────────────────────────

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func argStrings(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func record(r store.Row) map[string]interface{} {
	out := make(map[string]interface{}, len(r.Data)+1)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	return out
}

func records(rows []store.Row) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, record(r))
	}
	return out
}
