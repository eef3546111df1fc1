package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

const productPrompt = `You are a product catalog expert.
Help advisors find products, review details, and highlight key differentiators.
Always respond with next UI navigation and any filters applied.`

type productAgent struct{ base }

func newProductAgent(b base) *productAgent { return &productAgent{b} }

func (a *productAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, userMessage string) (*models.MiraResponse, error) {
	switch intent {
	case "list_by_category":
		return a.listByCategory(ctx, miraCtx), nil
	case "search_by_keyword":
		return a.search(ctx, miraCtx, userMessage), nil
	case "view_product_detail":
		return a.viewDetail(ctx, miraCtx), nil
	case "compare_products":
		return a.compare(ctx, miraCtx), nil
	}
	return a.fallback(intent, "I'll open the product workspace for you."), nil
}

func (a *productAgent) listByCategory(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	category := pageString(miraCtx, "category", "Protection")
	res := a.invoke(ctx, miraCtx, "product__products.search", map[string]interface{}{"keyword": "", "category": category})

	actions := []models.UIAction{
		NavigateAction(a.module, "/product", map[string]interface{}{"category": category}),
		PrefillAction(map[string]interface{}{"category": category}, false, ""),
	}
	reply := fmt.Sprintf("Showing %s products with filters applied in the catalog.", category)
	if products, ok := resultRecords(res); ok {
		if len(products) == 0 {
			reply = fmt.Sprintf("There are no %s products in the catalog right now. Opening the catalog so you can broaden the filter.", category)
		} else {
			reply = fmt.Sprintf("Showing %s: %s.", plural(len(products), category+" product"), joinField(products, "name", 5))
		}
	}
	return a.respond("list_by_category", "catalog", reply, actions)
}

func (a *productAgent) search(ctx context.Context, miraCtx *models.MiraContext, userMessage string) *models.MiraResponse {
	keyword := pageString(miraCtx, "keyword", strings.TrimSpace(userMessage))
	res := a.invoke(ctx, miraCtx, "product__products.search", map[string]interface{}{"keyword": keyword})

	actions := []models.UIAction{
		NavigateAction(a.module, "/product", map[string]interface{}{"search": keyword}),
		PrefillAction(map[string]interface{}{"search": keyword}, false, ""),
	}
	reply := fmt.Sprintf("Searching for %q and highlighting the closest matches.", keyword)
	if matches, ok := res.Data.([]map[string]interface{}); ok && res.Success && len(matches) > 0 {
		reply = fmt.Sprintf("Found %d products matching %q. Highlighting the closest matches.", len(matches), keyword)
	}
	return a.respond("search_by_keyword", "catalog", reply, actions)
}

func (a *productAgent) viewDetail(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	productID := pageString(miraCtx, "productId", "PR-1001")
	res := a.invoke(ctx, miraCtx, "product__products.getDetails", map[string]interface{}{"id": productID})

	actions := []models.UIAction{NavigateAction(a.module, "/product/detail/"+productID, nil)}
	reply := fmt.Sprintf("Opening the detail page for %s with coverage, riders, and suitability summary.", productID)
	if p, ok := resultRecord(res); ok {
		reply = fmt.Sprintf("%s (%s) costs %s a month for %s of coverage. Opening the detail page with riders and suitability.",
			field(p, "name"), field(p, "category"), money(p["premium"]), money(p["coverage"]))
		if riders := riderNames(p["riders"]); len(riders) > 0 {
			reply += " Available riders: " + strings.Join(riders, ", ") + "."
		}
	}
	return a.respond("view_product_detail", "details", reply, actions)
}

func riderNames(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a *productAgent) compare(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	ids := miraCtx.PageStrings("productIds", []string{"PR-1001", "PR-1002"})
	res := a.invoke(ctx, miraCtx, "product__products.compare", map[string]interface{}{"ids": ids})

	params := map[string]interface{}{"ids": strings.Join(ids, ",")}
	reply := fmt.Sprintf("Stacking %d products side-by-side. Use the comparison tray to adjust rows.", len(ids))
	if cmp, ok := resultRecord(res); ok {
		if metrics, _ := cmp["metrics"].([]map[string]interface{}); len(metrics) > 0 {
			premiums, _ := metrics[0]["values"].(map[string]interface{})
			parts := make([]string, 0, len(ids))
			for _, id := range ids {
				parts = append(parts, fmt.Sprintf("%s at %v", id, premiums[id]))
			}
			reply = fmt.Sprintf("Stacking %d products side-by-side. Monthly premiums: %s. Use the comparison tray to adjust rows.",
				len(ids), strings.Join(parts, ", "))
		}
	}
	actions := []models.UIAction{NavigateAction(a.module, "/product/compare", params)}
	return a.respond("compare_products", "comparison", reply, actions)
}

func (a *productAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	category := pageString(miraCtx, "category", "protection")
	keyword := pageString(miraCtx, "keyword", "income protection")
	focus := pageString(miraCtx, "productId", "PR-1001")

	return []models.SuggestedIntent{
		a.suggestion("list_by_category", fmt.Sprintf("Browse %s plans", category),
			"Filter the catalog so I only see relevant products.",
			fmt.Sprintf("Show me %s products in the catalog and highlight any best sellers.", category), 0.78),
		a.suggestion("search_by_keyword", fmt.Sprintf("Search for “%s”", keyword),
			"Find matching products and surface key notes.",
			fmt.Sprintf("Search the product catalog for %q and summarize the top 3 matches.", keyword), 0.73),
		a.suggestion("view_product_detail", fmt.Sprintf("Open %s details", focus),
			"Jump directly into riders and suitability.",
			fmt.Sprintf("Open the product detail page for %s including availability notes.", focus), 0.69),
	}
}
