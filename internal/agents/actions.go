package agents

import (
	"fmt"
	"net/http"

	"github.com/advisorhub/mira/pkg/models"
)

// CRUDOperation selects an action template.
type CRUDOperation string

const (
	OpCreate CRUDOperation = "create"
	OpRead   CRUDOperation = "read"
	OpUpdate CRUDOperation = "update"
	OpDelete CRUDOperation = "delete"
)

// CRUDOptions customizes CRUDFlow. Zero values fall back to the module
// home page and /api/<module>/<op>.
type CRUDOptions struct {
	Page     string
	Filters  map[string]interface{}
	Payload  map[string]interface{}
	Endpoint string
	// Confirm forces confirm_required on the execute action. Updates and
	// deletes always confirm.
	Confirm     bool
	Description string
}

// NavigateAction opens page in module. Nil and empty-string params are
// dropped; an empty param set is omitted.
func NavigateAction(module models.MiraModule, page string, params map[string]interface{}) models.UIAction {
	var clean map[string]interface{}
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if clean == nil {
			clean = make(map[string]interface{}, len(params))
		}
		clean[k] = v
	}
	return models.UIAction{
		Action: models.ActionNavigate,
		Module: module,
		Page:   page,
		Params: clean,
	}
}

// PrefillAction fills the on-screen form with payload.
func PrefillAction(payload map[string]interface{}, confirm bool, description string) models.UIAction {
	return models.UIAction{
		Action:          models.ActionFrontendPrefill,
		Payload:         payload,
		ConfirmRequired: confirm,
		Description:     description,
	}
}

// ExecuteAction calls a backend endpoint. GET requests become
// submit_action, everything else execute.
func ExecuteAction(method, endpoint string, payload map[string]interface{}, confirm bool, description string) models.UIAction {
	action := models.ActionExecute
	if method == http.MethodGet {
		action = models.ActionSubmit
	}
	return models.UIAction{
		Action:          action,
		APICall:         &models.APICall{Method: method, Endpoint: endpoint, Payload: payload},
		ConfirmRequired: confirm,
		Description:     description,
	}
}

// CRUDFlow builds the ordered actions for a CRUD operation:
//
//	read   → navigate
//	delete → execute DELETE (confirm)
//	create → navigate, prefill, execute POST
//	update → navigate, prefill (confirm), execute PATCH (confirm)
func CRUDFlow(op CRUDOperation, module models.MiraModule, opts CRUDOptions) []models.UIAction {
	page := opts.Page
	if page == "" {
		page = module.HomePage()
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("/api/%s/%s", module, op)
	}

	switch op {
	case OpRead:
		return []models.UIAction{NavigateAction(module, page, opts.Filters)}
	case OpDelete:
		desc := opts.Description
		if desc == "" {
			desc = "Confirm deletion"
		}
		return []models.UIAction{ExecuteAction(http.MethodDelete, endpoint, opts.Payload, true, desc)}
	}

	actions := []models.UIAction{NavigateAction(module, page, opts.Filters)}
	if len(opts.Payload) > 0 {
		actions = append(actions, PrefillAction(opts.Payload, op == OpUpdate, opts.Description))
	}
	method := http.MethodPost
	if op == OpUpdate {
		method = http.MethodPatch
	}
	actions = append(actions, ExecuteAction(method, endpoint, opts.Payload, opts.Confirm || op == OpUpdate, opts.Description))
	return actions
}
