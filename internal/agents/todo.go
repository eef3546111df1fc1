package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/advisorhub/mira/pkg/models"
)

const todoPrompt = `You are a task and calendar management specialist.
Keep advisors organized by listing tasks, logging follow-ups, and surfacing calendar events.`

type todoAgent struct {
	base
	now func() time.Time
}

func newToDoAgent(b base) *todoAgent { return &todoAgent{base: b, now: time.Now} }

func (a *todoAgent) Execute(ctx context.Context, intent string, miraCtx *models.MiraContext, _ string) (*models.MiraResponse, error) {
	switch intent {
	case "list_tasks":
		return a.listTasks(ctx, miraCtx), nil
	case "create_task":
		return a.createTask(ctx, miraCtx), nil
	case "mark_complete":
		return a.markComplete(ctx, miraCtx), nil
	case "delete_task":
		return a.deleteTask(ctx, miraCtx), nil
	case "view_calendar":
		return a.viewCalendar(ctx, miraCtx), nil
	}
	return a.fallback(intent, "Opening To-Do workspace."), nil
}

func (a *todoAgent) listTasks(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	filters := map[string]interface{}{
		"status":  pageString(miraCtx, "status", "pending"),
		"overdue": pageBool(miraCtx, "overdue"),
	}
	res := a.invoke(ctx, miraCtx, "todo__tasks.list", filters)

	reply := "Listing your pending items with overdue filter applied so you can triage quickly."
	if tasks, ok := res.Data.([]map[string]interface{}); ok && res.Success {
		reply = fmt.Sprintf("You have %d %s tasks. Listing them so you can triage quickly.", len(tasks), filters["status"])
	}
	actions := []models.UIAction{NavigateAction(a.module, "/todo", filters)}
	return a.respond("list_tasks", "tasks", reply, actions)
}

func (a *todoAgent) createTask(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	payload := map[string]interface{}{
		"title":      pageString(miraCtx, "title", "Follow up with client"),
		"dueDate":    pageString(miraCtx, "dueDate", a.now().UTC().Format(time.RFC3339)),
		"customerId": pageString(miraCtx, "customerId", ""),
	}
	if payload["customerId"] == "" {
		delete(payload, "customerId")
	}

	actions := CRUDFlow(OpCreate, a.module, CRUDOptions{
		Page:        "/todo",
		Payload:     payload,
		Description: "Prefill the new task modal",
	})
	reply := "I'll open the To-Do modal with your task details prefilled for quick confirmation."
	return a.respond("create_task", "tasks", reply, actions)
}

func (a *todoAgent) markComplete(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	taskID := pageString(miraCtx, "taskId", "T-1")
	res := a.invoke(ctx, miraCtx, "todo__tasks.get", map[string]interface{}{"id": taskID})

	payload := map[string]interface{}{"id": taskID, "status": "completed"}
	label := taskID
	reply := ""
	if task, ok := resultRecord(res); ok {
		if title := field(task, "title"); title != "" {
			label = fmt.Sprintf("%s (%q)", taskID, title)
			payload["title"] = title
		}
		if field(task, "status") == "completed" {
			reply = fmt.Sprintf("Task %s is already completed. I'll refresh your list so you can confirm.", label)
		}
	}
	if reply == "" {
		reply = fmt.Sprintf("Marking task %s as done and refreshing your list.", label)
	}

	actions := CRUDFlow(OpUpdate, a.module, CRUDOptions{
		Page:        "/todo",
		Payload:     payload,
		Endpoint:    "/api/todo/tasks/" + taskID,
		Description: "Confirm completion",
	})
	return a.respond("mark_complete", "tasks", reply, actions)
}

func (a *todoAgent) deleteTask(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	taskID := pageString(miraCtx, "taskId", "T-1")
	label := taskID
	res := a.invoke(ctx, miraCtx, "todo__tasks.get", map[string]interface{}{"id": taskID})
	if task, ok := res.Data.(map[string]interface{}); ok && res.Success {
		if title, _ := task["title"].(string); title != "" {
			label = fmt.Sprintf("%s (%q)", taskID, title)
		}
	}

	actions := CRUDFlow(OpDelete, a.module, CRUDOptions{
		Payload:     map[string]interface{}{"id": taskID},
		Endpoint:    "/api/todo/tasks/" + taskID,
		Description: "Delete task " + taskID,
	})
	reply := fmt.Sprintf("Task %s will be deleted once you confirm.", label)
	return a.respond("delete_task", "tasks", reply, actions)
}

func (a *todoAgent) viewCalendar(ctx context.Context, miraCtx *models.MiraContext) *models.MiraResponse {
	now := a.now().UTC()
	start := pageString(miraCtx, "startDate", now.Format(time.RFC3339))
	end := pageString(miraCtx, "endDate", now.Add(7*24*time.Hour).Format(time.RFC3339))
	res := a.invoke(ctx, miraCtx, "todo__calendar.getEvents", map[string]interface{}{"startDate": start, "endDate": end})

	actions := []models.UIAction{NavigateAction(a.module, "/todo/calendar", map[string]interface{}{"startDate": start, "endDate": end})}
	reply := "Switching to calendar view and highlighting events for the selected range."
	if events, ok := resultRecords(res); ok {
		if len(events) == 0 {
			reply = "Your calendar is clear for the selected range. Switching to calendar view."
		} else {
			reply = fmt.Sprintf("You have %s in the selected range: %s. Switching to calendar view.",
				plural(len(events), "event"), joinField(events, "title", 5))
		}
	}
	return a.respond("view_calendar", "calendar", reply, actions)
}

func (a *todoAgent) GenerateSuggestions(miraCtx *models.MiraContext) []models.SuggestedIntent {
	out := []models.SuggestedIntent{
		a.suggestion("list_tasks", "Triage pending tasks",
			"See everything that still needs attention.",
			"Show my pending tasks and flag anything overdue.", 0.79),
		a.suggestion("create_task", "Add a follow-up",
			"Capture the next step before it slips.",
			"Create a task to follow up with my client tomorrow.", 0.7),
	}
	if miraCtx != nil && miraCtx.Page == "/todo/calendar" {
		out = append([]models.SuggestedIntent{
			a.suggestion("view_calendar", "Plan this week",
				"Review upcoming meetings and free slots.",
				"Show my calendar for the next 7 days.", 0.81),
		}, out...)
	}
	return out
}
