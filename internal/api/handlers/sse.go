package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/advisorhub/mira/pkg/models"
)

// sseWriter writes AgentEvents as server-sent events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE sends the event-stream headers. It fails when w cannot flush.
func startSSE(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) send(ev models.AgentEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) sendError(message, code, typ string) error {
	return s.send(models.AgentEvent{
		Type: models.EventError,
		Data: models.ErrorData{Error: models.ErrorDetail{Message: message, Code: code, Type: typ}},
	})
}

// replyEvents is the event sequence for a reply produced in-process.
func replyEvents(messageID string, r *reply) []models.AgentEvent {
	events := []models.AgentEvent{{
		Type: models.EventMessageDelta,
		Data: models.MessageDeltaData{Delta: r.content, MessageID: messageID},
	}}
	for _, tc := range r.toolCalls {
		events = append(events, models.AgentEvent{
			Type: models.EventToolCallCreated,
			Data: models.ToolCallCreatedData{ToolCall: tc, MessageID: messageID},
		})
	}
	return append(events,
		models.AgentEvent{
			Type: models.EventMessageCompleted,
			Data: models.MessageCompletedData{
				Message:      models.ChatMessage{Role: models.RoleAssistant, Content: r.content},
				MessageID:    messageID,
				FinishReason: "stop",
				Metadata:     r.metadata,
			},
		},
		models.AgentEvent{Type: models.EventDone, Data: models.DoneData{MessageID: messageID}},
	)
}
