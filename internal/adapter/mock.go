package adapter

import (
	"context"

	"github.com/google/uuid"

	"github.com/advisorhub/mira/pkg/models"
)

const (
	mockPrefix     = "[mock-response] "
	mockEchoLimit  = 400
	mockChunkRunes = 32
	mockSecret     = "mock-client-secret"
)

// Mock is a deterministic adapter that echoes the latest user message.
// It is always healthy and is the last candidate of every client.
type Mock struct{}

// NewMock returns the mock adapter.
func NewMock() *Mock { return &Mock{} }

func (*Mock) ID() string   { return "mock" }
func (*Mock) Name() string { return "mock-adapter" }

func (*Mock) reply(req *models.ChatRequest) string {
	msg := []rune(req.LastUserMessage())
	if len(msg) > mockEchoLimit {
		msg = msg[:mockEchoLimit]
	}
	return mockPrefix + string(msg)
}

func (m *Mock) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &models.ChatResult{Message: assistant(m.reply(req)), ToolCalls: []models.ToolCall{}}, nil
}

// StreamChat emits the reply in 32-rune deltas, then completed and done.
func (m *Mock) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.AgentEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := m.reply(req)
	runes := []rune(content)

	var chunks []string
	for i := 0; i < len(runes); i += mockChunkRunes {
		end := i + mockChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}

	ch := make(chan models.AgentEvent, len(chunks)+2)
	for _, c := range chunks {
		ch <- models.AgentEvent{Type: models.EventMessageDelta, Data: models.MessageDeltaData{Delta: c}}
	}
	id := uuid.NewString()
	ch <- models.AgentEvent{Type: models.EventMessageCompleted, Data: models.MessageCompletedData{
		Message: assistant(content), MessageID: id, FinishReason: "stop",
	}}
	ch <- models.AgentEvent{Type: models.EventDone, Data: models.DoneData{MessageID: id}}
	close(ch)
	return ch, nil
}

func (*Mock) GetClientSecret(context.Context) (string, error) { return mockSecret, nil }

func (*Mock) Health(context.Context) bool { return true }
