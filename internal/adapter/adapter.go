// Package adapter connects the chat surface to LLM backends.
//
// Each backend is an Adapter. BuildCandidateAdapters orders the adapters
// available for a tenant, and Client dispatches through the first healthy
// one, swapping to the next candidate when a health probe fails.
package adapter

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/advisorhub/mira/pkg/models"
)

var (
	// ErrNoClientSecret is returned by adapters that do not issue client secrets.
	ErrNoClientSecret = errors.New("adapter does not expose client secrets")
	// ErrMissingProviderConfig is returned when a provider lacks the
	// credentials or endpoint it needs.
	ErrMissingProviderConfig = errors.New("missing provider configuration")
)

// Adapter is one LLM backend.
type Adapter interface {
	ID() string
	Name() string
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error)
	// StreamChat returns a channel that ends with a terminal event or closes
	// when ctx is done.
	StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.AgentEvent, error)
	GetClientSecret(ctx context.Context) (string, error)
	Health(ctx context.Context) bool
}

// Info identifies an adapter.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Env looks up configuration by key. An empty result means unset.
type Env func(key string) string

// OSEnv reads the process environment.
func OSEnv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func (e Env) get(key string) string {
	if e == nil {
		return OSEnv(key)
	}
	return strings.TrimSpace(e(key))
}

// Generation defaults shared by the hosted providers.
const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 512
)

var defaultHTTPClient = &http.Client{Timeout: 120 * time.Second}

// generation resolves temperature and max tokens: request, then adapter.
func generation(req *models.ChatRequest, temperature float64, maxTokens int) (float64, int) {
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	return temperature, maxTokens
}

// splitSystem separates system messages from the conversation.
func splitSystem(msgs []models.ChatMessage) (system string, rest []models.ChatMessage) {
	var parts []string
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}

// replay streams a completed chat result as delta, completed, done.
func replay(res *models.ChatResult) <-chan models.AgentEvent {
	id := uuid.NewString()
	ch := make(chan models.AgentEvent, 3)
	ch <- models.AgentEvent{Type: models.EventMessageDelta, Data: models.MessageDeltaData{Delta: res.Message.Content, MessageID: id}}
	ch <- models.AgentEvent{Type: models.EventMessageCompleted, Data: models.MessageCompletedData{
		Message: res.Message, MessageID: id, FinishReason: "stop",
	}}
	ch <- models.AgentEvent{Type: models.EventDone, Data: models.DoneData{MessageID: id}}
	close(ch)
	return ch
}

func assistant(content string) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleAssistant, Content: content, HasContent: true}
}

func tokens(n int64) *int64 {
	if n <= 0 {
		return nil
	}
	return &n
}

func trimSlash(s string) string { return strings.TrimRight(s, "/") }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
