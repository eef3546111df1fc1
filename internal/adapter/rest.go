package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/advisorhub/mira/pkg/models"
)

const (
	defaultRESTChatPath   = "/agent/chat"
	defaultRESTHealthPath = "/agent/health"
	defaultRESTSecretPath = "/agent/client-secret"
)

// RESTConfig configures a custom agent backend.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	ChatPath   string
	HealthPath string
	SecretPath string
	HTTPClient *http.Client
}

// REST forwards chat requests to a custom backend speaking the chat
// result shape directly.
type REST struct {
	cfg    RESTConfig
	client *http.Client
}

// NewREST builds a REST adapter. BaseURL is required.
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest: base url: %w", ErrMissingProviderConfig)
	}
	cfg.BaseURL = trimSlash(cfg.BaseURL)
	cfg.ChatPath = firstNonEmpty(cfg.ChatPath, defaultRESTChatPath)
	cfg.HealthPath = firstNonEmpty(cfg.HealthPath, defaultRESTHealthPath)
	cfg.SecretPath = firstNonEmpty(cfg.SecretPath, defaultRESTSecretPath)
	client := cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	return &REST{cfg: cfg, client: client}, nil
}

func (*REST) ID() string   { return "rest" }
func (*REST) Name() string { return "CustomREST" }

func (a *REST) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("rest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	return req, nil
}

type restChatResponse struct {
	Message    *models.ChatMessage `json:"message"`
	ToolCalls  []models.ToolCall   `json:"toolCalls"`
	TokensUsed *int64              `json:"tokensUsed"`
}

func (a *REST) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rest: encode request: %w", err)
	}
	httpReq, err := a.newRequest(ctx, http.MethodPost, a.cfg.ChatPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rest: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("rest: status %d: %s", resp.StatusCode, string(b))
	}
	var out restChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("rest: decode response: %w", err)
	}

	msg := assistant("")
	if out.Message != nil {
		msg = *out.Message
	}
	calls := out.ToolCalls
	if calls == nil {
		calls = []models.ToolCall{}
	}
	return &models.ChatResult{Message: msg, ToolCalls: calls, TokensUsed: out.TokensUsed}, nil
}

// StreamChat replays the batch result as one delta followed by done.
func (a *REST) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.AgentEvent, error) {
	res, err := a.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ch := make(chan models.AgentEvent, 2)
	ch <- models.AgentEvent{Type: models.EventMessageDelta, Data: models.MessageDeltaData{Delta: res.Message.Content, MessageID: id}}
	ch <- models.AgentEvent{Type: models.EventDone, Data: models.DoneData{MessageID: id}}
	close(ch)
	return ch, nil
}

func (a *REST) GetClientSecret(ctx context.Context) (string, error) {
	httpReq, err := a.newRequest(ctx, http.MethodGet, a.cfg.SecretPath, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("rest: secret request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rest: secret endpoint returned %d", resp.StatusCode)
	}
	var out struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("rest: decode secret: %w", err)
	}
	if out.Secret == "" {
		return "", fmt.Errorf("rest: secret payload missing secret field")
	}
	return out.Secret, nil
}

func (a *REST) Health(ctx context.Context) bool {
	httpReq, err := a.newRequest(ctx, http.MethodGet, a.cfg.HealthPath, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
