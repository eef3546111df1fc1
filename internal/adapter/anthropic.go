package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

const (
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// Anthropic speaks the messages API.
type Anthropic struct {
	cfg ProviderConfig
}

// NewAnthropic builds an Anthropic adapter. APIKey is required.
func NewAnthropic(cfg ProviderConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key: %w", ErrMissingProviderConfig)
	}
	cfg.BaseURL = trimSlash(firstNonEmpty(cfg.BaseURL, defaultAnthropicBaseURL))
	cfg.Model = firstNonEmpty(cfg.Model, defaultAnthropicModel)
	return &Anthropic{cfg: cfg}, nil
}

func (*Anthropic) ID() string   { return "anthropic" }
func (*Anthropic) Name() string { return "Anthropic" }

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Anthropic) setHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("x-api-key", a.cfg.APIKey)
	r.Header.Set("anthropic-version", anthropicVersion)
}

func (a *Anthropic) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	temperature, maxTokens := generation(req, a.cfg.temperature(), a.cfg.maxTokens())
	system, rest := splitSystem(req.Messages)
	if system == "" {
		system = a.cfg.SystemPrompt
	}
	msgs := make([]anthropicMessage, 0, len(rest))
	for _, m := range rest {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, anthropicMessage{Role: role, Content: []anthropicBlock{{Type: "text", Text: m.Content}}})
	}

	body, err := json.Marshal(anthropicRequest{
		Model: a.cfg.Model, Messages: msgs, System: system, Temperature: temperature, MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	a.setHeaders(httpReq)

	resp, err := a.cfg.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, errorMessage(b))
	}
	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return &models.ChatResult{
		Message:    assistant(text.String()),
		ToolCalls:  []models.ToolCall{},
		TokensUsed: tokens(out.Usage.OutputTokens),
	}, nil
}

func (a *Anthropic) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.AgentEvent, error) {
	res, err := a.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	return replay(res), nil
}

func (*Anthropic) GetClientSecret(context.Context) (string, error) { return "", ErrNoClientSecret }

// Health lists models, which needs a valid key but no generation.
func (a *Anthropic) Health(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	a.setHeaders(httpReq)
	resp, err := a.cfg.httpClient().Do(httpReq)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
