package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/advisorhub/mira/pkg/models"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// ProviderConfig configures a hosted LLM provider.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string
	HTTPClient   *http.Client
}

func (c ProviderConfig) temperature() float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return defaultTemperature
}

func (c ProviderConfig) maxTokens() int {
	if c.MaxTokens != nil {
		return *c.MaxTokens
	}
	return defaultMaxTokens
}

func (c ProviderConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

// OpenAI speaks the chat completions API.
type OpenAI struct {
	cfg ProviderConfig
}

// NewOpenAI builds an OpenAI adapter. APIKey is required.
func NewOpenAI(cfg ProviderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key: %w", ErrMissingProviderConfig)
	}
	cfg.BaseURL = trimSlash(firstNonEmpty(cfg.BaseURL, defaultOpenAIBaseURL))
	cfg.Model = firstNonEmpty(cfg.Model, defaultOpenAIModel)
	return &OpenAI{cfg: cfg}, nil
}

func (*OpenAI) ID() string   { return "openai" }
func (*OpenAI) Name() string { return "OpenAI" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func errorMessage(body []byte) string {
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func (a *OpenAI) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	temperature, maxTokens := generation(req, a.cfg.temperature(), a.cfg.maxTokens())
	msgs := make([]openAIMessage, 0, len(req.Messages)+1)
	if a.cfg.SystemPrompt != "" {
		msgs = append(msgs, openAIMessage{Role: string(models.RoleSystem), Content: a.cfg.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(openAIRequest{Model: a.cfg.Model, Messages: msgs, Temperature: temperature, MaxTokens: maxTokens})
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.cfg.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, errorMessage(b))
	}
	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	res := &models.ChatResult{Message: assistant(""), ToolCalls: []models.ToolCall{}, TokensUsed: tokens(out.Usage.TotalTokens)}
	if len(out.Choices) == 0 {
		return res, nil
	}
	choice := out.Choices[0].Message
	res.Message = assistant(choice.Content)
	for _, tc := range choice.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		res.ToolCalls = append(res.ToolCalls, models.ToolCall{
			ID: id, Type: "function",
			Function: models.ToolCallFunction{Name: tc.Function.Name, Arguments: args},
		})
	}
	return res, nil
}

func (a *OpenAI) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.AgentEvent, error) {
	res, err := a.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	return replay(res), nil
}

func (*OpenAI) GetClientSecret(context.Context) (string, error) { return "", ErrNoClientSecret }

// Health checks that the configured model is reachable.
func (a *OpenAI) Health(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/models/"+url.PathEscape(a.cfg.Model), nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	resp, err := a.cfg.httpClient().Do(httpReq)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
