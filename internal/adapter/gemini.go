package adapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/advisorhub/mira/pkg/models"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates replies through the Gemini API.
type Gemini struct {
	cfg    ProviderConfig
	client *genai.Client
}

// NewGemini builds a Gemini adapter. APIKey is required.
func NewGemini(ctx context.Context, cfg ProviderConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key: %w", ErrMissingProviderConfig)
	}
	cfg.Model = firstNonEmpty(cfg.Model, defaultGeminiModel)

	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{cfg: cfg, client: client}, nil
}

func (*Gemini) ID() string   { return "gemini" }
func (*Gemini) Name() string { return "Gemini" }

func (a *Gemini) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	temperature, maxTokens := generation(req, a.cfg.temperature(), a.cfg.maxTokens())
	system, rest := splitSystem(req.Messages)
	if system == "" {
		system = a.cfg.SystemPrompt
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.cfg.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	res := &models.ChatResult{Message: assistant(resp.Text()), ToolCalls: []models.ToolCall{}}
	if resp.UsageMetadata != nil {
		res.TokensUsed = tokens(int64(resp.UsageMetadata.TotalTokenCount))
	}
	return res, nil
}

func (a *Gemini) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.AgentEvent, error) {
	res, err := a.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	return replay(res), nil
}

func (*Gemini) GetClientSecret(context.Context) (string, error) { return "", ErrNoClientSecret }

func (a *Gemini) Health(ctx context.Context) bool {
	_, err := a.client.Models.Get(ctx, a.cfg.Model, nil)
	return err == nil
}
