package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/advisorhub/mira/pkg/models"
)

// Options selects the adapters available to one request.
type Options struct {
	TenantConfig *models.TenantModelConfig
	Env          Env
	HTTPClient   *http.Client
}

// BuildCandidateAdapters returns adapters in preference order: the tenant's
// configured provider, then providers configured in the environment
// (OpenAI, Anthropic, Gemini, REST), then the mock. The result is never
// empty.
func BuildCandidateAdapters(ctx context.Context, opts Options) []Adapter {
	var out []Adapter
	if opts.TenantConfig != nil {
		a, err := BuildTenantAdapter(ctx, opts)
		switch {
		case err != nil:
			log.Warn().Err(err).
				Str("tenant", opts.TenantConfig.TenantID).
				Str("provider", opts.TenantConfig.Provider).
				Msg("Tenant adapter unavailable, skipping")
		case a != nil:
			out = append(out, a)
		}
	}

	env := opts.Env
	if env.get("OPENAI_API_KEY") != "" {
		if a, err := NewOpenAI(envProvider(env, "OPENAI", opts.HTTPClient)); err == nil {
			out = append(out, a)
		}
	}
	if env.get("ANTHROPIC_API_KEY") != "" {
		if a, err := NewAnthropic(envProvider(env, "ANTHROPIC", opts.HTTPClient)); err == nil {
			out = append(out, a)
		}
	}
	if env.get("GEMINI_API_KEY") != "" {
		a, err := NewGemini(ctx, envProvider(env, "GEMINI", opts.HTTPClient))
		if err != nil {
			log.Warn().Err(err).Msg("Gemini adapter unavailable, skipping")
		} else {
			out = append(out, a)
		}
	}
	if env.get("AGENT_REST_BASE_URL") != "" {
		if a, err := NewREST(envREST(env, opts.HTTPClient)); err == nil {
			out = append(out, a)
		}
	}

	return append(out, NewMock())
}

// BuildAgentAdapter returns the preferred candidate.
func BuildAgentAdapter(ctx context.Context, opts Options) Adapter {
	return BuildCandidateAdapters(ctx, opts)[0]
}

// BuildTenantAdapter builds the adapter named by the tenant config. Missing
// credentials fall back to the provider's environment variables. It
// returns nil, nil when no tenant config is set.
func BuildTenantAdapter(ctx context.Context, opts Options) (Adapter, error) {
	cfg := opts.TenantConfig
	if cfg == nil {
		return nil, nil
	}
	env := opts.Env
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	hosted := func(prefix string) ProviderConfig {
		pc := envProvider(env, prefix, opts.HTTPClient)
		pc.APIKey = firstNonEmpty(cfg.MetaString("apiKey"), pc.APIKey)
		pc.BaseURL = firstNonEmpty(cfg.MetaString("baseUrl"), pc.BaseURL)
		pc.Model = firstNonEmpty(cfg.Model, pc.Model)
		pc.SystemPrompt = firstNonEmpty(cfg.MetaString("systemPrompt"), pc.SystemPrompt)
		if cfg.Temperature != nil {
			pc.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens != nil {
			pc.MaxTokens = cfg.MaxTokens
		}
		return pc
	}

	switch provider {
	case "openai":
		return NewOpenAI(hosted("OPENAI"))
	case "anthropic":
		return NewAnthropic(hosted("ANTHROPIC"))
	case "gemini", "google":
		return NewGemini(ctx, hosted("GEMINI"))
	case "rest", "custom_rest":
		rc := envREST(env, opts.HTTPClient)
		rc.BaseURL = firstNonEmpty(cfg.MetaString("baseUrl"), rc.BaseURL)
		rc.APIKey = firstNonEmpty(cfg.MetaString("apiKey"), rc.APIKey)
		rc.ChatPath = firstNonEmpty(cfg.MetaString("chatPath"), rc.ChatPath)
		rc.HealthPath = firstNonEmpty(cfg.MetaString("healthPath"), rc.HealthPath)
		rc.SecretPath = firstNonEmpty(cfg.MetaString("secretPath"), rc.SecretPath)
		return NewREST(rc)
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// RequiresProvider reports whether the tenant config names a real provider.
func RequiresProvider(cfg *models.TenantModelConfig) bool {
	if cfg == nil {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(cfg.Provider))
	return p != "" && p != "mock"
}

func envProvider(env Env, prefix string, client *http.Client) ProviderConfig {
	pc := ProviderConfig{
		APIKey:       env.get(prefix + "_API_KEY"),
		BaseURL:      env.get(prefix + "_BASE_URL"),
		Model:        env.get(prefix + "_MODEL"),
		SystemPrompt: env.get(prefix + "_SYSTEM_PROMPT"),
		HTTPClient:   client,
	}
	if v, err := strconv.ParseFloat(env.get(prefix+"_TEMPERATURE"), 64); err == nil {
		pc.Temperature = &v
	}
	if v, err := strconv.Atoi(env.get(prefix + "_MAX_TOKENS")); err == nil && v > 0 {
		pc.MaxTokens = &v
	}
	return pc
}

func envREST(env Env, client *http.Client) RESTConfig {
	return RESTConfig{
		BaseURL:    env.get("AGENT_REST_BASE_URL"),
		APIKey:     env.get("AGENT_REST_API_KEY"),
		ChatPath:   env.get("AGENT_REST_CHAT_PATH"),
		HealthPath: env.get("AGENT_REST_HEALTH_PATH"),
		SecretPath: env.get("AGENT_REST_SECRET_PATH"),
		HTTPClient: client,
	}
}
