// Package handlers implements the HTTP handlers for the Mira chat surface.
//
// Every chat mode is served by one endpoint; the mode field of the request
// body selects the handler.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/advisorhub/mira/internal/adapter"
	"github.com/advisorhub/mira/internal/agents"
	"github.com/advisorhub/mira/internal/aial"
	"github.com/advisorhub/mira/internal/config"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/skills"
	"github.com/advisorhub/mira/internal/tools"
	"github.com/advisorhub/mira/pkg/models"
)

var tracer = otel.Tracer("mira-chat")

// AgentClient is the LLM client used when no local handler answers a turn.
type AgentClient interface {
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error)
	StreamChat(ctx context.Context, req *models.ChatRequest) <-chan models.AgentEvent
	GetClientSecret(ctx context.Context) (string, error)
	AdapterInfo() adapter.Info
}

// ClientFactory builds the agent client for a tenant config, which may be nil.
type ClientFactory func(ctx context.Context, cfg *models.TenantModelConfig) (AgentClient, error)

// Chatter adapts f to the AIAL dispatcher's factory.
func (f ClientFactory) Chatter() aial.ClientFactory {
	return func(ctx context.Context, cfg *models.TenantModelConfig) (aial.Chatter, error) {
		c, err := f(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// DefaultClientFactory builds adapter.Clients from the agent config. Tenant
// retry and timeout settings win over the process-wide ones.
func DefaultClientFactory(cfg config.AgentConfig) ClientFactory {
	return func(ctx context.Context, tc *models.TenantModelConfig) (AgentClient, error) {
		opts := adapter.ClientOptions{
			TenantConfig:    tc,
			RequireProvider: cfg.RequireProvider || adapter.RequiresProvider(tc),
		}
		retries := cfg.MaxRetries
		if tc != nil && tc.MaxRetries != nil {
			retries = *tc.MaxRetries
		}
		if retries == 0 {
			retries = -1
		}
		opts.MaxRetries = retries
		if tc == nil || tc.TimeoutMs == nil || *tc.TimeoutMs <= 0 {
			opts.Timeout = cfg.Timeout
		}
		return adapter.NewClient(ctx, opts)
	}
}

// TenantConfigs resolves a tenant's model config.
type TenantConfigs interface {
	Get(ctx context.Context, tenantID string) (*models.TenantModelConfig, error)
}

// Deps are the collaborators of the handlers. ModelConfigs and AIAL may be
// nil.
type Deps struct {
	Router       *router.Service
	Skills       *skills.Registry
	Agents       *agents.Registry
	Tools        *tools.Registry
	ModelConfigs TenantConfigs
	AIAL         *aial.Dispatcher
	NewClient    ClientFactory
	Config       *config.Config
}

// Handlers holds all handler dependencies.
type Handlers struct {
	router       *router.Service
	skills       *skills.Registry
	agents       *agents.Registry
	tools        *tools.Registry
	modelConfigs TenantConfigs
	aial         *aial.Dispatcher
	newClient    ClientFactory
	cfg          *config.Config
}

// New creates the handlers. A nil Config uses config.Defaults and a nil
// NewClient uses DefaultClientFactory.
func New(d Deps) *Handlers {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	newClient := d.NewClient
	if newClient == nil {
		newClient = DefaultClientFactory(cfg.Agent)
	}
	return &Handlers{
		router:       d.Router,
		skills:       d.Skills,
		agents:       d.Agents,
		tools:        d.Tools,
		modelConfigs: d.ModelConfigs,
		aial:         d.AIAL,
		newClient:    newClient,
		cfg:          cfg,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
