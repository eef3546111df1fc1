// Package server assembles the Mira orchestrator: store, registries,
// intent router, agent client factory and the HTTP handler.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/advisorhub/mira/internal/agents"
	"github.com/advisorhub/mira/internal/aial"
	"github.com/advisorhub/mira/internal/api"
	"github.com/advisorhub/mira/internal/api/handlers"
	"github.com/advisorhub/mira/internal/config"
	"github.com/advisorhub/mira/internal/knowledge"
	"github.com/advisorhub/mira/internal/modelconfig"
	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/internal/skills"
	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/internal/telemetry"
	"github.com/advisorhub/mira/internal/tools"
)

// Server holds the initialized orchestrator.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store: PostgreSQL when DATABASE_URL is set,
	// in-memory otherwise.
	Store store.Store

	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	router            *router.Service
	shutdownTelemetry func(context.Context) error
}

// New loads the configuration and initializes every component.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the orchestrator with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	if err := seed(ctx, dataStore); err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	toolReg := tools.NewRegistry()
	if err := agents.RegisterTools(toolReg, dataStore); err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("register tools: %w", err)
	}
	agentReg, err := agents.NewRegistry(toolReg)
	if err != nil {
		_ = dataStore.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("agent registry: %w", err)
	}
	skillReg := skills.NewRegistry(knowledge.NewService(dataStore), agentReg, toolReg)
	log.Info().Int("tools", len(toolReg.Names())).Int("agents", len(agentReg.All())).Msg("✅ Registries initialized")

	intentRouter := router.NewService(router.Options{
		CacheTTL:             cfg.Cache.IntentTTL,
		CacheMaxSize:         cfg.Cache.IntentMaxSize,
		CacheCleanupInterval: cfg.Cache.CleanupInterval,
	})

	var mcOpts []modelconfig.Option
	if cfg.Cache.ModelConfigTTL > 0 {
		mcOpts = append(mcOpts, modelconfig.WithTTL(cfg.Cache.ModelConfigTTL))
	}
	modelConfigs := modelconfig.NewService(dataStore, mcOpts...)

	factory := handlers.DefaultClientFactory(cfg.Agent)
	h := handlers.New(handlers.Deps{
		Router:       intentRouter,
		Skills:       skillReg,
		Agents:       agentReg,
		Tools:        toolReg,
		ModelConfigs: modelConfigs,
		AIAL:         aial.NewDispatcher(modelConfigs, factory.Chatter(), skillReg),
		NewClient:    factory,
		Config:       cfg,
	})

	return &Server{
		Handler:           api.NewRouter(cfg, h),
		Store:             dataStore,
		Config:            cfg,
		Port:              cfg.Port,
		router:            intentRouter,
		shutdownTelemetry: shutdown,
	}, nil
}

// Shutdown stops background work, closes the store and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.router.Close()
	return errors.Join(s.Store.Close(), s.shutdownTelemetry(ctx))
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	if cfg.URL == "" {
		log.Info().Msg("✅ In-memory store initialized")
		return store.NewMemoryStore(), nil
	}
	pg, err := store.NewPostgresStore(ctx, cfg.URL, int32(cfg.MaxConnections))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return pg, nil
}

// seed loads the knowledge atoms and the demo tenant's module data.
func seed(ctx context.Context, st store.Store) error {
	if err := knowledge.Seed(ctx, st); err != nil {
		return fmt.Errorf("seed knowledge: %w", err)
	}
	if err := agents.SeedDemoData(ctx, st, agents.DefaultTenant); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	log.Info().Str("tenant", agents.DefaultTenant).Msg("✅ Demo data seeded")
	return nil
}
