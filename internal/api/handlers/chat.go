package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/advisorhub/mira/internal/adapter"
	"github.com/advisorhub/mira/internal/aial"
	"github.com/advisorhub/mira/pkg/models"
)

// AgentChat serves POST /api/v1/agent-chat.
func (h *Handlers) AgentChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	mode := models.ChatMode(strings.TrimSpace(string(body.Mode)))
	if mode == "" {
		respondError(w, http.StatusBadRequest, "Missing required field: mode")
		return
	}

	ctx, span := tracer.Start(r.Context(), "chat."+string(mode))
	defer span.End()
	tenantID := body.tenantID(ctx)
	requestID := body.requestID()
	span.SetAttributes(
		attribute.String("mira.mode", string(mode)),
		attribute.String("mira.tenant", tenantID),
		attribute.String("mira.request_id", requestID),
	)
	logger := log.With().Str("request_id", requestID).Str("mode", string(mode)).Str("tenant", tenantID).Logger()
	ctx = logger.WithContext(ctx)
	r = r.WithContext(ctx)

	switch mode {
	case models.ModeHealth:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	case models.ModeGetClientSecret:
		h.clientSecret(w, r, tenantID)
	case models.ModeAIAL:
		h.dispatchAIAL(w, r, &body)
	case models.ModeSuggest:
		h.suggest(w, r, &body)
	case models.ModeInsights:
		h.insights(w, r, &body)
	case models.ModeStream, models.ModeBatch:
		req, err := body.chatRequest(h.cfg.Chat.MaxMessages, h.cfg.Chat.MaxContentLength)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.chat(w, r, &turn{
			req:       req,
			requestID: requestID,
			tenantID:  tenantID,
			miraCtx:   miraContext(req, tenantID),
		})
	default:
		respondError(w, http.StatusBadRequest, "Unsupported mode: "+string(mode))
	}
}

// tenantConfig loads the tenant's model config. Lookup failures are logged
// and treated as no config.
func (h *Handlers) tenantConfig(ctx context.Context, tenantID string) *models.TenantModelConfig {
	if tenantID == "" || h.modelConfigs == nil {
		return nil
	}
	cfg, err := h.modelConfigs.Get(ctx, tenantID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Tenant model config lookup failed")
		return nil
	}
	return cfg
}

func (h *Handlers) clientSecret(w http.ResponseWriter, r *http.Request, tenantID string) {
	if secret := strings.TrimSpace(h.cfg.Agent.ClientSecret); secret != "" {
		respondJSON(w, http.StatusOK, models.ClientSecret{Secret: secret, UpdatedAt: time.Now().UTC(), Source: "env"})
		return
	}
	ctx := r.Context()
	client, err := h.newClient(ctx, h.tenantConfig(ctx, tenantID))
	if err == nil {
		var secret string
		secret, err = client.GetClientSecret(ctx)
		if err == nil && secret != "" {
			respondJSON(w, http.StatusOK, models.ClientSecret{Secret: secret, UpdatedAt: time.Now().UTC(), Source: "adapter"})
			return
		}
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg("Client secret unavailable")
	respondError(w, http.StatusServiceUnavailable, "Unable to load client secret")
}

func (h *Handlers) dispatchAIAL(w http.ResponseWriter, r *http.Request, body *chatBody) {
	if body.Event == nil {
		respondError(w, http.StatusBadRequest, "event payload is required for mode 'aial'")
		return
	}
	if h.aial == nil {
		respondError(w, http.StatusServiceUnavailable, "AIAL dispatcher is not configured")
		return
	}
	ctx := r.Context()
	result, err := h.aial.Dispatch(ctx, body.Event)
	switch {
	case errors.Is(err, aial.ErrInvalidEvent):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Str("event_id", body.Event.ID).Msg("AIAL dispatch failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]interface{}{"result": result})
	}
}

func (h *Handlers) suggest(w http.ResponseWriter, r *http.Request, body *chatBody) {
	if body.Context == nil || !body.Context.Module.Valid() {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":       "Context required for suggest mode",
			"suggestions": []models.SuggestedIntent{},
		})
		return
	}
	suggestions := []models.SuggestedIntent{}
	if agent, ok := h.agents.ForModule(body.Context.Module); ok {
		suggestions = append(suggestions, agent.GenerateSuggestions(body.Context)...)
	}
	zerolog.Ctx(r.Context()).Debug().
		Str("module", string(body.Context.Module)).
		Int("count", len(suggestions)).
		Msg("Suggestions generated")
	respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (h *Handlers) insights(w http.ResponseWriter, r *http.Request, body *chatBody) {
	advisorID := body.advisorID()
	if advisorID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "Advisor ID required for insights mode",
			"insights": []models.ProactiveInsight{},
		})
		return
	}
	ctx := r.Context()
	all, err := h.gatherInsights(ctx, advisorID, body.Context)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Insights failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"insights": all})
}

// gatherInsights fans out over every agent. An agent that fails contributes
// nothing; only cancellation fails the whole call.
func (h *Handlers) gatherInsights(ctx context.Context, advisorID string, miraCtx *models.MiraContext) ([]models.ProactiveInsight, error) {
	agentList := h.agents.All()
	results := make([][]models.ProactiveInsight, len(agentList))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range agentList {
		g.Go(func() error {
			out, err := a.GenerateInsights(gctx, advisorID, miraCtx)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("agent", a.ID()).Msg("Agent insights failed")
				return nil
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := []models.ProactiveInsight{}
	for _, out := range results {
		all = append(all, out...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Priority.Rank() > all[j].Priority.Rank()
	})
	return all, nil
}

// providerStatus maps a client construction error to an HTTP status.
func providerStatus(err error) int {
	if errors.Is(err, adapter.ErrMissingProviderConfig) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
