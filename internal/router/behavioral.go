package router

import (
	"math"

	"github.com/advisorhub/mira/pkg/models"
)

// Behavioral boost tuning.
const (
	behavioralWindow       = 5
	behavioralNavBoost     = 0.10
	behavioralActionBoost  = 0.05
	behavioralMaxBoost     = 0.30
	behavioralReasonPrefix = "behavioral:"
)

// BehavioralBoosts returns a per-module score boost derived from the most
// recent navigation events and actions. Modules with no recent activity are
// absent from the map.
func BehavioralBoosts(b *models.BehavioralContext) map[string]float64 {
	if b == nil {
		return nil
	}
	boosts := make(map[string]float64)

	nav := b.NavigationHistory
	if len(nav) > behavioralWindow {
		nav = nav[len(nav)-behavioralWindow:]
	}
	for _, ev := range nav {
		if ev.Module != "" {
			boosts[ev.Module] += behavioralNavBoost
		}
	}

	actions := b.RecentActions
	if len(actions) > behavioralWindow {
		actions = actions[len(actions)-behavioralWindow:]
	}
	for _, a := range actions {
		module := models.StringFrom(a.Context, "module")
		if module == "" {
			module = b.CurrentModule
		}
		if module != "" {
			boosts[module] += behavioralActionBoost
		}
	}

	for m, v := range boosts {
		boosts[m] = math.Min(v, behavioralMaxBoost)
	}
	if len(boosts) == 0 {
		return nil
	}
	return boosts
}
