package router_test

import (
	"math"
	"testing"

	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/pkg/models"
)

func TestApplyThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  models.ConfidenceTier
	}{
		{1, models.TierHigh},
		{0.65, models.TierHigh},
		{0.6499, models.TierMedium},
		{0.45, models.TierMedium},
		{0.4499, models.TierLow},
		{0, models.TierLow},
		{-1, models.TierLow},
		{math.NaN(), models.TierLow},
	}
	for _, tt := range tests {
		if got := router.ApplyThresholds(tt.score); got != tt.want {
			t.Errorf("ApplyThresholds(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestApplyThresholds_Sweep(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		s := float64(i) / 1000
		got := router.ApplyThresholds(s)
		switch {
		case s >= 0.65 && got != models.TierHigh,
			s >= 0.45 && s < 0.65 && got != models.TierMedium,
			s < 0.45 && got != models.TierLow:
			t.Fatalf("ApplyThresholds(%v) = %q", s, got)
		}
	}
}

func lookupIntent(t *testing.T, name string) router.IntentDef {
	t.Helper()
	def, ok := router.DefaultTaxonomy().Lookup(name)
	if !ok {
		t.Fatalf("intent %q missing from taxonomy", name)
	}
	return def
}

func TestScoreIntent_ModuleContextRanksHigher(t *testing.T) {
	w := router.DefaultWeights()
	def := lookupIntent(t, "create_lead")
	msg := "Add a new lead named Sarah Lee"

	in := w.ScoreIntent(msg, def, &models.MiraContext{Module: models.ModuleCustomer})
	out := w.ScoreIntent(msg, def, &models.MiraContext{Module: models.ModuleProduct})
	if in.Score <= out.Score {
		t.Errorf("matching module score %.3f should exceed non-matching %.3f", in.Score, out.Score)
	}
}

func TestScoreIntent_Capped(t *testing.T) {
	w := router.DefaultWeights()
	w.ModuleMatch = 5
	def := lookupIntent(t, "create_lead")
	got := w.ScoreIntent("create lead", def, &models.MiraContext{Module: models.ModuleCustomer})
	if got.Score != 1 {
		t.Errorf("Score = %v, want 1", got.Score)
	}
}

func TestScoreIntent_EmptyMessage(t *testing.T) {
	w := router.DefaultWeights()
	got := w.ScoreIntent("   ", lookupIntent(t, "create_lead"), &models.MiraContext{Module: models.ModuleCustomer})
	if got.Score != 0 || len(got.Reasons) != 0 {
		t.Errorf("ScoreIntent(blank) = %+v, want zero", got)
	}
}

func TestScoreIntent_Reasons(t *testing.T) {
	w := router.DefaultWeights()
	got := w.ScoreIntent("remind me to call John", lookupIntent(t, "create_task"), &models.MiraContext{Module: models.ModuleTodo})

	want := map[string]bool{"casual_pattern": false, "module:todo": false}
	for _, r := range got.Reasons {
		if _, ok := want[r]; ok {
			want[r] = true
		}
	}
	for r, seen := range want {
		if !seen {
			t.Errorf("reason %q missing from %v", r, got.Reasons)
		}
	}
}
