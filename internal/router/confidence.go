package router

import (
	"fmt"
	"math"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

// Tier thresholds. Boundary values belong to the higher tier.
const (
	HighThreshold   = 0.65
	MediumThreshold = 0.45
)

// ApplyThresholds maps a score to a confidence tier.
func ApplyThresholds(score float64) models.ConfidenceTier {
	switch {
	case math.IsNaN(score):
		return models.TierLow
	case score >= HighThreshold:
		return models.TierHigh
	case score >= MediumThreshold:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// Weights tunes the heuristic intent scorer.
type Weights struct {
	DirectKeyword     float64
	ExampleOverlap    float64
	ExtraExampleStep  float64
	ExtraExampleCap   float64
	ExtraExampleFloor float64
	TermHit           float64
	TermCap           float64
	Casual            float64
	ModuleMatch       float64
	Concise           float64
	ContainsBonus     float64
}

// DefaultWeights returns the production scorer weights.
func DefaultWeights() Weights {
	return Weights{
		DirectKeyword:     0.25,
		ExampleOverlap:    0.5,
		ExtraExampleStep:  0.03,
		ExtraExampleCap:   0.10,
		ExtraExampleFloor: 0.3,
		TermHit:           0.05,
		TermCap:           0.10,
		Casual:            0.10,
		ModuleMatch:       0.20,
		Concise:           0.05,
		ContainsBonus:     0.15,
	}
}

// IntentScore is the scorer's verdict for one taxonomy intent.
type IntentScore struct {
	Intent  IntentDef
	Score   float64
	Reasons []string
}

// ScoreIntent scores message against one intent definition.
func (w Weights) ScoreIntent(message string, def IntentDef, miraCtx *models.MiraContext) IntentScore {
	out := IntentScore{Intent: def}
	lower := strings.ToLower(strings.TrimSpace(message))
	tokens := tokenize(lower)
	if len(tokens) == 0 {
		return out
	}
	padded := " " + strings.Join(tokens, " ") + " "

	if keyword := strings.ReplaceAll(def.Name, "_", " "); strings.Contains(lower, keyword) {
		out.Score += w.DirectKeyword
		out.Reasons = append(out.Reasons, "keyword:"+def.Name)
	}

	var best float64
	var overlapping int
	for _, example := range def.Examples {
		o := w.overlap(lower, tokens, example)
		if o > best {
			best = o
		}
		if o > w.ExtraExampleFloor {
			overlapping++
		}
	}
	if best > 0 {
		out.Score += best * w.ExampleOverlap
		out.Reasons = append(out.Reasons, fmt.Sprintf("example_overlap:%.2f", best))
	}
	if overlapping > 1 {
		out.Score += math.Min(w.ExtraExampleCap, float64(overlapping-1)*w.ExtraExampleStep)
	}

	var hits int
	for _, term := range def.Terms {
		if strings.Contains(padded, " "+term+" ") {
			hits++
		}
	}
	if hits > 0 {
		out.Score += math.Min(w.TermCap, float64(hits)*w.TermHit)
		out.Reasons = append(out.Reasons, fmt.Sprintf("terminology:%d", hits))
	}

	for _, re := range def.casual {
		if re.MatchString(lower) {
			out.Score += w.Casual
			out.Reasons = append(out.Reasons, "casual_pattern")
			break
		}
	}

	if miraCtx != nil && miraCtx.Module != "" && string(miraCtx.Module) == def.Topic {
		out.Score += w.ModuleMatch
		out.Reasons = append(out.Reasons, "module:"+def.Topic)
	}

	if n := len(strings.Fields(lower)); n >= 2 && n <= 5 {
		out.Score += w.Concise
	}

	out.Score = math.Min(out.Score, 1)
	return out
}

// overlap is the harmonic mean of forward and backward token coverage
// between message and example.
func (w Weights) overlap(lower string, msgTokens []string, example string) float64 {
	exLower := strings.ToLower(strings.TrimSpace(example))
	exTokens := tokenize(exLower)
	if len(exTokens) == 0 {
		return 0
	}
	msgSet := make(map[string]struct{}, len(msgTokens))
	for _, t := range msgTokens {
		msgSet[t] = struct{}{}
	}
	exSet := make(map[string]struct{}, len(exTokens))
	var shared int
	for _, t := range exTokens {
		if _, dup := exSet[t]; dup {
			continue
		}
		exSet[t] = struct{}{}
		if _, ok := msgSet[t]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	forward := float64(shared) / float64(len(exSet))
	backward := float64(shared) / float64(len(msgSet))
	score := 2 * forward * backward / (forward + backward)
	if strings.Contains(lower, exLower) || strings.Contains(exLower, lower) {
		score += w.ContainsBonus
	}
	return math.Min(score, 1)
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
