package router

import (
	"fmt"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

// NeedsClarification reports whether a reply must be preceded by a
// clarifying question.
func NeedsClarification(tier models.ConfidenceTier) bool {
	return tier == models.TierLow
}

// ClarificationInput carries what the clarification copy is built from.
type ClarificationInput struct {
	Intent            string
	Tier              models.ConfidenceTier
	TransitionMessage string
}

// BuildClarificationMessage returns the confirmation or clarifying question
// for a tier. High confidence yields only the transition message, if any.
func BuildClarificationMessage(in ClarificationInput) string {
	label := IntentLabel(in.Intent)

	var body string
	switch in.Tier {
	case models.TierMedium:
		body = fmt.Sprintf("Just to confirm, would you like me to %s?", label)
	case models.TierLow:
		body = fmt.Sprintf("I want to make sure I get this right. Did you mean to %s, or something else?", label)
	}

	transition := strings.TrimSpace(in.TransitionMessage)
	switch {
	case transition == "":
		return body
	case body == "":
		return transition
	default:
		return transition + " " + body
	}
}
