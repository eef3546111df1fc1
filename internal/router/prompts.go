package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/advisorhub/mira/pkg/models"
)

const (
	fewShotIntentsPerSubtopic = 3
	fewShotPhrasesPerIntent   = 2
)

// BuildSystemPrompt is the system message for an LLM-backed classifier.
func BuildSystemPrompt(miraCtx *models.MiraContext) string {
	contextLine := "Current module unknown."
	if miraCtx != nil {
		contextLine = fmt.Sprintf("Current module: %s. Current page: %s.", miraCtx.Module, miraCtx.Page)
	}
	return strings.Join([]string{
		"You are Mira's intent classifier. Map an advisor's utterance to the most relevant topic, subtopic and intent from the provided taxonomy.",
		"- Always return the best matching intent with a confidence score between 0 and 1.",
		"- Consider the current UI context when disambiguating similar intents.",
		"- If no intent matches, return the closest topic but lower the confidence.",
		"",
		contextLine,
	}, "\n")
}

// BuildClassificationPrompt is the user message asking for a JSON verdict.
func BuildClassificationPrompt(message string, miraCtx *models.MiraContext) string {
	contextSection := "Module: unknown\nPage: unknown"
	if miraCtx != nil {
		pageData := []byte("{}")
		if len(miraCtx.PageData) > 0 {
			if b, err := json.Marshal(miraCtx.PageData); err == nil {
				pageData = b
			}
		}
		contextSection = fmt.Sprintf("Module: %s\nPage: %s\nPage Data: %s", miraCtx.Module, miraCtx.Page, pageData)
	}
	return fmt.Sprintf(`Classify the following advisor request into the Mira intent taxonomy.

%s

Advisor message:
"""
%s
"""

Return JSON with keys: topic, subtopic, intent, confidence (0-1), reasoning.`, contextSection, message)
}

// BuildFewShotExamples lists a few example phrases per subtopic.
func (s *Service) BuildFewShotExamples() string {
	var lines []string
	perSubtopic := make(map[string]int)
	for _, def := range s.taxonomy.Intents {
		key := def.Topic + "/" + def.Subtopic
		if perSubtopic[key] >= fewShotIntentsPerSubtopic || len(def.Examples) == 0 {
			continue
		}
		perSubtopic[key]++
		phrases := def.Examples
		if len(phrases) > fewShotPhrasesPerIntent {
			phrases = phrases[:fewShotPhrasesPerIntent]
		}
		lines = append(lines, fmt.Sprintf("- Intent %q (%s) -> Examples: %s", def.Name, key, strings.Join(phrases, " | ")))
	}
	return strings.Join(lines, "\n")
}

// BuildClarificationPrompt asks an LLM to disambiguate between intents.
func BuildClarificationPrompt(intents []string) string {
	return fmt.Sprintf("The previous classification was ambiguous between: %s.\n"+
		"Ask the advisor a short clarifying question to decide between these options.", strings.Join(intents, ", "))
}
