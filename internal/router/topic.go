package router

import (
	"fmt"
	"strings"
)

// MaxTopicHistory bounds the per-conversation topic trail.
const MaxTopicHistory = 10

// TopicTransition describes a move between conversation topics.
type TopicTransition struct {
	ShouldSwitch bool   `json:"shouldSwitch"`
	FromTopic    string `json:"fromTopic"`
	ToTopic      string `json:"toTopic"`
}

// DetectTopicSwitch reports a switch when there was a previous topic, the new
// topic differs from it and the classification is at least medium confidence.
func DetectTopicSwitch(from, to string, confidence float64) TopicTransition {
	t := TopicTransition{FromTopic: from, ToTopic: to}
	t.ShouldSwitch = from != "" && to != "" && to != from && confidence >= MediumThreshold
	return t
}

// GenerateTransitionMessage returns the copy shown when the topic changes.
func GenerateTransitionMessage(from, to string) string {
	return fmt.Sprintf("It looks like you want to switch from %s to %s.", topicName(from), topicName(to))
}

// UpdateTopicHistory appends topic unless it repeats the latest entry and
// keeps the most recent MaxTopicHistory entries. The input is not modified.
func UpdateTopicHistory(history []string, topic string) []string {
	out := append([]string(nil), history...)
	if topic == "" {
		return out
	}
	if len(out) == 0 || out[len(out)-1] != topic {
		out = append(out, topic)
	}
	if len(out) > MaxTopicHistory {
		out = out[len(out)-MaxTopicHistory:]
	}
	return out
}

// ShouldPromptForSwitch reports whether the user should confirm the switch.
func ShouldPromptForSwitch(t TopicTransition) bool {
	return t.ShouldSwitch
}

func topicName(topic string) string {
	if topic == "" {
		return "the current topic"
	}
	return strings.ReplaceAll(topic, "_", " ")
}
