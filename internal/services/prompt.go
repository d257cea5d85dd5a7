package services

import (
	"fmt"
	"strings"

	"ehr-chatbot/internal/models"
)

// DefaultHistoryTurns is how many prior messages the fallback prompt carries
const DefaultHistoryTurns = 6

const (
	fallbackSystemPrompt = "You are a cautious medical information assistant. Answer briefly and clearly in %s. " +
		"Include general educational information only. Always add a short disclaimer that this is not medical advice."

	educatorSystemPrompt = "You are a medical educator assistant. Generate a comprehensive, personalized educational note in %s " +
		"about the given condition. Use the patient's clinical data to personalize the information. " +
		"Make it detailed, educational, and easy to understand. " +
		"Always include a disclaimer that this is educational information and not medical advice."

	educatorRequest = "Please write a comprehensive personalized educational note covering what the condition is, " +
		"how it relates to the patient's data, lifestyle and self-care guidance, and when to seek medical attention."
)

// clinicalBlock renders clinical data as a labelled bullet list, or "" when empty
func clinicalBlock(data models.ClinicalData) string {
	if len(data) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Patient clinical data:")
	for _, label := range data.SortedKeys() {
		fmt.Fprintf(&b, "\n- %s: %s", label, data[label])
	}
	return b.String()
}

// historyMessages takes the last n messages and keeps the user/bot ones, mapping
// bot to assistant. Dropped roles still use up the window.
func historyMessages(history []models.Message, n int) []CompletionMessage {
	if n >= 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	kept := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			kept = append(kept, CompletionMessage{Role: CompletionRoleUser, Content: m.Content})
		case models.RoleBot:
			kept = append(kept, CompletionMessage{Role: CompletionRoleAssistant, Content: m.Content})
		}
	}
	return kept
}

// buildFallbackMessages assembles the synthesizer prompt:
// system instruction, topic, clinical data, hint, trimmed history, query
func buildFallbackMessages(req FallbackRequest, language string, historyTurns int) []CompletionMessage {
	messages := []CompletionMessage{
		{Role: CompletionRoleSystem, Content: fmt.Sprintf(fallbackSystemPrompt, language)},
	}
	if req.ConditionName != "" {
		messages = append(messages, CompletionMessage{Role: CompletionRoleSystem, Content: "Topic: " + req.ConditionName})
	}
	if block := clinicalBlock(req.ClinicalData); block != "" {
		messages = append(messages, CompletionMessage{Role: CompletionRoleSystem, Content: block})
	}
	if req.ContextHint != "" {
		messages = append(messages, CompletionMessage{Role: CompletionRoleSystem, Content: "Context: " + req.ContextHint})
	}

	messages = append(messages, historyMessages(req.History, historyTurns)...)
	messages = append(messages, CompletionMessage{Role: CompletionRoleUser, Content: req.Query})
	return messages
}

func buildEducatorMessages(conditionName string, data models.ClinicalData, language string) []CompletionMessage {
	var user strings.Builder
	fmt.Fprintf(&user, "Condition: %s", conditionName)
	if block := clinicalBlock(data); block != "" {
		user.WriteString("\n\n")
		user.WriteString(block)
	}
	user.WriteString("\n\n")
	user.WriteString(educatorRequest)

	return []CompletionMessage{
		{Role: CompletionRoleSystem, Content: fmt.Sprintf(educatorSystemPrompt, language)},
		{Role: CompletionRoleUser, Content: user.String()},
	}
}
