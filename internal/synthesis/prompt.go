package synthesis

import (
	"fmt"
	"strings"
)

// systemPrompt frames every request; BuildPrompt supplies the conversation.
const systemPrompt = `You extract structured engineering epics from incident conversations.

Respond ONLY with a JSON object containing:
- "title": short title for the engineering epic (e.g. "Redis SETNX Distributed Lock")
- "strategy": 1-2 sentence description of the chosen technical strategy
- "components": array of concrete system components involved (e.g. ["Redis Cluster", "API Gateway", "DLQ"])
- "riskLevel": one of "low", "medium", "high", "critical"
- "complexity": one of "low", "medium", "high"

No markdown, no commentary.`

// Transcript renders history as "SPEAKER: text" lines.
func Transcript(history []Turn) string {
	lines := make([]string, 0, len(history))
	for _, turn := range normalizeHistory(history) {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(turn.SpeakerLabel), turn.Text))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt embeds the transcript and the directive into the user prompt.
func BuildPrompt(directive string, history []Turn) string {
	var b strings.Builder
	b.WriteString("You are a technical program manager analyzing an engineering war room conversation about a high-concurrency race condition.\n\n")
	b.WriteString("CONVERSATION TRANSCRIPT:\n")
	b.WriteString(Transcript(history))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "CTO DIRECTIVE: %q\n\n", strings.TrimSpace(directive))
	b.WriteString("Extract a structured Epic from this conversation. Focus on:\n")
	b.WriteString("- The race condition problem (inventory oversell under concurrent checkouts)\n")
	b.WriteString("- The chosen solution and its lock TTL\n")
	b.WriteString("- The components that will be affected\n\n")
	b.WriteString("Return a concise, actionable Epic as JSON.")
	return b.String()
}
