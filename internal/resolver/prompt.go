package resolver

import (
	"fmt"

	"github.com/suPer8Hu/helpdesk-triage/internal/ai"
)

const intentSystemPrompt = `You are a concierge IT helpdesk assistant. Reply with JSON ONLY, no prose:
{
  "issue_type": "network/printer/password/software/hardware/email/vpn/biometric/freshservice/domain_lock/password_reset/general_question",
  "needs_troubleshooting": true/false,
  "urgency": "critical/high/medium/low",
  "suggested_article": "null or name",
  "direct_answer": "friendly response if no troubleshooting",
  "action": "create_ticket/troubleshoot/answer/quick_ticket"
}
Rules:
- If the user mentions "domain lock" or "password reset" specifically, action="quick_ticket".
- If the user asks to "create a ticket", "raise an issue" or talk to a human, action="create_ticket".
- Shorthand: "net" -> "network", "syn" -> "sync issues", "drive" -> "software".
- If the user describes a problem (like "net issue" or "mouse issue"), action="troubleshoot" and needs_troubleshooting=true.
- If the user asks "who are you", explain you are an IT Helpdesk Bot.`

func intentMessages(text string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: intentSystemPrompt},
		{Role: ai.RoleUser, Content: fmt.Sprintf("Analyze: %q", text)},
	}
}

func stepsMessages(description string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: "You are an IT helpdesk bot. Reply with JSON ONLY."},
		{Role: ai.RoleUser, Content: fmt.Sprintf(
			"Generate 5 structured IT troubleshooting steps for: %q. Return ONLY a JSON array of 5 objects with \"title\", \"actions\" (array of strings), and \"expected_result\".",
			description)},
	}
}
