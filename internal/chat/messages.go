package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
)

const (
	msgAskEmpID        = "I'll help you raise a ticket for that. First, could you please provide your *Employee ID*?"
	msgAskEmpIDAgain   = "Could you please provide your *Employee ID*?"
	msgAskHostname     = "Got it. Now, could you please provide your *System Hostname*? \n\n_Tip: To find it, type `hostname` in your terminal/command prompt or check the sticker on your machine._"
	msgAskHostnameNext = "Could you please provide your *System Hostname*?"
	msgNoGuide         = "I don't have a specific guide for that, but let me generate some troubleshooting steps for you..."
	msgNoSteps         = "I attempted to find troubleshooting steps but couldn't identify a specific solution. I'll help you raise a ticket for this. First, could you please provide your *Employee ID*?"
	msgSolved          = "Great! I'm glad we could resolve that for you. Let me know if you need anything else!"
	msgSessionLost     = "Something went wrong with your session. Please try again."
	msgUnexpected      = "I'm sorry, I encountered an unexpected error while processing your request. Please try again, or ask me to raise a ticket."
	msgFormFailed      = "There was an error creating your ticket. Please try again later."
	msgTicketAgentNote = "An IT support agent will reach out to you shortly."
	reportButtonText   = "🎫 Still need help? Raise a Ticket"
)

const (
	placeholderName  = "Unknown User"
	placeholderEmail = "user@example.com"
)

// StepValue is carried by the step buttons and echoed back on click.
type StepValue struct {
	ArticleID string `json:"articleId"`
	Step      int    `json:"step"`
}

func (v StepValue) Encode() string {
	b, _ := json.Marshal(v)
	return string(b)
}

func DecodeStepValue(s string) (StepValue, error) {
	var v StepValue
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return StepValue{}, fmt.Errorf("decode step value: %w", err)
	}
	return v, nil
}

func stepMessage(instruction string, current, total int, articleID string) messaging.Message {
	value := StepValue{ArticleID: articleID, Step: current}.Encode()
	return messaging.Message{
		Header: fmt.Sprintf("Troubleshooting Step %d/%d", current, total),
		Text:   instruction,
		Buttons: []messaging.Button{
			{ActionID: messaging.ActionStepSolved, Text: "✅ It worked!", Value: value, Style: messaging.StylePrimary},
			{ActionID: messaging.ActionStepFailed, Text: "❌ Still having issues", Value: value, Style: messaging.StyleDanger},
		},
	}
}

func answerMessage(text string) messaging.Message {
	return messaging.Message{
		Text:    text,
		Buttons: []messaging.Button{{ActionID: messaging.ActionReportIssue, Text: reportButtonText}},
	}
}

func homeMessage(userID string) messaging.Message {
	return messaging.Message{
		Text:    fmt.Sprintf("*Hey <@%s>, I'm IT Helpdesk Bot!* 👋\n\nI can help you troubleshoot IT issues and create support tickets.", userID),
		Context: "*💡 Quick Tips:*\n• Just message me with your issue\n• I'll guide you step-by-step\n• If I can't solve it, I'll create a ticket for you automatically",
		Buttons: []messaging.Button{
			{ActionID: messaging.ActionReportIssue, Text: "🔍 Report an Issue", Value: "report", Style: messaging.StylePrimary},
		},
	}
}

func ticketCreatedMessage(ticketID string) messaging.Message {
	return messaging.Message{
		Text:    fmt.Sprintf("I've created a support ticket for you. *Ticket #%s*", ticketID),
		Context: msgTicketAgentNote,
	}
}

func quickTicketPrompt(ticketType string) string {
	return fmt.Sprintf("I'll raise a *%s* ticket for you right away. Please provide your *Employee ID*.", TypeName(ticketType))
}

func unresolvedPrompt(reason string) string {
	return fmt.Sprintf("It looks like we haven't been able to resolve this yet (%s). I'll help you raise a support ticket. First, could you please provide your *Employee ID*?", reason)
}

func finalizeFailedPrompt(state State) string {
	next := "send your details again"
	switch state {
	case StateAwaitingHostname:
		next = "send your *System Hostname* again"
	case StateAwaitingEmpID, StateAwaitingEmpIDQuick:
		next = "send your *Employee ID* again"
	}
	return fmt.Sprintf("I'm sorry, I encountered an error while finalizing your ticket. Please %s to retry, or contact IT support.", next)
}

// TypeName turns an issue type such as domain_lock into "Domain Lock".
func TypeName(ticketType string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(ticketType))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	if len(words) == 0 {
		return "General"
	}
	return strings.Join(words, " ")
}

func ticketBody(d TicketDraft) string {
	hostname := d.Hostname
	switch {
	case hostname != "":
	case d.IsQuickTicket:
		hostname = "N/A (Quick Ticket)"
	default:
		hostname = "N/A (Biometric Issue)"
	}
	return fmt.Sprintf("User Data:\n- Employee ID: %s\n- System Hostname: %s\n\nOriginal Issue:\n%s",
		d.EmpID, hostname, d.Description)
}

// IssueCategories are the choices offered by the report-issue form.
var IssueCategories = []messaging.Option{
	{Label: "Network / Internet", Value: "network"},
	{Label: "Hardware (Printer, Laptop)", Value: "hardware"},
	{Label: "Software / Access", Value: "software"},
	{Label: "Other", Value: "other"},
}

const (
	FormDescriptionBlock  = "issue_description_block"
	FormDescriptionAction = "issue_description"
	FormCategoryBlock     = "issue_type_block"
	FormCategoryAction    = "issue_type"
)

func reportIssueForm() messaging.Form {
	return messaging.Form{
		CallbackID:  messaging.CallbackSubmitForm,
		Title:       "Report an IT Issue",
		Intro:       "Please describe your issue in detail. I will try to help you fix it, or create a ticket if needed.",
		SubmitLabel: "Submit",
		CloseLabel:  "Cancel",
		Fields: []messaging.FormField{
			{BlockID: FormDescriptionBlock, ActionID: FormDescriptionAction, Label: "Description", Multiline: true},
			{BlockID: FormCategoryBlock, ActionID: FormCategoryAction, Label: "Category", Placeholder: "Select issue type", Options: IssueCategories},
		},
	}
}

func categoryLabel(value string) string {
	for _, c := range IssueCategories {
		if c.Value == value {
			return c.Label
		}
	}
	return "Other"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
