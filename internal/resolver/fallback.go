package resolver

import (
	"fmt"
	"strings"
)

const (
	FastGreeting     = "Hello! I'm your IT Helpdesk Assistant. I can help you troubleshoot technical issues or create a support ticket. What can I do for you today?"
	FallbackGreeting = "Hello! I'm your IT Helpdesk Assistant. How can I help you today?"
	genericAnswer    = "I'm here to help with IT issues. What's on your mind?"
)

const maxSteps = 5

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"morning": true, "afternoon": true, "evening": true, "hola": true,
}

var (
	quickTicketPhrases = []struct {
		phrase    string
		issueType string
	}{
		{"domain lock", "domain_lock"},
		{"domainlocked", "domain_lock"},
		{"password reset", "password_reset"},
	}
	ticketPhrases  = []string{"create a ticket", "raise a ticket", "open a ticket", "ticket", "raise", "talk to a human", "human"}
	troubleWords   = []string{"issue", "problem", "error", "not working", "slow", "weird", "help", "broken"}
	networkWords   = []string{"net", "wifi", "internet"}
	peripheralWord = []string{"mouse", "keyboard"}
)

// isShortGreeting reports whether text opens with a greeting word and has at
// most four words.
func isShortGreeting(text string) bool {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	return greetingWords[strings.TrimRight(words[0], ",.!?")]
}

func fastPathIntent(text string) (Intent, bool) {
	if !isShortGreeting(text) {
		return Intent{}, false
	}
	return Intent{
		Action:       ActionAnswer,
		IssueType:    "general",
		Urgency:      "low",
		DirectAnswer: strPtr(FastGreeting),
		Source:       SourceFastPath,
	}, true
}

// IsQuickTicketRequest returns the quick ticket type named in text, if any.
func IsQuickTicketRequest(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, q := range quickTicketPhrases {
		if strings.Contains(lower, q.phrase) {
			return q.issueType, true
		}
	}
	return "", false
}

// IsTicketRequest reports explicit ticket-request phrasing.
func IsTicketRequest(text string) bool {
	return containsAny(strings.ToLower(text), ticketPhrases)
}

// FallbackIntent classifies text with fixed keyword rules. It never consults
// a backend.
func FallbackIntent(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	in := Intent{Urgency: "medium", IssueType: "general", Source: SourceFallback}

	if issueType, ok := IsQuickTicketRequest(lower); ok {
		in.Action = ActionQuickTicket
		in.IssueType = issueType
		return in
	}
	if IsTicketRequest(lower) {
		in.Action = ActionCreateTicket
		return in
	}
	if containsAny(lower, troubleWords) {
		in.Action = ActionTroubleshoot
		in.NeedsTroubleshooting = true
		if containsAny(lower, networkWords) {
			in.IssueType = "network"
		}
		if containsAny(lower, peripheralWord) {
			in.IssueType = "hardware"
		}
		return in
	}

	in.Action = ActionAnswer
	if isShortGreeting(lower) {
		in.Urgency = "low"
		in.DirectAnswer = strPtr(FallbackGreeting)
		return in
	}
	in.DirectAnswer = strPtr(genericAnswer)
	return in
}

// Step is one structured troubleshooting step as produced by a backend.
type Step struct {
	Title          string
	Actions        []string
	ExpectedResult string
}

func (s Step) Format() string {
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = "Step"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", title)
	for _, a := range s.Actions {
		if a = strings.TrimSpace(a); a != "" {
			fmt.Fprintf(&b, "\n• %s", a)
		}
	}
	fmt.Fprintf(&b, "\n_Expected: %s_", strings.TrimSpace(s.ExpectedResult))
	return b.String()
}

var verifyStep = Step{
	Title:          "Verify the Fix",
	Actions:        []string{"Try the task that was failing again and note any error message."},
	ExpectedResult: "Issue no longer occurs.",
}

var (
	mouseSteps = []Step{
		{"Check Connection", []string{"Unplug and replug the mouse."}, "Connected."},
		{"Try Port", []string{"Use a different USB port."}, "Port ruled out."},
		{"Check Battery", []string{"If wireless, replace batteries."}, "Power confirmed."},
		{"Update Driver", []string{"Check Device Manager for updates."}, "Software ruled out."},
		{"Test Surface", []string{"Try on a different surface or mouse pad."}, "Resolved."},
	}
	genericSteps = []Step{
		{"Restart System", []string{"Reboot your computer."}, "Errors cleared."},
		{"Check Cables", []string{"Ensure all physical connections are tight."}, "Secure connection."},
		{"Check Internet", []string{"Verify your WiFi or Ethernet signal."}, "Online status."},
		{"Clear Cache", []string{"Delete temporary files or browser data."}, "Conflict removed."},
		{"Contact Helpdesk", []string{"If failed, we will raise a ticket."}, "Ticket created."},
	}
)

// FallbackSteps returns the built-in guide for description.
func FallbackSteps(description string) []string {
	set := genericSteps
	if strings.Contains(strings.ToLower(description), "mouse") {
		set = mouseSteps
	}
	return formatSteps(set)
}

// formatSteps truncates to five and pads with the verification step.
func formatSteps(steps []Step) []string {
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	out := make([]string, 0, maxSteps)
	for _, s := range steps {
		out = append(out, s.Format())
	}
	for len(out) < maxSteps {
		out = append(out, verifyStep.Format())
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
