package resolver

import (
	"strconv"
	"strings"
)

type Action string

const (
	ActionAnswer       Action = "answer"
	ActionTroubleshoot Action = "troubleshoot"
	ActionCreateTicket Action = "create_ticket"
	ActionQuickTicket  Action = "quick_ticket"
)

const (
	SourceFastPath = "fast_path"
	SourceFallback = "fallback"
)

// Intent is the structured reading of one user message.
type Intent struct {
	Action               Action  `json:"action"`
	IssueType            string  `json:"issue_type"`
	NeedsTroubleshooting bool    `json:"needs_troubleshooting"`
	Urgency              string  `json:"urgency"`
	SuggestedArticle     *string `json:"suggested_article,omitempty"`
	DirectAnswer         *string `json:"direct_answer,omitempty"`
	// Source names the backend that produced the intent, or fast_path/fallback.
	Source string `json:"source"`
}

// Actionable reports whether the intent warrants engaging unprompted in a
// shared channel.
func (i Intent) Actionable() bool {
	switch i.Action {
	case ActionTroubleshoot, ActionCreateTicket, ActionQuickTicket:
		return true
	}
	return i.NeedsTroubleshooting
}

func (i Intent) Answer() string {
	if i.DirectAnswer == nil {
		return ""
	}
	return *i.DirectAnswer
}

// intentFromMap turns a decoded backend object into an Intent with every
// field populated. Keys are accepted in snake_case or camelCase.
func intentFromMap(m map[string]any) Intent {
	in := Intent{
		Action:               Action(strings.ToLower(stringField(m, "action"))),
		IssueType:            strings.ToLower(stringField(m, "issue_type", "issueType")),
		NeedsTroubleshooting: boolField(m, "needs_troubleshooting", "needsTroubleshooting"),
		Urgency:              strings.ToLower(stringField(m, "urgency")),
		SuggestedArticle:     optionalString(stringField(m, "suggested_article", "suggestedArticle")),
		DirectAnswer:         optionalString(stringField(m, "direct_answer", "directAnswer")),
	}
	return normalizeIntent(in)
}

func normalizeIntent(in Intent) Intent {
	switch in.Action {
	case ActionAnswer, ActionTroubleshoot, ActionCreateTicket, ActionQuickTicket:
	default:
		switch {
		case in.NeedsTroubleshooting:
			in.Action = ActionTroubleshoot
		default:
			in.Action = ActionAnswer
		}
	}
	if in.Action == ActionTroubleshoot {
		in.NeedsTroubleshooting = true
	}
	if in.IssueType == "" || in.IssueType == "null" {
		in.IssueType = "general"
	}
	switch in.Urgency {
	case "critical", "high", "medium", "low":
	default:
		in.Urgency = "medium"
	}
	if in.Action == ActionAnswer && in.Answer() == "" && !in.NeedsTroubleshooting {
		in.DirectAnswer = strPtr(genericAnswer)
	}
	return in
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

func boolField(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch t := m[k].(type) {
		case bool:
			return t
		case string:
			b, _ := strconv.ParseBool(strings.TrimSpace(t))
			return b
		}
	}
	return false
}

func optionalString(s string) *string {
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	return &s
}

func strPtr(s string) *string { return &s }
