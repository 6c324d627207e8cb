// Package messaging is the chat front end seen from the triage core: inbound
// text events and the handful of outbound operations the core needs.
package messaging

import (
	"context"
	"errors"
	"strings"
)

var ErrProfileLookup = errors.New("user profile lookup failed")

const ChannelTypeIM = "im"

// Interactive element ids shared by the renderer and the interaction handler.
const (
	ActionStepSolved   = "step_solved"
	ActionStepFailed   = "step_failed"
	ActionReportIssue  = "report_issue"
	CallbackSubmitForm = "submit_issue"
)

// Event is one inbound text message.
type Event struct {
	Text        string `json:"text"`
	UserID      string `json:"user_id"`
	ChannelID   string `json:"channel_id"`
	ChannelType string `json:"channel_type"`
}

// IsDirect reports whether the event came from a one-to-one conversation.
// Without a channel type the channel id prefix decides.
func (e Event) IsDirect() bool {
	if e.ChannelType != "" {
		return e.ChannelType == ChannelTypeIM
	}
	return strings.HasPrefix(e.ChannelID, "D")
}

type Profile struct {
	DisplayName string
	Email       string
}

type ButtonStyle string

const (
	StylePrimary ButtonStyle = "primary"
	StyleDanger  ButtonStyle = "danger"
)

type Button struct {
	ActionID string      `json:"action_id"`
	Text     string      `json:"text"`
	Value    string      `json:"value,omitempty"`
	Style    ButtonStyle `json:"style,omitempty"`
}

// Message is rendered by each front end as it sees fit. Text is markdown.
type Message struct {
	Header  string   `json:"header,omitempty"`
	Text    string   `json:"text"`
	Context string   `json:"context,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Plain flattens the message for notifications and logs.
func (m Message) Plain() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{m.Header, m.Text, m.Context} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func Text(s string) Message { return Message{Text: s} }

type Option struct {
	Label string
	Value string
}

// FormField is a free-text input, or a select when Options is set.
type FormField struct {
	BlockID     string
	ActionID    string
	Label       string
	Placeholder string
	Multiline   bool
	Options     []Option
}

type Form struct {
	CallbackID  string
	Title       string
	Intro       string
	SubmitLabel string
	CloseLabel  string
	Fields      []FormField
}

type Messenger interface {
	SendPublic(ctx context.Context, channelID string, msg Message) error
	SendEphemeral(ctx context.Context, channelID, userID string, msg Message) error
	SendDirect(ctx context.Context, userID string, msg Message) error
	OpenForm(ctx context.Context, triggerID string, form Form) error
	LookupUser(ctx context.Context, userID string) (Profile, error)
	// PublishHome replaces the user's home tab with msg.
	PublishHome(ctx context.Context, userID string, msg Message) error
}
