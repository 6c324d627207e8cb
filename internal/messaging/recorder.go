package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type DeliveryKind string

const (
	KindPublic    DeliveryKind = "public"
	KindEphemeral DeliveryKind = "ephemeral"
	KindDirect    DeliveryKind = "direct"
	KindForm      DeliveryKind = "form"
	KindHome      DeliveryKind = "home"
)

type Delivery struct {
	Kind      DeliveryKind `json:"kind"`
	ChannelID string       `json:"channel_id,omitempty"`
	UserID    string       `json:"user_id,omitempty"`
	Message   Message      `json:"message"`
	Form      *Form        `json:"form,omitempty"`
}

// Recorder keeps every delivery in memory. The JSON chat API uses one per
// request to hand replies back to the caller.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery

	// Profiles answers LookupUser; unknown users fail with ErrProfileLookup.
	Profiles map[string]Profile
	// FailEphemeral makes SendEphemeral return an error.
	FailEphemeral bool
}

func NewRecorder() *Recorder {
	return &Recorder{Profiles: map[string]Profile{}}
}

func (r *Recorder) add(d Delivery) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	r.mu.Unlock()
}

func (r *Recorder) SendPublic(_ context.Context, channelID string, msg Message) error {
	r.add(Delivery{Kind: KindPublic, ChannelID: channelID, Message: msg})
	return nil
}

func (r *Recorder) SendEphemeral(_ context.Context, channelID, userID string, msg Message) error {
	if r.FailEphemeral {
		return fmt.Errorf("ephemeral delivery to %s disabled", channelID)
	}
	r.add(Delivery{Kind: KindEphemeral, ChannelID: channelID, UserID: userID, Message: msg})
	return nil
}

func (r *Recorder) SendDirect(_ context.Context, userID string, msg Message) error {
	r.add(Delivery{Kind: KindDirect, UserID: userID, Message: msg})
	return nil
}

func (r *Recorder) OpenForm(_ context.Context, triggerID string, form Form) error {
	r.add(Delivery{Kind: KindForm, ChannelID: triggerID, Form: &form})
	return nil
}

func (r *Recorder) PublishHome(_ context.Context, userID string, msg Message) error {
	r.add(Delivery{Kind: KindHome, UserID: userID, Message: msg})
	return nil
}

func (r *Recorder) LookupUser(_ context.Context, userID string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileLookup, userID)
	}
	return p, nil
}

// Deliveries returns a copy of everything sent so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.deliveries = nil
	r.mu.Unlock()
}

// LogMessenger writes deliveries to the log. It stands in for Slack when no
// bot token is configured.
type LogMessenger struct {
	Log *slog.Logger
}

func (l LogMessenger) SendPublic(_ context.Context, channelID string, msg Message) error {
	l.Log.Info("message", "kind", KindPublic, "channel", channelID, "text", msg.Plain())
	return nil
}

func (l LogMessenger) SendEphemeral(_ context.Context, channelID, userID string, msg Message) error {
	l.Log.Info("message", "kind", KindEphemeral, "channel", channelID, "user", userID, "text", msg.Plain())
	return nil
}

func (l LogMessenger) SendDirect(_ context.Context, userID string, msg Message) error {
	l.Log.Info("message", "kind", KindDirect, "user", userID, "text", msg.Plain())
	return nil
}

func (l LogMessenger) OpenForm(_ context.Context, triggerID string, form Form) error {
	l.Log.Info("form", "trigger", triggerID, "callback_id", form.CallbackID)
	return nil
}

func (l LogMessenger) PublishHome(_ context.Context, userID string, msg Message) error {
	l.Log.Info("home tab", "user", userID, "text", msg.Plain())
	return nil
}

func (l LogMessenger) LookupUser(_ context.Context, userID string) (Profile, error) {
	return Profile{}, fmt.Errorf("%w: no directory for %s", ErrProfileLookup, userID)
}
