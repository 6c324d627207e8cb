package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
)

var ErrBadSignature = errors.New("invalid request signature")

// Slack implements Messenger on the Slack Web API.
type Slack struct {
	api *slack.Client
	log *slog.Logger
}

// NewSlack builds a client for token. apiURL overrides the Web API base
// (tests point it at an httptest server).
func NewSlack(token, apiURL string, log *slog.Logger) *Slack {
	if log == nil {
		log = slog.Default()
	}
	opts := []slack.Option{}
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Slack{api: slack.New(token, opts...), log: log}
}

func (s *Slack) SendPublic(ctx context.Context, channelID string, msg Message) error {
	if _, _, err := s.api.PostMessageContext(ctx, channelID, msgOptions(msg)...); err != nil {
		return fmt.Errorf("chat.postMessage %s: %w", channelID, err)
	}
	return nil
}

func (s *Slack) SendEphemeral(ctx context.Context, channelID, userID string, msg Message) error {
	if _, err := s.api.PostEphemeralContext(ctx, channelID, userID, msgOptions(msg)...); err != nil {
		return fmt.Errorf("chat.postEphemeral %s: %w", channelID, err)
	}
	return nil
}

// SendDirect posts with the user id as channel, which lands in the bot's DM.
func (s *Slack) SendDirect(ctx context.Context, userID string, msg Message) error {
	if _, _, err := s.api.PostMessageContext(ctx, userID, msgOptions(msg)...); err != nil {
		return fmt.Errorf("direct message %s: %w", userID, err)
	}
	return nil
}

func (s *Slack) OpenForm(ctx context.Context, triggerID string, form Form) error {
	if _, err := s.api.OpenViewContext(ctx, triggerID, modalView(form)); err != nil {
		return fmt.Errorf("views.open: %w", err)
	}
	return nil
}

func (s *Slack) PublishHome(ctx context.Context, userID string, msg Message) error {
	view := slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks(msg)},
	}
	if _, err := s.api.PublishViewContext(ctx, userID, view, ""); err != nil {
		return fmt.Errorf("views.publish %s: %w", userID, err)
	}
	return nil
}

func (s *Slack) LookupUser(ctx context.Context, userID string) (Profile, error) {
	u, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %s: %v", ErrProfileLookup, userID, err)
	}
	name := u.RealName
	if name == "" {
		name = u.Name
	}
	return Profile{DisplayName: name, Email: u.Profile.Email}, nil
}

// VerifyRequest checks the X-Slack-Signature header against body. Requests
// older than five minutes are rejected.
func VerifyRequest(header http.Header, body []byte, signingSecret string) error {
	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

func msgOptions(m Message) []slack.MsgOption {
	return []slack.MsgOption{
		slack.MsgOptionText(m.Plain(), false),
		slack.MsgOptionBlocks(blocks(m)...),
	}
}

func plain(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, s, true, false)
}

func mrkdwn(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
}

func blocks(m Message) []slack.Block {
	out := make([]slack.Block, 0, 4)
	if m.Header != "" {
		out = append(out, slack.NewHeaderBlock(plain(m.Header)))
	}
	if m.Text != "" {
		out = append(out, slack.NewSectionBlock(mrkdwn(m.Text), nil, nil))
	}
	if m.Context != "" {
		out = append(out, slack.NewContextBlock("", mrkdwn(m.Context)))
	}
	if len(m.Buttons) > 0 {
		elems := make([]slack.BlockElement, 0, len(m.Buttons))
		for _, b := range m.Buttons {
			btn := slack.NewButtonBlockElement(b.ActionID, b.Value, plain(b.Text))
			if b.Style != "" {
				btn = btn.WithStyle(slack.Style(b.Style))
			}
			elems = append(elems, btn)
		}
		out = append(out, slack.NewActionBlock("", elems...))
	}
	return out
}

func modalView(f Form) slack.ModalViewRequest {
	set := make([]slack.Block, 0, len(f.Fields)+1)
	if f.Intro != "" {
		set = append(set, slack.NewSectionBlock(mrkdwn(f.Intro), nil, nil))
	}
	for _, fld := range f.Fields {
		var placeholder *slack.TextBlockObject
		if fld.Placeholder != "" {
			placeholder = plain(fld.Placeholder)
		}

		var elem slack.BlockElement
		if len(fld.Options) > 0 {
			opts := make([]*slack.OptionBlockObject, 0, len(fld.Options))
			for _, o := range fld.Options {
				opts = append(opts, slack.NewOptionBlockObject(o.Value, plain(o.Label), nil))
			}
			elem = slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, placeholder, fld.ActionID, opts...)
		} else {
			in := slack.NewPlainTextInputBlockElement(placeholder, fld.ActionID)
			in.Multiline = fld.Multiline
			elem = in
		}
		set = append(set, slack.NewInputBlock(fld.BlockID, plain(fld.Label), nil, elem))
	}

	view := slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: f.CallbackID,
		Title:      plain(f.Title),
		Blocks:     slack.Blocks{BlockSet: set},
	}
	if f.SubmitLabel != "" {
		view.Submit = plain(f.SubmitLabel)
	}
	if f.CloseLabel != "" {
		view.Close = plain(f.CloseLabel)
	}
	return view
}
