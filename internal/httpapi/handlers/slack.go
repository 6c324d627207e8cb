package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/suPer8Hu/helpdesk-triage/internal/chat"
	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
)

// SlackEvents receives the Events API. Slack wants an answer within three
// seconds, so everything past the url check runs after the ack.
func (h *Handler) SlackEvents(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	outer, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid event payload")
		return
	}

	switch outer.Type {
	case slackevents.URLVerification:
		ch, ok := outer.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid challenge")
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": ch.Challenge})
		return
	case slackevents.CallbackEvent:
	default:
		c.Status(http.StatusOK)
		return
	}

	// a redelivery of something already acknowledged
	if c.GetHeader("X-Slack-Retry-Num") != "" {
		h.log.Debug("slack retry ignored", "reason", c.GetHeader("X-Slack-Retry-Reason"))
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusOK)

	switch ev := outer.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" || ev.User == "" {
			return
		}
		text, _ := messaging.StripMention(ev.Text, h.botUserID)
		e := messaging.Event{Text: text, UserID: ev.User, ChannelID: ev.Channel}
		h.spawn("slack.app_mention", func() {
			if err := h.chat.HandleMessage(context.Background(), e); err != nil {
				h.log.Error("handle mention failed", "user", e.UserID, "error", err)
			}
		})
	case *slackevents.MessageEvent:
		h.onMessage(ev)
	case *slackevents.AppHomeOpenedEvent:
		if ev.Tab != "" && ev.Tab != "home" {
			return
		}
		userID := ev.User
		h.spawn("slack.app_home_opened", func() {
			if err := h.chat.PublishHome(context.Background(), userID); err != nil {
				h.log.Error("publish home failed", "user", userID, "error", err)
			}
		})
	}
}

func (h *Handler) onMessage(ev *slackevents.MessageEvent) {
	// edits, joins and bot posts carry a subtype or bot id
	if ev.BotID != "" || ev.SubType != "" || ev.User == "" || ev.User == h.botUserID {
		return
	}
	e := messaging.Event{Text: ev.Text, UserID: ev.User, ChannelID: ev.Channel, ChannelType: ev.ChannelType}

	if e.IsDirect() {
		if text, _ := messaging.StripMention(e.Text, h.botUserID); text != "" {
			e.Text = text
		}
		h.spawn("slack.direct_message", func() {
			if err := h.chat.HandleMessage(context.Background(), e); err != nil {
				h.log.Error("handle direct message failed", "user", e.UserID, "error", err)
			}
		})
		return
	}
	// mentions arrive again as app_mention
	if _, mentioned := messaging.StripMention(e.Text, h.botUserID); mentioned {
		return
	}
	h.spawn("slack.channel_message", func() {
		if _, err := h.chat.HandleAmbient(context.Background(), e); err != nil {
			h.log.Error("handle channel message failed", "user", e.UserID, "channel", e.ChannelID, "error", err)
		}
	})
}

// SlackInteractions receives button clicks and form submissions.
func (h *Handler) SlackInteractions(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "missing payload")
		return
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &cb); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid payload")
		return
	}

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		h.onBlockActions(c.Request.Context(), &cb)
		c.Status(http.StatusOK)
	case slack.InteractionTypeViewSubmission:
		h.onViewSubmission(c, &cb)
	default:
		c.Status(http.StatusOK)
	}
}

func (h *Handler) onBlockActions(ctx context.Context, cb *slack.InteractionCallback) {
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	ev := messaging.Event{UserID: cb.User.ID, ChannelID: channelID}

	for _, a := range cb.ActionCallback.BlockActions {
		switch a.ActionID {
		case messaging.ActionStepSolved:
			h.spawn("slack.step_solved", func() {
				if err := h.chat.StepSolved(context.Background(), ev); err != nil {
					h.log.Error("step solved failed", "user", ev.UserID, "error", err)
				}
			})
		case messaging.ActionStepFailed:
			v, err := chat.DecodeStepValue(a.Value)
			if err != nil {
				h.log.Warn("bad step value", "user", ev.UserID, "value", a.Value, "error", err)
				continue
			}
			h.spawn("slack.step_failed", func() {
				if err := h.chat.StepFailed(context.Background(), ev, v.Step); err != nil {
					h.log.Error("step failed handling failed", "user", ev.UserID, "error", err)
				}
			})
		case messaging.ActionReportIssue:
			// trigger ids expire within seconds
			if err := h.chat.ReportIssue(ctx, cb.TriggerID); err != nil {
				h.log.Error("open report form failed", "user", ev.UserID, "error", err)
			}
		default:
			h.log.Debug("unknown action ignored", "action_id", a.ActionID)
		}
	}
}

func (h *Handler) onViewSubmission(c *gin.Context, cb *slack.InteractionCallback) {
	if cb.View.CallbackID != messaging.CallbackSubmitForm {
		c.Status(http.StatusOK)
		return
	}
	var description, category string
	if cb.View.State != nil {
		description = strings.TrimSpace(cb.View.State.Values[chat.FormDescriptionBlock][chat.FormDescriptionAction].Value)
		category = cb.View.State.Values[chat.FormCategoryBlock][chat.FormCategoryAction].SelectedOption.Value
	}
	if description == "" {
		c.JSON(http.StatusOK, slack.NewErrorsViewSubmissionResponse(map[string]string{
			chat.FormDescriptionBlock: "Please describe your issue.",
		}))
		return
	}

	userID := cb.User.ID
	h.spawn("slack.submit_issue", func() {
		if _, err := h.chat.SubmitIssueForm(context.Background(), userID, category, description); err != nil {
			h.log.Error("submit issue form failed", "user", userID, "error", err)
		}
	})
	c.Status(http.StatusOK)
}
