package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/helpdesk-triage/internal/chat"
	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
)

// The JSON chat API drives the same conversation as Slack and returns the
// replies in the response instead of posting them.

type sendMessageReq struct {
	UserID      string `json:"user_id" binding:"required"`
	ChannelID   string `json:"channel_id"`
	ChannelType string `json:"channel_type"`
	Text        string `json:"text" binding:"required"`
	// Ambient applies the channel engagement rule instead of treating the
	// text as addressed to the bot.
	Ambient bool `json:"ambient"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	rec := messaging.NewRecorder()
	svc := h.chat.WithMessenger(rec)
	ev := messaging.Event{Text: req.Text, UserID: req.UserID, ChannelID: req.ChannelID, ChannelType: req.ChannelType}

	engaged := true
	var err error
	if req.Ambient {
		engaged, err = svc.HandleAmbient(c.Request.Context(), ev)
	} else {
		err = svc.HandleMessage(c.Request.Context(), ev)
	}
	if err != nil {
		h.log.Error("chat message failed", "user", req.UserID, "error", err)
	}
	h.respond(c, svc, req.UserID, rec, gin.H{"engaged": engaged})
}

type stepActionReq struct {
	UserID    string `json:"user_id" binding:"required"`
	ChannelID string `json:"channel_id"`
	Action    string `json:"action" binding:"required"`
	Step      int    `json:"step"`
}

// ChatAction answers a troubleshooting step, like the Slack buttons do.
func (h *Handler) ChatAction(c *gin.Context) {
	var req stepActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	rec := messaging.NewRecorder()
	svc := h.chat.WithMessenger(rec)
	ev := messaging.Event{UserID: req.UserID, ChannelID: req.ChannelID}

	var err error
	switch req.Action {
	case messaging.ActionStepSolved:
		err = svc.StepSolved(c.Request.Context(), ev)
	case messaging.ActionStepFailed:
		err = svc.StepFailed(c.Request.Context(), ev, req.Step)
	default:
		common.Fail(c, http.StatusBadRequest, 10003, "unknown action")
		return
	}
	if err != nil {
		h.log.Error("chat action failed", "user", req.UserID, "action", req.Action, "error", err)
	}
	h.respond(c, svc, req.UserID, rec, nil)
}

func (h *Handler) GetChatSession(c *gin.Context) {
	sess, err := h.chat.Session(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load session")
		return
	}
	common.Ok(c, gin.H{"session": sess})
}

func (h *Handler) respond(c *gin.Context, svc *chat.Service, userID string, rec *messaging.Recorder, extra gin.H) {
	sess, err := svc.Session(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load session")
		return
	}
	out := gin.H{
		"replies": rec.Deliveries(),
		"session": sess,
	}
	for k, v := range extra {
		out[k] = v
	}
	common.Ok(c, out)
}
