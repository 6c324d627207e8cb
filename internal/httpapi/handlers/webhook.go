package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/notify"
)

// FreshserviceWebhook accepts a ticket update. With a queue configured the
// update is enqueued for the worker; otherwise it is handled in process.
func (h *Handler) FreshserviceWebhook(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	u, err := notify.ParseUpdate(body)
	if err != nil {
		h.log.Warn("rejecting ticket update", "error", err)
		common.Fail(c, http.StatusBadRequest, 10001, "invalid ticket update")
		return
	}

	if h.queue != nil {
		job := notify.NewJob(u, time.Now())
		b, err := job.Encode()
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		if err := h.queue.Publish(c.Request.Context(), b); err != nil {
			h.log.Error("enqueue ticket update failed", "ticket_id", u.TicketID, "job_id", job.ID, "error", err)
			common.Fail(c, http.StatusServiceUnavailable, 50002, "enqueue failed")
			return
		}
		common.Ok(c, gin.H{"ticket_id": u.TicketID, "job_id": job.ID, "queued": true})
		return
	}

	h.spawn("notify.update", func() {
		out, err := h.notify.Handle(context.Background(), u)
		if err != nil {
			h.log.Error("ticket update not delivered", "ticket_id", u.TicketID, "outcome", out, "error", err)
		}
	})
	common.Ok(c, gin.H{"ticket_id": u.TicketID, "queued": false})
}
