package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/suPer8Hu/helpdesk-triage/internal/messaging"
	"github.com/suPer8Hu/helpdesk-triage/internal/ticketmap"
)

type Outcome string

const (
	OutcomeNoMapping        Outcome = "no_mapping"
	OutcomeNoReply          Outcome = "no_reply"
	OutcomeDeliveredPrivate Outcome = "delivered_private"
	OutcomeDeliveredStatus  Outcome = "delivered_status"
	OutcomeFailed           Outcome = "failed"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "helpdesk_notifications_total",
	Help: "Ticket update notifications by outcome.",
}, []string{"outcome"})

type Mappings interface {
	Get(ctx context.Context, ticketID string) (ticketmap.Mapping, bool, error)
}

type Replies interface {
	LatestReply(ctx context.Context, ticketID string) (string, bool, error)
}

type DirectMessenger interface {
	SendDirect(ctx context.Context, userID string, msg messaging.Message) error
}

// Handler delivers ticket updates to the requester, always by direct
// message. Sensitive tickets only ever get the agent's latest reply.
type Handler struct {
	mappings Mappings
	replies  Replies
	msgr     DirectMessenger
	log      *slog.Logger
}

func NewHandler(mappings Mappings, replies Replies, msgr DirectMessenger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{mappings: mappings, replies: replies, msgr: msgr, log: log}
}

// Handle returns an error only for failures worth retrying.
func (h *Handler) Handle(ctx context.Context, u Update) (Outcome, error) {
	out, err := h.handle(ctx, u)
	notificationsTotal.WithLabelValues(string(out)).Inc()
	return out, err
}

func (h *Handler) handle(ctx context.Context, u Update) (Outcome, error) {
	m, ok, err := h.mappings.Get(ctx, u.TicketID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("lookup mapping for ticket %s: %w", u.TicketID, err)
	}
	if !ok {
		h.log.Info("no mapping for ticket, ignoring update", "ticket_id", u.TicketID)
		return OutcomeNoMapping, nil
	}

	if m.IsSensitive {
		reply, found, err := h.replies.LatestReply(ctx, u.TicketID)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("latest reply for ticket %s: %w", u.TicketID, err)
		}
		if !found {
			h.log.Info("sensitive ticket has no agent reply yet", "ticket_id", u.TicketID)
			return OutcomeNoReply, nil
		}
		if err := h.msgr.SendDirect(ctx, m.RequesterID, privateReplyMessage(u.TicketID, reply)); err != nil {
			return OutcomeFailed, fmt.Errorf("deliver reply for ticket %s: %w", u.TicketID, err)
		}
		h.log.Info("delivered private ticket reply", "ticket_id", u.TicketID, "user_id", m.RequesterID)
		return OutcomeDeliveredPrivate, nil
	}

	if err := h.msgr.SendDirect(ctx, m.RequesterID, statusMessage(u)); err != nil {
		return OutcomeFailed, fmt.Errorf("deliver status for ticket %s: %w", u.TicketID, err)
	}
	h.log.Info("delivered ticket status", "ticket_id", u.TicketID, "user_id", m.RequesterID, "status", u.StatusLabel())
	return OutcomeDeliveredStatus, nil
}

func privateReplyMessage(ticketID, reply string) messaging.Message {
	return messaging.Message{
		Text:    fmt.Sprintf("🔒 *Update on your ticket #%s*\n\n%s", ticketID, reply),
		Context: "This message was sent privately because the ticket may contain sensitive information.",
	}
}

func statusMessage(u Update) messaging.Message {
	ref := "#" + u.TicketID
	if u.Subject != "" {
		ref += " (" + u.Subject + ")"
	}

	var b strings.Builder
	switch {
	case u.Terminal():
		fmt.Fprintf(&b, "✅ Your ticket *%s* has been *%s*.", ref, u.StatusLabel())
		if u.LatestNote != "" {
			fmt.Fprintf(&b, "\n\n%s", quote(u.LatestNote))
		}
	case u.LatestNote != "":
		who := u.ResponderName
		if who == "" {
			who = "IT Support"
		}
		fmt.Fprintf(&b, "📝 New update on your ticket *%s* from %s:\n\n%s", ref, who, quote(u.LatestNote))
	default:
		fmt.Fprintf(&b, "🔔 The status of your ticket *%s* changed to *%s*.", ref, u.StatusLabel())
	}
	return messaging.Message{Text: b.String()}
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
