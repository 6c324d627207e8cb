// Package notify routes "ticket updated" notifications from the ticketing
// backend to the person who raised the ticket.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
)

var ErrInvalidUpdate = errors.New("invalid ticket update")

// Freshservice status codes.
const (
	StatusOpen     = 2
	StatusPending  = 3
	StatusResolved = 4
	StatusClosed   = 5
)

var statusNames = map[int]string{
	StatusOpen:     "Open",
	StatusPending:  "Pending",
	StatusResolved: "Resolved",
	StatusClosed:   "Closed",
}

type Update struct {
	TicketID      string `json:"ticket_id"`
	Subject       string `json:"subject,omitempty"`
	Status        int    `json:"status,omitempty"`
	StatusName    string `json:"status_name,omitempty"`
	LatestNote    string `json:"latest_note,omitempty"`
	ResponderName string `json:"responder_name,omitempty"`
}

// Terminal reports whether the ticket reached resolved or closed.
func (u Update) Terminal() bool {
	if u.Status == StatusResolved || u.Status == StatusClosed {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(u.StatusName)) {
	case "resolved", "closed":
		return true
	}
	return false
}

func (u Update) StatusLabel() string {
	if u.StatusName != "" {
		return u.StatusName
	}
	if name, ok := statusNames[u.Status]; ok {
		return name
	}
	if u.Status != 0 {
		return strconv.Itoa(u.Status)
	}
	return "Updated"
}

type ticketPayload struct {
	ID            common.FlexString `json:"id"`
	TicketID      common.FlexString `json:"ticket_id"`
	Subject       string            `json:"subject"`
	Status        common.FlexString `json:"status"`
	StatusName    string            `json:"status_name"`
	LatestNote    string            `json:"latest_note"`
	ResponderName string            `json:"responder_name"`
}

// ParseUpdate accepts the fields either nested under "ticket" or at the top
// level. Ids and statuses may be numbers or strings.
func ParseUpdate(body []byte) (Update, error) {
	var wrapped struct {
		Ticket *ticketPayload `json:"ticket"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	p := wrapped.Ticket
	if p == nil {
		p = &ticketPayload{}
		if err := json.Unmarshal(body, p); err != nil {
			return Update{}, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
	}

	id := p.ID.String()
	if id == "" {
		id = p.TicketID.String()
	}
	if id == "" {
		return Update{}, fmt.Errorf("%w: missing ticket id", ErrInvalidUpdate)
	}

	u := Update{
		TicketID:      id,
		Subject:       strings.TrimSpace(p.Subject),
		StatusName:    strings.TrimSpace(p.StatusName),
		LatestNote:    strings.TrimSpace(p.LatestNote),
		ResponderName: strings.TrimSpace(p.ResponderName),
	}
	raw := p.Status.String()
	if n, err := strconv.Atoi(raw); err == nil {
		u.Status = n
	} else if u.StatusName == "" {
		u.StatusName = raw
	}
	return u, nil
}
