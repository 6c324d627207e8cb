package chat

import (
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/kb"
)

type State string

const (
	StateIdle               State = "IDLE"
	StateAwaitingEmpID      State = "AWAITING_EMP_ID"
	StateAwaitingEmpIDQuick State = "AWAITING_EMP_ID_QUICK"
	StateAwaitingHostname   State = "AWAITING_HOSTNAME"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TicketDraft collects what a ticket needs while the user supplies it.
type TicketDraft struct {
	Subject       string `json:"subject,omitempty"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	EmpID         string `json:"emp_id,omitempty"`
	Hostname      string `json:"hostname,omitempty"`
	IsQuickTicket bool   `json:"is_quick_ticket,omitempty"`
}

type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one user's conversation. A non-nil CurrentArticle means the
// user is mid-troubleshooting; State then stays IDLE.
type Session struct {
	UserID         string         `json:"user_id"`
	State          State          `json:"state"`
	PendingTicket  *TicketDraft   `json:"pending_ticket,omitempty"`
	CurrentArticle *kb.Article    `json:"current_article,omitempty"`
	Step           int            `json:"step"`
	Attempts       int            `json:"attempts"`
	TicketCreated  bool           `json:"ticket_created"`
	History        []HistoryEntry `json:"history,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func newSession(userID string) *Session {
	return &Session{UserID: userID, State: StateIdle}
}

// InConversation reports whether the user is gathering ticket data or
// troubleshooting.
func (s *Session) InConversation() bool {
	return s.State != StateIdle || s.CurrentArticle != nil
}

func (s *Session) startTroubleshooting(a *kb.Article) {
	s.State = StateIdle
	s.PendingTicket = nil
	s.CurrentArticle = a
	s.Step = 1
	s.Attempts = 0
	s.TicketCreated = false
}

// beginDraft switches to data gathering. Troubleshooting ends here, so the
// article and its counters go too; TicketCreated is left as is.
func (s *Session) beginDraft(state State, d *TicketDraft) {
	s.State = state
	s.PendingTicket = d
	s.CurrentArticle = nil
	s.Step = 0
	s.Attempts = 0
}

func (s *Session) addHistory(role, content string, at time.Time, limit int) {
	if content == "" {
		return
	}
	s.History = append(s.History, HistoryEntry{Role: role, Content: content, Timestamp: at})
	if limit > 0 && len(s.History) > limit {
		s.History = append([]HistoryEntry(nil), s.History[len(s.History)-limit:]...)
	}
}
