// Package ticketing is a small Freshservice v2 client: create a ticket and
// read its conversation thread.
package ticketing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
)

var ErrTicketing = errors.New("ticketing backend failed")

const (
	priorityLow      = 1
	statusOpen       = 2
	sourcePortal     = 2
	defaultRequester = "Slack User"
)

type TicketRequest struct {
	Subject        string
	Description    string
	RequesterEmail string
	RequesterName  string
}

type Ticket struct {
	ID       common.FlexString `json:"id"`
	Subject  string            `json:"subject"`
	Status   int               `json:"status"`
	Priority int               `json:"priority"`
}

// Reply is one entry of a ticket's conversation.
type Reply struct {
	Author    string
	Body      string
	IsInbound bool
	CreatedAt time.Time
}

// Client talks to Freshservice. With no domain or key it runs in mock mode
// and never touches the network.
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	log     *slog.Logger
}

func NewClient(domain, apiKey string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(domain), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		BaseURL: base,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 20 * time.Second},
		log:     log,
	}
}

func (c *Client) Mock() bool {
	return c.BaseURL == "" || strings.TrimSpace(c.APIKey) == ""
}

type createTicketReq struct {
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	Status      int    `json:"status"`
	Source      int    `json:"source"`
}

func (c *Client) CreateTicket(ctx context.Context, req TicketRequest) (*Ticket, error) {
	if c.Mock() {
		c.log.Warn("freshservice credentials missing, mocking ticket creation", "subject", req.Subject)
		return &Ticket{
			ID:       common.FlexString(strconv.Itoa(rand.IntN(10000) + 1)),
			Subject:  req.Subject,
			Status:   statusOpen,
			Priority: priorityLow,
		}, nil
	}

	name := req.RequesterName
	if strings.TrimSpace(name) == "" {
		name = defaultRequester
	}
	body := createTicketReq{
		Description: req.Description,
		Subject:     req.Subject,
		Email:       req.RequesterEmail,
		Name:        name,
		Priority:    priorityLow,
		Status:      statusOpen,
		Source:      sourcePortal,
	}

	var decoded struct {
		Ticket *Ticket `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v2/tickets", body, &decoded); err != nil {
		return nil, err
	}
	if decoded.Ticket == nil || decoded.Ticket.ID == "" {
		return nil, fmt.Errorf("%w: response without ticket", ErrTicketing)
	}
	return decoded.Ticket, nil
}

type conversation struct {
	BodyText  string            `json:"body_text"`
	Body      string            `json:"body"`
	Incoming  bool              `json:"incoming"`
	UserID    common.FlexString `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
}

// ListReplies returns the conversation of ticketID, oldest first.
func (c *Client) ListReplies(ctx context.Context, ticketID string) ([]Reply, error) {
	if c.Mock() {
		c.log.Warn("freshservice credentials missing, returning mock conversation", "ticket_id", ticketID)
		return []Reply{{
			Author:    "1",
			Body:      "Thank you for reaching out to the IT Helpdesk. Your request has been processed.",
			CreatedAt: time.Now().UTC(),
		}}, nil
	}

	var decoded struct {
		Conversations []conversation `json:"conversations"`
	}
	path := fmt.Sprintf("/api/v2/tickets/%s/conversations", url.PathEscape(strings.TrimSpace(ticketID)))
	if err := c.do(ctx, http.MethodGet, path, nil, &decoded); err != nil {
		return nil, err
	}

	out := make([]Reply, 0, len(decoded.Conversations))
	for _, cv := range decoded.Conversations {
		body := cv.BodyText
		if strings.TrimSpace(body) == "" {
			body = cv.Body
		}
		out = append(out, Reply{
			Author:    cv.UserID.String(),
			Body:      strings.TrimSpace(body),
			IsInbound: cv.Incoming,
			CreatedAt: cv.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LatestReply picks the newest non-inbound reply with a body.
func LatestReply(replies []Reply) (Reply, bool) {
	var (
		best  Reply
		found bool
	)
	for _, r := range replies {
		if r.IsInbound || strings.TrimSpace(r.Body) == "" {
			continue
		}
		if !found || r.CreatedAt.After(best.CreatedAt) {
			best, found = r, true
		}
	}
	return best, found
}

// LatestReply fetches the conversation and returns its latest agent reply.
func (c *Client) LatestReply(ctx context.Context, ticketID string) (string, bool, error) {
	replies, err := c.ListReplies(ctx, ticketID)
	if err != nil {
		return "", false, err
	}
	r, ok := LatestReply(replies)
	return r.Body, ok, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.Client == nil {
		return fmt.Errorf("%w: http client is nil", ErrTicketing)
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.APIKey+":X")))

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTicketing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrTicketing, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrTicketing, err)
	}
	return nil
}
