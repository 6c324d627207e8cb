package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/helpdesk-triage/internal/chat"
	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/kb"
	"github.com/suPer8Hu/helpdesk-triage/internal/notify"
)

// Publisher queues encoded notification jobs.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

type ArticleLister interface {
	All() []*kb.Article
}

type Deps struct {
	Chat     *chat.Service
	Notify   *notify.Handler
	Queue    Publisher // nil handles updates in process
	Articles ArticleLister
	// BotUserID is stripped from mentions and used to skip duplicated
	// message events.
	BotUserID string
	Log       *slog.Logger
	// Spawn runs work after the HTTP acknowledgement. Defaults to
	// common.SafeGo.
	Spawn func(name string, fn func())
}

type Handler struct {
	chat      *chat.Service
	notify    *notify.Handler
	queue     Publisher
	articles  ArticleLister
	botUserID string
	log       *slog.Logger
	spawn     func(name string, fn func())
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		chat:      d.Chat,
		notify:    d.Notify,
		queue:     d.Queue,
		articles:  d.Articles,
		botUserID: d.BotUserID,
		log:       log,
		spawn:     d.Spawn,
	}
	if h.spawn == nil {
		h.spawn = func(name string, fn func()) { common.SafeGo(log, name, fn) }
	}
	return h
}

func (h *Handler) Ping(c *gin.Context) {
	common.Ok(c, gin.H{"pong": true})
}

type articleSummary struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	IssueType string   `json:"issue_type,omitempty"`
	Keywords  []string `json:"keywords"`
	Steps     int      `json:"steps"`
}

func (h *Handler) ListArticles(c *gin.Context) {
	if h.articles == nil {
		common.Ok(c, gin.H{"articles": []articleSummary{}})
		return
	}
	all := h.articles.All()
	out := make([]articleSummary, 0, len(all))
	for _, a := range all {
		out = append(out, articleSummary{
			ID:        a.ID,
			Title:     a.Title,
			IssueType: a.IssueType,
			Keywords:  a.Keywords,
			Steps:     len(a.Steps),
		})
	}
	common.Ok(c, gin.H{"articles": out})
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "unreadable body")
		return nil, false
	}
	return body, true
}
