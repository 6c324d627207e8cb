package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suPer8Hu/helpdesk-triage/internal/common"
	"github.com/suPer8Hu/helpdesk-triage/internal/httpapi/handlers"
	"github.com/suPer8Hu/helpdesk-triage/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, slackSigningSecret string, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Slack (signed)
	slackGroup := r.Group("/slack")
	slackGroup.Use(middleware.SlackSignature(slackSigningSecret, log))
	slackGroup.POST("/events", h.SlackEvents)
	slackGroup.POST("/interactions", h.SlackInteractions)

	// ticket updates
	r.POST("/freshservice/webhook", h.FreshserviceWebhook)

	// JSON chat API
	r.POST("/chat/messages", h.SendChatMessage)
	r.POST("/chat/actions", h.ChatAction)
	r.GET("/chat/sessions/:user_id", h.GetChatSession)
	r.GET("/kb/articles", h.ListArticles)
	return r
}
