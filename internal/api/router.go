package api

import (
	"net/http"

	"github.com/doubtdesk/backend/internal/api/handlers"
	"github.com/doubtdesk/backend/internal/config"
	"github.com/doubtdesk/backend/internal/middleware"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Chat          *handlers.ChatHandler
	Tutor         *handlers.TutorHandler
	Admin         *handlers.AdminHandler
	Authenticator *middleware.Authenticator
	Health        gin.HandlerFunc
}

// SetupRouter wires middleware and routes onto a gin engine.
func SetupRouter(cfg *config.Config, h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.NewRateLimiter(120).RateLimit())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "online",
			"message": "Doubt Solving Bot API is running!",
		})
	})

	if h.Health != nil {
		r.GET("/health", h.Health)
	}

	r.POST("/register/:role", h.Auth.HandleRegister)
	r.POST("/login", h.Auth.HandleLogin)

	authed := r.Group("/", h.Authenticator.Authenticate())

	student := authed.Group("", middleware.RequireRole(models.RoleStudent))
	{
		student.POST("/query", h.Chat.HandleQuery)
		student.POST("/escalate/:query_id", h.Chat.HandleEscalate)
		student.POST("/feedback", h.Chat.HandleFeedback)
		student.GET("/history", h.Chat.HandleHistory)
		student.POST("/session/new", h.Chat.HandleNewSession)
		student.PUT("/users/me", h.Auth.HandleUpdateProfile)
	}

	tutor := authed.Group("", middleware.RequireRole(models.RoleTutor))
	{
		tutor.GET("/tutor/pending", h.Tutor.HandlePending)
		tutor.POST("/tutor/answer", h.Tutor.HandleAnswer)
	}

	admin := authed.Group("", middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/admin/stats", h.Admin.HandleStats)
		admin.GET("/admin/reports", h.Admin.HandleReports)
		admin.GET("/admin/users", h.Admin.HandleUsers)
	}

	return r
}
