package api

import (
	"net/http"

	"github.com/Chedidayeh/meeting-bot/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	authMiddleware := delivery.AuthMiddleware(h.config.JWTSecret)

	r.GET("/metrics", gin.WrapH(h.metrics))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Recording-bot callbacks, authenticated by signature
		api.POST("/webhooks/meetingbaas", h.webhookHandler.MeetingBaas)

		meetings := api.Group("/meetings")
		meetings.Use(authMiddleware)
		{
			meetings.GET("/upcoming", h.meetingHandler.GetUpcoming)
			meetings.GET("/past", h.meetingHandler.GetPast)
			meetings.GET("/:id", h.meetingHandler.GetMeeting)
			meetings.POST("/:id/send-bot", h.meetingHandler.SendBot)
			meetings.PATCH("/:id/bot-toggle", h.meetingHandler.ToggleBot)
		}

		rag := api.Group("/rag")
		rag.Use(authMiddleware)
		{
			rag.POST("/chat/:meetingId", h.ragHandler.ChatMeeting)
			rag.POST("/chat-all", h.ragHandler.ChatAll)
			rag.POST("/process/:meetingId", h.ragHandler.ProcessMeeting)
		}

		chat := api.Group("/chat")
		chat.Use(authMiddleware)
		{
			chat.GET("/global", h.ragHandler.GetGlobalHistory)
			chat.GET("/:meetingId", h.ragHandler.GetHistory)
		}

		user := api.Group("/user")
		user.Use(authMiddleware)
		{
			user.GET("/usage", h.userHandler.GetUsage)
			user.PUT("/bot-settings", h.userHandler.UpdateBotSettings)
		}

		api.POST("/calendar/disconnect", authMiddleware, h.userHandler.DisconnectCalendar)

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(authMiddleware)
		{
			fcm.POST("/register", h.userHandler.RegisterDevice)
			fcm.DELETE("/:token", h.userHandler.UnregisterDevice)
		}
	}
}
