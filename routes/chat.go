package routes

import (
	"net/http"
	"time"

	"cognichat/internal/session"
	"cognichat/middleware"
	"cognichat/models"
	"cognichat/utils"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes registers the session-scoped chat endpoints.
func SetupChatRoutes(router *gin.Engine, manager *session.Manager) {
	chat := router.Group("/chat/sessions")

	chat.POST("", func(c *gin.Context) {
		s := manager.Create(c.Request.Context())
		c.JSON(http.StatusCreated, models.SessionResponse{
			SessionID: s.ID,
			CreatedAt: s.CreatedAt,
		})
	})

	chat.GET("/:id/messages", func(c *gin.Context) {
		id := c.Param("id")
		entries, err := manager.History(c.Request.Context(), id)
		if err != nil {
			middleware.LogError(c, "load history failed", err)
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ConversationHistory{SessionID: id, Messages: entries})
	})

	chat.POST("/:id/messages", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		id := c.Param("id")
		answer, err := manager.Ask(c.Request.Context(), id, req.Message)
		if err != nil {
			middleware.LogError(c, "chat turn failed", err)
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ChatResponse{
			SessionID:      id,
			Reply:          answer.Text,
			Sources:        answer.Sources(),
			Chunks:         answer.SupportingChunks,
			ResponseTimeMs: answer.Duration.Milliseconds(),
			Timestamp:      time.Now().UTC(),
		})
	})

	chat.DELETE("/:id/messages", func(c *gin.Context) {
		if err := manager.Clear(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	chat.DELETE("/:id", func(c *gin.Context) {
		if err := manager.End(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
