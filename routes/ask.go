package routes

import (
	"net/http"

	"cognichat/middleware"
	"cognichat/models"
	"cognichat/utils"

	"github.com/gin-gonic/gin"
)

// SetupAskRoutes registers the one-shot question endpoint.
func SetupAskRoutes(router *gin.Engine, answerer Answerer) {
	router.POST("/ask", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		answer, err := answerer.Ask(c.Request.Context(), req.Question)
		if err != nil {
			middleware.LogError(c, "ask failed", err)
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.AskResponse{
			Answer:         answer.Text,
			Sources:        answer.Sources(),
			ResponseTimeMs: answer.Duration.Milliseconds(),
		})
	})
}
