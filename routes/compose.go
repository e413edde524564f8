package routes

import (
	"context"
	"net/http"

	"cognichat/middleware"
	"cognichat/models"
	"cognichat/utils"

	"github.com/gin-gonic/gin"
)

// Writer produces model output without consulting the index.
type Writer interface {
	Complete(ctx context.Context, prompt string) (*models.Completion, error)
	Compose(ctx context.Context, kind models.CompositionKind, topic string) (*models.Completion, error)
}

// SetupComposeRoutes registers the raw completion endpoint and the templated
// essay and poem endpoints.
func SetupComposeRoutes(router *gin.Engine, writer Writer) {
	router.POST("/complete", func(c *gin.Context) {
		var req models.CompletionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		out, err := writer.Complete(c.Request.Context(), req.Prompt)
		respondWithCompletion(c, out, err)
	})

	for _, kind := range []models.CompositionKind{models.CompositionEssay, models.CompositionPoem} {
		kind := kind
		router.POST("/"+string(kind), func(c *gin.Context) {
			var req models.ComposeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
				return
			}
			out, err := writer.Compose(c.Request.Context(), kind, req.Topic)
			respondWithCompletion(c, out, err)
		})
	}
}

func respondWithCompletion(c *gin.Context, out *models.Completion, err error) {
	if err != nil {
		middleware.LogError(c, "completion failed", err)
		utils.RespondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CompletionResponse{
		Output:         out.Text,
		Model:          out.Model,
		ResponseTimeMs: out.Duration.Milliseconds(),
	})
}
