package routes

import (
	"context"
	"net/http"
	"time"

	"cognichat/internal/logger"
	"cognichat/internal/session"
	"cognichat/middleware"
	"cognichat/utils"

	"github.com/gin-gonic/gin"
)

// rebuildTimeout bounds a background rebuild started from the admin API.
const rebuildTimeout = 15 * time.Minute

// SetupAdminRoutes registers the index management endpoints behind an admin token.
func SetupAdminRoutes(router *gin.Engine, adminSecret string, index IndexController, manager *session.Manager) {
	admin := router.Group("/admin")
	admin.Use(middleware.RequireAdmin(adminSecret))

	admin.GET("/index", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"index":    index.Status(),
			"sessions": manager.Count(),
		})
	})

	// POST /admin/index/rebuild?async=true returns at once and rebuilds in the background.
	admin.POST("/index/rebuild", func(c *gin.Context) {
		subject := ""
		if claims := middleware.GetClaims(c); claims != nil {
			subject = claims.Subject
		}
		logger.Info("index rebuild requested", "by", subject, "request_id", middleware.GetRequestID(c))

		if c.Query("async") == "true" {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
				defer cancel()
				if err := index.Rebuild(ctx); err != nil {
					logger.Error("background rebuild failed", "error", err)
				}
			}()
			c.JSON(http.StatusAccepted, gin.H{"message": "Rebuild started"})
			return
		}

		if err := index.Rebuild(c.Request.Context()); err != nil {
			middleware.LogError(c, "rebuild failed", err)
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Index rebuilt", "index": index.Status()})
	})

	admin.DELETE("/index", func(c *gin.Context) {
		index.Invalidate()
		c.Status(http.StatusNoContent)
	})
}
