package routes

import (
	"net/http"

	"cognichat/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SetupHealthRoutes registers liveness and readiness probes. rdb may be nil.
func SetupHealthRoutes(router *gin.Engine, index IndexController, rdb *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := index.Status()
		body := gin.H{"index": status}

		ready := status.Built
		if rdb != nil {
			ctx, cancel := utils.WithShortTimeout(c.Request.Context())
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				ready = false
				body["redis"] = "unreachable"
			} else {
				body["redis"] = "ok"
			}
		}

		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
}
