package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type RouterDependencies struct {
	SyncHandler    *SyncHandler
	TrackerHandler *TrackerHandler
	DB             *sqlx.DB
	Redis          *redis.Client
	StartTime      time.Time
}

// NewRouter builds the local control API, served on loopback only.
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		dbStatus := "connected"
		if deps.DB == nil || deps.DB.Ping() != nil {
			dbStatus = "unreachable"
		}

		redisStatus := "connected"
		if deps.Redis == nil || deps.Redis.Ping(c.Request.Context()).Err() != nil {
			redisStatus = "unreachable"
		}

		// Remote backends being down does not make the agent unhealthy.
		c.JSON(200, gin.H{
			"status":   "ok",
			"database": dbStatus,
			"redis":    redisStatus,
			"uptime":   time.Since(deps.StartTime).String(),
		})
	})

	apiV1 := router.Group("/api/v1")

	deps.SyncHandler.RegisterRoutes(apiV1)
	deps.TrackerHandler.RegisterRoutes(apiV1)

	return router
}
