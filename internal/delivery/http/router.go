package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"gacha-bot-backend/internal/common/config"
	"gacha-bot-backend/internal/common/middleware"
	"gacha-bot-backend/internal/engine"
)

// NewRouter assembles the Mini App API. Every /api/v1 route sits behind
// init data authentication; admin routes additionally go through the
// engine's owner check.
func NewRouter(cfg *config.Config, eng *engine.Engine, rdb *redis.Client) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data"}
	router.Use(cors.New(corsConfig))

	h := newHandlers(eng)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelegramInitData(cfg.Telegram.BotToken))
	v1.Use(middleware.RequireAuth())
	{
		v1.POST("/actions", h.action)
		v1.POST("/auth", h.auth)
		v1.POST("/gacha/pull", h.pull)
		v1.GET("/me", h.status)
		v1.GET("/me/history", h.history)
		v1.GET("/me/inventory", h.inventory)
		v1.GET("/me/invite", h.invite)
		v1.GET("/leaderboard", h.leaderboard)
		v1.GET("/items", h.listItems)

		admin := v1.Group("/admin")
		{
			admin.POST("/items", h.addItem)
			admin.DELETE("/items/:id", h.deleteItem)
			admin.GET("/admins", h.listAdmins)
			admin.POST("/admins/:id", h.addAdmin)
			admin.DELETE("/admins/:id", h.removeAdmin)
			admin.GET("/premium", h.listPremium)
			admin.POST("/premium/:id", h.addPremium)
			admin.DELETE("/premium/:id", h.removePremium)
			admin.POST("/limits", h.adjustLimit)
			admin.GET("/private", h.privateStatus)
			admin.POST("/private", h.privateUpdate)
			admin.GET("/stats", h.stats)
			admin.POST("/backup", h.backup)
			admin.POST("/broadcast", h.broadcast)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "gacha-bot-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unready",
				"error":  "redis unavailable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return router
}
