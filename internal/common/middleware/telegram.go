package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"gacha-bot-backend/internal/common/logger"
)

const userContextKey = "telegram_user"

// TelegramInitData validates the Mini App init data carried in the
// init_data header and stores the parsed user in the request context.
func TelegramInitData(botToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("init_data")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
			return
		}

		// Expiration check disabled; clients keep sessions open for
		// hours and the signature alone pins the identity.
		if err := initdata.Validate(raw, botToken, time.Duration(0)); err != nil {
			logger.Debug().Err(err).Msg("Init data validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid init data"})
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			logger.Debug().Err(err).Msg("Init data parse failed")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to parse init data"})
			return
		}

		c.Set(userContextKey, parsed.User)
		c.Next()
	}
}

// UserFromContext returns the authenticated Telegram user set by
// TelegramInitData.
func UserFromContext(c *gin.Context) (initdata.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return initdata.User{}, false
	}
	u, ok := v.(initdata.User)
	return u, ok
}

// RequireAuth rejects requests that did not pass init data validation.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserFromContext(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
			return
		}
		c.Next()
	}
}
