package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/service"
	"github.com/sirupsen/logrus"
)

const sessionKey = "session"

// AuthMiddleware creates middleware that validates session tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
			abortWithError(c, core.ErrSessionInvalid)
			return
		}

		session, err := authService.Validate(c.Request.Context(), strings.TrimSpace(auth[7:]))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// sessionFrom returns the session stored by AuthMiddleware.
func sessionFrom(c *gin.Context) *core.Session {
	return c.MustGet(sessionKey).(*core.Session)
}

// RequestLogger logs every request once it has been served.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  status,
			"latency": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.Last().Err.Error())
		}

		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
