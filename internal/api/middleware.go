package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/auth"
)

// requestLogger logs one line per request.
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if uid := auth.UserID(c); uid != "" {
			entry = entry.WithField("user_id", uid)
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Info("request rejected")
		default:
			entry.Debug("request")
		}
	}
}

// respondError writes err as a JSON error envelope. Server-side failures are
// logged in full; the client only sees their kind.
func respondError(c *gin.Context, logger *log.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithFields(log.Fields{
			"path": c.FullPath(),
			"kind": apperr.KindOf(err),
		}).WithError(err).Error("request error")
	}
	c.AbortWithStatusJSON(status, apperr.BodyOf(err))
}
