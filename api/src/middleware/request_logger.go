package middleware

import (
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zerolog.DebugLevel
		if status >= 500 {
			level = zerolog.WarnLevel
		}
		log.Fields(map[string]any{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    status,
			"latencyMs": time.Since(start).Milliseconds(),
		}).Log(level, "HTTP request")
	}
}
