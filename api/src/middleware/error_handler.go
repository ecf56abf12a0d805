package middleware

import (
	"fmt"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error. Causes and stacks
// reach the client only in devMode.
func ErrorHandler(devMode bool, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperror.Normalize(c.Errors.Last().Err)
		fields := map[string]any{
			"code":   appErr.Code,
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": appErr.Status(),
		}
		if service, ok := appErr.Details["service"]; ok {
			fields["service"] = service
		}
		entry := log.Fields(fields)
		if appErr.Status() >= 500 {
			entry.Error(appErr, "Request failed")
		} else {
			entry.Info(appErr.Error())
		}

		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if details := publicDetails(appErr); len(details) > 0 {
			body["details"] = details
		}
		if devMode && appErr.Cause() != nil {
			body["stack"] = fmt.Sprintf("%+v", appErr.Cause())
		}

		c.JSON(appErr.Status(), gin.H{"success": false, "error": body})
	}
}

// publicDetails drops details that only make sense in internal logs.
func publicDetails(e *apperror.Error) map[string]any {
	if len(e.Details) == 0 {
		return nil
	}
	out := make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		if k == "service" {
			continue
		}
		out[k] = v
	}
	return out
}
