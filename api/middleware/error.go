package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
)

// errorBody 错误响应体
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorMiddleware 统一错误处理和panic恢复
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic":    r,
					"path":     c.Request.URL.Path,
					"trace_id": c.GetString("trace_id"),
				}).Error("Recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Code:    http.StatusInternalServerError,
					Message: "internal server error",
					TraceID: c.GetString("trace_id"),
				})
			}
		}()
		c.Next()
	}
}

// RespondError 按故障类别写出HTTP错误响应
func RespondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := statusForKind(kind)
	if models.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}

	log.WithFields(map[string]interface{}{
		"error":    err.Error(),
		"kind":     string(kind),
		"path":     c.Request.URL.Path,
		"trace_id": c.GetString("trace_id"),
	}).Error("Request error")

	c.JSON(status, errorBody{
		Code:    status,
		Message: err.Error(),
		Kind:    string(kind),
		TraceID: c.GetString("trace_id"),
	})
}

// statusForKind 故障类别到HTTP状态码的映射
func statusForKind(kind models.FailureKind) int {
	switch kind {
	case models.KindInput:
		return http.StatusBadRequest
	case models.KindConfig:
		return http.StatusUnprocessableEntity
	case models.KindServiceRetryable:
		return http.StatusServiceUnavailable
	case models.KindServiceTerminal:
		return http.StatusBadGateway
	case models.KindIntegrity:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
