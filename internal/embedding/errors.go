package embedding

import (
	"errors"
	"fmt"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
)

// EmbeddingError 嵌入服务错误
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误描述
}

// Error 实现error接口
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// 嵌入服务错误码
const (
	ErrCodeInvalidInput       = 1001 // 输入为空或超长
	ErrCodeAuthFailed         = 1002 // 认证失败
	ErrCodeRateLimited        = 1003 // 请求被限流
	ErrCodeTimeout            = 1004 // 请求超时
	ErrCodeServiceUnavailable = 1005 // 服务不可用或模型加载中
	ErrCodeInvalidResponse    = 1006 // 响应格式异常
	ErrCodeBatchTooLarge      = 1007 // 批量请求超出限制
)

// NewEmbeddingError 创建嵌入服务错误
func NewEmbeddingError(code int, format string, args ...interface{}) *EmbeddingError {
	return &EmbeddingError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Retryable 判断错误是否为临时故障
func (e *EmbeddingError) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimited, ErrCodeTimeout, ErrCodeServiceUnavailable:
		return true
	}
	return false
}

// FailureKind 将嵌入错误映射到管道故障类别
func FailureKind(err error) models.FailureKind {
	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		return models.KindServiceTerminal
	}
	switch {
	case ee.Code == ErrCodeInvalidInput || ee.Code == ErrCodeBatchTooLarge:
		return models.KindInput
	case ee.Code == ErrCodeAuthFailed:
		return models.KindConfig
	case ee.Retryable():
		return models.KindServiceRetryable
	}
	return models.KindServiceTerminal
}
