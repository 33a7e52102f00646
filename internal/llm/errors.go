package llm

import (
	"errors"
	"fmt"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
)

// LLMError 生成服务错误
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误描述
}

// Error 实现error接口
func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 生成服务错误码
const (
	ErrCodeInvalidRequest     = 2001 // 请求参数非法
	ErrCodeAuthFailed         = 2002 // 认证失败
	ErrCodeRateLimited        = 2003 // 请求被限流
	ErrCodeTimeout            = 2004 // 请求超时
	ErrCodeServiceUnavailable = 2005 // 服务不可用
	ErrCodeInvalidResponse    = 2006 // 响应格式异常
	ErrCodeEmptyCompletion    = 2007 // 模型返回空白补全
)

// NewLLMError 创建生成服务错误
func NewLLMError(code int, format string, args ...interface{}) *LLMError {
	return &LLMError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Retryable 判断错误是否为临时故障
func (e *LLMError) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimited, ErrCodeTimeout, ErrCodeServiceUnavailable:
		return true
	}
	return false
}

// FailureKind 将生成服务错误映射到管道故障类别
func FailureKind(err error) models.FailureKind {
	var le *LLMError
	if !errors.As(err, &le) {
		return models.KindServiceTerminal
	}
	switch {
	case le.Code == ErrCodeInvalidRequest:
		return models.KindInput
	case le.Code == ErrCodeAuthFailed:
		return models.KindConfig
	case le.Retryable():
		return models.KindServiceRetryable
	}
	return models.KindServiceTerminal
}
