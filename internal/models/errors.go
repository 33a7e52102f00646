package models

import (
	"errors"
	"fmt"
)

// FailureKind 管道故障类别
// 每个阶段返回的错误都归入其中一类，调用方据此决定处理策略
type FailureKind string

const (
	KindInput            FailureKind = "input"             // 输入错误：空查询、文件缺失、XML格式错误
	KindConfig           FailureKind = "config"            // 配置错误：密钥缺失、模板无占位符、提供商未注册
	KindServiceRetryable FailureKind = "service_retryable" // 外部服务临时故障：限流、超时、模型加载中
	KindServiceTerminal  FailureKind = "service_terminal"  // 外部服务永久故障：认证失败、空补全
	KindIntegrity        FailureKind = "integrity"         // 持久化产物损坏：索引文件缺失、维度不匹配
)

// PipelineError 携带故障类别的管道错误
type PipelineError struct {
	Kind FailureKind // 故障类别
	Op   string      // 出错的操作，如 "index.load"
	Err  error       // 底层错误
}

// Error 实现error接口
func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap 支持errors.Is/As链式检查
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError 创建管道错误
func NewPipelineError(kind FailureKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// KindOf 提取错误的故障类别，非管道错误归为终止性服务故障
func KindOf(err error) FailureKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindServiceTerminal
}

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	return KindOf(err) == KindServiceRetryable
}

// 空结果条件：这些不是故障，而是管道的合法状态，
// 调用方应将其转换为面向用户的提示而非错误页面
var (
	ErrNoCorpusFiles       = errors.New("no XML files found in corpus")
	ErrNoRelevantFragments = errors.New("no relevant fragments found")
)

// 其他哨兵错误
var (
	ErrIndexNotLoaded   = errors.New("index not loaded")
	ErrPartialIndex     = errors.New("index built partially")
	ErrBulletinNotFound = errors.New("bulletin not found")
	ErrInvalidTemplate  = errors.New("prompt template missing {query} placeholder")
)

// IsEmptyCondition 判断错误是否为空结果条件
func IsEmptyCondition(err error) bool {
	return errors.Is(err, ErrNoCorpusFiles) || errors.Is(err, ErrNoRelevantFragments)
}
