package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obtic-sorbonne/chatsfp/internal/index"
	"github.com/obtic-sorbonne/chatsfp/internal/llm"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
)

// ChatExchange 一轮问答记录
type ChatExchange struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Sources  []retriever.Result `json:"sources,omitempty"`
	AskedAt  time.Time          `json:"asked_at"`
}

// Session 会话上下文
// 显式持有对话历史、可编辑的查询模板和当前索引的检索器，
// 各自的生命周期写在方法上而不是散落在调用方
type Session struct {
	ID string // 会话标识符

	mu        sync.RWMutex
	template  string
	history   []ChatExchange
	retriever *retriever.Retriever
	indexMeta *index.Metadata
}

// NewSession 创建新会话，模板为默认查询模板
func NewSession() *Session {
	return &Session{
		ID:       uuid.New().String(),
		template: llm.DefaultQueryTemplate,
	}
}

// Template 返回当前查询模板
func (s *Session) Template() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.template
}

// SetTemplate 更新查询模板
// 模板立即生效于后续查询；缺少{query}占位符时拒绝并保留旧模板
func (s *Session) SetTemplate(template string) error {
	if _, err := llm.NewAssembler(template); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = template
	return nil
}

// ResetTemplate 恢复默认查询模板
func (s *Session) ResetTemplate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = llm.DefaultQueryTemplate
}

// History 返回对话历史的副本
func (s *Session) History() []ChatExchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]ChatExchange, len(s.history))
	copy(history, s.history)
	return history
}

// AppendExchange 追加一轮问答
func (s *Session) AppendExchange(exchange ChatExchange) {
	if exchange.AskedAt.IsZero() {
		exchange.AskedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, exchange)
}

// ClearHistory 清空对话历史，模板和索引保持不变
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Retriever 返回当前索引的检索器，尚无索引时为nil
func (s *Session) Retriever() *retriever.Retriever {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retriever
}

// IndexMeta 返回当前索引的元数据，尚无索引时为nil
func (s *Session) IndexMeta() *index.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexMeta
}

// AttachIndex 挂载新索引
// 重新入库后整体替换检索器，正在进行的查询用旧检索器跑完
func (s *Session) AttachIndex(ret *retriever.Retriever, meta *index.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retriever = ret
	s.indexMeta = meta
}
