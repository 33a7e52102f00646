package llm

import "time"

// MessageRole 对话消息角色
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// NewSystemMessage 创建系统消息
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage 创建用户消息
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Response 生成结果
type Response struct {
	Text       string    `json:"text"`        // 生成的文本
	ModelName  string    `json:"model_name"`  // 实际使用的模型
	TokenCount int       `json:"token_count"` // 消耗的token数，提供商未返回时为0
	FinishTime time.Time `json:"finish_time"` // 完成时间
}
