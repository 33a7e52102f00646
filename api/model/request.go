package model

// IngestRequest 语料入库请求
type IngestRequest struct {
	Files []string `json:"files" binding:"omitempty"` // 指定要入库的文件，空则扫描整个语料目录
}

// QARequest 问答请求
type QARequest struct {
	Question string `json:"question" binding:"required"` // 用户问题
}

// TemplateRequest 查询模板更新请求
type TemplateRequest struct {
	Template string `json:"template" binding:"required"` // 新模板，必须包含{query}占位符
}
