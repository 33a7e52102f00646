package model

import (
	"time"

	"github.com/obtic-sorbonne/chatsfp/internal/index"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
	"github.com/obtic-sorbonne/chatsfp/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// SourceInfo 回答引用的来源
// Rank与提示词里的Source编号一致，回答里的"Source N"能对应回来
type SourceInfo struct {
	Rank    int     `json:"rank"`
	Title   string  `json:"title"`
	Date    string  `json:"date"`
	Year    *int    `json:"year,omitempty"`
	Source  string  `json:"source"`
	Excerpt string  `json:"excerpt"`
	Score   float32 `json:"score"`
}

// QAResponse 问答响应
type QAResponse struct {
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	Sources   []SourceInfo `json:"sources"`
	FromCache bool         `json:"from_cache"`
}

// ConvertSources 将检索结果转换为来源信息
func ConvertSources(results []retriever.Result) []SourceInfo {
	sources := make([]SourceInfo, len(results))
	for i, r := range results {
		excerpt := r.Fragment.Text
		if len([]rune(excerpt)) > 300 {
			excerpt = string([]rune(excerpt)[:300]) + "…"
		}
		sources[i] = SourceInfo{
			Rank:    r.Rank,
			Title:   r.Fragment.Title,
			Date:    r.Fragment.Date,
			Year:    r.Fragment.Year,
			Source:  r.Fragment.Source,
			Excerpt: excerpt,
			Score:   r.Score,
		}
	}
	return sources
}

// ExchangeInfo 一轮历史问答
type ExchangeInfo struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []SourceInfo `json:"sources,omitempty"`
	AskedAt  time.Time    `json:"asked_at"`
}

// HistoryResponse 对话历史响应
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Exchanges []ExchangeInfo `json:"exchanges"`
}

// ConvertHistory 将会话历史转换为响应
func ConvertHistory(sessionID string, history []services.ChatExchange) *HistoryResponse {
	exchanges := make([]ExchangeInfo, len(history))
	for i, e := range history {
		exchanges[i] = ExchangeInfo{
			Question: e.Question,
			Answer:   e.Answer,
			Sources:  ConvertSources(e.Sources),
			AskedAt:  e.AskedAt,
		}
	}
	return &HistoryResponse{SessionID: sessionID, Exchanges: exchanges}
}

// TemplateResponse 查询模板响应
type TemplateResponse struct {
	Template  string `json:"template"`
	IsDefault bool   `json:"is_default"`
}

// IndexStatusResponse 索引状态响应
type IndexStatusResponse struct {
	Loaded         bool      `json:"loaded"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Dimension      int       `json:"dimension,omitempty"`
	FragmentCount  int       `json:"fragment_count,omitempty"`
	DocumentCount  int       `json:"document_count,omitempty"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
}

// ConvertIndexStatus 将索引元数据转换为状态响应
func ConvertIndexStatus(meta *index.Metadata) *IndexStatusResponse {
	if meta == nil {
		return &IndexStatusResponse{Loaded: false}
	}
	return &IndexStatusResponse{
		Loaded:         true,
		EmbeddingModel: meta.EmbeddingModel,
		Dimension:      meta.Dimension,
		FragmentCount:  meta.FragmentCount,
		DocumentCount:  meta.DocumentCount,
		BuiltAt:        meta.BuiltAt,
	}
}

// BulletinInfo 公报目录条目
type BulletinInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Date          string `json:"date"`
	Year          *int   `json:"year,omitempty"`
	FragmentCount int    `json:"fragment_count"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// BulletinListResponse 公报目录响应
type BulletinListResponse struct {
	Total     int            `json:"total"`
	Bulletins []BulletinInfo `json:"bulletins"`
}
