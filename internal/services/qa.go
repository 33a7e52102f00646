package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/internal/cache"
	"github.com/obtic-sorbonne/chatsfp/internal/llm"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
)

// NoRelevantDocsAnswer 检索结果为空时的固定回答，不调用生成服务
const NoRelevantDocsAnswer = "Aucun document pertinent n'a été trouvé pour répondre à votre question."

// Answer 一次问答的结果
type Answer struct {
	Question  string             `json:"question"`
	Text      string             `json:"text"`
	Sources   []retriever.Result `json:"sources,omitempty"`
	FromCache bool               `json:"from_cache"`
}

// QAService 问答服务
// 串起检索、提示词组装和生成，结果写进会话历史
type QAService struct {
	llm      llm.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// WithAnswerCache 启用回答缓存
func WithAnswerCache(c cache.Cache, ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		s.logger = logger
	}
}

// NewQAService 创建问答服务
func NewQAService(client llm.Client, opts ...QAOption) *QAService {
	s := &QAService{
		llm:    client,
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask 回答一个问题
// 检索为空是合法状态，返回固定提示；生成服务返回空白补全算失败，
// 空白回答混进历史比报错更难排查
func (s *QAService) Ask(ctx context.Context, session *Session, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.NewPipelineError(models.KindInput, "qa.ask",
			fmt.Errorf("question cannot be empty"))
	}

	ret := session.Retriever()
	if ret == nil {
		return nil, models.NewPipelineError(models.KindConfig, "qa.ask",
			models.ErrIndexNotLoaded)
	}

	template := session.Template()
	cacheKey := cache.AnswerKey(template, question)
	if s.cache != nil {
		if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
			answer := &Answer{Question: question, Text: cached, FromCache: true}
			session.AppendExchange(ChatExchange{Question: question, Answer: cached})
			s.logger.WithField("question", question).Debug("Answer served from cache")
			return answer, nil
		}
	}

	results, err := ret.Retrieve(ctx, question)
	if err == nil && len(results) == 0 {
		// 检索为空归入类型化的空结果条件，与空语料走同一套转换
		err = models.ErrNoRelevantFragments
	}
	if err != nil {
		if models.IsEmptyCondition(err) {
			answer := &Answer{Question: question, Text: NoRelevantDocsAnswer}
			session.AppendExchange(ChatExchange{Question: question, Answer: NoRelevantDocsAnswer})
			return answer, nil
		}
		return nil, err
	}

	assembler, err := llm.NewAssembler(template)
	if err != nil {
		return nil, err
	}
	prompt := assembler.Assemble(question, results)

	response, err := s.llm.Chat(ctx, prompt.Messages())
	if err != nil {
		return nil, models.NewPipelineError(llm.FailureKind(err), "qa.generate", err)
	}

	answer := &Answer{
		Question: question,
		Text:     response.Text,
		Sources:  results,
	}
	session.AppendExchange(ChatExchange{
		Question: question,
		Answer:   response.Text,
		Sources:  results,
	})

	if s.cache != nil {
		if err := s.cache.Set(cacheKey, response.Text, s.cacheTTL); err != nil {
			s.logger.WithField("error", err.Error()).Warn("Failed to cache answer")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"question": question,
		"sources":  len(results),
		"model":    response.ModelName,
	}).Info("Question answered")
	return answer, nil
}
