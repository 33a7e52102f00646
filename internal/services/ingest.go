package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/internal/document"
	"github.com/obtic-sorbonne/chatsfp/internal/embedding"
	"github.com/obtic-sorbonne/chatsfp/internal/index"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/repository"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
	"github.com/obtic-sorbonne/chatsfp/internal/tei"
)

// IngestSummary 入库结果摘要
type IngestSummary struct {
	DocumentCount  int            `json:"document_count"`  // 索引内的文档数
	FragmentCount  int            `json:"fragment_count"`  // 索引内的片段数
	SkippedCount   int            `json:"skipped_count"`   // 解析失败被跳过的文件数
	Years          map[string]int `json:"years,omitempty"` // 标识符到年份的映射
	EmbeddingModel string         `json:"embedding_model"` // 构建索引的嵌入模型
}

// IngestService 语料入库服务
// 完整管道：加载解析、切分、嵌入、建索引、落盘、更新目录，
// 成功后把新检索器挂到会话上
type IngestService struct {
	loader        *tei.Loader
	splitter      *document.TextSplitter
	builder       *index.Builder
	embedder      embedding.Client
	catalog       repository.BulletinRepository
	retrieverOpts []retriever.Option
	logger        *logrus.Logger
}

// IngestOption 入库服务配置选项
type IngestOption func(*IngestService)

// WithIngestLogger 设置日志记录器
func WithIngestLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		s.logger = logger
	}
}

// WithCatalog 设置公报目录仓库
func WithCatalog(catalog repository.BulletinRepository) IngestOption {
	return func(s *IngestService) {
		s.catalog = catalog
	}
}

// WithRetrieverOptions 设置新索引检索器的参数
func WithRetrieverOptions(opts ...retriever.Option) IngestOption {
	return func(s *IngestService) {
		s.retrieverOpts = opts
	}
}

// NewIngestService 创建语料入库服务
func NewIngestService(
	loader *tei.Loader,
	splitter *document.TextSplitter,
	builder *index.Builder,
	embedder embedding.Client,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		loader:   loader,
		splitter: splitter,
		builder:  builder,
		embedder: embedder,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest 执行语料入库
// files为空时扫描整个语料存储；索引和目录都是整体重建。
// 部分失败时已持久化的索引仍然挂到会话上，同时返回部分失败错误，
// 调用方决定向用户呈现的方式
func (s *IngestService) Ingest(ctx context.Context, session *Session, files []string, progress tei.ProgressFunc) (*IngestSummary, error) {
	loaded, err := s.loader.Load(ctx, files, progress)
	if err != nil {
		return nil, err
	}

	if s.catalog != nil {
		if err := s.catalog.Reset(); err != nil {
			s.logger.WithField("error", err.Error()).Warn("Failed to reset bulletin catalog")
		}
		for _, failure := range loaded.Failures {
			if err := s.catalog.Upsert(repository.FailedBulletin(failure.Name, failure.Err)); err != nil {
				s.logger.WithField("file", failure.Name).Warn("Failed to record skipped bulletin")
			}
		}
	}

	var fragments []document.Fragment
	for _, doc := range loaded.Documents {
		select {
		case <-ctx.Done():
			return nil, models.NewPipelineError(models.KindInput, "ingest", ctx.Err())
		default:
		}

		docFragments := s.splitter.SplitDocument(doc)
		fragments = append(fragments, docFragments...)

		if s.catalog != nil {
			if err := s.catalog.Upsert(repository.BulletinFromDocument(doc, len(docFragments))); err != nil {
				s.logger.WithField("file", doc.Identifier).Warn("Failed to record bulletin")
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"documents": len(loaded.Documents),
		"fragments": len(fragments),
	}).Info("Corpus split into fragments")

	repo, meta, buildErr := s.builder.Build(ctx, fragments)
	if buildErr != nil && !errors.Is(buildErr, models.ErrPartialIndex) {
		return nil, buildErr
	}

	if repo != nil && meta != nil {
		session.AttachIndex(retriever.New(s.embedder, repo, s.retrieverOpts...), meta)
	}

	summary := &IngestSummary{
		SkippedCount: len(loaded.Failures),
		Years:        loaded.YearIndex,
	}
	if meta != nil {
		summary.DocumentCount = meta.DocumentCount
		summary.FragmentCount = meta.FragmentCount
		summary.EmbeddingModel = meta.EmbeddingModel
	}
	return summary, buildErr
}
