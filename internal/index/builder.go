package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/internal/document"
	"github.com/obtic-sorbonne/chatsfp/internal/embedding"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/vectordb"
)

// DefaultBatchSize 退化路径下每批嵌入的片段数
const DefaultBatchSize = 50

// Builder 索引构建器
// 先尝试一次性嵌入全部片段，失败后退化为逐批嵌入，每批落盘，
// 中途出错时已入库的部分保留为可用的不完整索引
type Builder struct {
	embedder   embedding.Client
	repoConfig vectordb.Config
	batchSize  int
	logger     *logrus.Logger
}

// BuilderOption 构建器配置选项
type BuilderOption func(*Builder)

// WithBatchSize 设置退化路径的批量大小
func WithBatchSize(size int) BuilderOption {
	return func(b *Builder) {
		if size > 0 {
			b.batchSize = size
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder 创建索引构建器
func NewBuilder(embedder embedding.Client, repoConfig vectordb.Config, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:   embedder,
		repoConfig: repoConfig,
		batchSize:  DefaultBatchSize,
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 为片段构建嵌入索引并持久化
// 整个索引只用b.embedder一个模型，元数据边车记录模型名供加载端还原。
// 部分失败时返回已持久化的仓库和ErrPartialIndex，调用方决定是否继续使用
func (b *Builder) Build(ctx context.Context, fragments []document.Fragment) (vectordb.Repository, *Metadata, error) {
	if len(fragments) == 0 {
		return nil, nil, models.NewPipelineError(models.KindInput, "index.build",
			fmt.Errorf("no fragments to index"))
	}

	repo, err := b.freshRepository()
	if err != nil {
		return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.build", err)
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	// 快路径：一次请求嵌入全部片段
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		if err := repo.AddBatch(toRecords(fragments, vectors)); err != nil {
			repo.Close()
			return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.build", err)
		}
		meta, err := b.persist(repo)
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		return repo, meta, nil
	}

	b.logger.WithFields(logrus.Fields{
		"fragments": len(fragments),
		"batch":     b.batchSize,
		"error":     err.Error(),
	}).Warn("Bulk embedding failed, falling back to batched embedding")

	// 慢路径：逐批嵌入，每批落盘
	for start := 0; start < len(fragments); start += b.batchSize {
		select {
		case <-ctx.Done():
			return b.partial(repo, ctx.Err())
		default:
		}

		end := start + b.batchSize
		if end > len(fragments) {
			end = len(fragments)
		}

		batchVectors, err := b.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return b.partial(repo, err)
		}
		if err := repo.AddBatch(toRecords(fragments[start:end], batchVectors)); err != nil {
			return b.partial(repo, err)
		}
		if _, err := b.persist(repo); err != nil {
			return b.partial(repo, err)
		}

		b.logger.WithFields(logrus.Fields{
			"done":  end,
			"total": len(fragments),
		}).Info("Indexed fragment batch")
	}

	meta, err := b.persist(repo)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return repo, meta, nil
}

// freshRepository 重建索引目录并创建空仓库，索引整体替换而非增量更新
func (b *Builder) freshRepository() (vectordb.Repository, error) {
	if b.repoConfig.Path != "" {
		if err := os.RemoveAll(b.repoConfig.Path); err != nil {
			return nil, fmt.Errorf("failed to clear index directory: %v", err)
		}
		if err := os.MkdirAll(b.repoConfig.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %v", err)
		}
	}

	cfg := b.repoConfig
	cfg.CreateIfMissing = true
	return vectordb.NewRepository(cfg)
}

// partial 保留已入库的部分并返回部分失败错误
func (b *Builder) partial(repo vectordb.Repository, cause error) (vectordb.Repository, *Metadata, error) {
	meta, persistErr := b.persist(repo)
	if persistErr != nil {
		b.logger.WithField("error", persistErr.Error()).Error("Failed to persist partial index")
	}

	count := 0
	if meta != nil {
		count = meta.FragmentCount
	}
	b.logger.WithFields(logrus.Fields{
		"indexed": count,
		"error":   cause.Error(),
	}).Error("Index build stopped before completion")

	kind := embedding.FailureKind(cause)
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		kind = models.KindInput
	}
	return repo, meta, models.NewPipelineError(kind, "index.build",
		fmt.Errorf("%w: %v", models.ErrPartialIndex, cause))
}

// persist 落盘仓库并更新元数据边车
func (b *Builder) persist(repo vectordb.Repository) (*Metadata, error) {
	if b.repoConfig.Path == "" {
		return b.collectMetadata(repo), nil
	}
	if err := repo.Persist(); err != nil {
		return nil, models.NewPipelineError(models.KindIntegrity, "index.persist", err)
	}

	meta := b.collectMetadata(repo)
	if err := WriteMetadata(b.repoConfig.Path, meta); err != nil {
		return nil, models.NewPipelineError(models.KindIntegrity, "index.persist", err)
	}
	return meta, nil
}

// collectMetadata 从仓库统计元数据
func (b *Builder) collectMetadata(repo vectordb.Repository) *Metadata {
	count, _ := repo.Count()
	sources, _ := repo.SourceCount()
	return &Metadata{
		EmbeddingModel: b.embedder.Model(),
		Dimension:      repo.Dimension(),
		FragmentCount:  count,
		DocumentCount:  sources,
		BuiltAt:        time.Now(),
	}
}

// toRecords 将片段和向量组装为向量库记录
func toRecords(fragments []document.Fragment, vectors [][]float32) []vectordb.Fragment {
	records := make([]vectordb.Fragment, len(fragments))
	for i, f := range fragments {
		records[i] = vectordb.Fragment{
			ID:       f.ID,
			Source:   f.Meta.Source,
			Title:    f.Meta.Title,
			Date:     f.Meta.Date,
			Year:     f.Meta.Year,
			Persons:  f.Meta.Persons,
			Position: f.Position,
			Text:     f.Text,
			Vector:   vectors[i],
		}
	}
	return records
}
