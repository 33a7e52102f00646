package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/internal/embedding"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
	"github.com/obtic-sorbonne/chatsfp/internal/vectordb"
)

// EmbedderFactory 按模型名创建嵌入客户端
// 加载端必须用边车记录的模型还原客户端，索引与查询才在同一向量空间
type EmbedderFactory func(model string) (embedding.Client, error)

// LoadConfig 索引加载配置
type LoadConfig struct {
	Path     string  // 索引目录
	RepoType string  // 向量库后端类型
	TopK     int     // 检索返回数量，0用默认值
	FetchK   int     // 多样性重排候选数，0用默认值
	Lambda   float32 // 相关性权重，0用默认值
}

// Load 加载持久化索引并组装检索器
// 校验顺序：目录存在、必需文件齐全、元数据可读、维度一致。
// 元数据边车缺失时退回默认嵌入模型并记录警告；维度不匹配直接失败，
// 用错模型的检索结果比报错更有害
func Load(cfg LoadConfig, factory EmbedderFactory, logger *logrus.Logger) (*retriever.Retriever, *Metadata, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if info, err := os.Stat(cfg.Path); err != nil || !info.IsDir() {
		return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.load",
			fmt.Errorf("index directory not found: %s", cfg.Path))
	}

	for _, name := range vectordb.RequiredFiles(cfg.RepoType) {
		path := filepath.Join(cfg.Path, name)
		if _, err := os.Stat(path); err != nil {
			return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.load",
				fmt.Errorf("required index file missing: %s", path))
		}
	}

	meta, err := ReadMetadata(cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.load", err)
		}
		logger.WithFields(logrus.Fields{
			"path":  cfg.Path,
			"model": embedding.DefaultModel,
		}).Warn("Index metadata sidecar missing, assuming default embedding model")
		meta = &Metadata{EmbeddingModel: embedding.DefaultModel}
	}

	embedder, err := factory(meta.EmbeddingModel)
	if err != nil {
		return nil, nil, models.NewPipelineError(models.KindConfig, "index.load",
			fmt.Errorf("failed to create embedding client for model %s: %v",
				meta.EmbeddingModel, err))
	}

	repo, err := vectordb.NewRepository(vectordb.Config{
		Type:     cfg.RepoType,
		Path:     cfg.Path,
		Distance: vectordb.Cosine,
	})
	if err != nil {
		return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.load", err)
	}

	if meta.Dimension > 0 && repo.Dimension() > 0 && meta.Dimension != repo.Dimension() {
		repo.Close()
		return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.load",
			fmt.Errorf("index dimension %d does not match metadata dimension %d",
				repo.Dimension(), meta.Dimension))
	}
	if dims := embedder.Dimensions(); dims > 0 && repo.Dimension() > 0 && dims != repo.Dimension() {
		repo.Close()
		return nil, nil, models.NewPipelineError(models.KindIntegrity, "index.load",
			fmt.Errorf("embedding model %s produces %d-dimensional vectors but index holds %d-dimensional vectors",
				meta.EmbeddingModel, dims, repo.Dimension()))
	}

	// 边车缺失时从仓库补齐统计数字
	if meta.FragmentCount == 0 {
		meta.FragmentCount, _ = repo.Count()
	}
	if meta.DocumentCount == 0 {
		meta.DocumentCount, _ = repo.SourceCount()
	}
	if meta.Dimension == 0 {
		meta.Dimension = repo.Dimension()
	}

	ret := retriever.New(embedder, repo,
		retriever.WithTopK(cfg.TopK),
		retriever.WithFetchK(cfg.FetchK),
		retriever.WithLambda(cfg.Lambda),
		retriever.WithLogger(logger),
	)

	logger.WithFields(logrus.Fields{
		"path":      cfg.Path,
		"model":     meta.EmbeddingModel,
		"fragments": meta.FragmentCount,
		"documents": meta.DocumentCount,
	}).Info("Index loaded")
	return ret, meta, nil
}
