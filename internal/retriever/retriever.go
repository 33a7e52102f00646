package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/internal/embedding"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/vectordb"
)

// 默认检索参数
const (
	DefaultTopK   = 3   // 最终返回的片段数
	DefaultFetchK = 20  // 多样性重排前的候选数
	DefaultLambda = 0.5 // 相关性与多样性的权衡系数
)

// Result 检索结果，Rank从1开始且在后续提示词里保持稳定
type Result struct {
	Fragment vectordb.Fragment // 命中的片段
	Rank     int               // 结果序号，从1开始
	Score    float32           // 与查询的相似度
}

// Retriever 语义检索器
// 先按相似度取fetchK个候选，再用最大边际相关性选出topK个，
// 避免返回的片段彼此雷同
type Retriever struct {
	embedder embedding.Client
	repo     vectordb.Repository
	topK     int
	fetchK   int
	lambda   float32
	logger   *logrus.Logger
}

// Option 检索器配置选项
type Option func(*Retriever)

// WithTopK 设置最终返回数量
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithFetchK 设置候选数量
func WithFetchK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.fetchK = k
		}
	}
}

// WithLambda 设置相关性权重，1为纯相关性，0为纯多样性
func WithLambda(lambda float32) Option {
	return func(r *Retriever) {
		if lambda >= 0 && lambda <= 1 {
			r.lambda = lambda
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// New 创建检索器
func New(embedder embedding.Client, repo vectordb.Repository, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		repo:     repo,
		topK:     DefaultTopK,
		fetchK:   DefaultFetchK,
		lambda:   DefaultLambda,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Repository 返回底层向量库
func (r *Retriever) Repository() vectordb.Repository {
	return r.repo
}

// EmbeddingModel 返回检索用的嵌入模型名称
func (r *Retriever) EmbeddingModel() string {
	return r.embedder.Model()
}

// Retrieve 检索与查询最相关且彼此多样的片段
// 空索引返回空结果而非错误，调用方据此给出用户提示
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewPipelineError(models.KindInput, "retriever.retrieve",
			fmt.Errorf("query cannot be empty"))
	}

	count, err := r.repo.Count()
	if err != nil {
		return nil, models.NewPipelineError(models.KindIntegrity, "retriever.retrieve", err)
	}
	if count == 0 {
		return nil, nil
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, models.NewPipelineError(embedding.FailureKind(err), "retriever.embed", err)
	}

	candidates, err := r.repo.Search(queryVector, vectordb.SearchFilter{
		MaxResults: r.fetchK,
	})
	if err != nil {
		return nil, models.NewPipelineError(models.KindIntegrity, "retriever.search", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	selected := maximalMarginalRelevance(queryVector, candidates, r.topK, r.lambda)

	results := make([]Result, len(selected))
	for i, c := range selected {
		results[i] = Result{
			Fragment: c.Fragment,
			Rank:     i + 1,
			Score:    c.Score,
		}
	}

	r.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"selected":   len(results),
	}).Debug("Retrieval finished")
	return results, nil
}

// maximalMarginalRelevance 最大边际相关性重排
// 每轮选出 lambda*与查询的相似度 - (1-lambda)*与已选片段的最大相似度 最高的候选
func maximalMarginalRelevance(queryVector []float32, candidates []vectordb.SearchResult, k int, lambda float32) []vectordb.SearchResult {
	if k >= len(candidates) {
		return candidates
	}

	querySim := make([]float32, len(candidates))
	for i, c := range candidates {
		querySim[i] = vectordb.CosineSimilarity(queryVector, c.Vector)
	}

	selected := make([]vectordb.SearchResult, 0, k)
	selectedIdx := make([]int, 0, k)
	used := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		var bestScore float32
		for i := range candidates {
			if used[i] {
				continue
			}
			var maxSim float32
			for _, j := range selectedIdx {
				sim := vectordb.CosineSimilarity(candidates[i].Vector, candidates[j].Vector)
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*querySim[i] - (1-lambda)*maxSim
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		selectedIdx = append(selectedIdx, best)
		selected = append(selected, candidates[best])
	}
	return selected
}
