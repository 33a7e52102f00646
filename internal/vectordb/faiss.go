//go:build cgo

package vectordb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 基于Faiss的向量库
// 索引目录布局：index.faiss存向量索引，fragments.json按索引位置存片段记录
type FaissRepository struct {
	mu        sync.RWMutex
	dir       string
	index     faiss.Index
	distance  DistanceType
	dimension int
	fragments []Fragment     // 数组下标即faiss内部位置
	byID      map[string]int // 片段标识符到位置的映射
}

// NewFaissRepository 创建或加载Faiss向量库
func NewFaissRepository(cfg Config) (Repository, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("faiss repository requires a path")
	}

	repo := &FaissRepository{
		dir:       cfg.Path,
		distance:  cfg.Distance,
		dimension: cfg.Dimension,
		byID:      make(map[string]int),
	}

	indexPath := filepath.Join(cfg.Path, FaissIndexFile)
	if fileExists(indexPath) {
		if err := repo.load(indexPath); err != nil {
			return nil, err
		}
		return repo, nil
	}

	if !cfg.CreateIfMissing {
		return nil, fmt.Errorf("faiss index file not found: %s", indexPath)
	}
	if cfg.Dimension > 0 {
		index, err := createFaissIndex(cfg.Dimension, cfg.Distance)
		if err != nil {
			return nil, err
		}
		repo.index = index
	}
	// 维度未知时推迟到首个向量入库再建索引
	return repo, nil
}

// createFaissIndex 按距离类型创建平坦索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// load 从持久化目录恢复索引和片段记录
func (r *FaissRepository) load(indexPath string) error {
	index, err := faiss.ReadIndex(indexPath, 0)
	if err != nil {
		return fmt.Errorf("failed to read faiss index: %v", err)
	}

	var fragments []Fragment
	fragmentsPath := filepath.Join(r.dir, FragmentsFile)
	if err := readJSON(fragmentsPath, &fragments); err != nil {
		return fmt.Errorf("failed to load fragment records: %v", err)
	}

	if int(index.Ntotal()) != len(fragments) {
		return fmt.Errorf("index holds %d vectors but %d fragment records found",
			index.Ntotal(), len(fragments))
	}

	r.index = index
	r.fragments = fragments
	r.dimension = index.D()
	for i, f := range fragments {
		r.byID[f.ID] = i
	}
	return nil
}

// Add 添加单个片段
func (r *FaissRepository) Add(fragment Fragment) error {
	return r.AddBatch([]Fragment{fragment})
}

// AddBatch 批量添加片段
// 余弦距离下向量入库前归一化，内积检索即余弦相似度
func (r *FaissRepository) AddBatch(fragments []Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range fragments {
		if err := ValidateVector(fragments[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("fragment %s: %v", fragments[i].ID, err)
		}
		if r.dimension == 0 {
			r.dimension = len(fragments[i].Vector)
		}
		if r.distance == Cosine {
			fragments[i].Vector = NormalizeVector(fragments[i].Vector)
		}
		if fragments[i].CreatedAt.IsZero() {
			fragments[i].CreatedAt = time.Now()
		}
	}

	if r.index == nil {
		index, err := createFaissIndex(r.dimension, r.distance)
		if err != nil {
			return err
		}
		r.index = index
	}

	for i := range fragments {
		if _, exists := r.byID[fragments[i].ID]; exists {
			return fmt.Errorf("fragment %s already indexed", fragments[i].ID)
		}
		if err := r.index.Add(fragments[i].Vector); err != nil {
			return fmt.Errorf("failed to add vector to index: %v", err)
		}
		r.byID[fragments[i].ID] = len(r.fragments)
		r.fragments = append(r.fragments, fragments[i])
	}
	return nil
}

// Get 按标识符取片段
func (r *FaissRepository) Get(id string) (Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.byID[id]
	if !ok {
		return Fragment{}, fmt.Errorf("fragment not found: %s", id)
	}
	return r.fragments[pos], nil
}

// Search 相似度检索
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fragments) == 0 {
		return []SearchResult{}, nil
	}
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distance == Cosine {
		vector = NormalizeVector(vector)
	}

	k := filter.MaxResults
	if k <= 0 {
		k = DefaultTopK
	}

	// 来源过滤在检索后做，多取一些候选
	queryLimit := k * 2
	if len(filter.Sources) > 0 {
		queryLimit = len(r.fragments)
	}
	if queryLimit > len(r.fragments) {
		queryLimit = len(r.fragments)
	}

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 || int(idx) >= len(r.fragments) {
			continue
		}
		fragment := r.fragments[idx]
		if !matchFilter(fragment, filter) {
			continue
		}
		score := DistanceToScore(distances[i], r.distance)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Fragment: fragment, Score: score})
		if len(results) >= k {
			break
		}
	}

	sortResultsByScore(results)
	return results, nil
}

// Count 返回片段总数
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fragments), nil
}

// SourceCount 返回不同来源文件的数量
func (r *FaissRepository) SourceCount() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make(map[string]struct{})
	for _, f := range r.fragments {
		sources[f.Source] = struct{}{}
	}
	return len(sources), nil
}

// Dimension 返回向量维度
func (r *FaissRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

// Persist 将索引和片段记录写入目录
func (r *FaissRepository) Persist() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.index == nil {
		return fmt.Errorf("nothing to persist: index is empty")
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %v", err)
	}
	if err := faiss.WriteIndex(r.index, filepath.Join(r.dir, FaissIndexFile)); err != nil {
		return fmt.Errorf("failed to write faiss index: %v", err)
	}
	return writeJSONAtomic(filepath.Join(r.dir, FragmentsFile), r.fragments)
}

// Close 释放faiss索引
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index != nil {
		r.index.Delete()
		r.index = nil
	}
	return nil
}

// 在包初始化时注册faiss向量库
func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
