package vectordb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryRepository 纯内存向量库，暴力扫描检索
// 语料规模在万级片段以内时够用，也免去了faiss的cgo依赖，测试全用它
type MemoryRepository struct {
	mu        sync.RWMutex
	dir       string
	distance  DistanceType
	dimension int
	fragments []Fragment
	byID      map[string]int
}

// memoryIndexHeader index.json的内容，描述索引参数
type memoryIndexHeader struct {
	Dimension int          `json:"dimension"`
	Distance  DistanceType `json:"distance"`
	Count     int          `json:"count"`
}

// NewMemoryRepository 创建或加载内存向量库
// Path为空时为纯内存模式，Persist会报错
func NewMemoryRepository(cfg Config) (Repository, error) {
	repo := &MemoryRepository{
		dir:       cfg.Path,
		distance:  cfg.Distance,
		dimension: cfg.Dimension,
		byID:      make(map[string]int),
	}

	if cfg.Path == "" {
		return repo, nil
	}

	headerPath := filepath.Join(cfg.Path, MemoryIndexFile)
	if fileExists(headerPath) {
		if err := repo.load(headerPath); err != nil {
			return nil, err
		}
		return repo, nil
	}
	if !cfg.CreateIfMissing {
		return nil, fmt.Errorf("index file not found: %s", headerPath)
	}
	return repo, nil
}

// load 从持久化目录恢复
func (r *MemoryRepository) load(headerPath string) error {
	var header memoryIndexHeader
	if err := readJSON(headerPath, &header); err != nil {
		return fmt.Errorf("failed to load index header: %v", err)
	}

	var fragments []Fragment
	if err := readJSON(filepath.Join(r.dir, FragmentsFile), &fragments); err != nil {
		return fmt.Errorf("failed to load fragment records: %v", err)
	}
	if header.Count != len(fragments) {
		return fmt.Errorf("index header declares %d fragments but %d records found",
			header.Count, len(fragments))
	}

	r.dimension = header.Dimension
	if header.Distance != "" {
		r.distance = header.Distance
	}
	r.fragments = fragments
	for i, f := range fragments {
		r.byID[f.ID] = i
	}
	return nil
}

// Add 添加单个片段
func (r *MemoryRepository) Add(fragment Fragment) error {
	return r.AddBatch([]Fragment{fragment})
}

// AddBatch 批量添加片段
func (r *MemoryRepository) AddBatch(fragments []Fragment) error {
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
		if _, exists := r.byID[fragments[i].ID]; exists {
			return fmt.Errorf("fragment %s already indexed", fragments[i].ID)
		}
		r.byID[fragments[i].ID] = len(r.fragments)
		r.fragments = append(r.fragments, fragments[i])
	}
	return nil
}

// Get 按标识符取片段
func (r *MemoryRepository) Get(id string) (Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.byID[id]
	if !ok {
		return Fragment{}, fmt.Errorf("fragment not found: %s", id)
	}
	return r.fragments[pos], nil
}

// Search 暴力扫描检索
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
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

	var results []SearchResult
	for _, fragment := range r.fragments {
		if !matchFilter(fragment, filter) {
			continue
		}
		score := DistanceToScore(ComputeDistance(vector, fragment.Vector, r.distance), r.distance)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{Fragment: fragment, Score: score})
	}

	sortResultsByScore(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count 返回片段总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fragments), nil
}

// SourceCount 返回不同来源文件的数量
func (r *MemoryRepository) SourceCount() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make(map[string]struct{})
	for _, f := range r.fragments {
		sources[f.Source] = struct{}{}
	}
	return len(sources), nil
}

// Dimension 返回向量维度
func (r *MemoryRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

// Persist 将索引头和片段记录写入目录
func (r *MemoryRepository) Persist() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.dir == "" {
		return fmt.Errorf("memory repository has no persistence path")
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %v", err)
	}

	header := memoryIndexHeader{
		Dimension: r.dimension,
		Distance:  r.distance,
		Count:     len(r.fragments),
	}
	if err := writeJSONAtomic(filepath.Join(r.dir, MemoryIndexFile), header); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(r.dir, FragmentsFile), r.fragments)
}

// Close 释放资源
func (r *MemoryRepository) Close() error {
	return nil
}

// 在包初始化时注册内存向量库
func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
