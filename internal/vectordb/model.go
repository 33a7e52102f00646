package vectordb

import (
	"fmt"
	"time"
)

// Fragment 向量库中的片段记录
// 向量与片段一起持久化，检索端做多样性重排时需要候选向量
type Fragment struct {
	ID        string    `json:"id"`                // 片段标识符
	Source    string    `json:"source"`            // 来源文件标识符
	Title     string    `json:"title"`             // 公报标题
	Date      string    `json:"date"`              // 原始日期文本
	Year      *int      `json:"year,omitempty"`    // 提取出的年份
	Persons   []string  `json:"persons,omitempty"` // 文中人名
	Position  int       `json:"position"`          // 片段在文档内的序号
	Text      string    `json:"text"`              // 片段文本
	Vector    []float32 `json:"vector"`            // 嵌入向量
	CreatedAt time.Time `json:"created_at"`        // 入库时间
}

// SearchResult 检索结果
type SearchResult struct {
	Fragment
	Score float32 `json:"score"` // 相似度得分，越大越相关
}

// SearchFilter 检索过滤条件
type SearchFilter struct {
	Sources    []string // 限定来源文件，空表示不限
	MinScore   float32  // 最低得分阈值
	MaxResults int      // 最大返回数量，0表示用默认值
}

// DistanceType 向量距离类型
type DistanceType string

const (
	Cosine       DistanceType = "cosine" // 余弦相似度，入库时向量归一化
	DotProduct   DistanceType = "dot"    // 内积
	EuclideanL2  DistanceType = "l2"     // 欧氏距离
	DefaultTopK               = 10       // 未指定MaxResults时的默认值
)

// Config 向量库配置
type Config struct {
	Type            string       // 后端类型：faiss、memory
	Path            string       // 持久化目录
	Dimension       int          // 向量维度，0表示由首个入库向量确定
	Distance        DistanceType // 距离类型
	CreateIfMissing bool         // 持久化文件不存在时是否新建
}

// Repository 向量库接口
type Repository interface {
	// Add 添加单个片段
	Add(fragment Fragment) error

	// AddBatch 批量添加片段
	AddBatch(fragments []Fragment) error

	// Get 按标识符取片段
	Get(id string) (Fragment, error)

	// Search 按向量检索，返回按得分降序排列的结果
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 返回片段总数
	Count() (int, error)

	// SourceCount 返回不同来源文件的数量
	SourceCount() (int, error)

	// Dimension 返回向量维度，空库返回0
	Dimension() int

	// Persist 将当前状态写入持久化目录
	Persist() error

	// Close 释放资源
	Close() error
}

// RepositoryFactory 向量库工厂函数
type RepositoryFactory func(cfg Config) (Repository, error)

var repositoryFactories = make(map[string]RepositoryFactory)

// RegisterRepository 注册向量库工厂
func RegisterRepository(name string, factory RepositoryFactory) {
	repositoryFactories[name] = factory
}

// NewRepository 按类型创建向量库
func NewRepository(cfg Config) (Repository, error) {
	factory, ok := repositoryFactories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown vector repository type: %s", cfg.Type)
	}
	if cfg.Distance == "" {
		cfg.Distance = Cosine
	}
	return factory(cfg)
}

// RequiredFiles 返回某后端持久化时必须存在的文件名
// 索引加载器据此做完整性校验
func RequiredFiles(repoType string) []string {
	switch repoType {
	case "faiss":
		return []string{FaissIndexFile, FragmentsFile}
	case "memory":
		return []string{MemoryIndexFile, FragmentsFile}
	default:
		return []string{FragmentsFile}
	}
}

// 持久化文件名，索引目录下的固定布局
const (
	FaissIndexFile  = "index.faiss"    // faiss索引二进制
	MemoryIndexFile = "index.json"     // 内存后端的索引描述
	FragmentsFile   = "fragments.json" // 片段记录，数组顺序即索引内位置
)
