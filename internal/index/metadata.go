package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFile 索引目录下的元数据边车文件名
const MetadataFile = "metadata.json"

// Metadata 索引元数据
// 记录构建索引的嵌入模型和规模，加载时据此还原查询端嵌入客户端；
// 查询向量必须出自构建时的同一个模型，否则相似度没有意义
type Metadata struct {
	EmbeddingModel string    `json:"embedding_model"` // 构建索引的嵌入模型
	Dimension      int       `json:"dimension"`       // 向量维度
	FragmentCount  int       `json:"fragment_count"`  // 索引内的片段数
	DocumentCount  int       `json:"document_count"`  // 来源文档数
	BuiltAt        time.Time `json:"built_at"`        // 构建时间
}

// WriteMetadata 将元数据写入索引目录，先写临时文件再改名
func WriteMetadata(dir string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %v", err)
	}

	path := filepath.Join(dir, MetadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write index metadata: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename index metadata: %v", err)
	}
	return nil
}

// ReadMetadata 读取索引目录下的元数据
// 文件不存在时返回os.ErrNotExist，调用方决定是否回退默认模型
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt index metadata: %v", err)
	}
	return &meta, nil
}
