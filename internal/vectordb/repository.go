package vectordb

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// ValidateVector 校验向量维度
func ValidateVector(vector []float32, dimension int) error {
	if len(vector) == 0 {
		return fmt.Errorf("vector cannot be empty")
	}
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d",
			dimension, len(vector))
	}
	return nil
}

// ComputeDistance 按距离类型计算两个向量的原始距离
func ComputeDistance(a, b []float32, distanceType DistanceType) float32 {
	switch distanceType {
	case DotProduct:
		return dotProduct(a, b)
	case EuclideanL2:
		return euclideanDistance(a, b)
	default:
		return CosineSimilarity(a, b)
	}
}

// DistanceToScore 将原始距离转换为越大越好的得分
func DistanceToScore(distance float32, distanceType DistanceType) float32 {
	switch distanceType {
	case EuclideanL2:
		return 1.0 / (1.0 + distance)
	default:
		// 余弦相似度和内积本身就是越大越相关
		return distance
	}
}

// CosineSimilarity 余弦相似度，任一向量为零向量时返回0
func CosineSimilarity(a, b []float32) float32 {
	normA := vectorNorm(a)
	normB := vectorNorm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct(a, b) / (normA * normB)
}

// dotProduct 向量内积
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// euclideanDistance 欧氏距离
func euclideanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// vectorNorm 向量模长
func vectorNorm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// NormalizeVector 返回归一化副本，零向量原样返回
func NormalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, x := range v {
		normalized[i] = x / norm
	}
	return normalized
}

// matchFilter 判断片段是否通过来源过滤
func matchFilter(f Fragment, filter SearchFilter) bool {
	if len(filter.Sources) == 0 {
		return true
	}
	for _, src := range filter.Sources {
		if f.Source == src {
			return true
		}
	}
	return false
}

// sortResultsByScore 按得分降序排列，结果集很小，插入排序足够
func sortResultsByScore(results []SearchResult) {
	for i := 1; i < len(results); i++ {
		current := results[i]
		j := i - 1
		for j >= 0 && results[j].Score < current.Score {
			results[j+1] = results[j]
			j--
		}
		results[j+1] = current
	}
}

// writeJSONAtomic 先写临时文件再改名，避免写一半的持久化产物
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %v", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %v", tmp, err)
	}
	return nil
}

// readJSON 读取JSON文件
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %v", filepath.Base(path), err)
	}
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
