package document

import (
	"fmt"

	"github.com/obtic-sorbonne/chatsfp/internal/tei"
)

// 默认切分参数，按Unicode字符计数
const (
	DefaultChunkSize    = 2500 // 单个片段的最大字符数
	DefaultChunkOverlap = 800  // 相邻片段的重叠字符数
)

// SplitterConfig 文本切分配置
type SplitterConfig struct {
	ChunkSize    int // 片段最大长度（字符数）
	ChunkOverlap int // 相邻片段重叠长度（字符数）
}

// DefaultSplitterConfig 返回默认切分配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// TextSplitter 滑动窗口文本切分器
// 切分是确定性的：同一文本同一配置永远得到同一批片段
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建文本切分器
func NewTextSplitter(config SplitterConfig) (*TextSplitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap cannot be negative, got %d", config.ChunkOverlap)
	}
	if config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			config.ChunkOverlap, config.ChunkSize)
	}
	return &TextSplitter{config: config}, nil
}

// 切点按优先级在窗口内从后往前找：段落边界、换行、句号、空格
// 切点落在分隔符之后，片段尾部保持自然
var boundarySeparators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

// Split 将文本切分为片段
// 每个片段不超过ChunkSize个字符；相邻片段共享恰好ChunkOverlap个字符，
// 前一片段的尾部就是后一片段的头部
func (s *TextSplitter) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= s.config.ChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + s.config.ChunkSize
		if end >= n {
			chunks = append(chunks, string(runes[start:n]))
			break
		}

		cut := s.findCut(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - s.config.ChunkOverlap
	}
	return chunks
}

// SplitDocument 切分解析后的公报正文并组装片段
func (s *TextSplitter) SplitDocument(doc *tei.SourceDocument) []Fragment {
	return NewFragments(doc, s.Split(doc.Body))
}

// findCut 在窗口内寻找切点
// 切点必须落在start+overlap之后，否则下一片段无法前进；
// 窗口内没有任何自然边界时硬切
func (s *TextSplitter) findCut(runes []rune, start, end int) int {
	floor := start + s.config.ChunkOverlap + 1

	for _, sep := range boundarySeparators {
		if cut := lastBoundary(runes, floor, end, sep); cut > 0 {
			return cut
		}
	}
	return end
}

// lastBoundary 在[floor, end]范围内找分隔符最后一次出现的结束位置，找不到返回0
func lastBoundary(runes []rune, floor, end int, sep []rune) int {
	for cut := end; cut >= floor; cut-- {
		if cut-len(sep) < 0 {
			break
		}
		if runesEqual(runes[cut-len(sep):cut], sep) {
			return cut
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
