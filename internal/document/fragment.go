package document

import (
	"fmt"

	"github.com/obtic-sorbonne/chatsfp/internal/tei"
)

// Metadata 片段元数据，整份文档的元数据被每个片段完整继承
type Metadata struct {
	Source  string   `json:"source"`            // 来源文件标识符
	Title   string   `json:"title"`             // 公报标题
	Date    string   `json:"date"`              // 原始日期文本
	Year    *int     `json:"year,omitempty"`    // 提取出的年份
	Persons []string `json:"persons,omitempty"` // 文中人名
}

// Fragment 切分后的文本片段，嵌入索引的基本单位
type Fragment struct {
	ID       string   `json:"id"`       // 片段标识符：来源文件加序号
	Position int      `json:"position"` // 片段在文档内的序号，从0开始
	Text     string   `json:"text"`     // 片段文本
	Meta     Metadata `json:"meta"`     // 继承自文档的元数据
}

// FragmentID 构造片段标识符
func FragmentID(source string, position int) string {
	return fmt.Sprintf("%s#%d", source, position)
}

// NewFragments 将切分结果和文档元数据组装为片段
func NewFragments(doc *tei.SourceDocument, chunks []string) []Fragment {
	meta := Metadata{
		Source:  doc.Identifier,
		Title:   doc.Title,
		Date:    doc.DateText,
		Year:    doc.Year,
		Persons: doc.Persons,
	}

	fragments := make([]Fragment, 0, len(chunks))
	for i, chunk := range chunks {
		fragments = append(fragments, Fragment{
			ID:       FragmentID(doc.Identifier, i),
			Position: i,
			Text:     chunk,
			Meta:     meta,
		})
	}
	return fragments
}
