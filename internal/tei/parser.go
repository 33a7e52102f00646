package tei

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
)

// TEI命名空间，历史公报语料均以此为默认命名空间
const Namespace = "http://www.tei-c.org/ns/1.0"

// 元数据缺失时的哨兵值，会出现在片段元数据和提示词里
const (
	UnknownTitle = "Unknown Title"
	UnknownDate  = "Unknown Date"
)

// 年份只认1900-2099范围内的四位数字，公报语料不会早于此
var yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// SourceDocument 一份解析后的TEI公报
type SourceDocument struct {
	Identifier string   // 语料文件标识符
	Title      string   // 标题，缺失时为UnknownTitle
	DateText   string   // 原始日期文本，缺失时为UnknownDate
	Year       *int     // 从日期文本提取的年份，提取失败为nil
	Paragraphs []string // 正文段落，已去除首尾空白
	Persons    []string // 文中提到的人名，按出现顺序保留重复
	Body       string   // 拼装后的检索正文
}

// Parser TEI XML解析器
type Parser struct{}

// NewParser 创建TEI解析器
func NewParser() *Parser {
	return &Parser{}
}

// IsTEIFile 判断文件名是否为TEI语料文件
func IsTEIFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xml" || ext == ".xmltei"
}

// Parse 解析本地TEI文件
func (p *Parser) Parse(path string) (*SourceDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, models.NewPipelineError(models.KindInput, "tei.parse",
			fmt.Errorf("failed to open %s: %v", path, err))
	}
	defer file.Close()

	return p.ParseReader(file, path)
}

// ParseReader 从数据流解析TEI文档
// 标题和日期缺失不算错误，用哨兵值代替；XML本身无法解析才返回错误
func (p *Parser) ParseReader(r io.Reader, identifier string) (*SourceDocument, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, models.NewPipelineError(models.KindInput, "tei.parse",
			fmt.Errorf("malformed XML in %s: %v", identifier, err))
	}

	title := nodeText(xmlquery.FindOne(doc,
		"//*[local-name()='titleStmt']/*[local-name()='title']"))
	if title == "" {
		title = UnknownTitle
	}

	dateText := p.extractDate(doc)
	if dateText == "" {
		dateText = UnknownDate
	}

	// 段落取全文档范围，teiHeader里的出版说明等段落也一并进入检索正文
	var paragraphs []string
	for _, node := range xmlquery.Find(doc, "//*[local-name()='p']") {
		text := nodeText(node)
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	var persons []string
	for _, node := range xmlquery.Find(doc, "//*[local-name()='persName']") {
		name := nodeText(node)
		if name != "" {
			persons = append(persons, name)
		}
	}

	sd := &SourceDocument{
		Identifier: identifier,
		Title:      title,
		DateText:   dateText,
		Year:       ExtractYear(dateText),
		Paragraphs: paragraphs,
		Persons:    persons,
	}
	sd.Body = composeBody(sd)
	return sd, nil
}

// extractDate 提取日期文本
// 优先取sourceDesc段落内的date元素，没有再退回整个段落文本
func (p *Parser) extractDate(doc *xmlquery.Node) string {
	if node := xmlquery.FindOne(doc,
		"//*[local-name()='sourceDesc']/*[local-name()='p']/*[local-name()='date']"); node != nil {
		if text := nodeText(node); text != "" {
			return text
		}
	}
	if node := xmlquery.FindOne(doc,
		"//*[local-name()='sourceDesc']/*[local-name()='p']"); node != nil {
		return nodeText(node)
	}
	return ""
}

// ExtractYear 从日期文本中提取年份，取第一个匹配
func ExtractYear(dateText string) *int {
	match := yearPattern.FindString(dateText)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &year
}

// composeBody 拼装检索正文
// 头部带标题和日期，让每个片段即使被切开也能靠重叠保留上下文线索；
// 人名列表追加在末尾，不去重
func composeBody(sd *SourceDocument) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Document: %s | Date: %s\n\n", sd.Title, sd.DateText))
	b.WriteString(strings.Join(sd.Paragraphs, "\n"))
	if len(sd.Persons) > 0 {
		b.WriteString("\n\nPersonnes mentionnées: ")
		b.WriteString(strings.Join(sd.Persons, ", "))
	}
	return b.String()
}

// nodeText 取节点的全部文本内容并去除首尾空白
func nodeText(node *xmlquery.Node) string {
	if node == nil {
		return ""
	}
	return strings.TrimSpace(node.InnerText())
}
