package tei

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/pkg/storage"
)

// ProgressFunc 加载进度回调
// current从1开始，total为待处理文件总数，name为当前文件标识符
type ProgressFunc func(current, total int, name string)

// LoadFailure 单个文件的加载失败记录
type LoadFailure struct {
	Name string // 文件标识符
	Err  error  // 失败原因
}

// LoadResult 语料加载结果
type LoadResult struct {
	Documents []*SourceDocument // 解析成功的文档
	YearIndex map[string]int    // 标识符到年份的映射，仅含提取到年份的文档
	Failures  []LoadFailure     // 解析失败的文件，坏文件不拖垮整批
}

// Loader 语料加载器
// 从存储枚举XML文件并逐个解析，单个文件失败只记录不中断
type Loader struct {
	storage storage.Storage
	parser  *Parser
	logger  *logrus.Logger
}

// LoaderOption 加载器配置选项
type LoaderOption func(*Loader)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader 创建语料加载器
func NewLoader(store storage.Storage, opts ...LoaderOption) *Loader {
	l := &Loader{
		storage: store,
		parser:  NewParser(),
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 加载语料文件
// files为空时扫描存储中的全部XML文件；指定files时逐个校验存在性，
// 点名的文件缺失是输入错误，立即返回。
// 一个可解析文档都没有时返回ErrNoCorpusFiles，调用方将其转为用户提示而非错误页面。
func (l *Loader) Load(ctx context.Context, files []string, progress ProgressFunc) (*LoadResult, error) {
	names, err := l.resolveFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		YearIndex: make(map[string]int),
	}

	total := len(names)
	for i, name := range names {
		select {
		case <-ctx.Done():
			return nil, models.NewPipelineError(models.KindInput, "tei.load", ctx.Err())
		default:
		}

		if progress != nil {
			progress(i+1, total, name)
		}

		doc, err := l.loadOne(ctx, name)
		if err != nil {
			l.logger.WithFields(logrus.Fields{
				"file":  name,
				"error": err.Error(),
			}).Warn("Skipping unparseable corpus file")
			result.Failures = append(result.Failures, LoadFailure{Name: name, Err: err})
			continue
		}

		result.Documents = append(result.Documents, doc)
		if doc.Year != nil {
			result.YearIndex[doc.Identifier] = *doc.Year
		}
	}

	l.logger.WithFields(logrus.Fields{
		"loaded":  len(result.Documents),
		"skipped": len(result.Failures),
	}).Info("Corpus loading finished")

	if len(result.Documents) == 0 {
		return result, models.ErrNoCorpusFiles
	}
	return result, nil
}

// resolveFiles 确定待加载的文件列表
func (l *Loader) resolveFiles(ctx context.Context, files []string) ([]string, error) {
	if len(files) > 0 {
		for _, name := range files {
			exists, err := l.storage.Exists(ctx, name)
			if err != nil {
				return nil, models.NewPipelineError(models.KindInput, "tei.load",
					fmt.Errorf("failed to check file %s: %v", name, err))
			}
			if !exists {
				return nil, models.NewPipelineError(models.KindInput, "tei.load",
					fmt.Errorf("corpus file not found: %s", name))
			}
		}
		return files, nil
	}

	infos, err := l.storage.List(ctx)
	if err != nil {
		return nil, models.NewPipelineError(models.KindInput, "tei.load",
			fmt.Errorf("failed to list corpus files: %v", err))
	}

	var names []string
	for _, info := range infos {
		if IsTEIFile(info.Name) {
			names = append(names, info.Name)
		}
	}
	return names, nil
}

// loadOne 读取并解析单个文件
func (l *Loader) loadOne(ctx context.Context, name string) (*SourceDocument, error) {
	reader, err := l.storage.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return l.parser.ParseReader(reader, name)
}
