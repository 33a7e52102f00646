package index

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obtic-sorbonne/chatsfp/internal/document"
	"github.com/obtic-sorbonne/chatsfp/internal/embedding"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/vectordb"
)

// stubEmbedder 确定性词袋嵌入，共享词汇的文本有更高的余弦相似度
type stubEmbedder struct {
	dim        int
	model      string
	batchLimit int // 超过该数量的批量请求报错，0为不限
	failAt     int // 第failAt次调用报错，0为从不
	calls      int
}

func newStubEmbedder(dim int) *stubEmbedder {
	return &stubEmbedder{dim: dim, model: "stub-model"}
}

func (s *stubEmbedder) vectorize(text string) []float32 {
	v := make([]float32, s.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[int(h.Sum32())%s.dim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failAt > 0 && s.calls >= s.failAt {
		return nil, embedding.NewEmbeddingError(embedding.ErrCodeServiceUnavailable,
			"stub failure on call %d", s.calls)
	}
	if s.batchLimit > 0 && len(texts) > s.batchLimit {
		return nil, embedding.NewEmbeddingError(embedding.ErrCodeBatchTooLarge,
			"batch size %d exceeds limit %d", len(texts), s.batchLimit)
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = s.vectorize(t)
	}
	return vectors, nil
}

func (s *stubEmbedder) Name() string    { return "stub" }
func (s *stubEmbedder) Model() string   { return s.model }
func (s *stubEmbedder) Dimensions() int { return s.dim }

// makeFragments 生成n个来自两份文档的测试片段
func makeFragments(n int) []document.Fragment {
	fragments := make([]document.Fragment, n)
	for i := range fragments {
		source := "bulletin_a.xml"
		if i%2 == 1 {
			source = "bulletin_b.xml"
		}
		fragments[i] = document.Fragment{
			ID:       document.FragmentID(source, i/2),
			Position: i / 2,
			Text:     fmt.Sprintf("Fragment numéro %d sur les parasites.", i),
			Meta: document.Metadata{
				Source: source,
				Title:  "Bulletin " + source,
				Date:   "Mars 1987",
			},
		}
	}
	return fragments
}

func memoryConfig(dir string) vectordb.Config {
	return vectordb.Config{Type: "memory", Path: dir, Distance: vectordb.Cosine}
}

func TestBuilderBulkPath(t *testing.T) {
	dir := t.TempDir()
	embedder := newStubEmbedder(16)
	builder := NewBuilder(embedder, memoryConfig(dir))

	repo, meta, err := builder.Build(context.Background(), makeFragments(6))
	require.NoError(t, err, "构建索引失败")
	defer repo.Close()

	t.Run("Metadata", func(t *testing.T) {
		assert.Equal(t, "stub-model", meta.EmbeddingModel)
		assert.Equal(t, 16, meta.Dimension)
		assert.Equal(t, 6, meta.FragmentCount)
		assert.Equal(t, 2, meta.DocumentCount, "文档数按不同来源统计")
		assert.False(t, meta.BuiltAt.IsZero())
	})

	t.Run("PersistedFiles", func(t *testing.T) {
		for _, name := range append(vectordb.RequiredFiles("memory"), MetadataFile) {
			_, err := os.Stat(filepath.Join(dir, name))
			assert.NoError(t, err, "持久化文件%s缺失", name)
		}
	})

	t.Run("SidecarContent", func(t *testing.T) {
		read, err := ReadMetadata(dir)
		require.NoError(t, err)
		assert.Equal(t, meta.EmbeddingModel, read.EmbeddingModel)
		assert.Equal(t, meta.FragmentCount, read.FragmentCount)
	})

	// 一次批量调用就完成
	assert.Equal(t, 1, embedder.calls)
}

func TestBuilderBatchedFallback(t *testing.T) {
	dir := t.TempDir()
	embedder := newStubEmbedder(16)
	embedder.batchLimit = 2
	builder := NewBuilder(embedder, memoryConfig(dir), WithBatchSize(2))

	repo, meta, err := builder.Build(context.Background(), makeFragments(5))
	require.NoError(t, err, "退化路径构建失败")
	defer repo.Close()

	assert.Equal(t, 5, meta.FragmentCount, "全部片段应该入库")
	// 一次失败的批量调用加三批
	assert.Equal(t, 4, embedder.calls)
}

func TestBuilderPartialFailure(t *testing.T) {
	dir := t.TempDir()
	embedder := newStubEmbedder(16)
	embedder.batchLimit = 2
	embedder.failAt = 4 // 第三批报错
	builder := NewBuilder(embedder, memoryConfig(dir), WithBatchSize(2))

	repo, meta, err := builder.Build(context.Background(), makeFragments(6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPartialIndex), "应该返回部分失败哨兵错误")

	require.NotNil(t, repo, "已入库的部分应该保留")
	defer repo.Close()
	require.NotNil(t, meta)
	assert.Equal(t, 4, meta.FragmentCount, "前两批共4个片段已持久化")

	// 持久化产物与内存状态一致
	read, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, read.FragmentCount)
}

func TestBuilderEmptyInput(t *testing.T) {
	builder := NewBuilder(newStubEmbedder(8), memoryConfig(t.TempDir()))
	_, _, err := builder.Build(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.KindInput, models.KindOf(err))
}

// buildTestIndex 构建一个带领域文本的小索引
func buildTestIndex(t *testing.T, dir string, embedder *stubEmbedder) *Metadata {
	t.Helper()
	fragments := []document.Fragment{
		{
			ID: "paludisme.xml#0", Position: 0,
			Text: "Le paludisme est causé par Plasmodium transmis par les anophèles.",
			Meta: document.Metadata{Source: "paludisme.xml", Title: "Sur le paludisme", Date: "1987"},
		},
		{
			ID: "botanique.xml#0", Position: 0,
			Text: "Les orchidées tropicales fleurissent pendant la saison humide.",
			Meta: document.Metadata{Source: "botanique.xml", Title: "Botanique", Date: "1992"},
		},
	}
	builder := NewBuilder(embedder, memoryConfig(dir))
	repo, meta, err := builder.Build(context.Background(), fragments)
	require.NoError(t, err, "构建测试索引失败")
	require.NoError(t, repo.Close())
	return meta
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	embedder := newStubEmbedder(32)
	built := buildTestIndex(t, dir, embedder)

	var factoryModel string
	ret, meta, err := Load(LoadConfig{Path: dir, RepoType: "memory"},
		func(model string) (embedding.Client, error) {
			factoryModel = model
			return embedder, nil
		}, nil)
	require.NoError(t, err, "加载索引失败")

	assert.Equal(t, built.EmbeddingModel, factoryModel,
		"加载端应该用边车记录的模型创建嵌入客户端")
	assert.Equal(t, built.FragmentCount, meta.FragmentCount)

	// 加载后的索引给出与构建端一致的检索结果
	results, err := ret.Retrieve(context.Background(), "Qu'est-ce qui cause le paludisme ?")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "paludisme.xml#0", results[0].Fragment.ID)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, _, err := Load(LoadConfig{Path: filepath.Join(t.TempDir(), "absent"), RepoType: "memory"},
		func(model string) (embedding.Client, error) {
			return newStubEmbedder(8), nil
		}, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindIntegrity, models.KindOf(err))
}

func TestLoadMissingRequiredFile(t *testing.T) {
	dir := t.TempDir()
	embedder := newStubEmbedder(16)
	buildTestIndex(t, dir, embedder)
	require.NoError(t, os.Remove(filepath.Join(dir, vectordb.FragmentsFile)))

	_, _, err := Load(LoadConfig{Path: dir, RepoType: "memory"},
		func(model string) (embedding.Client, error) { return embedder, nil }, nil)
	require.Error(t, err, "必需文件缺失应该拒绝加载")
	assert.Equal(t, models.KindIntegrity, models.KindOf(err))
}

func TestLoadMissingMetadataFallsBack(t *testing.T) {
	dir := t.TempDir()
	embedder := newStubEmbedder(16)
	buildTestIndex(t, dir, embedder)
	require.NoError(t, os.Remove(filepath.Join(dir, MetadataFile)))

	var factoryModel string
	_, meta, err := Load(LoadConfig{Path: dir, RepoType: "memory"},
		func(model string) (embedding.Client, error) {
			factoryModel = model
			return embedder, nil
		}, nil)
	require.NoError(t, err, "边车缺失应该回退而不是失败")

	assert.Equal(t, embedding.DefaultModel, factoryModel, "回退到默认嵌入模型")
	assert.Equal(t, 2, meta.FragmentCount, "统计数字从仓库补齐")
	assert.Equal(t, 16, meta.Dimension)
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, newStubEmbedder(16))

	// 加载端的嵌入客户端产出不同维度的向量
	_, _, err := Load(LoadConfig{Path: dir, RepoType: "memory"},
		func(model string) (embedding.Client, error) {
			return newStubEmbedder(32), nil
		}, nil)
	require.Error(t, err, "维度不匹配必须硬失败")
	assert.Equal(t, models.KindIntegrity, models.KindOf(err))
}
