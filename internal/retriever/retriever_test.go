package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/vectordb"
)

// fixedEmbedder 按预置映射返回查询向量
type fixedEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dim), nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fixedEmbedder) Name() string    { return "fixed" }
func (f *fixedEmbedder) Model() string   { return "fixed-model" }
func (f *fixedEmbedder) Dimensions() int { return f.dim }

func newSearchRepository(t *testing.T, fragments []vectordb.Fragment) vectordb.Repository {
	t.Helper()
	repo, err := vectordb.NewRepository(vectordb.Config{
		Type:            "memory",
		Distance:        vectordb.Cosine,
		CreateIfMissing: true,
	})
	require.NoError(t, err, "创建测试仓库失败")
	t.Cleanup(func() { repo.Close() })
	if len(fragments) > 0 {
		require.NoError(t, repo.AddBatch(fragments))
	}
	return repo
}

func TestRetrieveEmptyQuery(t *testing.T) {
	repo := newSearchRepository(t, nil)
	r := New(&fixedEmbedder{dim: 3}, repo)

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := r.Retrieve(context.Background(), query)
		require.Error(t, err, "空查询应该报错")
		assert.Equal(t, models.KindInput, models.KindOf(err))
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	repo := newSearchRepository(t, nil)
	r := New(&fixedEmbedder{dim: 3}, repo)

	results, err := r.Retrieve(context.Background(), "paludisme")
	assert.NoError(t, err, "空索引是合法状态而不是错误")
	assert.Empty(t, results)
}

func TestRetrieveTopKAndRanks(t *testing.T) {
	repo := newSearchRepository(t, []vectordb.Fragment{
		{ID: "a.xml#0", Source: "a.xml", Text: "un", Vector: []float32{1, 0, 0}},
		{ID: "a.xml#1", Source: "a.xml", Text: "deux", Vector: []float32{0.9, 0.44, 0}},
		{ID: "b.xml#0", Source: "b.xml", Text: "trois", Vector: []float32{0, 1, 0}},
		{ID: "c.xml#0", Source: "c.xml", Text: "quatre", Vector: []float32{0, 0, 1}},
	})

	embedder := &fixedEmbedder{dim: 3, vectors: map[string][]float32{
		"question": {1, 0, 0},
	}}
	r := New(embedder, repo, WithTopK(2), WithFetchK(10))

	results, err := r.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	require.Len(t, results, 2, "返回数量受topK约束")

	for i, res := range results {
		assert.Equal(t, i+1, res.Rank, "序号应该从1开始连续")
	}
	assert.Equal(t, "a.xml#0", results[0].Fragment.ID, "最相关的片段排第一")
}

func TestRetrieveDiversity(t *testing.T) {
	// a.xml#0和a.xml#1几乎重复，多样性重排应该跳过后者
	repo := newSearchRepository(t, []vectordb.Fragment{
		{ID: "a.xml#0", Source: "a.xml", Text: "paludisme", Vector: []float32{0.98, 0.2, 0}},
		{ID: "a.xml#1", Source: "a.xml", Text: "paludisme bis", Vector: []float32{0.95, 0.3, 0.05}},
		{ID: "b.xml#0", Source: "b.xml", Text: "moustiques", Vector: []float32{0.6, 0, 0.8}},
	})

	embedder := &fixedEmbedder{dim: 3, vectors: map[string][]float32{
		"vecteurs du paludisme": {1, 0, 0},
	}}
	r := New(embedder, repo, WithTopK(2), WithFetchK(10), WithLambda(0.5))

	results, err := r.Retrieve(context.Background(), "vecteurs du paludisme")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a.xml#0", results[0].Fragment.ID)
	assert.Equal(t, "b.xml#0", results[1].Fragment.ID,
		"第二位应该选择多样的片段而不是近似重复的片段")
}

func TestRetrieveFewerCandidatesThanTopK(t *testing.T) {
	repo := newSearchRepository(t, []vectordb.Fragment{
		{ID: "a.xml#0", Source: "a.xml", Text: "seul", Vector: []float32{1, 0, 0}},
	})

	embedder := &fixedEmbedder{dim: 3, vectors: map[string][]float32{
		"question": {1, 0, 0},
	}}
	r := New(embedder, repo, WithTopK(3))

	results, err := r.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, results, 1, "候选不足topK时返回全部候选")
}

func TestOptionGuards(t *testing.T) {
	repo := newSearchRepository(t, nil)
	r := New(&fixedEmbedder{dim: 3}, repo,
		WithTopK(0), WithFetchK(-1), WithLambda(2))

	assert.Equal(t, DefaultTopK, r.topK, "非法的topK应该被忽略")
	assert.Equal(t, DefaultFetchK, r.fetchK)
	assert.Equal(t, float32(DefaultLambda), r.lambda)
}
