package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository 创建纯内存的测试仓库
func newTestRepository(t *testing.T, dir string) Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		Type:            "memory",
		Path:            dir,
		Distance:        Cosine,
		CreateIfMissing: true,
	})
	require.NoError(t, err, "创建向量仓库失败")
	return repo
}

func testFragment(id, source, text string, vector []float32) Fragment {
	return Fragment{
		ID:     id,
		Source: source,
		Title:  "Bulletin " + source,
		Date:   "Mars 1987",
		Text:   text,
		Vector: vector,
	}
}

func TestRepositoryAddAndGet(t *testing.T) {
	repo := newTestRepository(t, "")
	defer repo.Close()

	frag := testFragment("a.xml#0", "a.xml", "paludisme", []float32{1, 0, 0})
	require.NoError(t, repo.Add(frag))

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get("a.xml#0")
		require.NoError(t, err)
		assert.Equal(t, "paludisme", got.Text)
		assert.False(t, got.CreatedAt.IsZero(), "入库时间应该被填充")
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get("absent")
		assert.Error(t, err)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		err := repo.Add(frag)
		assert.Error(t, err, "重复的片段标识符应该被拒绝")
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := repo.Add(testFragment("b.xml#0", "b.xml", "x", []float32{1, 0}))
		assert.Error(t, err, "维度不一致的向量应该被拒绝")
	})
}

func TestRepositorySearch(t *testing.T) {
	repo := newTestRepository(t, "")
	defer repo.Close()

	require.NoError(t, repo.AddBatch([]Fragment{
		testFragment("a.xml#0", "a.xml", "paludisme", []float32{1, 0, 0}),
		testFragment("a.xml#1", "a.xml", "moustiques", []float32{0.9, 0.1, 0}),
		testFragment("b.xml#0", "b.xml", "astronomie", []float32{0, 0, 1}),
	}))

	t.Run("RankedByScore", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, SearchFilter{MaxResults: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a.xml#0", results[0].ID, "最相似的片段应该排第一")
		assert.Equal(t, "a.xml#1", results[1].ID)
		// 得分降序
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
	})

	t.Run("MaxResults", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, SearchFilter{MaxResults: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("SourceFilter", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, SearchFilter{
			MaxResults: 10,
			Sources:    []string{"b.xml"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b.xml#0", results[0].ID)
	})

	t.Run("MinScore", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, SearchFilter{
			MaxResults: 10,
			MinScore:   0.5,
		})
		require.NoError(t, err)
		assert.Len(t, results, 2, "正交向量应该被阈值过滤")
	})
}

func TestRepositoryCounts(t *testing.T) {
	repo := newTestRepository(t, "")
	defer repo.Close()

	require.NoError(t, repo.AddBatch([]Fragment{
		testFragment("a.xml#0", "a.xml", "x", []float32{1, 0}),
		testFragment("a.xml#1", "a.xml", "y", []float32{0, 1}),
		testFragment("b.xml#0", "b.xml", "z", []float32{1, 1}),
	}))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	sources, err := repo.SourceCount()
	require.NoError(t, err)
	assert.Equal(t, 2, sources, "来源数按不同文件统计")

	assert.Equal(t, 2, repo.Dimension())
}

func TestRepositoryPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()

	repo := newTestRepository(t, dir)
	require.NoError(t, repo.AddBatch([]Fragment{
		testFragment("a.xml#0", "a.xml", "paludisme", []float32{1, 0, 0}),
		testFragment("b.xml#0", "b.xml", "astronomie", []float32{0, 0, 1}),
	}))
	require.NoError(t, repo.Persist(), "落盘失败")
	require.NoError(t, repo.Close())

	// 重新打开后检索结果一致
	reopened, err := NewRepository(Config{Type: "memory", Path: dir, Distance: Cosine})
	require.NoError(t, err, "重新加载索引失败")
	defer reopened.Close()

	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := reopened.Search([]float32{1, 0, 0}, SearchFilter{MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.xml#0", results[0].ID)
	assert.Equal(t, "paludisme", results[0].Text)
}

func TestRepositoryMissingIndexFile(t *testing.T) {
	_, err := NewRepository(Config{Type: "memory", Path: t.TempDir()})
	assert.Error(t, err, "CreateIfMissing为false时缺失文件应该报错")
}

func TestDistanceHelpers(t *testing.T) {
	t.Run("CosineSimilarity", func(t *testing.T) {
		assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
		assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
		assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
		assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 0}),
			"零向量的相似度定义为0")
	})

	t.Run("NormalizeVector", func(t *testing.T) {
		normalized := NormalizeVector([]float32{3, 4})
		assert.InDelta(t, 0.6, normalized[0], 1e-6)
		assert.InDelta(t, 0.8, normalized[1], 1e-6)
	})

	t.Run("DistanceToScore", func(t *testing.T) {
		assert.InDelta(t, 0.5, DistanceToScore(1.0, EuclideanL2), 1e-6)
		assert.InDelta(t, 0.9, DistanceToScore(0.9, Cosine), 1e-6)
	})

	t.Run("ValidateVector", func(t *testing.T) {
		assert.Error(t, ValidateVector(nil, 3))
		assert.Error(t, ValidateVector([]float32{1, 2}, 3))
		assert.NoError(t, ValidateVector([]float32{1, 2, 3}, 3))
		assert.NoError(t, ValidateVector([]float32{1, 2}, 0), "维度未定时任意长度都合法")
	})
}
