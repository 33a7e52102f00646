package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obtic-sorbonne/chatsfp/internal/tei"
)

func TestNewTextSplitterValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  SplitterConfig
		wantErr bool
	}{
		{"Valid", SplitterConfig{ChunkSize: 100, ChunkOverlap: 20}, false},
		{"ZeroSize", SplitterConfig{ChunkSize: 0, ChunkOverlap: 0}, true},
		{"NegativeOverlap", SplitterConfig{ChunkSize: 100, ChunkOverlap: -1}, true},
		{"OverlapEqualsSize", SplitterConfig{ChunkSize: 100, ChunkOverlap: 100}, true},
		{"OverlapExceedsSize", SplitterConfig{ChunkSize: 100, ChunkOverlap: 150}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextSplitter(tt.config)
			if tt.wantErr {
				assert.Error(t, err, "非法配置应该被拒绝")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitShortText(t *testing.T) {
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})
	require.NoError(t, err)

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, splitter.Split(""))
	})

	t.Run("FitsInOneChunk", func(t *testing.T) {
		text := "Un texte court."
		chunks := splitter.Split(text)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0], "不超长的文本应该原样返回")
	})
}

func TestSplitSizeBound(t *testing.T) {
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 50, ChunkOverlap: 10})
	require.NoError(t, err)

	text := strings.Repeat("Le paludisme est une maladie parasitaire. ", 30)
	chunks := splitter.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 50, "片段%d超过了长度上限", i)
	}
}

func TestSplitExactOverlap(t *testing.T) {
	overlap := 10
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 60, ChunkOverlap: overlap})
	require.NoError(t, err)

	text := strings.Repeat("Observations sur les trypanosomes du sang. ", 20)
	chunks := splitter.Split(text)
	require.Greater(t, len(chunks), 2)

	// 前一片段的尾部就是后一片段的头部，恰好overlap个字符
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		next := []rune(chunks[i])
		require.GreaterOrEqual(t, len(prev), overlap)
		require.GreaterOrEqual(t, len(next), overlap)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(next[:overlap]),
			"片段%d和%d的重叠区不一致", i-1, i)
	}
}

func TestSplitDeterministic(t *testing.T) {
	splitter, err := NewTextSplitter(DefaultSplitterConfig())
	require.NoError(t, err)

	text := strings.Repeat("Bulletin de la Société Française de Parasitologie. ", 200)
	first := splitter.Split(text)
	second := splitter.Split(text)
	assert.Equal(t, first, second, "同一文本两次切分结果应该完全一致")
}

func TestSplitPrefersNaturalBoundaries(t *testing.T) {
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 80, ChunkOverlap: 10})
	require.NoError(t, err)

	text := "Première partie du texte sur le paludisme.\n\nDeuxième partie sur les moustiques anophèles vecteurs. Troisième phrase de conclusion générale."
	chunks := splitter.Split(text)
	require.Greater(t, len(chunks), 1)

	// 第一个切点应该落在段落边界上而不是硬切单词
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n") || strings.HasSuffix(chunks[0], ". "),
		"切点应该优先选择自然边界，实际片段结尾：%q", chunks[0])
}

func TestSplitReconstruction(t *testing.T) {
	overlap := 15
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 70, ChunkOverlap: overlap})
	require.NoError(t, err)

	text := strings.Repeat("Les anophèles transmettent le parasite pendant la nuit. ", 15)
	chunks := splitter.Split(text)
	require.Greater(t, len(chunks), 1)

	// 去掉重叠区后拼接应该还原整个文本
	var b strings.Builder
	b.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		runes := []rune(chunks[i])
		b.WriteString(string(runes[overlap:]))
	}
	assert.Equal(t, text, b.String(), "切分不应该丢失或重复任何字符")
}

func TestSplitDocument(t *testing.T) {
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 60, ChunkOverlap: 10})
	require.NoError(t, err)

	year := 1987
	doc := &tei.SourceDocument{
		Identifier: "bulletin_1987.xml",
		Title:      "Bulletin 1987",
		DateText:   "Mars 1987",
		Year:       &year,
		Persons:    []string{"Alphonse Laveran"},
	}
	doc.Body = "Document: Bulletin 1987 | Date: Mars 1987\n\n" +
		strings.Repeat("Le paludisme est causé par Plasmodium. ", 10)

	fragments := splitter.SplitDocument(doc)
	require.Greater(t, len(fragments), 1)

	for i, f := range fragments {
		assert.Equal(t, FragmentID("bulletin_1987.xml", i), f.ID)
		assert.Equal(t, i, f.Position)
		// 每个片段完整继承文档元数据
		assert.Equal(t, "Bulletin 1987", f.Meta.Title)
		assert.Equal(t, "Mars 1987", f.Meta.Date)
		require.NotNil(t, f.Meta.Year)
		assert.Equal(t, 1987, *f.Meta.Year)
		assert.Equal(t, []string{"Alphonse Laveran"}, f.Meta.Persons)
	}
}
