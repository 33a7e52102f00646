package tei

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt>
        <title>Bulletin de la Société Française de Parasitologie</title>
      </titleStmt>
      <sourceDesc>
        <p><date>Janvier 1987</date></p>
      </sourceDesc>
    </fileDesc>
  </teiHeader>
  <text>
    <body>
      <p>Le paludisme est causé par Plasmodium.</p>
      <p>  </p>
      <p>Les travaux de <persName>Alphonse Laveran</persName> sont cités par <persName>Émile Brumpt</persName> et <persName>Alphonse Laveran</persName>.</p>
    </body>
  </text>
</TEI>`

func TestParseReader(t *testing.T) {
	parser := NewParser()

	doc, err := parser.ParseReader(strings.NewReader(sampleTEI), "bulletin_1987.xml")
	require.NoError(t, err, "解析TEI文档失败")

	t.Run("Metadata", func(t *testing.T) {
		assert.Equal(t, "bulletin_1987.xml", doc.Identifier)
		assert.Equal(t, "Bulletin de la Société Française de Parasitologie", doc.Title)
		assert.Equal(t, "Janvier 1987", doc.DateText)
		require.NotNil(t, doc.Year, "应该从日期文本提取出年份")
		assert.Equal(t, 1987, *doc.Year)
	})

	t.Run("Paragraphs", func(t *testing.T) {
		// 全文档按出现顺序取段落，teiHeader里的段落也算；空白段落被跳过
		require.Len(t, doc.Paragraphs, 3)
		assert.Equal(t, "Janvier 1987", doc.Paragraphs[0])
		assert.Equal(t, "Le paludisme est causé par Plasmodium.", doc.Paragraphs[1])
	})

	t.Run("Persons", func(t *testing.T) {
		// 人名按出现顺序保留重复
		assert.Equal(t, []string{"Alphonse Laveran", "Émile Brumpt", "Alphonse Laveran"}, doc.Persons)
	})

	t.Run("Body", func(t *testing.T) {
		// 头部与段落之间空一行，段落之间单个换行
		want := "Document: Bulletin de la Société Française de Parasitologie | Date: Janvier 1987\n\n" +
			"Janvier 1987\n" +
			"Le paludisme est causé par Plasmodium.\n" +
			"Les travaux de Alphonse Laveran sont cités par Émile Brumpt et Alphonse Laveran.\n\n" +
			"Personnes mentionnées: Alphonse Laveran, Émile Brumpt, Alphonse Laveran"
		assert.Equal(t, want, doc.Body)
	})
}

func TestParseMissingMetadata(t *testing.T) {
	xml := `<?xml version="1.0"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <text><body><p>Contenu sans en-tête.</p></body></text>
</TEI>`

	parser := NewParser()
	doc, err := parser.ParseReader(strings.NewReader(xml), "bare.xml")
	require.NoError(t, err)

	assert.Equal(t, UnknownTitle, doc.Title, "缺失标题应该用哨兵值")
	assert.Equal(t, UnknownDate, doc.DateText, "缺失日期应该用哨兵值")
	assert.Nil(t, doc.Year, "哨兵日期提取不出年份")
	assert.Empty(t, doc.Persons)
	assert.Contains(t, doc.Body, "Document: Unknown Title | Date: Unknown Date")
}

func TestParseHeaderParagraphs(t *testing.T) {
	// 出版说明等teiHeader段落也属于可检索文本
	xml := `<?xml version="1.0"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><fileDesc>
    <titleStmt><title>Bulletin</title></titleStmt>
    <publicationStmt><p>Publication annuelle de la Société</p></publicationStmt>
    <sourceDesc><p><date>Mars 1902</date></p></sourceDesc>
  </fileDesc></teiHeader>
  <text><body><p>Compte rendu des séances.</p></body></text>
</TEI>`

	parser := NewParser()
	doc, err := parser.ParseReader(strings.NewReader(xml), "annuaire.xml")
	require.NoError(t, err)

	assert.Contains(t, doc.Paragraphs, "Publication annuelle de la Société")
	assert.Contains(t, doc.Body, "Publication annuelle de la Société")
}

func TestParseDateFallback(t *testing.T) {
	// sourceDesc段落里没有date元素时退回段落文本
	xml := `<?xml version="1.0"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><fileDesc>
    <titleStmt><title>Bulletin</title></titleStmt>
    <sourceDesc><p>Publié en 1954 à Paris</p></sourceDesc>
  </fileDesc></teiHeader>
  <text><body><p>Texte.</p></body></text>
</TEI>`

	parser := NewParser()
	doc, err := parser.ParseReader(strings.NewReader(xml), "fallback.xml")
	require.NoError(t, err)

	assert.Equal(t, "Publié en 1954 à Paris", doc.DateText)
	require.NotNil(t, doc.Year)
	assert.Equal(t, 1954, *doc.Year)
}

func TestParseMalformedXML(t *testing.T) {
	parser := NewParser()
	_, err := parser.ParseReader(strings.NewReader("<TEI><unclosed>"), "broken.xml")
	assert.Error(t, err, "残缺的XML应该返回错误")
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		name string
		date string
		want *int
	}{
		{"SimpleYear", "Janvier 1987", intPtr(1987)},
		{"FirstMatchWins", "1987 puis 2003", intPtr(1987)},
		{"OutOfRangeIgnored", "1899 and 2045", intPtr(2045)},
		{"TwentiethCentury", "Bulletin du 12 mars 1954", intPtr(1954)},
		{"NoYear", "Date inconnue", nil},
		{"EmbeddedDigitsRejected", "n°119871", nil},
		{"Empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractYear(tt.date)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got, "应该提取出年份")
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestIsTEIFile(t *testing.T) {
	assert.True(t, IsTEIFile("bulletin.xml"))
	assert.True(t, IsTEIFile("BULLETIN.XML"))
	assert.True(t, IsTEIFile("bulletin.xmltei"))
	assert.False(t, IsTEIFile("notes.txt"))
	assert.False(t, IsTEIFile("archive.zip"))
}

func intPtr(v int) *int {
	return &v
}
