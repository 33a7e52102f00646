package llm

import (
	"fmt"
	"strings"

	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/retriever"
)

// QueryPlaceholder 查询模板里必须出现的占位符
const QueryPlaceholder = "{query}"

// SystemInstruction 固定的系统指令，不随会话模板变化
const SystemInstruction = `Tu es un agent RAG chargé de générer des réponses en t'appuyant exclusivement sur les informations fournies dans les documents de référence.

IMPORTANT: Pour chaque information ou affirmation dans ta réponse, tu DOIS indiquer explicitement le numéro de la source (Source 1, Source 2, etc.) dont provient cette information.`

// DefaultQueryTemplate 默认查询模板，会话内可编辑
const DefaultQueryTemplate = `Voici la requête de l'utilisateur :
{query}

# Instructions COSTAR pour traiter cette requête :

[C] **Contexte** : Documents scientifiques historiques en français, au format XML-TEI. Corpus vectorisé disponible. Présence fréquente d'erreurs OCR, notamment sur les chiffres. Entrée = question + documents pertinents.

[O] **Objectif** : Fournir des réponses factuelles et précises, exclusivement basées sur les documents fournis. L'extraction doit être claire, structurée, et signaler toute erreur OCR détectée. Ne rien inventer.

[S] **Style** : Clair et structuré. Utiliser le Markdown pour marquer la hiérarchie. Séparer les faits établis des incertitudes. Citer les documents avec exactitude.

[T] **Ton** : Professionnel et académique. Précis, neutre, et transparent quant aux limites des réponses.

[A] **Audience** : Chercheurs et historien·ne·s, en quête d'informations fiables, vérifiables et bien sourcées.

[R] **Réponse** :
- Titres en **gras** - Informations citées textuellement depuis les documents
- Pour chaque information importante, indiquer explicitement le numéro de la source (ex: Source 1, Source 2, etc.)
- En l'absence d'information : écrire _"Les documents fournis ne contiennent pas cette information."_
- Chaque information doit comporter un **niveau de confiance** : Élevé / Moyen / Faible
- Chiffres présentés de manière claire et lisible
- Mettre en **gras** les informations importantes
- 4-5 phrases maximum

⚠️ **Attention aux chiffres** : les erreurs OCR sont fréquentes. Vérifier la cohérence à partir du contexte. Être prudent sur les séparateurs utilisés (espaces, virgules, points).`

// Prompt 组装好的提示词
type Prompt struct {
	System string // 系统指令
	User   string // 用户消息，含查询、来源清单和文档上下文
}

// Messages 转换为对话消息
func (p *Prompt) Messages() []Message {
	return []Message{
		NewSystemMessage(p.System),
		NewUserMessage(p.User),
	}
}

// Assembler 提示词组装器
// 来源编号在来源清单和上下文块里保持一致，回答里的Source N
// 能对应回同一个片段
type Assembler struct {
	template string
}

// NewAssembler 创建提示词组装器
// 模板缺少{query}占位符属于配置错误，组装时查询会无处安放
func NewAssembler(template string) (*Assembler, error) {
	if !strings.Contains(template, QueryPlaceholder) {
		return nil, models.NewPipelineError(models.KindConfig, "prompt.assemble",
			models.ErrInvalidTemplate)
	}
	return &Assembler{template: template}, nil
}

// Assemble 将查询和检索结果组装为完整提示词
func (a *Assembler) Assemble(query string, results []retriever.Result) *Prompt {
	var sourceLines []string
	var contextBlocks []string
	for _, r := range results {
		sourceLines = append(sourceLines,
			fmt.Sprintf("Source %d: %s | %s", r.Rank, r.Fragment.Title, r.Fragment.Date))
		contextBlocks = append(contextBlocks,
			fmt.Sprintf("Source %d:\nTitle: %s\nDate: %s\nContent: %s\n",
				r.Rank, r.Fragment.Title, r.Fragment.Date, r.Fragment.Text))
	}

	formattedQuery := strings.ReplaceAll(a.template, QueryPlaceholder, query)

	user := fmt.Sprintf(`%s

INSTRUCTIONS IMPORTANTES:
- Pour CHAQUE fait ou information mentionné dans ta réponse, indique EXPLICITEMENT le numéro de la source correspondante (ex: Source 1, Source 3)
- Cite les sources même pour les informations de confiance élevée
- Fais référence aux sources numérotées ci-dessous dans chaque section de ta réponse

SOURCES DISPONIBLES:
%s

CONTEXTE DOCUMENTAIRE:
%s
`, formattedQuery, strings.Join(sourceLines, "\n"), strings.Join(contextBlocks, "\n"))

	return &Prompt{
		System: SystemInstruction,
		User:   user,
	}
}
