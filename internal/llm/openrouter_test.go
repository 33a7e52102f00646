package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOpenRouterTestClient 创建指向测试服务器的OpenRouter客户端
func newOpenRouterTestClient(t *testing.T, server *httptest.Server, opts ...Option) Client {
	t.Helper()
	base := []Option{
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithModel("test/model"),
		WithTimeout(5 * time.Second),
		WithMaxRetries(0),
		WithReferer("https://chatsfp.example.org", "ChatSFP"),
	}
	client, err := NewClient("openrouter", append(base, opts...)...)
	require.NoError(t, err, "创建OpenRouter客户端失败")
	return client
}

func completionResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Model: "test/model",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: text}},
		},
		Usage: openai.Usage{TotalTokens: 42},
	}
}

func TestOpenRouterChat(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	var gotReferer, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(completionResponse("Réponse complète."))
	}))
	defer server.Close()

	client := newOpenRouterTestClient(t, server)
	resp, err := client.Chat(context.Background(), []Message{
		NewSystemMessage("Instruction système."),
		NewUserMessage("Question utilisateur."),
	})
	require.NoError(t, err, "对话请求失败")

	assert.Equal(t, "Réponse complète.", resp.Text)
	assert.Equal(t, 42, resp.TokenCount)
	assert.Equal(t, "https://chatsfp.example.org", gotReferer, "归因头应该附加在每个请求上")
	assert.Equal(t, "ChatSFP", gotTitle)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestOpenRouterWithoutSystemRole(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(completionResponse("Réponse."))
	}))
	defer server.Close()

	client := newOpenRouterTestClient(t, server, WithoutSystemRole())
	_, err := client.Chat(context.Background(), []Message{
		NewSystemMessage("Instruction système."),
		NewUserMessage("Question utilisateur."),
	})
	require.NoError(t, err)

	// 系统指令被折叠进唯一的用户消息
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "Instruction système.\n\nQuestion utilisateur.", gotReq.Messages[0].Content)
}

func TestOpenRouterEmptyMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("空消息不应该发起请求")
	}))
	defer server.Close()

	client := newOpenRouterTestClient(t, server)
	_, err := client.Chat(context.Background(), nil)
	require.Error(t, err)

	var le *LLMError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeInvalidRequest, le.Code)
}
