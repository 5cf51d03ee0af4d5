package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHistory = []core.Message{
	{Role: core.RoleSystem, Content: "be brief"},
	{Role: core.RoleUser, Content: "hi"},
}

func TestOpenAICompatible_Chat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, core.AppName, r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"hello back"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:      srv.URL,
		APIKey:       "sk-test",
		Model:        "gpt-test",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ExtraHeaders: map[string]string{"X-Title": core.AppName},
	})

	msg, err := p.Chat(context.Background(), testHistory)
	require.NoError(t, err)
	assert.Equal(t, core.Message{Role: core.RoleAssistant, Content: "hello back"}, msg)
	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Len(t, gotBody["messages"], 2)
}

func TestOpenAICompatible_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down", retryable: true},
		{name: "server error", status: http.StatusBadGateway, body: "oops", retryable: true},
		{name: "bad key", status: http.StatusUnauthorized, body: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewCustomOpenAI(srv.URL, "k", "m").Chat(context.Background(), testHistory)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.retryable, se.Retryable())
		})
	}
}

func TestOpenAICompatible_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewCustomOpenAI(srv.URL, "", "m").Chat(context.Background(), testHistory)
	require.Error(t, err)
}

func TestOllama_UsesV1BaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	msg, err := NewOllama(srv.URL+"/v1", "llama3").Chat(context.Background(), testHistory)
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, msg.Role)
	assert.Equal(t, "ok", msg.Content)
}

func TestAnthropic_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body struct {
			System   string         `json:"system"`
			Messages []core.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be brief", body.System)
		assert.Equal(t, []core.Message{{Role: core.RoleUser, Content: "hi"}}, body.Messages)

		io.WriteString(w, `{"content":[{"type":"text","text":"Hel"},{"type":"text","text":"lo"}]}`)
	}))
	defer srv.Close()

	p := NewAnthropic("key", "claude-test")
	p.baseURL = srv.URL

	msg, err := p.Chat(context.Background(), testHistory)
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Content)
}

func TestWorkersAI_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acc/ai/run/"+DefaultWorkersAIModel, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		io.WriteString(w, `{"success":true,"result":{"response":"from the edge"},"errors":[]}`)
	}))
	defer srv.Close()

	p := NewWorkersAI("acc", "tok", "")
	p.baseURL = srv.URL

	msg, err := p.Chat(context.Background(), testHistory)
	require.NoError(t, err)
	assert.Equal(t, "from the edge", msg.Content)
}

func TestWorkersAI_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"result":{},"errors":[{"message":"quota exceeded"}]}`)
	}))
	defer srv.Close()

	p := NewWorkersAI("acc", "tok", "")
	p.baseURL = srv.URL

	_, err := p.Chat(context.Background(), testHistory)
	require.ErrorContains(t, err, "quota exceeded")
}
