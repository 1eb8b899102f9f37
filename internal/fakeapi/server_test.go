package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{APIKey: "secret"})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestChatCompletionEchoesLastUserMessage(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/chat/completions", "secret",
		`{"model":"grok-1","messages":[{"role":"user","content":"ping"},{"role":"assistant","content":"x"}],"temperature":0.2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp openai.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "ping", resp.Choices[0].Message.Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, openai.FinishReasonStop, resp.Choices[0].FinishReason)
	assert.Equal(t, "grok-1", resp.Model)
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, 0.2, requests[0]["temperature"])
}

func TestChatCompletionScriptedReplies(t *testing.T) {
	srv := newTestServer(t)
	srv.Enqueue(Reply{Content: "first"}, Reply{Status: http.StatusTooManyRequests, Message: "slow down"})
	payload := `{"model":"grok-1","messages":[{"role":"user","content":"hi"}]}`

	rec := do(t, srv, http.MethodPost, "/chat/completions", "secret", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"first"`)

	rec = do(t, srv, http.MethodPost, "/chat/completions", "secret", payload)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "slow down", decodeError(t, rec).Error.Message)

	rec = do(t, srv, http.MethodPost, "/chat/completions", "secret", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hi"`)
}

func TestChatCompletionValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, "request body is required"},
		{"invalid json", `{"model":`, "invalid JSON payload"},
		{"trailing data", `{"model":"grok-1"} {}`, "single JSON object"},
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`, "model must be provided"},
		{"missing messages", `{"model":"grok-1","messages":[]}`, "at least one message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/chat/completions", "secret", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error.Message, tt.want)
		})
	}
}

func TestRequiresAPIKey(t *testing.T) {
	srv := newTestServer(t)

	for _, key := range []string{"", "wrong"} {
		rec := do(t, srv, http.MethodGet, "/models", key, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "invalid_api_key", body.Error.Code)
	}
	assert.Empty(t, srv.Requests())
}

func TestModelsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/models", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Object string         `json:"object"`
		Data   []openai.Model `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "grok-1", list.Data[0].ID)

	rec = do(t, srv, http.MethodGet, "/models/grok-2/", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var model openai.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, "grok-2", model.ID)

	rec = do(t, srv, http.MethodGet, "/models/nope", "secret", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "model_not_found", decodeError(t, rec).Error.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/completions", "secret", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec).Error.Message)
}

func TestNewRejectsBadPort(t *testing.T) {
	_, err := New(Config{Port: 70000})
	assert.Error(t, err)
}
