package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ledgerline/ledgerchat/server/mocks"
	"github.com/ledgerline/ledgerchat/server/prompt"
	"github.com/ledgerline/ledgerchat/server/relay"
)

func newTestHandler(t *testing.T, mock *mocks.MockRelay) *ChatHandler {
	t.Helper()
	return NewChatHandler(mock, prompt.NewTokenCounter("test-model"), nil, zaptest.NewLogger(t))
}

func postChat(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestChatSuccess(t *testing.T) {
	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
		return "You spent 500.", nil
	})
	handler := newTestHandler(t, mock)

	w := postChat(handler, `{"messages":[{"role":"user","content":"What did I spend in March?"}],"context":"Txn: March rent 500"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"reply": "You spent 500."}, decodeBody(t, w))

	calls := mock.Calls()
	require.Len(t, calls, 1)
	outbound := calls[0]

	require.Len(t, outbound, 2, "outbound sequence is callers' messages plus one system message")
	assert.Equal(t, "system", outbound[0].Role)
	assert.Contains(t, outbound[0].Content, "Txn: March rent 500")
	assert.Equal(t, relay.Message{Role: "user", Content: "What did I spend in March?"}, outbound[1])
}

func TestChatOutboundLength(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			mock := mocks.NewMockRelay(nil)
			handler := newTestHandler(t, mock)

			messages := make([]relay.Message, n)
			for i := range messages {
				messages[i] = relay.Message{Role: "user", Content: fmt.Sprintf("message %d", i)}
			}
			body, err := json.Marshal(ChatRequest{Messages: messages, Context: "ctx"})
			require.NoError(t, err)

			w := postChat(handler, string(body))
			assert.Equal(t, http.StatusOK, w.Code)

			calls := mock.Calls()
			require.Len(t, calls, 1)
			require.Len(t, calls[0], n+1)
			assert.Equal(t, "system", calls[0][0].Role)
			assert.Equal(t, messages, calls[0][1:], "caller messages keep their order")
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, mocks.NewMockRelay(nil))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/v1/chat", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, map[string]string{"error": "Method not allowed"}, decodeBody(t, w))
		})
	}
}

func TestChatOptionsShortCircuits(t *testing.T) {
	mock := mocks.NewMockRelay(nil)
	mock.IsConfigured = false // even unconfigured, pre-flight succeeds
	handler := newTestHandler(t, mock)

	req := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, mock.Calls())
}

func TestChatUnconfigured(t *testing.T) {
	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
		t.Fatal("no outbound call may be attempted without a credential")
		return "", nil
	})
	mock.IsConfigured = false
	handler := newTestHandler(t, mock)

	// Body validity is irrelevant: the gate runs before parsing.
	for _, body := range []string{
		`{"messages":[{"role":"user","content":"Hi"}]}`,
		`not even json`,
	} {
		w := postChat(handler, body)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeBody(t, w)
		assert.Contains(t, resp["reply"], "API key")
		assert.Empty(t, resp["error"])
	}
	assert.Empty(t, mock.Calls())
}

func TestChatInvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{invalid`},
		{name: "empty body", body: ``},
		{name: "double-encoded garbage", body: `"{broken"`},
		{name: "double-encoded non-json", body: `"hello there"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := mocks.NewMockRelay(nil)
			handler := newTestHandler(t, mock)

			w := postChat(handler, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, map[string]string{"error": "Invalid JSON body"}, decodeBody(t, w))
			assert.Empty(t, mock.Calls())
		})
	}
}

func TestChatStringEncodedBody(t *testing.T) {
	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
		return "ok", nil
	})
	handler := newTestHandler(t, mock)

	inner := `{"messages":[{"role":"user","content":"Hi"}],"context":"Txn: 42"}`
	encoded, err := json.Marshal(inner)
	require.NoError(t, err)

	w := postChat(handler, string(encoded))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"reply": "ok"}, decodeBody(t, w))

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][0].Content, "Txn: 42")
}

func TestChatMessagesRequired(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing messages", body: `{"context":"something"}`},
		{name: "empty messages", body: `{"messages":[]}`},
		{name: "null messages", body: `{"messages":null}`},
		{name: "non-array messages", body: `{"messages":"hello"}`},
		{name: "object messages", body: `{"messages":{"role":"user"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := mocks.NewMockRelay(nil)
			handler := newTestHandler(t, mock)

			w := postChat(handler, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, map[string]string{"error": "messages array required"}, decodeBody(t, w))
			assert.Empty(t, mock.Calls())
		})
	}
}

func TestChatDropsExtraMessageFields(t *testing.T) {
	mock := mocks.NewMockRelay(nil)
	handler := newTestHandler(t, mock)

	w := postChat(handler, `{"messages":[{"role":"user","content":"Hi","id":"m-1","timestamp":123}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, relay.Message{Role: "user", Content: "Hi"}, calls[0][1])
}

func TestChatEmptyContext(t *testing.T) {
	mock := mocks.NewMockRelay(nil)
	handler := newTestHandler(t, mock)

	w := postChat(handler, `{"messages":[{"role":"user","content":"Hi"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][0].Content, "(no context)")
}

func TestChatUpstreamStatusFailure(t *testing.T) {
	upstreamBody := `{"error":{"message":"You exceeded your current quota"}}`
	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
		return "", &relay.StatusError{Status: http.StatusTooManyRequests, Body: upstreamBody}
	})
	handler := newTestHandler(t, mock)

	w := postChat(handler, `{"messages":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeBody(t, w)
	assert.Contains(t, resp["reply"], "quota")
	assert.NotContains(t, resp["reply"], "You exceeded your current quota",
		"raw upstream text must not leak to the caller")
	assert.NotContains(t, w.Body.String(), "429")
}

func TestChatTransportFailure(t *testing.T) {
	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
		return "", fmt.Errorf("upstream request failed: connection refused")
	})
	handler := newTestHandler(t, mock)

	w := postChat(handler, `{"messages":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]string{"reply": "Something went wrong. Please try again."}, decodeBody(t, w))
}

func TestChatEmptyCompletionFallback(t *testing.T) {
	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
		return "", nil
	})
	handler := newTestHandler(t, mock)

	w := postChat(handler, `{"messages":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"reply": "I didn't get a reply. Please try again."}, decodeBody(t, w))
}
