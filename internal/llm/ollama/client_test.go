package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: RoleAssistant, Content: `{"final": "done"}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "llama3.1", time.Second)
	reply, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"final": "done"}`, reply)
	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	assert.Len(t, got.Messages, 2)
}

func TestChatModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "x", time.Second).Chat(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrModelNotFound), "got %v", err)
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "x", time.Second).Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestChatUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, "x", time.Second).Chat(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestNewDefaults(t *testing.T) {
	c := New("", "m", 0)
	assert.Equal(t, DefaultHost, c.host)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, "m", c.Model())
}
