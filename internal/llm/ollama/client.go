// Package ollama реализует минимальный клиент Ollama /api/chat без потоковой выдачи.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultHost    = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second
)

var (
	ErrModelNotFound = errors.New("model not found")
	ErrUnavailable   = errors.New("ollama is not reachable")
)

// Message описывает сообщение истории диалога.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Роли сообщений.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Client вызывает Ollama по HTTP. Безопасен для конкурентного использования.
type Client struct {
	host       string
	model      string
	httpClient *http.Client
}

// New создает клиент; пустой host заменяется на DefaultHost.
func New(host, model string, timeout time.Duration) *Client {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultHost
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		host:       host,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Model возвращает имя модели клиента.
func (c *Client) Model() string { return c.model }

// Chat отправляет историю и возвращает текст ответа ассистента.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("chat: %w", ctx.Err())
		}
		return "", fmt.Errorf("%s: %w: %v", c.host, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", c.model, ErrModelNotFound)
	case resp.StatusCode != http.StatusOK:
		if decodeErr == nil && out.Error != "" {
			return "", fmt.Errorf("chat request failed: %s: %s", resp.Status, out.Error)
		}
		return "", fmt.Errorf("chat request failed: %s", resp.Status)
	case decodeErr != nil:
		return "", fmt.Errorf("decode chat response: %w", decodeErr)
	}
	return out.Message.Content, nil
}
