package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"foliogen/internal/config"
)

// Completer 是对补全服务的最小抽象：投递 chat 消息，拿回文本。
// 抽取算法只依赖这个接口，换供应商不改算法。
type Completer interface {
	Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrProviderUnavailable 表示凭据或配置缺失，请求未发出。
var ErrProviderUnavailable = errors.New("ai provider api key is not configured")

// ProviderError 表示补全服务返回了非预期响应。
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai provider http %d: %s", e.Status, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPCompleter 通过 OpenAI 风格的 chat-completions HTTP 接口实现 Completer。
// 供应商之间只有 endpoint/key/model 三元组的差别，不存在共享状态或
// 多态行为，因此用配置开关挑选描述符即可。
type HTTPCompleter struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float32
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewCompleter 依据配置开关解析供应商描述符。
func NewCompleter(cfg config.AIConfig, logger *slog.Logger) *HTTPCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &HTTPCompleter{
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
	switch cfg.Provider {
	case "openrouter":
		c.endpoint = "https://openrouter.ai/api/v1/chat/completions"
		c.apiKey = cfg.OpenRouterKey
		c.model = cfg.OpenRouterModel
	default:
		c.endpoint = "https://api.groq.com/openai/v1/chat/completions"
		c.apiKey = cfg.GroqAPIKey
		c.model = cfg.GroqModel
	}
	return c
}

// Ask 实现 Completer。非 2xx 响应返回 *ProviderError。
func (c *HTTPCompleter) Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrProviderUnavailable
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	c.logger.Info("completion response",
		slog.String("model", c.model),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Body: "undecodable response body"}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &ProviderError{Status: resp.StatusCode, Body: "response missing message content"}
	}
	return parsed.Choices[0].Message.Content, nil
}
