package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// ollamaClient реализует Client поверх нативного API Ollama.
// Генерация изображений и синтез речи не поддерживаются и возвращают
// ErrOperationNotSupported.
type ollamaClient struct {
	client *api.Client
	cfg    Config
	logger *zap.Logger
}

func newOllamaClient(cfg Config, logger *zap.Logger) (*ollamaClient, error) {
	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &ollamaClient{
		client: api.NewClient(parsedURL, httpClient),
		cfg:    cfg,
		logger: logger.Named("OllamaClient"),
	}, nil
}

// Complete продолжает историю локальной моделью.
func (c *ollamaClient) Complete(ctx context.Context, prompt string, history []model.PromptPair) (string, error) {
	messages := []api.Message{
		{Role: "system", Content: storytellerSystemPrompt},
	}
	for _, pair := range trimHistory(c.cfg.Model, history, c.cfg.HistoryTokenBudget) {
		messages = append(messages,
			api.Message{Role: "user", Content: pair.Prompt},
			api.Message{Role: "assistant", Content: pair.Completion},
		)
	}
	messages = append(messages, api.Message{Role: "user", Content: prompt})

	text, err := c.chat(ctx, "completion", messages, c.cfg.CompletionMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Summarize запрашивает JSON с кратким содержанием и промтом иллюстрации.
func (c *ollamaClient) Summarize(ctx context.Context, prompt, completion string) (Summary, error) {
	messages := []api.Message{
		{Role: "user", Content: buildSummaryInput(prompt, completion)},
	}

	text, err := c.chat(ctx, "summary", messages, c.cfg.SummaryMaxTokens)
	if err != nil {
		return Summary{}, err
	}
	return extractSummary(text)
}

func (c *ollamaClient) chat(ctx context.Context, operation string, messages []api.Message, maxTokens int) (string, error) {
	req := &api.ChatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(false), // Не стримим
		Options: map[string]interface{}{
			"temperature": 0.0,
			"num_predict": maxTokens,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	startTime := time.Now()
	c.logger.Debug("Отправка запроса к Ollama",
		zap.String("operation", operation),
		zap.String("model", c.cfg.Model),
		zap.Int("messages", len(messages)),
	)

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r // Сохраняем последний (полный) ответ
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ошибка от Ollama API",
			zap.String("operation", operation), zap.Duration("duration", duration), zap.Error(err))
		observeRequest(operation, c.cfg.Model, "error", duration.Seconds())
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		observeRequest(operation, c.cfg.Model, "error_empty_response", duration.Seconds())
		return "", ErrEmptyResponse
	}

	observeRequest(operation, c.cfg.Model, "success", duration.Seconds())
	if resp.Done {
		aiPromptTokens.WithLabelValues(operation, c.cfg.Model).Observe(float64(resp.PromptEvalCount))
		aiCompletionTokens.WithLabelValues(operation, c.cfg.Model).Observe(float64(resp.EvalCount))
	}

	return resp.Message.Content, nil
}

// GenerateImage не поддерживается Ollama.
func (c *ollamaClient) GenerateImage(ctx context.Context, imagePrompt string) (Image, error) {
	return Image{}, fmt.Errorf("%w: генерация изображений через Ollama", ErrOperationNotSupported)
}

// Synthesize не поддерживается Ollama.
func (c *ollamaClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return nil, fmt.Errorf("%w: синтез речи через Ollama", ErrOperationNotSupported)
}

// ListModels возвращает локально доступные модели.
func (c *ollamaClient) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка моделей Ollama: %w", err)
	}
	models := make([]Model, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, Model{ID: m.Name, OwnedBy: "ollama"})
	}
	return models, nil
}
