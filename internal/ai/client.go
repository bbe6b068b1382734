package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"primer-server/internal/model"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI.
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

// ErrEmptyResponse - AI вернул пустой ответ.
var ErrEmptyResponse = errors.New("получен пустой ответ от AI")

// ErrOperationNotSupported - операция недоступна для выбранного типа клиента
// (например, генерация изображений через Ollama).
var ErrOperationNotSupported = errors.New("операция не поддерживается этим AI клиентом")

// Summary - структурированный результат суммаризации страницы.
type Summary struct {
	Summary     string `json:"summary"`
	ImagePrompt string `json:"imagePrompt"`
}

// Image - результат генерации иллюстрации. Заполняется URL либо B64JSON,
// в зависимости от формата ответа провайдера.
type Image struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

// Model - описание модели провайдера для GET /ai/models.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"ownedBy,omitempty"`
}

// Client - интерфейс взаимодействия с генеративным AI. История передается
// целиком; обрезка под контекстное окно модели — забота реализации.
type Client interface {
	// Complete продолжает историю ребенка по промту и истории страниц.
	Complete(ctx context.Context, prompt string, history []model.PromptPair) (string, error)
	// Summarize возвращает краткое содержание пары промт/продолжение и
	// промт для генерации иллюстрации.
	Summarize(ctx context.Context, prompt, completion string) (Summary, error)
	// GenerateImage генерирует иллюстрацию по промту.
	GenerateImage(ctx context.Context, imagePrompt string) (Image, error)
	// Synthesize озвучивает текст, возвращая аудио (mp3).
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// ListModels возвращает список доступных моделей провайдера.
	ListModels(ctx context.Context) ([]Model, error)
}

// Config содержит настройки AI клиента.
type Config struct {
	ClientType string // "openai" или "ollama"
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	TTSModel   string
	TTSVoice   string
	Timeout    time.Duration

	HistoryTokenBudget  int // бюджет токенов на историю страниц
	CompletionMaxTokens int
	SummaryMaxTokens    int
}

// NewClient создает AI клиент в зависимости от конфигурации.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		logger.Info("Используется реализация AI клиента: OpenAI",
			zap.String("baseURL", cfg.BaseURL), zap.String("model", cfg.Model))
		return newOpenAIClient(cfg, logger), nil
	case "ollama":
		logger.Info("Используется реализация AI клиента: Ollama",
			zap.String("baseURL", cfg.BaseURL), zap.String("model", cfg.Model))
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.ClientType)
	}
}
