package ai

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// openAIClient реализует Client с использованием go-openai.
type openAIClient struct {
	client *openaigo.Client
	cfg    Config
	logger *zap.Logger
}

func newOpenAIClient(cfg Config, logger *zap.Logger) *openAIClient {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &openAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		cfg:    cfg,
		logger: logger.Named("OpenAIClient"),
	}
}

// Complete продолжает историю: системный промт рассказчика + история страниц
// в виде чередующихся user/assistant сообщений + новый промт ребенка.
func (c *openAIClient) Complete(ctx context.Context, prompt string, history []model.PromptPair) (string, error) {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: storytellerSystemPrompt},
	}
	for _, pair := range trimHistory(c.cfg.Model, history, c.cfg.HistoryTokenBudget) {
		messages = append(messages,
			openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: pair.Prompt},
			openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleAssistant, Content: pair.Completion},
		)
	}
	messages = append(messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleUser,
		Content: prompt,
	})

	text, err := c.chat(ctx, "completion", messages, c.cfg.CompletionMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Summarize запрашивает краткое содержание пары промт/продолжение и промт
// для иллюстрации, вырезая JSON из ответа модели.
func (c *openAIClient) Summarize(ctx context.Context, prompt, completion string) (Summary, error) {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleUser, Content: buildSummaryInput(prompt, completion)},
	}

	text, err := c.chat(ctx, "summary", messages, c.cfg.SummaryMaxTokens)
	if err != nil {
		return Summary{}, err
	}
	return extractSummary(text)
}

// chat выполняет один chat completion запрос и возвращает текст первого выбора.
func (c *openAIClient) chat(ctx context.Context, operation string, messages []openaigo.ChatCompletionMessage, maxTokens int) (string, error) {
	startTime := time.Now()
	c.logger.Debug("Отправка запроса к OpenAI",
		zap.String("operation", operation),
		zap.String("model", c.cfg.Model),
		zap.Int("messages", len(messages)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: maxTokens,
		// omitempty в библиотеке съедает честный 0, поэтому минимальный
		// положительный float32: детские истории генерируем детерминированно.
		Temperature: math.SmallestNonzeroFloat32,
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ошибка от OpenAI API",
			zap.String("operation", operation), zap.Duration("duration", duration), zap.Error(err))
		observeRequest(operation, c.cfg.Model, "error", duration.Seconds())
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		observeRequest(operation, c.cfg.Model, "error_empty_response", duration.Seconds())
		return "", ErrEmptyResponse
	}

	observeRequest(operation, c.cfg.Model, "success", duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(operation, c.cfg.Model).Observe(float64(resp.Usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(operation, c.cfg.Model).Observe(float64(resp.Usage.CompletionTokens))
	}

	c.logger.Debug("Ответ от OpenAI API получен",
		zap.String("operation", operation),
		zap.Duration("duration", duration),
		zap.Int("length", len(resp.Choices[0].Message.Content)),
	)
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage генерирует иллюстрацию в детском книжном стиле.
func (c *openAIClient) GenerateImage(ctx context.Context, imagePrompt string) (Image, error) {
	startTime := time.Now()
	fullPrompt := imagePrompt + imageStyleSuffix

	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Model:          c.cfg.ImageModel,
		Prompt:         fullPrompt,
		N:              1,
		Size:           openaigo.CreateImageSize1024x1024,
		Style:          openaigo.CreateImageStyleVivid,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ошибка генерации изображения",
			zap.Duration("duration", duration), zap.Error(err))
		observeRequest("image", c.cfg.ImageModel, "error", duration.Seconds())
		return Image{}, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Data) == 0 || (resp.Data[0].B64JSON == "" && resp.Data[0].URL == "") {
		observeRequest("image", c.cfg.ImageModel, "error_empty_response", duration.Seconds())
		return Image{}, ErrEmptyResponse
	}

	observeRequest("image", c.cfg.ImageModel, "success", duration.Seconds())
	c.logger.Debug("Изображение сгенерировано", zap.Duration("duration", duration))
	return Image{URL: resp.Data[0].URL, B64JSON: resp.Data[0].B64JSON}, nil
}

// Synthesize озвучивает текст страницы (mp3).
func (c *openAIClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	startTime := time.Now()

	resp, err := c.client.CreateSpeech(ctx, openaigo.CreateSpeechRequest{
		Model: openaigo.SpeechModel(c.cfg.TTSModel),
		Input: text,
		Voice: openaigo.SpeechVoice(c.cfg.TTSVoice),
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ошибка синтеза речи", zap.Duration("duration", duration), zap.Error(err))
		observeRequest("tts", c.cfg.TTSModel, "error", duration.Seconds())
		return nil, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		observeRequest("tts", c.cfg.TTSModel, "error", duration.Seconds())
		return nil, fmt.Errorf("%w: ошибка чтения аудиопотока: %v", ErrAIGenerationFailed, err)
	}
	if len(audio) == 0 {
		observeRequest("tts", c.cfg.TTSModel, "error_empty_response", duration.Seconds())
		return nil, ErrEmptyResponse
	}

	observeRequest("tts", c.cfg.TTSModel, "success", duration.Seconds())
	return audio, nil
}

// ListModels возвращает список доступных моделей провайдера.
func (c *openAIClient) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	models := make([]Model, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, Model{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}
