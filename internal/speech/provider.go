package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrTokenIssue - не удалось получить речевой токен у Azure.
var ErrTokenIssue = errors.New("ошибка получения речевого токена")

// Token - выданный токен распознавания речи вместе с регионом, который
// нужен клиентскому SDK для выбора endpoint'а.
type Token struct {
	Token  string `json:"token"`
	Region string `json:"region"`
}

// Config содержит настройки провайдера речевых токенов.
type Config struct {
	Key      string        // Ocp-Apim-Subscription-Key
	Region   string        // например, eastus
	TokenTTL time.Duration // срок кеширования; сами токены Azure живут 10 минут
}

// Provider выдает короткоживущие токены Azure Cognitive Services для
// распознавания речи на клиенте. Токены кешируются, чтобы не дергать STS
// на каждый запрос.
type Provider struct {
	httpClient *http.Client
	cache      TokenCache // может быть nil, тогда каждый запрос идет в Azure
	cfg        Config
	endpoint   string
	logger     *zap.Logger
}

// NewProvider создает провайдер речевых токенов.
func NewProvider(cfg Config, cache TokenCache, logger *zap.Logger) *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		cfg:        cfg,
		endpoint:   fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", cfg.Region),
		logger:     logger.Named("SpeechTokenProvider"),
	}
}

// GetToken возвращает токен из кеша либо запрашивает новый у Azure.
func (p *Provider) GetToken(ctx context.Context) (Token, error) {
	cacheKey := "speech_token:" + p.cfg.Region

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, cacheKey)
		if err != nil {
			// Кеш недоступен - не фатально, просто идем в Azure.
			p.logger.Warn("Ошибка чтения речевого токена из кеша", zap.Error(err))
		} else if cached != "" {
			p.logger.Debug("Речевой токен взят из кеша")
			return Token{Token: cached, Region: p.cfg.Region}, nil
		}
	}

	token, err := p.issueToken(ctx)
	if err != nil {
		return Token{}, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, token, p.cfg.TokenTTL); err != nil {
			p.logger.Warn("Ошибка записи речевого токена в кеш", zap.Error(err))
		}
	}

	return Token{Token: token, Region: p.cfg.Region}, nil
}

// issueToken запрашивает новый токен у Azure STS.
func (p *Provider) issueToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)
	req.Header.Set("Content-Length", "0")

	startTime := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("Ошибка запроса к Azure STS", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: ошибка чтения ответа: %v", ErrTokenIssue, err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Error("Azure STS вернул ошибку",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return "", fmt.Errorf("%w: статус %d", ErrTokenIssue, resp.StatusCode)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("%w: пустой токен", ErrTokenIssue)
	}

	p.logger.Debug("Новый речевой токен получен",
		zap.String("region", p.cfg.Region),
		zap.Duration("duration", time.Since(startTime)),
	)
	return string(body), nil
}
