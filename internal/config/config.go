package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию Primer Server.
type Config struct {
	// Настройки сервера
	Port               string        `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding        string        `envconfig:"LOG_ENCODING" default:"json"`
	ReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout    time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBPassword    string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`

	// Настройки Redis (кэш токена речевого сервиса)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Настройки RabbitMQ (события жизненного цикла; пусто — события отключены)
	RabbitMQURL     string `envconfig:"RABBITMQ_URL" default:""`
	EventsQueueName string `envconfig:"EVENTS_QUEUE_NAME" default:"story_events"`

	// JWT (проверка токена пользователя, выданного внешним identity provider)
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Настройки AI
	AIClientType       string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIAPIKey           string        `envconfig:"AI_API_KEY" default:""`
	AIBaseURL          string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel            string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIImageModel       string        `envconfig:"AI_IMAGE_MODEL" default:"dall-e-3"`
	AITTSModel         string        `envconfig:"AI_TTS_MODEL" default:"tts-1"`
	AITTSVoice         string        `envconfig:"AI_TTS_VOICE" default:"nova"`
	AITimeout          time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIHistoryTokens    int           `envconfig:"AI_HISTORY_TOKEN_BUDGET" default:"6000"`
	AICompletionTokens int           `envconfig:"AI_COMPLETION_MAX_TOKENS" default:"1000"`
	AISummaryTokens    int           `envconfig:"AI_SUMMARY_MAX_TOKENS" default:"333"`

	// Токен речевого сервиса (распознавание речи на клиенте)
	SpeechKey      string        `envconfig:"SPEECH_KEY" default:""`
	SpeechRegion   string        `envconfig:"SPEECH_REGION" default:"eastus"`
	SpeechTokenTTL time.Duration `envconfig:"SPEECH_TOKEN_TTL" default:"9m"`

	// Хранилище медиафайлов (иллюстрации, озвучка)
	MediaSavePath      string `envconfig:"MEDIA_SAVE_PATH" default:"./media"`
	MediaPublicBaseURL string `envconfig:"MEDIA_PUBLIC_BASE_URL" default:"/media"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации primer-server: %w", err)
	}

	log.Printf("Конфигурация Primer Server загружена:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	log.Printf("  RabbitMQ URL set: %t", cfg.RabbitMQURL != "")
	log.Printf("  AI Client: %s (model %s)", cfg.AIClientType, cfg.AIModel)
	log.Printf("  Media Save Path: %s", cfg.MediaSavePath)

	return &cfg, nil
}
