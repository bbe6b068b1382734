package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"primer-server/internal/ai"
	"primer-server/internal/config"
	"primer-server/internal/database"
	"primer-server/internal/engine"
	"primer-server/internal/handler"
	"primer-server/internal/logger"
	"primer-server/internal/messaging"
	"primer-server/internal/repository"
	"primer-server/internal/service"
	"primer-server/internal/speech"
	"primer-server/internal/storage"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Primer Server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// Подключение к PostgreSQL и миграции
	dbPool, err := setupDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer dbPool.Close()
	zapLogger.Info("Успешное подключение к PostgreSQL")

	if err := database.ApplyMigrations(dbPool); err != nil {
		zapLogger.Fatal("Ошибка применения миграций", zap.Error(err))
	}
	zapLogger.Info("Миграции применены")

	// Redis (кэш речевых токенов) - опционально
	var tokenCache speech.TokenCache
	if cfg.RedisAddr != "" {
		redisClient, err := setupRedis(cfg, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
		defer redisClient.Close()
		tokenCache = speech.NewRedisTokenCache(redisClient, zapLogger)
		zapLogger.Info("Успешное подключение к Redis")
	} else {
		zapLogger.Warn("REDIS_ADDR не задан, речевые токены не кешируются")
	}

	// RabbitMQ (события жизненного цикла) - опционально
	eventPublisher := messaging.NewNopEventPublisher()
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
		}
		defer rabbitConn.Close()
		eventPublisher, err = messaging.NewRabbitMQEventPublisher(rabbitConn, cfg.EventsQueueName, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось создать EventPublisher", zap.Error(err))
		}
		zapLogger.Info("Успешное подключение к RabbitMQ")
	} else {
		zapLogger.Warn("RABBITMQ_URL не задан, события жизненного цикла отключены")
	}

	// AI клиент
	aiClient, err := ai.NewClient(ai.Config{
		ClientType:          cfg.AIClientType,
		APIKey:              cfg.AIAPIKey,
		BaseURL:             cfg.AIBaseURL,
		Model:               cfg.AIModel,
		ImageModel:          cfg.AIImageModel,
		TTSModel:            cfg.AITTSModel,
		TTSVoice:            cfg.AITTSVoice,
		Timeout:             cfg.AITimeout,
		HistoryTokenBudget:  cfg.AIHistoryTokens,
		CompletionMaxTokens: cfg.AICompletionTokens,
		SummaryMaxTokens:    cfg.AISummaryTokens,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать AI клиент", zap.Error(err))
	}

	// Хранилище медиа
	mediaStore, err := storage.NewFileMediaStore(cfg.MediaSavePath, cfg.MediaPublicBaseURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать хранилище медиа", zap.Error(err))
	}

	// Речевые токены Azure - опционально
	var speechProvider *speech.Provider
	if cfg.SpeechKey != "" {
		speechProvider = speech.NewProvider(speech.Config{
			Key:      cfg.SpeechKey,
			Region:   cfg.SpeechRegion,
			TokenTTL: cfg.SpeechTokenTTL,
		}, tokenCache, zapLogger)
	} else {
		zapLogger.Warn("SPEECH_KEY не задан, распознавание речи отключено")
	}

	// Репозитории, сервис, движок сессий
	userRepo := repository.NewPgUserRepository(dbPool, zapLogger)
	storyRepo := repository.NewPgStoryRepository(dbPool, zapLogger)
	pageRepo := repository.NewPgPageRepository(dbPool, zapLogger)

	storyService := service.NewStoryService(userRepo, storyRepo, pageRepo, aiClient, mediaStore, eventPublisher, zapLogger)
	sessionManager := engine.NewManager(engine.Deps{
		StoryRepo: storyRepo,
		PageRepo:  pageRepo,
		AIClient:  aiClient,
		Media:     mediaStore,
		Events:    eventPublisher,
		Logger:    zapLogger,
	})
	storyHandler := handler.NewStoryHandler(storyService, sessionManager, aiClient, speechProvider, zapLogger, cfg.JWTSecret)

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echoMiddleware.RequestID())
	e.Use(handler.EchoZapLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	storyHandler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Static("/media", cfg.MediaSavePath)

	// Запуск HTTP сервера
	go func() {
		e.Server.ReadTimeout = cfg.ReadTimeout
		e.Server.WriteTimeout = cfg.WriteTimeout
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("Ошибка запуска HTTP сервера: ", err)
		}
	}()
	log.Printf("Primer Server слушает на порту %s", cfg.Port)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	// Живые сессии разбираются, незавершенные пайплайны не персистятся.
	sessionManager.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal("Ошибка при graceful shutdown Echo: ", err)
	}

	log.Println("Primer Server успешно остановлен")
}

// setupDatabase инициализирует и возвращает пул соединений с БД.
func setupDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД (ping failed): %w", err)
	}
	return dbPool, nil
}

// setupRedis инициализирует клиент Redis с проверкой соединения.
func setupRedis(cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
