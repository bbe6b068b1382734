package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Типы событий жизненного цикла историй.
const (
	EventStoryCreated = "story.created"
	EventStoryDeleted = "story.deleted"
	EventPageCreated  = "page.created"
)

// StoryEvent - событие жизненного цикла истории для внешних потребителей
// (аналитика, уведомления родителей).
type StoryEvent struct {
	Type       string    `json:"type"`
	UserID     uuid.UUID `json:"userId"`
	StoryID    uuid.UUID `json:"storyId"`
	PageID     uuid.UUID `json:"pageId,omitempty"`
	PageNumber int       `json:"pageNumber,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher defines the interface for publishing story lifecycle events.
type EventPublisher interface {
	PublishStoryEvent(ctx context.Context, event StoryEvent) error
}

// rabbitMQPublisher implements the EventPublisher interface for RabbitMQ.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQEventPublisher creates a new instance of EventPublisher.
// Очередь объявляется здесь, чтобы система не зависела от порядка запуска
// сервисов; параметры должны совпадать с консьюмером.
func NewRabbitMQEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}
	logger.Info("Очередь событий объявлена", zap.String("queue", queueName))
	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("EventPublisher"),
	}, nil
}

// PublishStoryEvent publishes a story lifecycle event.
func (p *rabbitMQPublisher) PublishStoryEvent(ctx context.Context, event StoryEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события '%s': %w", event.Type, err)
	}

	if err := p.publishMessage(ctx, body); err != nil {
		p.logger.Error("Ошибка публикации события",
			zap.String("type", event.Type),
			zap.String("storyID", event.StoryID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("ошибка публикации события '%s': %w", event.Type, err)
	}

	p.logger.Debug("Событие опубликовано",
		zap.String("type", event.Type), zap.String("storyID", event.StoryID.String()))
	return nil
}

// publishMessage is a helper method for publishing a message.
func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "primer-server",
			},
		)
		if err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
}

// nopPublisher используется, когда RabbitMQ не сконфигурирован: события
// просто не публикуются.
type nopPublisher struct{}

// NewNopEventPublisher returns an EventPublisher that discards all events.
func NewNopEventPublisher() EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) PublishStoryEvent(ctx context.Context, event StoryEvent) error {
	return nil
}
