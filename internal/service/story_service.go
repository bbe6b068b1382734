package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"primer-server/internal/ai"
	"primer-server/internal/messaging"
	"primer-server/internal/model"
	"primer-server/internal/repository"
	"primer-server/internal/storage"
)

// StoryService - операции над историями вне активной сессии: создание,
// списки, чтение, удаление, озвучка страниц.
type StoryService interface {
	// ResolveUser находит или создает автора по email внешнего identity provider'а.
	ResolveUser(ctx context.Context, email, name string) (*model.User, error)
	CreateStory(ctx context.Context, userID uuid.UUID, title string) (*model.Story, error)
	ListStories(ctx context.Context, userID uuid.UUID) ([]model.Story, error)
	// LatestStory возвращает историю с самой свежей страницей (или самую
	// свежую пустую), ErrNotFound если историй нет.
	LatestStory(ctx context.Context, userID uuid.UUID) (*model.Story, error)
	GetStory(ctx context.Context, userID, storyID uuid.UUID) (*model.Story, error)
	DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error
	ListPages(ctx context.Context, userID, storyID uuid.UUID) ([]model.Page, error)
	GetPage(ctx context.Context, userID, storyID uuid.UUID, number int) (*model.Page, error)
	// NarratePage синтезирует озвучку страницы и сохраняет ссылку на нее.
	// Повторный вызов возвращает уже готовую озвучку.
	NarratePage(ctx context.Context, userID, pageID uuid.UUID) (*model.Page, error)
}

type storyService struct {
	users   repository.UserRepository
	stories repository.StoryRepository
	pages   repository.PageRepository
	ai      ai.Client
	media   storage.MediaStore
	events  messaging.EventPublisher
	logger  *zap.Logger
}

// NewStoryService создает сервис историй.
func NewStoryService(
	users repository.UserRepository,
	stories repository.StoryRepository,
	pages repository.PageRepository,
	aiClient ai.Client,
	media storage.MediaStore,
	events messaging.EventPublisher,
	logger *zap.Logger,
) StoryService {
	return &storyService{
		users:   users,
		stories: stories,
		pages:   pages,
		ai:      aiClient,
		media:   media,
		events:  events,
		logger:  logger.Named("StoryService"),
	}
}

func (s *storyService) ResolveUser(ctx context.Context, email, name string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: пустой email", model.ErrInvalidInput)
	}
	return s.users.GetOrCreateByEmail(ctx, email, name)
}

func (s *storyService) CreateStory(ctx context.Context, userID uuid.UUID, title string) (*model.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Story - " + time.Now().Format("January 2, 2006")
	}

	now := time.Now().UTC()
	story := &model.Story{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	s.logger.Info("История создана",
		zap.String("storyID", story.ID.String()), zap.String("userID", userID.String()))
	s.publishEvent(ctx, messaging.StoryEvent{
		Type:    messaging.EventStoryCreated,
		UserID:  userID,
		StoryID: story.ID,
	})
	return story, nil
}

func (s *storyService) ListStories(ctx context.Context, userID uuid.UUID) ([]model.Story, error) {
	return s.stories.ListByUser(ctx, userID)
}

func (s *storyService) LatestStory(ctx context.Context, userID uuid.UUID) (*model.Story, error) {
	story, err := s.stories.LatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.stories.GetWithPages(ctx, story.ID)
}

func (s *storyService) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*model.Story, error) {
	story, err := s.stories.GetWithPages(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, model.ErrForbidden
	}
	return story, nil
}

func (s *storyService) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	if err := s.stories.Delete(ctx, storyID, userID); err != nil {
		return err
	}
	s.logger.Info("История удалена",
		zap.String("storyID", storyID.String()), zap.String("userID", userID.String()))
	s.publishEvent(ctx, messaging.StoryEvent{
		Type:    messaging.EventStoryDeleted,
		UserID:  userID,
		StoryID: storyID,
	})
	return nil
}

func (s *storyService) ListPages(ctx context.Context, userID, storyID uuid.UUID) ([]model.Page, error) {
	if _, err := s.GetStory(ctx, userID, storyID); err != nil {
		return nil, err
	}
	return s.pages.ListByStory(ctx, storyID)
}

func (s *storyService) GetPage(ctx context.Context, userID, storyID uuid.UUID, number int) (*model.Page, error) {
	if number < 1 {
		return nil, fmt.Errorf("%w: номер страницы должен быть положительным", model.ErrInvalidInput)
	}
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, model.ErrForbidden
	}
	return s.pages.GetByNumber(ctx, storyID, number)
}

func (s *storyService) NarratePage(ctx context.Context, userID, pageID uuid.UUID) (*model.Page, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	story, err := s.stories.GetByID(ctx, page.StoryID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, model.ErrForbidden
	}
	// Озвучка уже есть - второй раз не синтезируем.
	if page.AudioFile != "" {
		return page, nil
	}

	audio, err := s.ai.Synthesize(ctx, page.Completion)
	if err != nil {
		return nil, err
	}
	audioURL, err := s.media.SaveAudio(page.ID.String(), audio)
	if err != nil {
		return nil, err
	}
	if err := s.pages.SetAudioFile(ctx, page.ID, audioURL); err != nil {
		return nil, err
	}

	page.AudioFile = audioURL
	s.logger.Info("Озвучка страницы готова", zap.String("pageID", pageID.String()))
	return page, nil
}

// publishEvent публикует событие жизненного цикла best-effort: ошибка
// брокера не должна ломать пользовательскую операцию.
func (s *storyService) publishEvent(ctx context.Context, event messaging.StoryEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStoryEvent(ctx, event); err != nil {
		s.logger.Warn("Ошибка публикации события", zap.String("type", event.Type), zap.Error(err))
	}
}
