//go:build integration

package repository_test // Используем _test пакет для изоляции

import (
	"context"
	"errors"
	"testing"
	"time"

	"primer-server/internal/database"
	"primer-server/internal/model"
	"primer-server/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryTestSuite содержит состояние для интеграционных тестов репозиториев
type RepositoryTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer // Контейнер PostgreSQL
	pgPool      *pgxpool.Pool               // Пул подключений к тестовой БД
	userRepo    repository.UserRepository
	storyRepo   repository.StoryRepository
	pageRepo    repository.PageRepository
	logger      *zap.Logger
}

// SetupSuite выполняется один раз перед всеми тестами в наборе
func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment() // Простой логгер для тестов
	require.NoError(s.T(), err, "Failed to create logger for tests")
	s.logger.Info("Setting up repository test suite...")

	// Запускаем контейнер PostgreSQL
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")
	s.logger.Info("PostgreSQL container started")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pgPool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")
	s.logger.Info("Connected to test PostgreSQL")

	// Применяем встроенные миграции
	err = database.ApplyMigrations(s.pgPool)
	require.NoError(s.T(), err, "Failed to run migrations")
	s.logger.Info("Database migrations applied")

	s.userRepo = repository.NewPgUserRepository(s.pgPool, s.logger)
	s.storyRepo = repository.NewPgStoryRepository(s.pgPool, s.logger)
	s.pageRepo = repository.NewPgPageRepository(s.pgPool, s.logger)

	s.logger.Info("Test suite setup complete.")
}

// TearDownSuite выполняется один раз после всех тестов в наборе
func (s *RepositoryTestSuite) TearDownSuite() {
	s.logger.Info("Tearing down repository test suite...")
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
	s.logger.Info("Test suite teardown complete.")
}

// Перед каждым тестом очищаем таблицы БД
func (s *RepositoryTestSuite) SetupTest() {
	// ОСТОРОЖНО: НЕ запускать на production БД!
	_, err := s.pgPool.Exec(s.ctx, "TRUNCATE TABLE users RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate users table")
}

// TestRepositoryTestSuite запускает набор тестов
func TestRepositoryTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

// --- Вспомогательные функции ---

func (s *RepositoryTestSuite) createUser(email string) *model.User {
	user, err := s.userRepo.GetOrCreateByEmail(s.ctx, email, "Test User")
	require.NoError(s.T(), err)
	return user
}

func (s *RepositoryTestSuite) createStory(userID uuid.UUID, title string) *model.Story {
	now := time.Now().UTC()
	story := &model.Story{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(s.T(), s.storyRepo.Create(s.ctx, story))
	return story
}

func (s *RepositoryTestSuite) createPage(storyID uuid.UUID, prompt string) *model.Page {
	page := &model.Page{
		ID:         uuid.New(),
		StoryID:    storyID,
		Prompt:     prompt,
		Completion: "completion for " + prompt,
		Summary:    "summary for " + prompt,
	}
	created, err := s.pageRepo.Create(s.ctx, page)
	require.NoError(s.T(), err)
	return created
}

// --- Сами Тестовые Функции ---

func (s *RepositoryTestSuite) TestGetOrCreateByEmail_Idempotent() {
	t := s.T()

	first, err := s.userRepo.GetOrCreateByEmail(s.ctx, "reader@example.com", "Reader")
	require.NoError(t, err, "First GetOrCreateByEmail should succeed")
	require.NotEqual(t, uuid.Nil, first.ID, "User ID should be assigned")
	require.Equal(t, "reader@example.com", first.Email)

	// Повторный вызов возвращает того же пользователя, а не создает нового
	second, err := s.userRepo.GetOrCreateByEmail(s.ctx, "reader@example.com", "Reader Again")
	require.NoError(t, err, "Second GetOrCreateByEmail should succeed")
	require.Equal(t, first.ID, second.ID, "Same email must map to the same user")

	byID, err := s.userRepo.GetByID(s.ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.Email, byID.Email)
}

func (s *RepositoryTestSuite) TestGetUserByID_NotFound() {
	t := s.T()

	_, err := s.userRepo.GetByID(s.ctx, uuid.New())
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrNotFound), "Error should be ErrNotFound")
}

func (s *RepositoryTestSuite) TestStoryLifecycle() {
	t := s.T()
	user := s.createUser("author@example.com")

	story := s.createStory(user.ID, "Лесное приключение")

	loaded, err := s.storyRepo.GetByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, story.Title, loaded.Title)
	require.Equal(t, user.ID, loaded.UserID)

	// Удаление чужим пользователем не проходит
	err = s.storyRepo.Delete(s.ctx, story.ID, uuid.New())
	require.True(t, errors.Is(err, model.ErrNotFound), "Delete by non-owner should report not found")

	// Удаление владельцем каскадно сносит страницы
	s.createPage(story.ID, "жил-был ежик")
	require.NoError(t, s.storyRepo.Delete(s.ctx, story.ID, user.ID))

	_, err = s.storyRepo.GetByID(s.ctx, story.ID)
	require.True(t, errors.Is(err, model.ErrNotFound))
	pages, err := s.pageRepo.ListByStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Empty(t, pages, "Pages must be cascade-deleted with the story")
}

func (s *RepositoryTestSuite) TestPageNumbersAreContiguous() {
	t := s.T()
	user := s.createUser("pages@example.com")
	story := s.createStory(user.ID, "Номера страниц")

	first := s.createPage(story.ID, "страница один")
	second := s.createPage(story.ID, "страница два")
	third := s.createPage(story.ID, "страница три")

	require.Equal(t, 1, first.Number, "Numbering starts at 1")
	require.Equal(t, 2, second.Number)
	require.Equal(t, 3, third.Number)

	loaded, err := s.storyRepo.GetWithPages(s.ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Pages, 3)
	for i, page := range loaded.Pages {
		require.Equal(t, i+1, page.Number, "Pages must come back sorted by number")
	}
}

func (s *RepositoryTestSuite) TestPageCreate_IdempotentOnID() {
	t := s.T()
	user := s.createUser("retry@example.com")
	story := s.createStory(user.ID, "Повторная персистенция")

	draft := &model.Page{
		ID:         uuid.New(),
		StoryID:    story.ID,
		Prompt:     "промпт",
		Completion: "продолжение",
		Summary:    "сводка",
	}

	first, err := s.pageRepo.Create(s.ctx, draft)
	require.NoError(t, err)

	// Повторная вставка того же черновика не создает дубликат
	second, err := s.pageRepo.Create(s.ctx, draft)
	require.NoError(t, err, "Re-inserting the same draft should succeed")
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Number, second.Number, "Retry must keep the originally assigned number")

	pages, err := s.pageRepo.ListByStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1, "Exactly one page must exist after the retry")
}

func (s *RepositoryTestSuite) TestPageCreate_StoryNotFound() {
	t := s.T()

	_, err := s.pageRepo.Create(s.ctx, &model.Page{
		ID:         uuid.New(),
		StoryID:    uuid.New(),
		Prompt:     "p",
		Completion: "c",
		Summary:    "s",
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrNotFound), "Insert into missing story should report not found")
}

func (s *RepositoryTestSuite) TestGetPageByNumber() {
	t := s.T()
	user := s.createUser("bynumber@example.com")
	story := s.createStory(user.ID, "Поиск по номеру")
	created := s.createPage(story.ID, "единственная страница")

	page, err := s.pageRepo.GetByNumber(s.ctx, story.ID, 1)
	require.NoError(t, err)
	require.Equal(t, created.ID, page.ID)

	_, err = s.pageRepo.GetByNumber(s.ctx, story.ID, 2)
	require.True(t, errors.Is(err, model.ErrNotFound))
}

func (s *RepositoryTestSuite) TestSetAudioFile() {
	t := s.T()
	user := s.createUser("audio@example.com")
	story := s.createStory(user.ID, "Озвучка")
	page := s.createPage(story.ID, "страница с озвучкой")

	require.NoError(t, s.pageRepo.SetAudioFile(s.ctx, page.ID, "http://localhost/media/audio.mp3"))

	loaded, err := s.pageRepo.GetByID(s.ctx, page.ID)
	require.NoError(t, err)
	require.Equal(t, "http://localhost/media/audio.mp3", loaded.AudioFile)

	err = s.pageRepo.SetAudioFile(s.ctx, uuid.New(), "x")
	require.True(t, errors.Is(err, model.ErrNotFound))
}

func (s *RepositoryTestSuite) TestLatestByUser_FollowsNewestPage() {
	t := s.T()
	user := s.createUser("latest@example.com")

	older := s.createStory(user.ID, "Старая история")
	newer := s.createStory(user.ID, "Новая история")

	latest, err := s.storyRepo.LatestByUser(s.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, newer.ID, latest.ID, "Without pages the newest story wins")

	// Страница в старой истории делает её последней активной
	s.createPage(older.ID, "возвращаемся к старой")
	latest, err = s.storyRepo.LatestByUser(s.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, older.ID, latest.ID, "Story with the newest page must win")

	listed, err := s.storyRepo.ListByUser(s.ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, older.ID, listed[0].ID, "touchStory must bump updated_at on page insert")
}

func (s *RepositoryTestSuite) TestLatestByUser_NoStories() {
	t := s.T()
	user := s.createUser("empty@example.com")

	_, err := s.storyRepo.LatestByUser(s.ctx, user.ID)
	require.True(t, errors.Is(err, model.ErrNotFound))
}
