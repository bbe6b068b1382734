package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// Compile-time check
var _ StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgStoryRepository создает репозиторий историй поверх PostgreSQL.
func NewPgStoryRepository(db DBTX, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

// Create вставляет новую историю.
func (r *pgStoryRepository) Create(ctx context.Context, story *model.Story) error {
	query := `
        INSERT INTO stories (id, user_id, title, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	logFields := []zap.Field{zap.Stringer("storyID", story.ID), zap.Stringer("userID", story.UserID)}
	r.logger.Debug("Creating story", logFields...)

	_, err := r.db.Exec(ctx, query,
		story.ID, story.UserID, story.Title, story.CreatedAt, story.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания истории: %w", err)
	}
	r.logger.Info("Story created", logFields...)
	return nil
}

// GetByID возвращает историю без страниц.
func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	query := `SELECT id, user_id, title, created_at, updated_at FROM stories WHERE id = $1`
	story := &model.Story{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&story.ID, &story.UserID, &story.Title, &story.CreatedAt, &story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Story not found", zap.Stringer("storyID", id))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get story", zap.Stringer("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", id, err)
	}
	return story, nil
}

// GetWithPages возвращает историю вместе со страницами, отсортированными по
// номеру. Сортировка продублирована в памяти: движок не должен полагаться на
// порядок, который вернула БД.
func (r *pgStoryRepository) GetWithPages(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	story, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	pagesQuery := `
        SELECT id, story_id, number, prompt, completion, summary, image, audio_file, created_at
        FROM pages
        WHERE story_id = $1
        ORDER BY number ASC
    `
	var pages []model.Page
	if err := pgxscan.Select(ctx, r.db, &pages, pagesQuery, id); err != nil {
		r.logger.Error("Failed to load story pages", zap.Stringer("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка загрузки страниц истории %s: %w", id, err)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	story.Pages = pages
	return story, nil
}

// ListByUser возвращает истории пользователя, новые первыми.
func (r *pgStoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Story, error) {
	query := `
        SELECT id, user_id, title, created_at, updated_at
        FROM stories
        WHERE user_id = $1
        ORDER BY updated_at DESC, id DESC
    `
	var stories []model.Story
	if err := pgxscan.Select(ctx, r.db, &stories, query, userID); err != nil {
		r.logger.Error("Failed to list user stories", zap.Stringer("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка историй пользователя %s: %w", userID, err)
	}
	return stories, nil
}

// LatestByUser возвращает историю, у которой последняя страница создана
// позже остальных (история без страниц ранжируется по времени создания) —
// клиент продолжает с того места, где остановился.
func (r *pgStoryRepository) LatestByUser(ctx context.Context, userID uuid.UUID) (*model.Story, error) {
	query := `
        SELECT s.id, s.user_id, s.title, s.created_at, s.updated_at
        FROM stories s
        LEFT JOIN pages p ON p.story_id = s.id
        WHERE s.user_id = $1
        GROUP BY s.id
        ORDER BY COALESCE(MAX(p.created_at), s.created_at) DESC
        LIMIT 1
    `
	story := &model.Story{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&story.ID, &story.UserID, &story.Title, &story.CreatedAt, &story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get latest story", zap.Stringer("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения последней истории пользователя %s: %w", userID, err)
	}
	return story, nil
}

// Delete удаляет историю владельца; страницы удаляются каскадно.
func (r *pgStoryRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM stories WHERE id = $1 AND user_id = $2`
	logFields := []zap.Field{zap.Stringer("storyID", id), zap.Stringer("userID", userID)}
	r.logger.Debug("Deleting story", logFields...)

	commandTag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка удаления истории %s: %w", id, err)
	}
	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to delete non-existent or unauthorized story", logFields...)
		return model.ErrNotFound
	}
	r.logger.Info("Story deleted", logFields...)
	return nil
}

// touchStory обновляет updated_at истории (вызывается при добавлении страницы).
func touchStory(ctx context.Context, db DBTX, storyID uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE stories SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), storyID)
	return err
}
