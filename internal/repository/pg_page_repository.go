package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// Compile-time check
var _ PageRepository = (*pgPageRepository)(nil)

type pgPageRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgPageRepository создает репозиторий страниц поверх PostgreSQL.
// Репозиторию нужен пул (а не DBTX): вставка страницы транзакционна.
func NewPgPageRepository(pool *pgxpool.Pool, logger *zap.Logger) PageRepository {
	return &pgPageRepository{
		pool:   pool,
		logger: logger.Named("PgPageRepo"),
	}
}

const pageColumns = `id, story_id, number, prompt, completion, summary, image, audio_file, created_at`

// Create вставляет страницу, назначая номер на стороне сервера:
// previousMax + 1 в рамках истории, под блокировкой строки истории.
// Идемпотентна по id страницы: повтор той же вставки возвращает уже
// сохраненную страницу и не создает дубликат.
func (r *pgPageRepository) Create(ctx context.Context, page *model.Page) (*model.Page, error) {
	logFields := []zap.Field{
		zap.Stringer("pageID", page.ID),
		zap.Stringer("storyID", page.StoryID),
	}
	r.logger.Debug("Creating page", logFields...)

	created := &model.Page{}
	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Блокируем строку истории: сериализует назначение номеров и
		// заодно проверяет существование истории.
		var storyID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM stories WHERE id = $1 FOR UPDATE`, page.StoryID).Scan(&storyID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNotFound
			}
			return fmt.Errorf("ошибка блокировки истории %s: %w", page.StoryID, err)
		}

		insert := `
            INSERT INTO pages (id, story_id, number, prompt, completion, summary, image, audio_file, created_at)
            VALUES ($1, $2,
                    (SELECT COALESCE(MAX(number), 0) + 1 FROM pages WHERE story_id = $2),
                    $3, $4, $5, $6, $7, $8)
            ON CONFLICT (id) DO NOTHING
        `
		_, err = tx.Exec(ctx, insert,
			page.ID, page.StoryID, page.Prompt, page.Completion, page.Summary,
			page.Image, page.AudioFile, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("ошибка вставки страницы: %w", err)
		}

		// Перечитываем строку: при повторной вставке того же черновика
		// возвращаем страницу с номером, назначенным первой попыткой.
		row := tx.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, page.ID)
		if err := row.Scan(
			&created.ID, &created.StoryID, &created.Number, &created.Prompt,
			&created.Completion, &created.Summary, &created.Image,
			&created.AudioFile, &created.CreatedAt,
		); err != nil {
			return fmt.Errorf("ошибка чтения созданной страницы: %w", err)
		}

		return touchStory(ctx, tx, page.StoryID)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.logger.Warn("Story not found for page insert", logFields...)
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to create page", append(logFields, zap.Error(err))...)
		return nil, err
	}

	r.logger.Info("Page created", append(logFields, zap.Int("number", created.Number))...)
	return created, nil
}

// GetByID возвращает страницу по идентификатору.
func (r *pgPageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Page, error) {
	page := &model.Page{}
	err := pgxscan.Get(ctx, r.pool, page, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get page", zap.Stringer("pageID", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения страницы %s: %w", id, err)
	}
	return page, nil
}

// GetByNumber возвращает страницу истории по её номеру.
func (r *pgPageRepository) GetByNumber(ctx context.Context, storyID uuid.UUID, number int) (*model.Page, error) {
	page := &model.Page{}
	err := pgxscan.Get(ctx, r.pool, page,
		`SELECT `+pageColumns+` FROM pages WHERE story_id = $1 AND number = $2`, storyID, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get page by number",
			zap.Stringer("storyID", storyID), zap.Int("number", number), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения страницы %d истории %s: %w", number, storyID, err)
	}
	return page, nil
}

// ListByStory возвращает страницы истории по возрастанию номера.
func (r *pgPageRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]model.Page, error) {
	var pages []model.Page
	err := pgxscan.Select(ctx, r.pool, &pages,
		`SELECT `+pageColumns+` FROM pages WHERE story_id = $1 ORDER BY number ASC`, storyID)
	if err != nil {
		r.logger.Error("Failed to list pages", zap.Stringer("storyID", storyID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения страниц истории %s: %w", storyID, err)
	}
	return pages, nil
}

// SetAudioFile записывает ссылку на файл озвучки. Единственное допустимое
// изменение уже созданной страницы — озвучка генерируется по требованию.
func (r *pgPageRepository) SetAudioFile(ctx context.Context, id uuid.UUID, audioFile string) error {
	commandTag, err := r.pool.Exec(ctx,
		`UPDATE pages SET audio_file = $1 WHERE id = $2`, audioFile, id)
	if err != nil {
		r.logger.Error("Failed to set page audio file", zap.Stringer("pageID", id), zap.Error(err))
		return fmt.Errorf("ошибка сохранения озвучки страницы %s: %w", id, err)
	}
	if commandTag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
