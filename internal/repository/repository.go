package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"primer-server/internal/model"
)

// DBTX объединяет *pgxpool.Pool и pgx.Tx, чтобы репозитории могли работать
// как с пулом, так и внутри транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository manages author rows.
type UserRepository interface {
	GetOrCreateByEmail(ctx context.Context, email, name string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// StoryRepository manages story rows. Ownership checks are the caller's
// responsibility except for Delete, which is scoped to the owner.
type StoryRepository interface {
	Create(ctx context.Context, story *model.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error)
	GetWithPages(ctx context.Context, id uuid.UUID) (*model.Story, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Story, error)
	LatestByUser(ctx context.Context, userID uuid.UUID) (*model.Story, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// PageRepository manages page rows. Create assigns the page number on the
// server side (previous max + 1 within the story) and is idempotent on the
// page id: re-inserting the same draft returns the already-persisted page.
type PageRepository interface {
	Create(ctx context.Context, page *model.Page) (*model.Page, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Page, error)
	GetByNumber(ctx context.Context, storyID uuid.UUID, number int) (*model.Page, error)
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]model.Page, error)
	SetAudioFile(ctx context.Context, id uuid.UUID, audioFile string) error
}

// WithTx выполняет fn в рамках транзакции, коммитит при успехе или откатывает при ошибке.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	// Откат при панике
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.Background())
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}
