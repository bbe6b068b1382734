package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// Compile-time check
var _ UserRepository = (*pgUserRepository)(nil)

type pgUserRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgUserRepository создает репозиторий пользователей поверх PostgreSQL.
func NewPgUserRepository(db DBTX, logger *zap.Logger) UserRepository {
	return &pgUserRepository{
		db:     db,
		logger: logger.Named("PgUserRepo"),
	}
}

// GetOrCreateByEmail возвращает пользователя по email, создавая строку при
// первом обращении (find-or-create при создании первой истории).
func (r *pgUserRepository) GetOrCreateByEmail(ctx context.Context, email, name string) (*model.User, error) {
	query := `
        INSERT INTO users (id, email, name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (email) DO UPDATE SET updated_at = EXCLUDED.updated_at
        RETURNING id, email, name, created_at, updated_at
    `
	now := time.Now().UTC()
	user := &model.User{}
	logFields := []zap.Field{zap.String("email", email)}
	r.logger.Debug("Getting or creating user", logFields...)

	err := r.db.QueryRow(ctx, query, uuid.New(), email, name, now).Scan(
		&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to get or create user", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка получения/создания пользователя %s: %w", email, err)
	}
	r.logger.Debug("User resolved", append(logFields, zap.Stringer("userID", user.ID))...)
	return user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *pgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`
	user := &model.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("User not found", zap.Stringer("userID", id))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get user by ID", zap.Stringer("userID", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения пользователя %s: %w", id, err)
	}
	return user, nil
}
