package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (uuid, nickname, avatar_url, token, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		user.UUID, user.Nickname, user.AvatarURL, user.Token, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByUUID retrieves a user by uuid
func (r *UserRepository) GetByUUID(ctx context.Context, uuid string) (*models.User, error) {
	query := `
		SELECT uuid, nickname, avatar_url, token, created_at
		FROM users
		WHERE uuid = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, uuid).Scan(
		&user.UUID, &user.Nickname, &user.AvatarURL, &user.Token, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
