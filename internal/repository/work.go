package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

// WorkRepository handles database operations for generated works
type WorkRepository struct {
	db *pgxpool.Pool
}

// NewWorkRepository creates a new work repository
func NewWorkRepository(db *pgxpool.Pool) *WorkRepository {
	return &WorkRepository{db: db}
}

// Create inserts a new work and fills in its server-assigned id and
// creation timestamp.
func (r *WorkRepository) Create(ctx context.Context, work *models.Work) error {
	query := `
		INSERT INTO works (uuid, user_uuid, emoji, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		work.UUID, work.UserUUID, work.Emoji, work.ImageURL,
	).Scan(&work.ID, &work.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create work: %w", err)
	}
	return nil
}

// ListPage retrieves up to limit works older than cursor using descending
// keyset pagination. It fetches one extra row to decide has_more; the
// next cursor is the numeric id of the last returned row.
func (r *WorkRepository) ListPage(ctx context.Context, cursor *int64, limit int) ([]models.Work, bool, *string, error) {
	query := `
		SELECT w.id, w.uuid, w.user_uuid, w.emoji, w.image_url, w.created_at,
		       COALESCE(u.nickname, ''), COALESCE(u.avatar_url, '')
		FROM works w
		LEFT JOIN users u ON u.uuid = w.user_uuid
	`
	args := []any{}
	if cursor != nil {
		query += ` WHERE w.id < $1`
		args = append(args, *cursor)
	}
	query += fmt.Sprintf(` ORDER BY w.created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, nil, fmt.Errorf("failed to list works: %w", err)
	}
	defer rows.Close()

	var works []models.Work
	for rows.Next() {
		var w models.Work
		err := rows.Scan(
			&w.ID, &w.UUID, &w.UserUUID, &w.Emoji, &w.ImageURL, &w.CreatedAt,
			&w.UserNickname, &w.UserAvatarURL,
		)
		if err != nil {
			return nil, false, nil, fmt.Errorf("failed to scan work: %w", err)
		}
		works = append(works, w)
	}
	if err := rows.Err(); err != nil {
		return nil, false, nil, fmt.Errorf("error iterating works: %w", err)
	}

	hasMore := len(works) > limit
	if hasMore {
		works = works[:limit]
	}

	var nextCursor *string
	if hasMore && len(works) > 0 {
		c := fmt.Sprintf("%d", works[len(works)-1].ID)
		nextCursor = &c
	}

	return works, hasMore, nextCursor, nil
}
