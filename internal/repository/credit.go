package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

// CreditRepository handles the append-only credit ledger
type CreditRepository struct {
	db *pgxpool.Pool
}

// NewCreditRepository creates a new credit repository
func NewCreditRepository(db *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{db: db}
}

// Insert appends a ledger row
func (r *CreditRepository) Insert(ctx context.Context, trans *models.CreditTransaction) error {
	query := `
		INSERT INTO credits (trans_no, user_uuid, trans_type, credits, expired_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		trans.TransNo, trans.UserUUID, trans.TransType, trans.Credits, trans.ExpiredAt, trans.CreatedAt,
	).Scan(&trans.ID)
	if err != nil {
		return fmt.Errorf("failed to insert credit transaction: %w", err)
	}
	return nil
}

// Balance returns the sum of unexpired ledger rows for a user
func (r *CreditRepository) Balance(ctx context.Context, userUUID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(credits), 0)
		FROM credits
		WHERE user_uuid = $1 AND (expired_at IS NULL OR expired_at > now())
	`
	var balance int
	if err := r.db.QueryRow(ctx, query, userUUID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to compute credit balance: %w", err)
	}
	return balance, nil
}

