package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mingjobo/piximagegenerator/internal/models"
	"github.com/mingjobo/piximagegenerator/internal/repository"
)

// ErrInsufficientCredits is returned when a deduction would overdraw the
// user's balance.
var ErrInsufficientCredits = errors.New("insufficient credits")

const grantValidity = 365 * 24 * time.Hour

// CreditService handles credit accounting on the append-only ledger
type CreditService struct {
	creditRepo *repository.CreditRepository
}

// NewCreditService creates a new credit service
func NewCreditService(creditRepo *repository.CreditRepository) *CreditService {
	return &CreditService{creditRepo: creditRepo}
}

// Balance returns the user's remaining credits
func (s *CreditService) Balance(ctx context.Context, userUUID string) (int, error) {
	return s.creditRepo.Balance(ctx, userUUID)
}

// Grant appends a positive ledger row with a one-year expiry.
func (s *CreditService) Grant(ctx context.Context, userUUID, transType string, amount int) error {
	expiry := time.Now().Add(grantValidity)
	trans := &models.CreditTransaction{
		TransNo:   uuid.New().String(),
		UserUUID:  userUUID,
		TransType: transType,
		Credits:   amount,
		ExpiredAt: &expiry,
		CreatedAt: time.Now(),
	}
	if err := s.creditRepo.Insert(ctx, trans); err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}
	return nil
}

// Deduct checks the balance and appends a negative ledger row. It returns
// the deduction so a later refund can mirror it.
func (s *CreditService) Deduct(ctx context.Context, userUUID, transType string, amount int) (*models.CreditTransaction, error) {
	balance, err := s.creditRepo.Balance(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance < amount {
		return nil, ErrInsufficientCredits
	}

	trans := &models.CreditTransaction{
		TransNo:   uuid.New().String(),
		UserUUID:  userUUID,
		TransType: transType,
		Credits:   -amount,
		CreatedAt: time.Now(),
	}
	if err := s.creditRepo.Insert(ctx, trans); err != nil {
		return nil, fmt.Errorf("failed to deduct credits: %w", err)
	}
	return trans, nil
}

// Refund reverses a deduction, carrying over its expiry so refunded
// credits do not outlive the ones they replace.
func (s *CreditService) Refund(ctx context.Context, deduction *models.CreditTransaction) error {
	trans := &models.CreditTransaction{
		TransNo:   uuid.New().String(),
		UserUUID:  deduction.UserUUID,
		TransType: models.CreditTransRefund,
		Credits:   -deduction.Credits,
		ExpiredAt: deduction.ExpiredAt,
		CreatedAt: time.Now(),
	}
	if err := s.creditRepo.Insert(ctx, trans); err != nil {
		return fmt.Errorf("failed to refund credits: %w", err)
	}
	return nil
}
