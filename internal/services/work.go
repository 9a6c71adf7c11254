package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/models"
	"github.com/mingjobo/piximagegenerator/internal/pixelart"
	"github.com/mingjobo/piximagegenerator/internal/repository"
)

const (
	maxEmojiGraphemes = 3
	maxEmojiBytes     = 50
)

// Emoji validation errors, surfaced to the user verbatim.
var (
	ErrEmojiRequired = errors.New("emoji is required")
	ErrEmojiOnly     = errors.New("please enter emoji only, text is not supported")
	ErrEmojiTooMany  = errors.New("maximum 3 emojis allowed")
	ErrEmojiTooLong  = errors.New("input too complex")
)

// workStore is the slice of the work repository the service needs.
type workStore interface {
	Create(ctx context.Context, work *models.Work) error
	ListPage(ctx context.Context, cursor *int64, limit int) ([]models.Work, bool, *string, error)
}

// creditLedger is the slice of the credit service the generation flow
// needs: one deduction up front, one mirrored refund on failure.
type creditLedger interface {
	Deduct(ctx context.Context, userUUID, transType string, amount int) (*models.CreditTransaction, error)
	Refund(ctx context.Context, deduction *models.CreditTransaction) error
}

var (
	_ workStore    = (*repository.WorkRepository)(nil)
	_ creditLedger = (*CreditService)(nil)
)

// WorkService handles the generation flow: validate, deduct credits, call
// the provider, upload, persist, refund on failure.
type WorkService struct {
	workRepo  workStore
	credits   creditLedger
	generator pixelart.Generator
	storage   ObjectStorage
	cost      int
}

// NewWorkService creates a new work service
func NewWorkService(
	workRepo workStore,
	credits creditLedger,
	generator pixelart.Generator,
	storage ObjectStorage,
	cost int,
) *WorkService {
	return &WorkService{
		workRepo:  workRepo,
		credits:   credits,
		generator: generator,
		storage:   storage,
		cost:      cost,
	}
}

// ValidateEmoji enforces the input rules: non-empty, emoji only, at most
// three grapheme clusters, bounded byte length.
func ValidateEmoji(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ErrEmojiRequired
	}
	if len(trimmed) > maxEmojiBytes {
		return ErrEmojiTooLong
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			return ErrEmojiOnly
		}
	}
	if uniseg.GraphemeClusterCount(trimmed) > maxEmojiGraphemes {
		return ErrEmojiTooMany
	}
	return nil
}

// Pixelate runs the full generation flow for one emoji. Credits are
// deducted up front; any failure past that point refunds them before the
// error is returned.
func (s *WorkService) Pixelate(ctx context.Context, userUUID, emoji string) (*models.Work, error) {
	trimmed := strings.TrimSpace(emoji)
	if err := ValidateEmoji(trimmed); err != nil {
		return nil, err
	}

	deduction, err := s.credits.Deduct(ctx, userUUID, models.CreditTransPixelate, s.cost)
	if err != nil {
		return nil, err
	}

	img, err := s.generator.Generate(ctx, trimmed)
	if err != nil {
		s.refund(ctx, deduction)
		return nil, fmt.Errorf("failed to generate pixel art: %w", err)
	}

	workUUID := uuid.New().String()
	key := fmt.Sprintf("pixels/pixel_%s.png", workUUID)
	if err := s.storage.Upload(ctx, key, img, "image/png"); err != nil {
		s.refund(ctx, deduction)
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	work := &models.Work{
		UUID:     workUUID,
		UserUUID: userUUID,
		Emoji:    trimmed,
		// Served through the in-service proxy instead of the storage
		// provider's public domain.
		ImageURL: "/api/image/" + key,
	}
	if err := s.workRepo.Create(ctx, work); err != nil {
		s.refund(ctx, deduction)
		return nil, fmt.Errorf("failed to save work: %w", err)
	}

	return work, nil
}

func (s *WorkService) refund(ctx context.Context, deduction *models.CreditTransaction) {
	if err := s.credits.Refund(ctx, deduction); err != nil {
		log.Error().
			Err(err).
			Str("user_uuid", deduction.UserUUID).
			Str("trans_no", deduction.TransNo).
			Msg("Failed to refund credits")
	}
}

// ListPage retrieves a gallery page with descending keyset pagination.
// Limit is clamped to 1..50, defaulting to 30; an unparseable cursor
// degrades to newest-first.
func (s *WorkService) ListPage(ctx context.Context, cursor *int64, limit int) ([]models.Work, bool, *string, error) {
	if limit <= 0 {
		limit = 30
	}
	if limit > 50 {
		limit = 50
	}
	return s.workRepo.ListPage(ctx, cursor, limit)
}
