package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

type fakeLedger struct {
	balance    int
	deductions []*models.CreditTransaction
	refunds    []*models.CreditTransaction
}

func (l *fakeLedger) Deduct(_ context.Context, userUUID, transType string, amount int) (*models.CreditTransaction, error) {
	if l.balance < amount {
		return nil, ErrInsufficientCredits
	}
	l.balance -= amount
	trans := &models.CreditTransaction{
		TransNo:   fmt.Sprintf("t-%d", len(l.deductions)+1),
		UserUUID:  userUUID,
		TransType: transType,
		Credits:   -amount,
	}
	l.deductions = append(l.deductions, trans)
	return trans, nil
}

func (l *fakeLedger) Refund(_ context.Context, deduction *models.CreditTransaction) error {
	l.balance += -deduction.Credits
	l.refunds = append(l.refunds, deduction)
	return nil
}

type fakeWorkStore struct {
	created   []*models.Work
	createErr error
}

func (s *fakeWorkStore) Create(_ context.Context, work *models.Work) error {
	if s.createErr != nil {
		return s.createErr
	}
	work.ID = int64(len(s.created) + 1)
	s.created = append(s.created, work)
	return nil
}

func (s *fakeWorkStore) ListPage(context.Context, *int64, int) ([]models.Work, bool, *string, error) {
	return nil, false, nil, nil
}

type fakeGenerator struct {
	img   []byte
	err   error
	calls int
}

func (g *fakeGenerator) Generate(context.Context, string) ([]byte, error) {
	g.calls++
	return g.img, g.err
}

type fakeStorage struct {
	objects map[string][]byte
	err     error
}

func (s *fakeStorage) Upload(_ context.Context, key string, body []byte, _ string) error {
	if s.err != nil {
		return s.err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = body
	return nil
}

func (s *fakeStorage) Download(_ context.Context, key string) ([]byte, string, error) {
	body, ok := s.objects[key]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return body, "image/png", nil
}

func newTestWorkService(ledger *fakeLedger, store *fakeWorkStore, gen *fakeGenerator, stor *fakeStorage) *WorkService {
	return NewWorkService(store, ledger, gen, stor, 1)
}

func TestValidateEmoji(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmojiRequired},
		{"whitespace only", "   ", ErrEmojiRequired},
		{"single emoji", "🍕", nil},
		{"three emojis", "🍕🍦👀", nil},
		{"four emojis", "🍕🍦👀🔥", ErrEmojiTooMany},
		{"flag sequence counts as one", "🏳️‍🌈", nil},
		{"plain text", "pizza", ErrEmojiOnly},
		{"mixed text and emoji", "hi🍕", ErrEmojiOnly},
		{"digits", "123", ErrEmojiOnly},
		{"overlong input", strings.Repeat("🏳️‍🌈", 4), ErrEmojiTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEmoji(tc.input)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestPixelate_HappyPathDeductsOnceNoRefund(t *testing.T) {
	ledger := &fakeLedger{balance: 5}
	store := &fakeWorkStore{}
	stor := &fakeStorage{}
	gen := &fakeGenerator{img: []byte{0x89, 'P', 'N', 'G'}}
	svc := newTestWorkService(ledger, store, gen, stor)

	work, err := svc.Pixelate(context.Background(), "u-1", " 🍕 ")

	require.NoError(t, err)
	assert.Equal(t, "🍕", work.Emoji)
	assert.True(t, strings.HasPrefix(work.ImageURL, "/api/image/pixels/"), "image must be served through the proxy, got %s", work.ImageURL)
	assert.Equal(t, 4, ledger.balance)
	assert.Len(t, ledger.deductions, 1)
	assert.Empty(t, ledger.refunds)
	require.Len(t, store.created, 1)
	assert.Len(t, stor.objects, 1)
}

func TestPixelate_ProviderFailureRefundsDeduction(t *testing.T) {
	ledger := &fakeLedger{balance: 5}
	gen := &fakeGenerator{err: errors.New("provider exploded")}
	svc := newTestWorkService(ledger, &fakeWorkStore{}, gen, &fakeStorage{})

	_, err := svc.Pixelate(context.Background(), "u-1", "🍕")

	require.Error(t, err)
	require.Len(t, ledger.refunds, 1)
	assert.Same(t, ledger.deductions[0], ledger.refunds[0], "refund must mirror the exact deduction")
	assert.Equal(t, 5, ledger.balance)
}

func TestPixelate_UploadFailureRefundsDeduction(t *testing.T) {
	ledger := &fakeLedger{balance: 5}
	stor := &fakeStorage{err: errors.New("bucket unavailable")}
	svc := newTestWorkService(ledger, &fakeWorkStore{}, &fakeGenerator{img: []byte{1}}, stor)

	_, err := svc.Pixelate(context.Background(), "u-1", "🍕")

	require.Error(t, err)
	assert.Len(t, ledger.refunds, 1)
	assert.Equal(t, 5, ledger.balance)
}

func TestPixelate_DatabaseFailureRefundsDeduction(t *testing.T) {
	ledger := &fakeLedger{balance: 5}
	store := &fakeWorkStore{createErr: errors.New("connection lost")}
	svc := newTestWorkService(ledger, store, &fakeGenerator{img: []byte{1}}, &fakeStorage{})

	_, err := svc.Pixelate(context.Background(), "u-1", "🍕")

	require.Error(t, err)
	assert.Len(t, ledger.refunds, 1)
	assert.Equal(t, 5, ledger.balance)
}

func TestPixelate_InsufficientCreditsNeverCallsProvider(t *testing.T) {
	ledger := &fakeLedger{balance: 0}
	gen := &fakeGenerator{img: []byte{1}}
	svc := newTestWorkService(ledger, &fakeWorkStore{}, gen, &fakeStorage{})

	_, err := svc.Pixelate(context.Background(), "u-1", "🍕")

	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Zero(t, gen.calls)
}

func TestPixelate_InvalidEmojiCostsNothing(t *testing.T) {
	ledger := &fakeLedger{balance: 5}
	svc := newTestWorkService(ledger, &fakeWorkStore{}, &fakeGenerator{img: []byte{1}}, &fakeStorage{})

	_, err := svc.Pixelate(context.Background(), "u-1", "not an emoji")

	assert.ErrorIs(t, err, ErrEmojiOnly)
	assert.Empty(t, ledger.deductions)
}
