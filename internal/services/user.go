package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mingjobo/piximagegenerator/internal/models"
	"github.com/mingjobo/piximagegenerator/internal/repository"
)

const (
	nicknameSuffixLen = 4
	nicknameChars     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	jwtExpDays        = 365
)

// UserService handles user-related business logic
type UserService struct {
	userRepo     *repository.UserRepository
	credits      *CreditService
	jwtSecret    string
	newUserGrant int
}

// NewUserService creates a new user service
func NewUserService(userRepo *repository.UserRepository, credits *CreditService, jwtSecret string, newUserGrant int) *UserService {
	return &UserService{
		userRepo:     userRepo,
		credits:      credits,
		jwtSecret:    jwtSecret,
		newUserGrant: newUserGrant,
	}
}

// generateNickname produces a readable anonymous handle like "Pixel-7KQ2"
func generateNickname() string {
	suffix := make([]byte, nicknameSuffixLen)
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(nicknameChars))))
		suffix[i] = nicknameChars[n.Int64()]
	}
	return "Pixel-" + string(suffix)
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userUUID string) (string, error) {
	claims := jwt.MapClaims{
		"user_uuid": userUUID,
		"exp":       time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user uuid
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userUUID, ok := claims["user_uuid"].(string)
	if !ok {
		return "", fmt.Errorf("user_uuid not found in token")
	}

	return userUUID, nil
}

// CreateUser creates a new anonymous user and grants the initial credits
func (s *UserService) CreateUser(ctx context.Context) (*models.User, error) {
	userUUID := uuid.New().String()
	nickname := generateNickname()

	token, err := s.GenerateJWT(userUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &models.User{
		UUID:      userUUID,
		Nickname:  nickname,
		AvatarURL: fmt.Sprintf("https://api.dicebear.com/7.x/pixel-art/svg?seed=%s", nickname),
		Token:     token,
		CreatedAt: time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.credits.Grant(ctx, userUUID, models.CreditTransNewUser, s.newUserGrant); err != nil {
		return nil, fmt.Errorf("failed to grant welcome credits: %w", err)
	}

	return user, nil
}
