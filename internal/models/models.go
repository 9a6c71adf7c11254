package models

import (
	"strings"
	"time"
)

// PlaceholderPrefix marks a locally-generated Work that stands in for an
// in-flight generation request. Placeholders never come from the server.
const PlaceholderPrefix = "pending-"

// Work represents a single generated pixel-art artifact
type Work struct {
	ID            int64     `json:"id,omitempty"`
	UUID          string    `json:"uuid"`
	UserUUID      string    `json:"user_uuid"`
	Emoji         string    `json:"emoji"`
	ImageURL      string    `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UserNickname  string    `json:"user_nickname,omitempty"`
	UserAvatarURL string    `json:"user_avatar_url,omitempty"`
}

// IsPlaceholder reports whether the work is a local placeholder for an
// in-flight generation request.
func (w Work) IsPlaceholder() bool {
	return strings.HasPrefix(w.UUID, PlaceholderPrefix)
}

// User represents a user in the system
type User struct {
	UUID      string    `json:"uuid"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Credit transaction types
const (
	CreditTransNewUser  = "new_user"
	CreditTransPixelate = "pixelate"
	CreditTransRefund   = "refund"
)

// CreditTransaction is one row of the append-only credit ledger.
// Deductions carry a negative Credits amount; the balance is the sum
// of all unexpired rows.
type CreditTransaction struct {
	ID        int64      `json:"id"`
	TransNo   string     `json:"trans_no"`
	UserUUID  string     `json:"user_uuid"`
	TransType string     `json:"trans_type"`
	Credits   int        `json:"credits"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
