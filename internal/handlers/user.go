package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/middleware"
	"github.com/mingjobo/piximagegenerator/internal/services"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService   *services.UserService
	creditService *services.CreditService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, creditService *services.CreditService) *UserHandler {
	return &UserHandler{userService: userService, creditService: creditService}
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.CreateUser(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().Str("user_uuid", user.UUID).Msg("User created")
	respondData(w, user)
}

// GetCredits handles GET /api/credits
func (h *UserHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userUUID := middleware.GetUserUUID(ctx)

	balance, err := h.creditService.Balance(ctx, userUUID)
	if err != nil {
		log.Error().Err(err).Str("user_uuid", userUUID).Msg("Failed to get credit balance")
		respondError(w, "Failed to get credits", http.StatusInternalServerError)
		return
	}

	respondData(w, map[string]int{"left_credits": balance})
}
