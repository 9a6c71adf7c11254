package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/middleware"
	"github.com/mingjobo/piximagegenerator/internal/services"
)

// PixelateHandler handles generation requests
type PixelateHandler struct {
	workService *services.WorkService
	hub         *services.WSHub
}

// NewPixelateHandler creates a new pixelate handler
func NewPixelateHandler(workService *services.WorkService, hub *services.WSHub) *PixelateHandler {
	return &PixelateHandler{workService: workService, hub: hub}
}

// PixelateRequest is the generation request body
type PixelateRequest struct {
	Emoji string `json:"emoji"`
}

// Pixelate handles POST /api/pixelate
func (h *PixelateHandler) Pixelate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userUUID := middleware.GetUserUUID(ctx)

	var req PixelateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	work, err := h.workService.Pixelate(ctx, userUUID, req.Emoji)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_uuid", userUUID).
			Str("emoji", req.Emoji).
			Msg("Pixelate failed")

		switch {
		case errors.Is(err, services.ErrEmojiRequired),
			errors.Is(err, services.ErrEmojiOnly),
			errors.Is(err, services.ErrEmojiTooMany),
			errors.Is(err, services.ErrEmojiTooLong):
			respondError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrInsufficientCredits):
			respondError(w, "insufficient credits", http.StatusPaymentRequired)
		default:
			respondError(w, "Failed to pixelate. Try again.", http.StatusInternalServerError)
		}
		return
	}

	log.Info().
		Str("user_uuid", userUUID).
		Str("work_uuid", work.UUID).
		Str("emoji", work.Emoji).
		Msg("Work generated")

	h.hub.BroadcastWorkCreated(work)

	respondData(w, work)
}
