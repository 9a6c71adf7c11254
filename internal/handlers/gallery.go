package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/models"
	"github.com/mingjobo/piximagegenerator/internal/services"
)

// GalleryHandler handles gallery read requests
type GalleryHandler struct {
	workService *services.WorkService
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(workService *services.WorkService) *GalleryHandler {
	return &GalleryHandler{workService: workService}
}

// GalleryData is the payload of a gallery page response
type GalleryData struct {
	Works      []models.Work `json:"works"`
	HasMore    bool          `json:"has_more"`
	NextCursor *string       `json:"next_cursor"`
}

// GetGallery handles GET /api/gallery
func (h *GalleryHandler) GetGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	// An unparseable cursor degrades to newest-first rather than failing.
	var cursor *int64
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		if parsed, err := strconv.ParseInt(cursorStr, 10, 64); err == nil {
			cursor = &parsed
		}
	}

	works, hasMore, nextCursor, err := h.workService.ListPage(ctx, cursor, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch gallery")
		respondError(w, "Failed to fetch gallery", http.StatusInternalServerError)
		return
	}

	if works == nil {
		works = []models.Work{}
	}

	respondData(w, GalleryData{
		Works:      works,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	})
}
