package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/services"
)

// ImageHandler proxies stored images through the service so clients never
// talk to the storage provider directly.
type ImageHandler struct {
	storage services.ObjectStorage
}

// NewImageHandler creates a new image handler
func NewImageHandler(storage services.ObjectStorage) *ImageHandler {
	return &ImageHandler{storage: storage}
}

// ServeImage handles GET /api/image/*
func (h *ImageHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" || strings.Contains(key, "..") {
		respondError(w, "invalid image path", http.StatusBadRequest)
		return
	}

	body, contentType, err := h.storage.Download(r.Context(), key)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Image not found")
		respondError(w, "image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
