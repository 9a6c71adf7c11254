package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/mingjobo/piximagegenerator/internal/services"
)

// DownloadSize is the output resolution of downloaded pixel art.
const DownloadSize = 512

// DownloadHandler re-encodes stored images as fixed-size PNG downloads.
type DownloadHandler struct {
	storage services.ObjectStorage
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(storage services.ObjectStorage) *DownloadHandler {
	return &DownloadHandler{storage: storage}
}

// DownloadImage handles POST /api/download-image. Only proxy paths under
// /api/image/ are accepted; the object is scaled to DownloadSize with
// nearest-neighbor so the pixel edges stay crisp.
func (h *DownloadHandler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		respondError(w, "image URL is required", http.StatusBadRequest)
		return
	}

	key := strings.TrimPrefix(req.ImageURL, "/api/image/")
	if key == req.ImageURL || key == "" || strings.Contains(key, "..") {
		respondError(w, "invalid image URL", http.StatusBadRequest)
		return
	}

	body, _, err := h.storage.Download(r.Context(), key)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Download source not found")
		respondError(w, "image not found", http.StatusNotFound)
		return
	}

	out, err := resizeSquarePNG(body, DownloadSize)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to process image")
		respondError(w, "failed to process image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="pixelart_%dx%d.png"`, DownloadSize, DownloadSize))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// resizeSquarePNG scales src to fit a size×size transparent canvas,
// centered, and encodes the result as PNG.
func resizeSquarePNG(src []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	dw, dh := size, size
	if sw >= sh {
		dh = sh * size / sw
	} else {
		dw = sw * size / sh
	}
	x0 := (size - dw) / 2
	y0 := (size - dh) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, image.Rect(x0, y0, x0+dw, y0+dh), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
