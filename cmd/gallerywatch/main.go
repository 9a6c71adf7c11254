// Command gallerywatch is a terminal gallery client. It keeps a local
// mirror of the public gallery (durable snapshots plus a session pin
// set), refreshes it in the background, and can submit an emoji for
// generation, pinning the fresh result at the top the way the web
// client does.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mingjobo/piximagegenerator/internal/gallery"
	"github.com/mingjobo/piximagegenerator/internal/models"
)

type stderrNotifier struct {
	log zerolog.Logger
}

func (n stderrNotifier) Notify(message string) {
	n.log.Warn().Msg(message)
}

func main() {
	_ = godotenv.Load()

	serverURL := flag.String("server", "http://localhost:8080", "gallery server base URL")
	emoji := flag.String("emoji", "", "emoji to pixelate on startup (requires -token)")
	token := flag.String("token", os.Getenv("PIXEMOJI_TOKEN"), "bearer token for generation")
	cacheDir := flag.String("cache", defaultCacheDir(), "directory for the durable gallery cache")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	persist, err := gallery.NewFileStore(*cacheDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open cache directory")
	}
	session := gallery.NewMemStore()

	client := gallery.NewClient(*serverURL)
	engine := gallery.NewEngine(session, persist, client, stderrNotifier{log: logger}, logger)
	engine.Load()

	bridge := gallery.NewBridge(engine)
	scheduler := gallery.NewScheduler(engine, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)

	if *emoji != "" {
		go submit(ctx, logger, bridge, *serverURL, *token, *emoji)
	}

	render := time.NewTicker(2 * time.Second)
	defer render.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-render.C:
			printGallery(engine)
		}
	}
}

// generateClient covers the full provider round-trip, which can take
// a couple of minutes.
var generateClient = &http.Client{Timeout: 3 * time.Minute}

// submit posts the emoji to the generation endpoint, feeding the bridge
// the started/succeeded/failed signals around the call.
func submit(ctx context.Context, logger zerolog.Logger, bridge *gallery.Bridge, serverURL, token, emoji string) {
	if token == "" {
		logger.Error().Msg("generation requires -token")
		return
	}

	bridge.OnStarted(gallery.GenerationStarted{Emoji: emoji})

	body, _ := json.Marshal(map[string]string{"emoji": emoji})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/pixelate", bytes.NewReader(body))
	if err != nil {
		bridge.OnFailed(gallery.GenerationFailed{Message: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := generateClient.Do(req)
	if err != nil {
		bridge.OnFailed(gallery.GenerationFailed{Message: "Failed to pixelate. Try again."})
		return
	}
	defer resp.Body.Close()

	var envelope struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    models.Work `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Code != 0 {
		msg := envelope.Message
		if msg == "" {
			msg = "Failed to pixelate. Try again."
		}
		bridge.OnFailed(gallery.GenerationFailed{Message: msg})
		return
	}

	bridge.OnSucceeded(gallery.GenerationSucceeded{Work: envelope.Data})
	logger.Info().Str("uuid", envelope.Data.UUID).Msg("work generated and pinned")
}

func printGallery(engine *gallery.Engine) {
	works := engine.Visible()
	fmt.Print("\033[H\033[2J")
	if engine.UpdateAvailable() {
		fmt.Println("— new works available —")
	}
	for _, w := range works {
		marker := " "
		if w.IsPlaceholder() {
			marker = "…"
		}
		fmt.Printf("%s %s  %s  %s\n", marker, w.Emoji, w.UUID, w.CreatedAt.Format(time.RFC3339))
	}
	if engine.HasMore() {
		fmt.Println("(more available)")
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".pixemoji-cache"
	}
	return filepath.Join(base, "pixemoji")
}
