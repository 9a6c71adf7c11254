package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/config"
	"github.com/mingjobo/piximagegenerator/internal/handlers"
	"github.com/mingjobo/piximagegenerator/internal/middleware"
	"github.com/mingjobo/piximagegenerator/internal/pixelart"
	"github.com/mingjobo/piximagegenerator/internal/repository"
	"github.com/mingjobo/piximagegenerator/internal/services"
)

func Run() {
	// A .env overlay is optional; secrets may also live in the config file.
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	workRepo := repository.NewWorkRepository(db)
	creditRepo := repository.NewCreditRepository(db)

	// Initialize services
	storage, err := services.NewS3Storage(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	generator := pixelart.NewClient(cfg.Pixelart.BaseURL, cfg.Pixelart.APIKey, cfg.Pixelart.Model, cfg.Pixelart.Timeout())

	creditService := services.NewCreditService(creditRepo)
	userService := services.NewUserService(userRepo, creditService, cfg.Auth.JWTSecret, cfg.Credits.NewUserGrant)
	workService := services.NewWorkService(workRepo, creditService, generator, storage, cfg.Credits.PixelateCost)
	wsHub := services.NewWSHub()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, creditService)
	galleryHandler := handlers.NewGalleryHandler(workService)
	pixelateHandler := handlers.NewPixelateHandler(workService, wsHub)
	imageHandler := handlers.NewImageHandler(storage)
	downloadHandler := handlers.NewDownloadHandler(storage)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/gallery", galleryHandler.GetGallery)
		r.Get("/image/*", imageHandler.ServeImage)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Post("/pixelate", pixelateHandler.Pixelate)
			r.Post("/download-image", downloadHandler.DownloadImage)
			r.Get("/credits", userHandler.GetCredits)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
