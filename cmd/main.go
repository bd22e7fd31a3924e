package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kineticare/kineticare-backend/internal/cache"
	"github.com/kineticare/kineticare-backend/internal/db"
	"github.com/kineticare/kineticare-backend/internal/handlers"
	"github.com/kineticare/kineticare-backend/internal/middleware"
	"github.com/kineticare/kineticare-backend/internal/platform/envutil"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/platform/openai"
	"github.com/kineticare/kineticare-backend/internal/repos"
	"github.com/kineticare/kineticare-backend/internal/server"
	"github.com/kineticare/kineticare-backend/internal/services"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jwtSecretKey := envutil.Str("JWT_SECRET_KEY", "")
	if jwtSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTTL := time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second
	refreshTTL := time.Duration(envutil.Int("REFRESH_TOKEN_TTL", 86400)) * time.Second

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis (optional; estimator degrades to DB + defaults without it)
	redisCache, err := cache.New(log)
	if err != nil {
		log.Warn("Redis init failed, stage-average caching disabled", "error", err)
		redisCache = nil
	}

	// Repos
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	libraryRepo := repos.NewExerciseLibraryRepo(thePG, log)
	suggestionRepo := repos.NewSuggestionSetRepo(thePG, log)
	stageMetricRepo := repos.NewStageMetricRepo(thePG, log)

	// Model client
	modelClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("Could not init OpenAI client", "error", err)
	}

	// Services
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, accessTTL, refreshTTL)
	timingEstimator := services.NewTimingEstimator(thePG, log, stageMetricRepo, redisCache)
	generationService := services.NewGenerationService(
		thePG,
		log,
		libraryRepo,
		suggestionRepo,
		timingEstimator,
		modelClient,
		services.DefaultGenerationConfig(),
	)
	libraryService := services.NewLibraryService(thePG, log, libraryRepo, suggestionRepo)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       handlers.NewAuthHandler(authService),
		AuthMiddleware:    authMiddleware,
		GenerationHandler: handlers.NewGenerationHandler(log, generationService),
		LibraryHandler:    handlers.NewLibraryHandler(libraryService),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	log.Info("Starting server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
