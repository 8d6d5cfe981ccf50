package main

import (
	"context"
	"log"
	"os"

	"github.com/doubtdesk/backend/internal/api"
	"github.com/doubtdesk/backend/internal/api/handlers"
	"github.com/doubtdesk/backend/internal/auth"
	"github.com/doubtdesk/backend/internal/config"
	"github.com/doubtdesk/backend/internal/database"
	"github.com/doubtdesk/backend/internal/health"
	"github.com/doubtdesk/backend/internal/middleware"
	"github.com/doubtdesk/backend/internal/nlp"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/doubtdesk/backend/internal/services"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateAuth(); err != nil {
		logger.WithError(err).Fatal("Auth configuration validation failed")
	}

	// Initialize database and cache
	dbConfig := &database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Fatal("Database migration failed")
	}

	repoManager := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)

	// Token manager
	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Algorithm, cfg.Auth.TokenTTLMinutes)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token manager")
	}

	// AI providers: prioritized text backends plus an optional vision
	// backend. The server still starts without them; the router answers
	// with a not-configured message instead.
	answerRouter := buildAnswerRouter(cfg, logger)

	// Services and handlers
	chatService := services.NewChatService(repoManager, answerRouter, logger)
	adminService := services.NewAdminService(repoManager, cache, logger)
	checker := health.NewChecker(dbManager, logger)

	router := api.SetupRouter(cfg, &api.Handlers{
		Auth:          handlers.NewAuthHandler(repoManager, tokens, logger),
		Chat:          handlers.NewChatHandler(chatService, logger),
		Tutor:         handlers.NewTutorHandler(chatService, logger),
		Admin:         handlers.NewAdminHandler(adminService, logger),
		Authenticator: middleware.NewAuthenticator(tokens, repoManager, logger),
		Health:        checker.Handler(),
	})

	logger.WithField("port", cfg.Server.Port).Info("Starting server")
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server exited")
	}
}

func buildAnswerRouter(cfg *config.Config, logger *logrus.Logger) *nlp.Router {
	var textProviders []nlp.TextProvider
	for _, model := range cfg.AI.TextModels {
		provider, err := nlp.NewOpenAIProvider(nlp.OpenAIConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   model,
		})
		if err != nil {
			logger.WithError(err).WithField("model", model).Warn("Skipping text provider")
			continue
		}
		textProviders = append(textProviders, provider)
	}

	var visionProvider nlp.VisionProvider
	if vp, err := nlp.NewGeminiProvider(context.Background(), nlp.GeminiConfig{
		APIKey: cfg.AI.VisionAPIKey,
		Model:  cfg.AI.VisionModel,
	}); err != nil {
		logger.WithError(err).Warn("Vision provider unavailable")
	} else {
		visionProvider = vp
	}

	return nlp.NewRouter(textProviders, visionProvider, cfg.AI.MaxOutputTokens, logger)
}
