package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/doubtdesk/backend/internal/auth"
	"github.com/doubtdesk/backend/internal/config"
	"github.com/doubtdesk/backend/internal/database"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// Bootstraps the first admin account so the admin surfaces are
// reachable on a fresh deployment.

var (
	name     = flag.String("name", "Administrator", "Admin display name")
	email    = flag.String("email", "", "Admin email (required)")
	password = flag.String("password", "", "Admin password (required)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()

	if *email == "" || *password == "" {
		logger.Fatal("-email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Fatal("Database migration failed")
	}

	repoManager := repository.NewRepositoryManager(dbManager.DB)

	if _, err := repoManager.Admin.GetByEmail(*email); err == nil {
		logger.WithField("email", *email).Info("Admin already exists, nothing to do")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithError(err).Fatal("Admin lookup failed")
	}

	hashed, err := auth.HashPassword(*password)
	if err != nil {
		logger.WithError(err).Fatal("Failed to hash password")
	}

	admin := &models.Admin{
		Name:     *name,
		Email:    *email,
		Password: hashed,
	}
	if err := repoManager.Admin.Create(admin); err != nil {
		logger.WithError(err).Fatal("Failed to create admin")
	}

	logger.WithField("email", *email).Info("Admin account created")
}
