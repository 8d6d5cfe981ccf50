package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doubtdesk/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database connection manager
type Manager struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *logrus.Logger
}

// Database configuration
type Config struct {
	DatabaseURL string
	RedisURL    string
	LogLevel    string
}

// NewManager creates a new database manager with connection pooling
func NewManager(config *Config, logger *logrus.Logger) (*Manager, error) {
	gormLogLevel := gormlogger.Silent
	if config.LogLevel == "debug" {
		gormLogLevel = gormlogger.Info
	}

	// Open database connection with pooling
	db, err := gorm.Open(postgres.Open(config.DatabaseURL), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormLogLevel),
		SkipDefaultTransaction: true, // Improve performance
		PrepareStmt:            true, // Cache prepared statements
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Test database connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Connect to Redis
	redisOpts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.PoolSize = 20
	redisOpts.MinIdleConns = 5
	redisOpts.MaxConnAge = time.Hour
	redisOpts.IdleTimeout = 30 * time.Minute

	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Database and Redis connections established successfully")

	return &Manager{
		DB:     db,
		Redis:  redisClient,
		logger: logger,
	}, nil
}

// Migrate runs database migrations
func (m *Manager) Migrate() error {
	m.logger.Info("Running database migrations...")

	return m.DB.AutoMigrate(
		&models.Student{},
		&models.Tutor{},
		&models.Admin{},
		&models.Session{},
		&models.Query{},
		&models.Answer{},
		&models.Escalation{},
		&models.Feedback{},
	)
}

// Close closes all database connections
func (m *Manager) Close() error {
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			m.logger.WithError(err).Error("Failed to close Redis connection")
		}
	}

	if m.DB != nil {
		sqlDB, err := m.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}

// Health check methods
func (m *Manager) PingDatabase() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (m *Manager) PingRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Redis.Ping(ctx).Err()
}

// Cache wraps Redis for the read-heavy admin surfaces
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	AdminStatsKey   = "admin:stats"
	AdminReportsKey = "admin:reports"
)

// CacheAdminStats caches the aggregate counts shown on the admin dashboard
func (c *Cache) CacheAdminStats(ctx context.Context, stats *models.StatsResponse, expiration time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal admin stats: %w", err)
	}

	return c.client.Set(ctx, AdminStatsKey, data, expiration).Err()
}

// GetCachedAdminStats retrieves cached admin stats
func (c *Cache) GetCachedAdminStats(ctx context.Context) (*models.StatsResponse, error) {
	data, err := c.client.Get(ctx, AdminStatsKey).Result()
	if err != nil {
		return nil, err
	}

	var stats models.StatsResponse
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// CacheAdminReports caches the admin report listings
func (c *Cache) CacheAdminReports(ctx context.Context, reports *models.ReportsResponse, expiration time.Duration) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to marshal admin reports: %w", err)
	}

	return c.client.Set(ctx, AdminReportsKey, data, expiration).Err()
}

// GetCachedAdminReports retrieves cached admin reports
func (c *Cache) GetCachedAdminReports(ctx context.Context) (*models.ReportsResponse, error) {
	data, err := c.client.Get(ctx, AdminReportsKey).Result()
	if err != nil {
		return nil, err
	}

	var reports models.ReportsResponse
	if err := json.Unmarshal([]byte(data), &reports); err != nil {
		return nil, err
	}

	return &reports, nil
}

// InvalidateAdminCache drops the cached admin views
func (c *Cache) InvalidateAdminCache(ctx context.Context) error {
	return c.client.Del(ctx, AdminStatsKey, AdminReportsKey).Err()
}
