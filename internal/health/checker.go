package health

import (
	"net/http"
	"time"

	"github.com/doubtdesk/backend/internal/database"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Checker reports the health of the service's dependencies.
type Checker struct {
	dbManager *database.Manager
	logger    *logrus.Logger
}

func NewChecker(dbManager *database.Manager, logger *logrus.Logger) *Checker {
	return &Checker{
		dbManager: dbManager,
		logger:    logger,
	}
}

// CheckPostgreSQL checks the relational store.
func (h *Checker) CheckPostgreSQL() string {
	if err := h.dbManager.PingDatabase(); err != nil {
		h.logger.WithError(err).Error("PostgreSQL health check failed")
		return "unhealthy"
	}
	return "healthy"
}

// CheckRedis checks the cache.
func (h *Checker) CheckRedis() string {
	if err := h.dbManager.PingRedis(); err != nil {
		h.logger.WithError(err).Error("Redis health check failed")
		return "unhealthy"
	}
	return "healthy"
}

// Handler serves GET /health.
func (h *Checker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		services := map[string]string{
			"postgresql": h.CheckPostgreSQL(),
			"redis":      h.CheckRedis(),
		}

		status := "healthy"
		code := http.StatusOK
		for _, s := range services {
			if s != "healthy" {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		c.JSON(code, models.HealthResponse{
			Status:    status,
			Service:   "doubtdesk-backend",
			Timestamp: time.Now().Format(time.RFC3339),
			Services:  services,
		})
	}
}
