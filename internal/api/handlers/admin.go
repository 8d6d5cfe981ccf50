package handlers

import (
	"net/http"

	"github.com/doubtdesk/backend/internal/services"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	adminService *services.AdminService
	logger       *logrus.Logger
}

func NewAdminHandler(adminService *services.AdminService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// HandleStats returns aggregate platform counts.
func (h *AdminHandler) HandleStats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load admin stats")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load stats", nil)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HandleReports returns recent escalations, tutor performance and the
// most active students.
func (h *AdminHandler) HandleReports(c *gin.Context) {
	reports, err := h.adminService.Reports(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load admin reports")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load reports", nil)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// HandleUsers returns the flat list of students and tutors.
func (h *AdminHandler) HandleUsers(c *gin.Context) {
	users, err := h.adminService.Users()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list users")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list users", nil)
		return
	}

	c.JSON(http.StatusOK, users)
}
