package handlers

import (
	"errors"
	"net/http"

	"github.com/doubtdesk/backend/internal/middleware"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/services"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TutorHandler struct {
	chatService *services.ChatService
	logger      *logrus.Logger
}

func NewTutorHandler(chatService *services.ChatService, logger *logrus.Logger) *TutorHandler {
	return &TutorHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// HandlePending lists escalated queries awaiting a tutor.
func (h *TutorHandler) HandlePending(c *gin.Context) {
	queries, err := h.chatService.PendingQueries()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list pending queries")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list pending queries", nil)
		return
	}

	c.JSON(http.StatusOK, queries)
}

// HandleAnswer records a tutor answer, resolving the query and its
// escalation.
func (h *TutorHandler) HandleAnswer(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.TutorAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.chatService.TutorAnswer(user.ID, req); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Query not found", nil)
			return
		}
		h.logger.WithError(err).Error("Failed to submit tutor answer")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to submit answer", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Answer submitted", nil)
}
