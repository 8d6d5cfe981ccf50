package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/doubtdesk/backend/internal/middleware"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/services"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ChatHandler struct {
	chatService *services.ChatService
	logger      *logrus.Logger
}

func NewChatHandler(chatService *services.ChatService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// HandleQuery submits a student question, optionally with an image,
// and returns the query with its AI answer. Provider failures still
// produce HTTP 200 with an apologetic answer.
func (h *ChatHandler) HandleQuery(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	response, err := h.chatService.SubmitQuery(c.Request.Context(), user.ID, req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to submit query")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to submit query", nil)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HandleEscalate marks one of the caller's queries as needing a human
// tutor.
func (h *ChatHandler) HandleEscalate(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	queryID, err := strconv.ParseUint(c.Param("query_id"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query ID", nil)
		return
	}

	if err := h.chatService.Escalate(user.ID, uint(queryID)); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Query not found", nil)
			return
		}
		h.logger.WithError(err).Error("Failed to escalate query")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to escalate query", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Query escalated to human tutor successfully", nil)
}

// HandleFeedback records a rating on an answer to one of the caller's
// own queries.
func (h *ChatHandler) HandleFeedback(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback format", err)
		return
	}

	if err := h.chatService.SubmitFeedback(user.ID, req); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Answer not found", nil)
			return
		}
		h.logger.WithError(err).Error("Failed to save feedback")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to save feedback", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Feedback received", nil)
}

// HandleHistory returns the caller's sessions newest-first with nested
// queries and answers.
func (h *ChatHandler) HandleHistory(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	history, err := h.chatService.History(user.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load history")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load history", nil)
		return
	}

	c.JSON(http.StatusOK, history)
}

// HandleNewSession closes the caller's open session so the next query
// starts a fresh one.
func (h *ChatHandler) HandleNewSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := h.chatService.EndSession(user.ID); err != nil {
		h.logger.WithError(err).Error("Failed to end session")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to end session", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Previous session ended. Ready for new chat", nil)
}
