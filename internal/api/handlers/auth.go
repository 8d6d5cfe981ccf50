package handlers

import (
	"errors"
	"net/http"

	"github.com/doubtdesk/backend/internal/auth"
	"github.com/doubtdesk/backend/internal/middleware"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthHandler struct {
	repoManager *repository.RepositoryManager
	tokens      *auth.TokenManager
	logger      *logrus.Logger
}

func NewAuthHandler(
	repoManager *repository.RepositoryManager,
	tokens *auth.TokenManager,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		repoManager: repoManager,
		tokens:      tokens,
		logger:      logger,
	}
}

// HandleRegister creates an account in the role table named by the
// path parameter.
func (h *AuthHandler) HandleRegister(c *gin.Context) {
	role := c.Param("role")

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Registration failed", nil)
		return
	}

	var user models.UserResponse

	switch role {
	case models.RoleStudent:
		if h.emailTaken(c, func() error { _, err := h.repoManager.Student.GetByEmail(req.Email); return err }) {
			return
		}
		student := &models.Student{Name: req.Name, Email: req.Email, Password: hashed}
		if err := h.repoManager.Student.Create(student); err != nil {
			h.failCreate(c, err)
			return
		}
		user = models.UserResponse{ID: student.ID, Name: student.Name, Email: student.Email, Role: models.RoleStudent}

	case models.RoleTutor:
		if h.emailTaken(c, func() error { _, err := h.repoManager.Tutor.GetByEmail(req.Email); return err }) {
			return
		}
		subject := req.Subject
		if subject == "" {
			subject = "General"
		}
		tutor := &models.Tutor{Name: req.Name, Email: req.Email, Password: hashed, Subject: subject}
		if err := h.repoManager.Tutor.Create(tutor); err != nil {
			h.failCreate(c, err)
			return
		}
		user = models.UserResponse{ID: tutor.ID, Name: tutor.Name, Email: tutor.Email, Role: models.RoleTutor}

	case models.RoleAdmin:
		if h.emailTaken(c, func() error { _, err := h.repoManager.Admin.GetByEmail(req.Email); return err }) {
			return
		}
		admin := &models.Admin{Name: req.Name, Email: req.Email, Password: hashed}
		if err := h.repoManager.Admin.Create(admin); err != nil {
			h.failCreate(c, err)
			return
		}
		user = models.UserResponse{ID: admin.ID, Name: admin.Name, Email: admin.Email, Role: models.RoleAdmin}

	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid role. Use 'student', 'tutor', or 'admin'", nil)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"email": user.Email,
		"role":  user.Role,
	}).Info("Account registered")

	utils.SuccessResponse(c, http.StatusCreated, "Account registered", user)
}

// HandleLogin accepts an OAuth2-style form body (username, password)
// and checks the role tables in fixed order. The failure response never
// reveals which table matched.
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	role := h.matchCredentials(email, password)
	if role == "" {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Incorrect credentials", nil)
		return
	}

	token, err := h.tokens.Issue(email, role)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Login failed", nil)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"email": email,
		"role":  role,
	}).Info("Login succeeded")

	c.JSON(http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        role,
	})
}

// HandleUpdateProfile updates the calling student's own name and/or
// password.
func (h *AuthHandler) HandleUpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	student, err := h.repoManager.Student.GetByID(user.ID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "User not found", nil)
		return
	}

	if req.Name != "" {
		student.Name = req.Name
	}
	if req.Password != "" {
		hashed, err := auth.HashPassword(req.Password)
		if err != nil {
			h.logger.WithError(err).Error("Failed to hash password")
			utils.ErrorResponse(c, http.StatusInternalServerError, "Profile update failed", nil)
			return
		}
		student.Password = hashed
	}

	if err := h.repoManager.Student.Update(student); err != nil {
		h.logger.WithError(err).Error("Failed to update profile")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Profile update failed", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile updated successfully", gin.H{"name": student.Name})
}

// matchCredentials returns the role whose table holds a record with a
// matching password, or "" when none do.
func (h *AuthHandler) matchCredentials(email, password string) string {
	if student, err := h.repoManager.Student.GetByEmail(email); err == nil {
		if auth.VerifyPassword(password, student.Password) {
			return models.RoleStudent
		}
	}
	if tutor, err := h.repoManager.Tutor.GetByEmail(email); err == nil {
		if auth.VerifyPassword(password, tutor.Password) {
			return models.RoleTutor
		}
	}
	if admin, err := h.repoManager.Admin.GetByEmail(email); err == nil {
		if auth.VerifyPassword(password, admin.Password) {
			return models.RoleAdmin
		}
	}
	return ""
}

// emailTaken writes the error response and returns true when the email
// is already registered in the role table, or when the lookup fails.
func (h *AuthHandler) emailTaken(c *gin.Context, lookup func() error) bool {
	err := lookup()
	if err == nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Email already registered", nil)
		return true
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.WithError(err).Error("Email lookup failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Registration failed", nil)
		return true
	}
	return false
}

func (h *AuthHandler) failCreate(c *gin.Context, err error) {
	h.logger.WithError(err).Error("Failed to create account")
	utils.ErrorResponse(c, http.StatusInternalServerError, "Registration failed", nil)
}
