package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/doubtdesk/backend/internal/auth"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/doubtdesk/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const userContextKey = "auth_user"

// AuthUser is the resolved caller attached to the request context.
type AuthUser struct {
	ID    uint
	Name  string
	Email string
	Role  string
}

// Authenticator validates bearer tokens and resolves them to a record
// in the role table named by the token claims.
type Authenticator struct {
	tokens      *auth.TokenManager
	repoManager *repository.RepositoryManager
	logger      *logrus.Logger
}

func NewAuthenticator(tokens *auth.TokenManager, repoManager *repository.RepositoryManager, logger *logrus.Logger) *Authenticator {
	return &Authenticator{
		tokens:      tokens,
		repoManager: repoManager,
		logger:      logger,
	}
}

// Authenticate middleware function
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Missing bearer token", nil)
			c.Abort()
			return
		}

		claims, err := a.tokens.Resolve(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Could not validate credentials", nil)
			c.Abort()
			return
		}

		user, err := a.lookupUser(claims)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				a.logger.WithError(err).Error("User lookup failed")
			}
			utils.ErrorResponse(c, http.StatusUnauthorized, "User not found", nil)
			c.Abort()
			return
		}

		SetUser(c, *user)
		c.Next()
	}
}

func (a *Authenticator) lookupUser(claims *auth.Claims) (*AuthUser, error) {
	switch claims.Role {
	case models.RoleStudent:
		student, err := a.repoManager.Student.GetByEmail(claims.Email)
		if err != nil {
			return nil, err
		}
		return &AuthUser{ID: student.ID, Name: student.Name, Email: student.Email, Role: models.RoleStudent}, nil
	case models.RoleTutor:
		tutor, err := a.repoManager.Tutor.GetByEmail(claims.Email)
		if err != nil {
			return nil, err
		}
		return &AuthUser{ID: tutor.ID, Name: tutor.Name, Email: tutor.Email, Role: models.RoleTutor}, nil
	case models.RoleAdmin:
		admin, err := a.repoManager.Admin.GetByEmail(claims.Email)
		if err != nil {
			return nil, err
		}
		return &AuthUser{ID: admin.ID, Name: admin.Name, Email: admin.Email, Role: models.RoleAdmin}, nil
	default:
		return nil, gorm.ErrRecordNotFound
	}
}

// RequireRole guards an endpoint for a single role. Runs after
// Authenticate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Not authenticated", nil)
			c.Abort()
			return
		}
		if user.Role != role {
			utils.ErrorResponse(c, http.StatusForbidden, "Forbidden", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetUser attaches the resolved caller to the request context.
func SetUser(c *gin.Context, user AuthUser) {
	c.Set(userContextKey, user)
}

// CurrentUser reads the resolved caller from the request context.
func CurrentUser(c *gin.Context) (AuthUser, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return AuthUser{}, false
	}
	user, ok := value.(AuthUser)
	return user, ok
}
