package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/doubtdesk/backend/internal/api/handlers"
	"github.com/doubtdesk/backend/internal/auth"
	"github.com/doubtdesk/backend/internal/config"
	"github.com/doubtdesk/backend/internal/middleware"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/nlp"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/doubtdesk/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{ answer string }

func (s stubGenerator) GenerateAnswer(ctx context.Context, question, imageBase64 string, history []nlp.Turn) string {
	return s.answer
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repos := repository.NewMemoryRepositoryManager()
	tokens, err := auth.NewTokenManager("test-secret", "HS256", 60)
	require.NoError(t, err)

	chatService := services.NewChatService(repos, stubGenerator{answer: "Here is how it works."}, logger)
	adminService := services.NewAdminService(repos, nil, logger)

	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}

	return SetupRouter(cfg, &Handlers{
		Auth:          handlers.NewAuthHandler(repos, tokens, logger),
		Chat:          handlers.NewChatHandler(chatService, logger),
		Tutor:         handlers.NewTutorHandler(chatService, logger),
		Admin:         handlers.NewAdminHandler(adminService, logger),
		Authenticator: middleware.NewAuthenticator(tokens, repos, logger),
	})
}

func doJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r *gin.Engine, role, name, email string) {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/register/"+role, "", models.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func login(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestLivenessRoot(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "online")
}

func TestRegisterValidation(t *testing.T) {
	r := newTestServer(t)

	// Unknown role segment.
	w := doJSON(r, http.MethodPost, "/register/superuser", "", models.RegisterRequest{
		Name: "X", Email: "x@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Password too short.
	w = doJSON(r, http.MethodPost, "/register/student", "", models.RegisterRequest{
		Name: "X", Email: "x@example.com", Password: "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate email within the role table.
	register(t, r, "student", "Asha", "asha@example.com")
	w = doJSON(r, http.MethodPost, "/register/student", "", models.RegisterRequest{
		Name: "Asha Again", Email: "asha@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestLogin(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")

	token := login(t, r, "asha@example.com")
	assert.NotEmpty(t, token)

	// Wrong password gives a generic 401.
	form := url.Values{"username": {"asha@example.com"}, "password": {"wrong-password"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Incorrect credentials")

	// Missing fields.
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(r, http.MethodGet, "/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/history", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleEnforcement(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")
	register(t, r, "tutor", "Prof", "prof@example.com")

	studentToken := login(t, r, "asha@example.com")
	tutorToken := login(t, r, "prof@example.com")

	w := doJSON(r, http.MethodGet, "/tutor/pending", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/stats", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/query", tutorToken, models.QueryRequest{Content: "Q"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQueryAndHistoryFlow(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")
	token := login(t, r, "asha@example.com")

	w := doJSON(r, http.MethodPost, "/query", token, models.QueryRequest{Content: "What is osmosis?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var queryResp models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queryResp))
	assert.Equal(t, "What is osmosis?", queryResp.Content)
	assert.Equal(t, models.QueryStatusAnswered, queryResp.Status)
	require.Len(t, queryResp.Answers, 1)
	assert.Equal(t, "Here is how it works.", queryResp.Answers[0].Content)

	// Missing content is rejected before reaching the AI.
	w = doJSON(r, http.MethodPost, "/query", token, models.QueryRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Feedback on the AI answer.
	w = doJSON(r, http.MethodPost, "/feedback", token, models.FeedbackRequest{
		AnswerID: queryResp.Answers[0].AnswerID,
		Rating:   5,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Out-of-range rating never reaches the service.
	w = doJSON(r, http.MethodPost, "/feedback", token, models.FeedbackRequest{
		AnswerID: queryResp.Answers[0].AnswerID,
		Rating:   6,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// History shows the session with the query and its answer.
	w = doJSON(r, http.MethodGet, "/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.SessionHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	require.Len(t, history[0].Queries, 1)
	assert.Equal(t, queryResp.QueryID, history[0].Queries[0].QueryID)

	// Starting a new session leaves history intact.
	w = doJSON(r, http.MethodPost, "/session/new", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/query", token, models.QueryRequest{Content: "Another one"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 2)
}

func TestEscalationOwnership(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")
	register(t, r, "student", "Ben", "ben@example.com")
	ashaToken := login(t, r, "asha@example.com")
	benToken := login(t, r, "ben@example.com")

	w := doJSON(r, http.MethodPost, "/query", ashaToken, models.QueryRequest{Content: "Mine"})
	require.Equal(t, http.StatusOK, w.Code)
	var queryResp models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queryResp))

	// Another student cannot escalate or rate it.
	path := fmt.Sprintf("/escalate/%d", queryResp.QueryID)
	w = doJSON(r, http.MethodPost, path, benToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/feedback", benToken, models.FeedbackRequest{
		AnswerID: queryResp.Answers[0].AnswerID,
		Rating:   1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The owner can.
	w = doJSON(r, http.MethodPost, path, ashaToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Bad and unknown IDs.
	w = doJSON(r, http.MethodPost, "/escalate/not-a-number", ashaToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, http.MethodPost, "/escalate/99999", ashaToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTutorWorkflow(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")
	register(t, r, "tutor", "Prof", "prof@example.com")
	studentToken := login(t, r, "asha@example.com")
	tutorToken := login(t, r, "prof@example.com")

	w := doJSON(r, http.MethodPost, "/query", studentToken, models.QueryRequest{Content: "Hard question"})
	require.Equal(t, http.StatusOK, w.Code)
	var queryResp models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queryResp))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/escalate/%d", queryResp.QueryID), studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The escalated query shows up in the tutor queue.
	w = doJSON(r, http.MethodGet, "/tutor/pending", tutorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, queryResp.QueryID, pending[0].QueryID)

	w = doJSON(r, http.MethodPost, "/tutor/answer", tutorToken, models.TutorAnswerRequest{
		QueryID: queryResp.QueryID,
		Content: "Try substitution first.",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Resolved, so the queue is empty again.
	w = doJSON(r, http.MethodGet, "/tutor/pending", tutorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Empty(t, pending)

	// Answering a query that does not exist.
	w = doJSON(r, http.MethodPost, "/tutor/answer", tutorToken, models.TutorAnswerRequest{
		QueryID: 99999,
		Content: "?",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")
	register(t, r, "tutor", "Prof", "prof@example.com")
	register(t, r, "admin", "Root", "root@example.com")
	studentToken := login(t, r, "asha@example.com")
	adminToken := login(t, r, "root@example.com")

	w := doJSON(r, http.MethodPost, "/query", studentToken, models.QueryRequest{Content: "Q"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalStudents)
	assert.Equal(t, int64(1), stats.TotalTutors)
	assert.Equal(t, int64(1), stats.TotalQueries)

	w = doJSON(r, http.MethodGet, "/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.UserSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	w = doJSON(r, http.MethodGet, "/admin/reports", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reports models.ReportsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	assert.Len(t, reports.StudentActivity, 1)
}

func TestUpdateProfile(t *testing.T) {
	r := newTestServer(t)
	register(t, r, "student", "Asha", "asha@example.com")
	token := login(t, r, "asha@example.com")

	w := doJSON(r, http.MethodPut, "/users/me", token, models.UpdateProfileRequest{Name: "Asha R."})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Asha R.")

	// Password change takes effect on the next login.
	w = doJSON(r, http.MethodPut, "/users/me", token, models.UpdateProfileRequest{Password: "newpassword456"})
	require.Equal(t, http.StatusOK, w.Code)

	form := url.Values{"username": {"asha@example.com"}, "password": {"newpassword456"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
