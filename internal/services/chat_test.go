package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/nlp"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	answer     string
	gotHistory []nlp.Turn
	gotImage   string
	calls      int
}

func (f *fakeGenerator) GenerateAnswer(ctx context.Context, question, imageBase64 string, history []nlp.Turn) string {
	f.calls++
	f.gotHistory = history
	f.gotImage = imageBase64
	return f.answer
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestChatService(answer string) (*ChatService, *repository.RepositoryManager, *fakeGenerator) {
	repos := repository.NewMemoryRepositoryManager()
	gen := &fakeGenerator{answer: answer}
	return NewChatService(repos, gen, testLogger()), repos, gen
}

func createStudent(t *testing.T, repos *repository.RepositoryManager, name, email string) *models.Student {
	t.Helper()
	student := &models.Student{Name: name, Email: email, Password: "hash"}
	require.NoError(t, repos.Student.Create(student))
	return student
}

func TestSubmitQueryCreatesSessionAndAnswer(t *testing.T) {
	svc, repos, _ := newTestChatService("Gravity pulls masses together.")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	resp, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "What is gravity?"})
	require.NoError(t, err)

	assert.NotZero(t, resp.QueryID)
	assert.Equal(t, "What is gravity?", resp.Content)
	assert.Equal(t, models.QueryStatusAnswered, resp.Status)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "Gravity pulls masses together.", resp.Answers[0].Content)
	assert.Nil(t, resp.Answers[0].TutorID)

	// A session was opened and is reused on the next query.
	session, err := repos.Session.GetOpenByStudent(student.ID)
	require.NoError(t, err)

	resp2, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "And friction?"})
	require.NoError(t, err)
	assert.NotEqual(t, resp.QueryID, resp2.QueryID)

	again, err := repos.Session.GetOpenByStudent(student.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, again.ID)
}

func TestSubmitQueryPassesConversationContext(t *testing.T) {
	svc, repos, gen := newTestChatService("answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		_, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: q})
		require.NoError(t, err)
	}

	// The 4th call sees the prior 3 pairs, oldest first.
	require.Len(t, gen.gotHistory, 6)
	assert.Equal(t, nlp.Turn{Role: nlp.RoleUser, Content: "q1"}, gen.gotHistory[0])
	assert.Equal(t, nlp.Turn{Role: nlp.RoleAssistant, Content: "answer"}, gen.gotHistory[1])
	assert.Equal(t, nlp.Turn{Role: nlp.RoleUser, Content: "q3"}, gen.gotHistory[4])

	// On the 5th call q1 rotates out of the window.
	_, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "q5"})
	require.NoError(t, err)
	require.Len(t, gen.gotHistory, 6)
	assert.Equal(t, nlp.Turn{Role: nlp.RoleUser, Content: "q2"}, gen.gotHistory[0])
	assert.Equal(t, nlp.Turn{Role: nlp.RoleUser, Content: "q4"}, gen.gotHistory[4])
}

func TestSubmitQueryForwardsImage(t *testing.T) {
	svc, repos, gen := newTestChatService("vision answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	_, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{
		Content: "What does this show?",
		Image:   "aW1hZ2U=",
	})
	require.NoError(t, err)
	assert.Equal(t, "aW1hZ2U=", gen.gotImage)
}

func TestEscalateOwnQuery(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	resp, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "Hard one"})
	require.NoError(t, err)

	require.NoError(t, svc.Escalate(student.ID, resp.QueryID))

	query, err := repos.Query.GetByID(resp.QueryID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusEscalated, query.Status)

	escalations, err := repos.Escalation.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, escalations, 1)
	assert.Equal(t, resp.QueryID, escalations[0].QueryID)
	assert.Equal(t, models.EscalationStatusPending, escalations[0].Status)
}

func TestEscalateForeignQueryIsNotFound(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	owner := createStudent(t, repos, "Asha", "asha@example.com")
	other := createStudent(t, repos, "Ben", "ben@example.com")

	resp, err := svc.SubmitQuery(context.Background(), owner.ID, models.QueryRequest{Content: "Mine"})
	require.NoError(t, err)

	err = svc.Escalate(other.ID, resp.QueryID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Untouched.
	query, err := repos.Query.GetByID(resp.QueryID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusAnswered, query.Status)
}

func TestEscalateUnknownQueryIsNotFound(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	assert.ErrorIs(t, svc.Escalate(student.ID, 9999), ErrNotFound)
}

func TestPendingQueriesListsEscalated(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	first, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "Easy"})
	require.NoError(t, err)
	second, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "Hard"})
	require.NoError(t, err)
	require.NoError(t, svc.Escalate(student.ID, second.QueryID))

	pending, err := svc.PendingQueries()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.QueryID, pending[0].QueryID)
	assert.NotEqual(t, first.QueryID, pending[0].QueryID)
}

func TestTutorAnswerResolvesQueryAndEscalation(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")
	tutor := &models.Tutor{Name: "Prof", Email: "prof@example.com", Password: "hash", Subject: "Physics"}
	require.NoError(t, repos.Tutor.Create(tutor))

	resp, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "Hard"})
	require.NoError(t, err)
	require.NoError(t, svc.Escalate(student.ID, resp.QueryID))

	err = svc.TutorAnswer(tutor.ID, models.TutorAnswerRequest{
		QueryID: resp.QueryID,
		Content: "Here is the full derivation.",
	})
	require.NoError(t, err)

	query, err := repos.Query.GetByID(resp.QueryID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusResolved, query.Status)

	answers, err := repos.Answer.GetByQueryID(resp.QueryID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	human := answers[1]
	require.NotNil(t, human.TutorID)
	assert.Equal(t, tutor.ID, *human.TutorID)
	assert.False(t, human.IsAI)

	escalations, err := repos.Escalation.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, escalations, 1)
	assert.Equal(t, models.EscalationStatusResolved, escalations[0].Status)
}

func TestTutorAnswerUnknownQuery(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	tutor := &models.Tutor{Name: "Prof", Email: "prof@example.com", Password: "hash"}
	require.NoError(t, repos.Tutor.Create(tutor))

	err := svc.TutorAnswer(tutor.ID, models.TutorAnswerRequest{QueryID: 42, Content: "?"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitFeedbackOwnership(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	owner := createStudent(t, repos, "Asha", "asha@example.com")
	other := createStudent(t, repos, "Ben", "ben@example.com")

	resp, err := svc.SubmitQuery(context.Background(), owner.ID, models.QueryRequest{Content: "Q"})
	require.NoError(t, err)
	answerID := resp.Answers[0].AnswerID

	require.NoError(t, svc.SubmitFeedback(owner.ID, models.FeedbackRequest{AnswerID: answerID, Rating: 5}))

	stored, err := repos.Feedback.GetByAnswerID(answerID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 5, stored[0].Rating)
	assert.Equal(t, owner.ID, stored[0].StudentID)

	// Someone else's answer looks like it does not exist.
	err = svc.SubmitFeedback(other.ID, models.FeedbackRequest{AnswerID: answerID, Rating: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	// Duplicate feedback from the owner is allowed.
	require.NoError(t, svc.SubmitFeedback(owner.ID, models.FeedbackRequest{AnswerID: answerID, Rating: 3}))
	stored, err = repos.Feedback.GetByAnswerID(answerID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEndSessionAndHistory(t *testing.T) {
	svc, repos, _ := newTestChatService("answer")
	student := createStudent(t, repos, "Asha", "asha@example.com")

	first, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "Q1"})
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(student.ID))

	// Ending again when nothing is open is a no-op.
	require.NoError(t, svc.EndSession(student.ID))

	// Next query opens a fresh session.
	time.Sleep(2 * time.Millisecond)
	second, err := svc.SubmitQuery(context.Background(), student.ID, models.QueryRequest{Content: "Q2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.QueryID, second.QueryID)

	history, err := svc.History(student.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest session first, each with its own single query.
	assert.Equal(t, "Q2", history[0].Queries[0].Content)
	assert.Equal(t, "Q1", history[1].Queries[0].Content)
	require.Len(t, history[1].Queries[0].Answers, 1)
	assert.Equal(t, "answer", history[1].Queries[0].Answers[0].Content)
}
