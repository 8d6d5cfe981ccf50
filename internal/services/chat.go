package services

import (
	"context"
	"errors"
	"time"

	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/nlp"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an entity does not exist or is not
// visible to the caller (ownership checks map to it as well).
var ErrNotFound = errors.New("record not found")

// contextTurnPairs is how many prior question/answer pairs are sent to
// the AI as conversation context.
const contextTurnPairs = 3

// AnswerGenerator produces an answer string for a student question.
// It never fails; provider errors come back as displayable text.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, imageBase64 string, history []nlp.Turn) string
}

// ChatService implements the student/tutor conversation workflow.
type ChatService struct {
	repoManager *repository.RepositoryManager
	generator   AnswerGenerator
	logger      *logrus.Logger
}

func NewChatService(
	repoManager *repository.RepositoryManager,
	generator AnswerGenerator,
	logger *logrus.Logger,
) *ChatService {
	return &ChatService{
		repoManager: repoManager,
		generator:   generator,
		logger:      logger,
	}
}

// SubmitQuery finds or creates the student's open session, asks the AI
// with up to the last 3 question/answer pairs as context, and persists
// the query together with its AI answer in one transaction.
func (s *ChatService) SubmitQuery(ctx context.Context, studentID uint, req models.QueryRequest) (*models.QueryResponse, error) {
	session, err := s.findOrCreateSession(studentID)
	if err != nil {
		return nil, err
	}

	history, err := s.loadContextHistory(session.ID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load conversation context, continuing without it")
		history = nil
	}

	// The AI call takes seconds; keep it outside the transaction.
	answerText := s.generator.GenerateAnswer(ctx, req.Content, req.Image, history)

	query := &models.Query{
		SessionID: session.ID,
		Content:   req.Content,
		Timestamp: time.Now(),
		Status:    models.QueryStatusAnswered,
	}
	answer := &models.Answer{
		Content:   answerText,
		Timestamp: time.Now(),
		IsAI:      true,
	}

	err = s.repoManager.WithTx(func(tx *repository.RepositoryManager) error {
		if err := tx.Query.Create(query); err != nil {
			return err
		}
		answer.QueryID = query.ID
		return tx.Answer.Create(answer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"student_id": studentID,
		"session_id": session.ID,
		"query_id":   query.ID,
		"has_image":  req.Image != "",
	}).Info("Query answered")

	return &models.QueryResponse{
		QueryID:   query.ID,
		Content:   query.Content,
		Status:    query.Status,
		Timestamp: query.Timestamp,
		Answers: []models.AnswerResponse{{
			AnswerID:  answer.ID,
			Content:   answer.Content,
			TutorID:   nil,
			Timestamp: answer.Timestamp,
		}},
	}, nil
}

// Escalate marks one of the student's own queries as needing a human
// tutor. Queries belonging to other students come back as not found.
func (s *ChatService) Escalate(studentID, queryID uint) error {
	query, err := s.repoManager.Query.GetByIDForStudent(queryID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.repoManager.WithTx(func(tx *repository.RepositoryManager) error {
		if err := tx.Query.UpdateStatus(query.ID, models.QueryStatusEscalated); err != nil {
			return err
		}
		return tx.Escalation.Create(&models.Escalation{
			QueryID:     query.ID,
			EscalatedAt: time.Now(),
			Status:      models.EscalationStatusPending,
		})
	})
}

// PendingQueries lists escalated queries awaiting a tutor.
func (s *ChatService) PendingQueries() ([]models.QueryResponse, error) {
	queries, err := s.repoManager.Query.GetByStatus(models.QueryStatusEscalated)
	if err != nil {
		return nil, err
	}

	out := make([]models.QueryResponse, 0, len(queries))
	for _, q := range queries {
		out = append(out, models.QueryResponse{
			QueryID:   q.ID,
			Content:   q.Content,
			Status:    q.Status,
			Timestamp: q.Timestamp,
			Answers:   []models.AnswerResponse{},
		})
	}
	return out, nil
}

// TutorAnswer records a human answer, resolves the query and any
// pending escalation for it, all in one transaction.
func (s *ChatService) TutorAnswer(tutorID uint, req models.TutorAnswerRequest) error {
	if _, err := s.repoManager.Query.GetByID(req.QueryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.repoManager.WithTx(func(tx *repository.RepositoryManager) error {
		answer := &models.Answer{
			QueryID:   req.QueryID,
			TutorID:   &tutorID,
			Content:   req.Content,
			Timestamp: time.Now(),
			IsAI:      false,
		}
		if err := tx.Answer.Create(answer); err != nil {
			return err
		}
		if err := tx.Query.UpdateStatus(req.QueryID, models.QueryStatusResolved); err != nil {
			return err
		}
		return tx.Escalation.ResolveLatestPending(req.QueryID, tutorID)
	})
}

// SubmitFeedback records a rating on an answer to one of the student's
// own queries.
func (s *ChatService) SubmitFeedback(studentID uint, req models.FeedbackRequest) error {
	answer, err := s.repoManager.Answer.GetByIDForStudent(req.AnswerID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.repoManager.Feedback.Create(&models.Feedback{
		AnswerID:  answer.ID,
		StudentID: studentID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
}

// History returns the student's sessions newest-first with nested
// queries and every answer ever attached.
func (s *ChatService) History(studentID uint) ([]models.SessionHistory, error) {
	sessions, err := s.repoManager.Session.GetHistoryByStudent(studentID)
	if err != nil {
		return nil, err
	}

	out := make([]models.SessionHistory, 0, len(sessions))
	for _, session := range sessions {
		queries := make([]models.QueryResponse, 0, len(session.Queries))
		for _, q := range session.Queries {
			answers := make([]models.AnswerResponse, 0, len(q.Answers))
			for _, a := range q.Answers {
				answers = append(answers, models.AnswerResponse{
					AnswerID:  a.ID,
					Content:   a.Content,
					TutorID:   a.TutorID,
					Timestamp: a.Timestamp,
				})
			}
			queries = append(queries, models.QueryResponse{
				QueryID:   q.ID,
				Content:   q.Content,
				Status:    q.Status,
				Timestamp: q.Timestamp,
				Answers:   answers,
			})
		}
		out = append(out, models.SessionHistory{
			SessionID: session.ID,
			StartedAt: session.StartedAt,
			Queries:   queries,
		})
	}
	return out, nil
}

// EndSession closes the student's open session, if any. The next query
// will lazily open a fresh one.
func (s *ChatService) EndSession(studentID uint) error {
	session, err := s.repoManager.Session.GetOpenByStudent(studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.repoManager.Session.End(session.ID, time.Now())
}

func (s *ChatService) findOrCreateSession(studentID uint) (*models.Session, error) {
	session, err := s.repoManager.Session.GetOpenByStudent(studentID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	session = &models.Session{
		StudentID: studentID,
		StartedAt: time.Now(),
	}
	if err := s.repoManager.Session.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// loadContextHistory builds the prior turns for the AI call: the last
// contextTurnPairs question/answer pairs, oldest first.
func (s *ChatService) loadContextHistory(sessionID uint) ([]nlp.Turn, error) {
	recent, err := s.repoManager.Query.GetRecentBySession(sessionID, contextTurnPairs)
	if err != nil {
		return nil, err
	}

	var history []nlp.Turn
	for i := len(recent) - 1; i >= 0; i-- {
		q := recent[i]
		history = append(history, nlp.Turn{Role: nlp.RoleUser, Content: q.Content})
		if len(q.Answers) > 0 {
			history = append(history, nlp.Turn{Role: nlp.RoleAssistant, Content: q.Answers[0].Content})
		}
	}
	return history, nil
}
