package repository

import (
	"time"

	"github.com/doubtdesk/backend/internal/models"
	"gorm.io/gorm"
)

// StudentRepositoryImpl implements StudentRepository
type StudentRepositoryImpl struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) models.StudentRepository {
	return &StudentRepositoryImpl{db: db}
}

func (r *StudentRepositoryImpl) Create(student *models.Student) error {
	return r.db.Create(student).Error
}

func (r *StudentRepositoryImpl) GetByID(id uint) (*models.Student, error) {
	var student models.Student
	err := r.db.First(&student, id).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepositoryImpl) GetByEmail(email string) (*models.Student, error) {
	var student models.Student
	err := r.db.Where("email = ?", email).First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepositoryImpl) GetAll() ([]models.Student, error) {
	var students []models.Student
	err := r.db.Order("created_at").Find(&students).Error
	return students, err
}

func (r *StudentRepositoryImpl) Update(student *models.Student) error {
	return r.db.Save(student).Error
}

func (r *StudentRepositoryImpl) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Student{}).Count(&count).Error
	return count, err
}

func (r *StudentRepositoryImpl) TopActive(limit int) ([]models.StudentActivity, error) {
	var activity []models.StudentActivity
	err := r.db.Raw(`
		SELECT s.name AS name, COUNT(q.id) AS queries
		FROM students s
		JOIN sessions se ON se.student_id = s.id
		JOIN queries q ON q.session_id = se.id
		GROUP BY s.id, s.name
		ORDER BY queries DESC
		LIMIT ?
	`, limit).Scan(&activity).Error
	return activity, err
}

// TutorRepositoryImpl implements TutorRepository
type TutorRepositoryImpl struct {
	db *gorm.DB
}

func NewTutorRepository(db *gorm.DB) models.TutorRepository {
	return &TutorRepositoryImpl{db: db}
}

func (r *TutorRepositoryImpl) Create(tutor *models.Tutor) error {
	return r.db.Create(tutor).Error
}

func (r *TutorRepositoryImpl) GetByID(id uint) (*models.Tutor, error) {
	var tutor models.Tutor
	err := r.db.First(&tutor, id).Error
	if err != nil {
		return nil, err
	}
	return &tutor, nil
}

func (r *TutorRepositoryImpl) GetByEmail(email string) (*models.Tutor, error) {
	var tutor models.Tutor
	err := r.db.Where("email = ?", email).First(&tutor).Error
	if err != nil {
		return nil, err
	}
	return &tutor, nil
}

func (r *TutorRepositoryImpl) GetAll() ([]models.Tutor, error) {
	var tutors []models.Tutor
	err := r.db.Order("created_at").Find(&tutors).Error
	return tutors, err
}

func (r *TutorRepositoryImpl) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Tutor{}).Count(&count).Error
	return count, err
}

func (r *TutorRepositoryImpl) Performance() ([]models.TutorPerformance, error) {
	var performance []models.TutorPerformance
	err := r.db.Raw(`
		SELECT t.name AS tutor_name, COUNT(a.id) AS answers_given
		FROM tutors t
		LEFT JOIN answers a ON a.tutor_id = t.id
		GROUP BY t.id, t.name
		ORDER BY answers_given DESC
	`).Scan(&performance).Error
	return performance, err
}

// AdminRepositoryImpl implements AdminRepository
type AdminRepositoryImpl struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) models.AdminRepository {
	return &AdminRepositoryImpl{db: db}
}

func (r *AdminRepositoryImpl) Create(admin *models.Admin) error {
	return r.db.Create(admin).Error
}

func (r *AdminRepositoryImpl) GetByEmail(email string) (*models.Admin, error) {
	var admin models.Admin
	err := r.db.Where("email = ?", email).First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// SessionRepositoryImpl implements SessionRepository
type SessionRepositoryImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) models.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) Create(session *models.Session) error {
	return r.db.Create(session).Error
}

func (r *SessionRepositoryImpl) GetOpenByStudent(studentID uint) (*models.Session, error) {
	var session models.Session
	err := r.db.Where("student_id = ? AND ended_at IS NULL", studentID).
		Order("started_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) End(sessionID uint, endedAt time.Time) error {
	return r.db.Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("ended_at", endedAt).Error
}

func (r *SessionRepositoryImpl) GetHistoryByStudent(studentID uint) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.Where("student_id = ?", studentID).
		Preload("Queries", func(db *gorm.DB) *gorm.DB {
			return db.Order("queries.timestamp")
		}).
		Preload("Queries.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.timestamp")
		}).
		Order("started_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// QueryRepositoryImpl implements QueryRepository
type QueryRepositoryImpl struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) models.QueryRepository {
	return &QueryRepositoryImpl{db: db}
}

func (r *QueryRepositoryImpl) Create(query *models.Query) error {
	return r.db.Create(query).Error
}

func (r *QueryRepositoryImpl) GetByID(id uint) (*models.Query, error) {
	var query models.Query
	err := r.db.Preload("Answers").First(&query, id).Error
	if err != nil {
		return nil, err
	}
	return &query, nil
}

func (r *QueryRepositoryImpl) GetByIDForStudent(id, studentID uint) (*models.Query, error) {
	var query models.Query
	err := r.db.Joins("JOIN sessions ON sessions.id = queries.session_id").
		Where("queries.id = ? AND sessions.student_id = ?", id, studentID).
		First(&query).Error
	if err != nil {
		return nil, err
	}
	return &query, nil
}

func (r *QueryRepositoryImpl) GetRecentBySession(sessionID uint, limit int) ([]models.Query, error) {
	var queries []models.Query
	err := r.db.Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Limit(limit).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.timestamp")
		}).
		Find(&queries).Error
	return queries, err
}

func (r *QueryRepositoryImpl) GetByStatus(status string) ([]models.Query, error) {
	var queries []models.Query
	err := r.db.Where("status = ?", status).
		Order("timestamp").
		Find(&queries).Error
	return queries, err
}

func (r *QueryRepositoryImpl) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Query{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *QueryRepositoryImpl) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Query{}).Count(&count).Error
	return count, err
}

func (r *QueryRepositoryImpl) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Query{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// AnswerRepositoryImpl implements AnswerRepository
type AnswerRepositoryImpl struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) models.AnswerRepository {
	return &AnswerRepositoryImpl{db: db}
}

func (r *AnswerRepositoryImpl) Create(answer *models.Answer) error {
	return r.db.Create(answer).Error
}

func (r *AnswerRepositoryImpl) GetByID(id uint) (*models.Answer, error) {
	var answer models.Answer
	err := r.db.First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerRepositoryImpl) GetByIDForStudent(id, studentID uint) (*models.Answer, error) {
	var answer models.Answer
	err := r.db.Joins("JOIN queries ON queries.id = answers.query_id").
		Joins("JOIN sessions ON sessions.id = queries.session_id").
		Where("answers.id = ? AND sessions.student_id = ?", id, studentID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerRepositoryImpl) GetByQueryID(queryID uint) ([]models.Answer, error) {
	var answers []models.Answer
	err := r.db.Where("query_id = ?", queryID).
		Order("timestamp").
		Find(&answers).Error
	return answers, err
}

// EscalationRepositoryImpl implements EscalationRepository
type EscalationRepositoryImpl struct {
	db *gorm.DB
}

func NewEscalationRepository(db *gorm.DB) models.EscalationRepository {
	return &EscalationRepositoryImpl{db: db}
}

func (r *EscalationRepositoryImpl) Create(escalation *models.Escalation) error {
	return r.db.Create(escalation).Error
}

func (r *EscalationRepositoryImpl) ResolveLatestPending(queryID, tutorID uint) error {
	return r.db.Exec(`
		UPDATE escalations
		SET status = 'resolved', tutor_id = ?
		WHERE id = (
			SELECT id FROM escalations
			WHERE query_id = ? AND status = 'pending'
			ORDER BY escalated_at DESC
			LIMIT 1
		)
	`, tutorID, queryID).Error
}

func (r *EscalationRepositoryImpl) GetRecent(limit int) ([]models.Escalation, error) {
	var escalations []models.Escalation
	err := r.db.Order("escalated_at DESC").
		Limit(limit).
		Find(&escalations).Error
	return escalations, err
}

// FeedbackRepositoryImpl implements FeedbackRepository
type FeedbackRepositoryImpl struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) models.FeedbackRepository {
	return &FeedbackRepositoryImpl{db: db}
}

func (r *FeedbackRepositoryImpl) Create(feedback *models.Feedback) error {
	return r.db.Create(feedback).Error
}

func (r *FeedbackRepositoryImpl) GetByAnswerID(answerID uint) ([]models.Feedback, error) {
	var feedback []models.Feedback
	err := r.db.Where("answer_id = ?", answerID).
		Order("created_at DESC").
		Find(&feedback).Error
	return feedback, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	db         *gorm.DB
	Student    models.StudentRepository
	Tutor      models.TutorRepository
	Admin      models.AdminRepository
	Session    models.SessionRepository
	Query      models.QueryRepository
	Answer     models.AnswerRepository
	Escalation models.EscalationRepository
	Feedback   models.FeedbackRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		db:         db,
		Student:    NewStudentRepository(db),
		Tutor:      NewTutorRepository(db),
		Admin:      NewAdminRepository(db),
		Session:    NewSessionRepository(db),
		Query:      NewQueryRepository(db),
		Answer:     NewAnswerRepository(db),
		Escalation: NewEscalationRepository(db),
		Feedback:   NewFeedbackRepository(db),
	}
}

// WithTx runs fn against a manager whose repositories share one database
// transaction. Multi-row writes in the chat flow go through here.
func (m *RepositoryManager) WithTx(fn func(tx *RepositoryManager) error) error {
	if m.db == nil {
		return fn(m)
	}
	return m.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositoryManager(tx))
	})
}
