package models

// GORM models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Query lifecycle statuses
const (
	QueryStatusPending   = "pending"
	QueryStatusAnswered  = "answered"
	QueryStatusEscalated = "escalated"
	QueryStatusResolved  = "resolved"
)

// Escalation statuses
const (
	EscalationStatusPending  = "pending"
	EscalationStatusResolved = "resolved"
)

// Account roles carried in the token claims
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

// Student represents a registered student account
type Student struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:100;unique;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Tutor represents a human tutor account
type Tutor struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:100;unique;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"`
	Subject   string    `json:"subject" gorm:"size:100;not null;default:'General'"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin represents an administrator account
type Admin struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:100;unique;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a bounded run of a student's queries. At most one open
// session (ended_at IS NULL) per student, enforced in the chat service.
type Session struct {
	ID        uint       `json:"session_id" gorm:"primaryKey"`
	StudentID uint       `json:"student_id" gorm:"not null;index"`
	StartedAt time.Time  `json:"started_at" gorm:"default:NOW()"`
	EndedAt   *time.Time `json:"ended_at"`

	// Associations
	Student Student `json:"-" gorm:"foreignKey:StudentID"`
	Queries []Query `json:"queries" gorm:"foreignKey:SessionID"`
}

// Query is a single student question with a lifecycle status
type Query struct {
	ID        uint      `json:"query_id" gorm:"primaryKey"`
	SessionID uint      `json:"session_id" gorm:"not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"default:NOW()"`
	Status    string    `json:"status" gorm:"size:20;default:'pending';check:status IN ('pending','answered','escalated','resolved')"`

	// Associations
	Session Session  `json:"-" gorm:"foreignKey:SessionID"`
	Answers []Answer `json:"answers" gorm:"foreignKey:QueryID"`
}

// Answer is one reply to a query. TutorID is nil for AI-authored answers.
type Answer struct {
	ID        uint      `json:"answer_id" gorm:"primaryKey"`
	QueryID   uint      `json:"query_id" gorm:"not null;index"`
	TutorID   *uint     `json:"tutor_id"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"default:NOW()"`
	IsAI      bool      `json:"is_ai" gorm:"column:is_ai;default:false"`

	// Associations
	Query Query  `json:"-" gorm:"foreignKey:QueryID"`
	Tutor *Tutor `json:"-" gorm:"foreignKey:TutorID"`
}

// Escalation marks a query as needing human-tutor attention
type Escalation struct {
	ID          uint      `json:"escalation_id" gorm:"primaryKey"`
	QueryID     uint      `json:"query_id" gorm:"not null;index"`
	TutorID     *uint     `json:"tutor_id"`
	EscalatedAt time.Time `json:"escalated_at" gorm:"default:NOW()"`
	Status      string    `json:"status" gorm:"size:20;default:'pending';check:status IN ('pending','resolved')"`

	// Associations
	Query Query `json:"-" gorm:"foreignKey:QueryID"`
}

// Feedback is a student rating on an answer. Duplicates are allowed.
type Feedback struct {
	ID        uint      `json:"feedback_id" gorm:"primaryKey"`
	AnswerID  uint      `json:"answer_id" gorm:"not null;index"`
	StudentID uint      `json:"student_id" gorm:"not null"`
	Rating    int       `json:"rating" gorm:"not null"`
	Comment   *string   `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TutorPerformance is an aggregate row for admin reports
type TutorPerformance struct {
	TutorName    string `json:"tutor_name"`
	AnswersGiven int    `json:"answers_given"`
}

// StudentActivity is an aggregate row for admin reports
type StudentActivity struct {
	Name    string `json:"name"`
	Queries int    `json:"queries"`
}

// Database interfaces for repository pattern
type StudentRepository interface {
	Create(student *Student) error
	GetByID(id uint) (*Student, error)
	GetByEmail(email string) (*Student, error)
	GetAll() ([]Student, error)
	Update(student *Student) error
	Count() (int64, error)
	TopActive(limit int) ([]StudentActivity, error)
}

type TutorRepository interface {
	Create(tutor *Tutor) error
	GetByID(id uint) (*Tutor, error)
	GetByEmail(email string) (*Tutor, error)
	GetAll() ([]Tutor, error)
	Count() (int64, error)
	Performance() ([]TutorPerformance, error)
}

type AdminRepository interface {
	Create(admin *Admin) error
	GetByEmail(email string) (*Admin, error)
}

type SessionRepository interface {
	Create(session *Session) error
	GetOpenByStudent(studentID uint) (*Session, error)
	End(sessionID uint, endedAt time.Time) error
	GetHistoryByStudent(studentID uint) ([]Session, error)
}

type QueryRepository interface {
	Create(query *Query) error
	GetByID(id uint) (*Query, error)
	GetByIDForStudent(id, studentID uint) (*Query, error)
	GetRecentBySession(sessionID uint, limit int) ([]Query, error)
	GetByStatus(status string) ([]Query, error)
	UpdateStatus(id uint, status string) error
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
}

type AnswerRepository interface {
	Create(answer *Answer) error
	GetByID(id uint) (*Answer, error)
	GetByIDForStudent(id, studentID uint) (*Answer, error)
	GetByQueryID(queryID uint) ([]Answer, error)
}

type EscalationRepository interface {
	Create(escalation *Escalation) error
	ResolveLatestPending(queryID, tutorID uint) error
	GetRecent(limit int) ([]Escalation, error)
}

type FeedbackRepository interface {
	Create(feedback *Feedback) error
	GetByAnswerID(answerID uint) ([]Feedback, error)
}

// TableName methods for custom table names
func (Student) TableName() string    { return "students" }
func (Tutor) TableName() string      { return "tutors" }
func (Admin) TableName() string      { return "admins" }
func (Session) TableName() string    { return "sessions" }
func (Query) TableName() string      { return "queries" }
func (Answer) TableName() string     { return "answers" }
func (Escalation) TableName() string { return "escalations" }
func (Feedback) TableName() string   { return "feedback" }

// Model validation methods
func (q *Query) Validate() error {
	if q.Content == "" {
		return fmt.Errorf("query content is required")
	}
	validStatuses := map[string]bool{
		QueryStatusPending:   true,
		QueryStatusAnswered:  true,
		QueryStatusEscalated: true,
		QueryStatusResolved:  true,
	}
	if q.Status != "" && !validStatuses[q.Status] {
		return fmt.Errorf("invalid query status: %s", q.Status)
	}
	return nil
}

func (a *Answer) Validate() error {
	if a.QueryID == 0 {
		return fmt.Errorf("answer query ID is required")
	}
	if a.Content == "" {
		return fmt.Errorf("answer content is required")
	}
	return nil
}

func (f *Feedback) Validate() error {
	if f.AnswerID == 0 {
		return fmt.Errorf("feedback answer ID is required")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

// GORM hooks
func (q *Query) BeforeCreate(tx *gorm.DB) error {
	return q.Validate()
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	return a.Validate()
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	return f.Validate()
}
