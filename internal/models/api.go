package models

import "time"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Subject  string `json:"subject"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

type QueryRequest struct {
	Content string `json:"content" binding:"required"`
	Image   string `json:"image"`
}

type AnswerResponse struct {
	AnswerID  uint      `json:"answer_id"`
	Content   string    `json:"content"`
	TutorID   *uint     `json:"tutor_id"`
	Timestamp time.Time `json:"timestamp"`
}

type QueryResponse struct {
	QueryID   uint             `json:"query_id"`
	Content   string           `json:"content"`
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Answers   []AnswerResponse `json:"answers"`
}

type SessionHistory struct {
	SessionID uint            `json:"session_id"`
	StartedAt time.Time       `json:"started_at"`
	Queries   []QueryResponse `json:"queries"`
}

type TutorAnswerRequest struct {
	QueryID uint   `json:"query_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type FeedbackRequest struct {
	AnswerID uint    `json:"answer_id" binding:"required"`
	Rating   int     `json:"rating" binding:"required,min=1,max=5"`
	Comment  *string `json:"comment"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type StatsResponse struct {
	TotalStudents    int64 `json:"total_students"`
	TotalTutors      int64 `json:"total_tutors"`
	TotalQueries     int64 `json:"total_queries"`
	QueriesResolved  int64 `json:"queries_resolved"`
	QueriesEscalated int64 `json:"queries_escalated"`
}

type EscalationSummary struct {
	QueryID     uint      `json:"query_id"`
	Status      string    `json:"status"`
	EscalatedAt time.Time `json:"escalated_at"`
}

type ReportsResponse struct {
	RecentEscalations []EscalationSummary `json:"recent_escalations"`
	TutorPerformance  []TutorPerformance  `json:"tutor_performance"`
	StudentActivity   []StudentActivity   `json:"student_activity"`
}

type UserSummary struct {
	ID     uint      `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	Joined time.Time `json:"joined"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
