package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/doubtdesk/backend/internal/models"
	"gorm.io/gorm"
)

// In-memory repository implementations. They back the service and
// handler tests so the workflow logic can run without PostgreSQL, and
// mirror the gorm implementations' behavior (including
// gorm.ErrRecordNotFound on missing rows).

type memoryStore struct {
	mu          sync.Mutex
	students    []models.Student
	tutors      []models.Tutor
	admins      []models.Admin
	sessions    []models.Session
	queries     []models.Query
	answers     []models.Answer
	escalations []models.Escalation
	feedback    []models.Feedback
	nextID      uint
}

func (s *memoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// NewMemoryRepositoryManager builds a RepositoryManager over shared
// in-memory tables. WithTx degrades to running the function directly.
func NewMemoryRepositoryManager() *RepositoryManager {
	store := &memoryStore{}
	return &RepositoryManager{
		Student:    &memoryStudentRepo{store},
		Tutor:      &memoryTutorRepo{store},
		Admin:      &memoryAdminRepo{store},
		Session:    &memorySessionRepo{store},
		Query:      &memoryQueryRepo{store},
		Answer:     &memoryAnswerRepo{store},
		Escalation: &memoryEscalationRepo{store},
		Feedback:   &memoryFeedbackRepo{store},
	}
}

type memoryStudentRepo struct{ s *memoryStore }

func (r *memoryStudentRepo) Create(student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	student.ID = r.s.id()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now()
	}
	r.s.students = append(r.s.students, *student)
	return nil
}

func (r *memoryStudentRepo) GetByID(id uint) (*models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.students {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryStudentRepo) GetByEmail(email string) (*models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.students {
		if s.Email == email {
			out := s
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryStudentRepo) GetAll() ([]models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Student, len(r.s.students))
	copy(out, r.s.students)
	return out, nil
}

func (r *memoryStudentRepo) Update(student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, s := range r.s.students {
		if s.ID == student.ID {
			r.s.students[i] = *student
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryStudentRepo) Count() (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.students)), nil
}

func (r *memoryStudentRepo) TopActive(limit int) ([]models.StudentActivity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[uint]int)
	for _, q := range r.s.queries {
		for _, se := range r.s.sessions {
			if se.ID == q.SessionID {
				counts[se.StudentID]++
			}
		}
	}

	var activity []models.StudentActivity
	for _, s := range r.s.students {
		if counts[s.ID] > 0 {
			activity = append(activity, models.StudentActivity{Name: s.Name, Queries: counts[s.ID]})
		}
	}
	sort.Slice(activity, func(i, j int) bool { return activity[i].Queries > activity[j].Queries })
	if len(activity) > limit {
		activity = activity[:limit]
	}
	return activity, nil
}

type memoryTutorRepo struct{ s *memoryStore }

func (r *memoryTutorRepo) Create(tutor *models.Tutor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tutor.ID = r.s.id()
	if tutor.CreatedAt.IsZero() {
		tutor.CreatedAt = time.Now()
	}
	r.s.tutors = append(r.s.tutors, *tutor)
	return nil
}

func (r *memoryTutorRepo) GetByID(id uint) (*models.Tutor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tutors {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryTutorRepo) GetByEmail(email string) (*models.Tutor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tutors {
		if t.Email == email {
			out := t
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryTutorRepo) GetAll() ([]models.Tutor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Tutor, len(r.s.tutors))
	copy(out, r.s.tutors)
	return out, nil
}

func (r *memoryTutorRepo) Count() (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.tutors)), nil
}

func (r *memoryTutorRepo) Performance() ([]models.TutorPerformance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	performance := make([]models.TutorPerformance, 0, len(r.s.tutors))
	for _, t := range r.s.tutors {
		count := 0
		for _, a := range r.s.answers {
			if a.TutorID != nil && *a.TutorID == t.ID {
				count++
			}
		}
		performance = append(performance, models.TutorPerformance{TutorName: t.Name, AnswersGiven: count})
	}
	sort.Slice(performance, func(i, j int) bool { return performance[i].AnswersGiven > performance[j].AnswersGiven })
	return performance, nil
}

type memoryAdminRepo struct{ s *memoryStore }

func (r *memoryAdminRepo) Create(admin *models.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	admin.ID = r.s.id()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now()
	}
	r.s.admins = append(r.s.admins, *admin)
	return nil
}

func (r *memoryAdminRepo) GetByEmail(email string) (*models.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.admins {
		if a.Email == email {
			out := a
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memorySessionRepo struct{ s *memoryStore }

func (r *memorySessionRepo) Create(session *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session.ID = r.s.id()
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	r.s.sessions = append(r.s.sessions, *session)
	return nil
}

func (r *memorySessionRepo) GetOpenByStudent(studentID uint) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var open *models.Session
	for i := range r.s.sessions {
		se := r.s.sessions[i]
		if se.StudentID == studentID && se.EndedAt == nil {
			if open == nil || se.StartedAt.After(open.StartedAt) {
				copied := se
				open = &copied
			}
		}
	}
	if open == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return open, nil
}

func (r *memorySessionRepo) End(sessionID uint, endedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.sessions {
		if r.s.sessions[i].ID == sessionID {
			r.s.sessions[i].EndedAt = &endedAt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memorySessionRepo) GetHistoryByStudent(studentID uint) ([]models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var sessions []models.Session
	for _, se := range r.s.sessions {
		if se.StudentID != studentID {
			continue
		}
		copied := se
		copied.Queries = r.queriesForSession(se.ID)
		sessions = append(sessions, copied)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	return sessions, nil
}

func (r *memorySessionRepo) queriesForSession(sessionID uint) []models.Query {
	var queries []models.Query
	for _, q := range r.s.queries {
		if q.SessionID != sessionID {
			continue
		}
		copied := q
		copied.Answers = answersForQuery(r.s, q.ID)
		queries = append(queries, copied)
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].Timestamp.Before(queries[j].Timestamp) })
	return queries
}

func answersForQuery(s *memoryStore, queryID uint) []models.Answer {
	var answers []models.Answer
	for _, a := range s.answers {
		if a.QueryID == queryID {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].Timestamp.Before(answers[j].Timestamp) })
	return answers
}

type memoryQueryRepo struct{ s *memoryStore }

func (r *memoryQueryRepo) Create(query *models.Query) error {
	if err := query.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	query.ID = r.s.id()
	if query.Timestamp.IsZero() {
		query.Timestamp = time.Now()
	}
	r.s.queries = append(r.s.queries, *query)
	return nil
}

func (r *memoryQueryRepo) GetByID(id uint) (*models.Query, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.queries {
		if q.ID == id {
			copied := q
			copied.Answers = answersForQuery(r.s, q.ID)
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryQueryRepo) GetByIDForStudent(id, studentID uint) (*models.Query, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.queries {
		if q.ID != id {
			continue
		}
		for _, se := range r.s.sessions {
			if se.ID == q.SessionID && se.StudentID == studentID {
				copied := q
				return &copied, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryQueryRepo) GetRecentBySession(sessionID uint, limit int) ([]models.Query, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var queries []models.Query
	for _, q := range r.s.queries {
		if q.SessionID != sessionID {
			continue
		}
		copied := q
		copied.Answers = answersForQuery(r.s, q.ID)
		queries = append(queries, copied)
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].Timestamp.After(queries[j].Timestamp) })
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

func (r *memoryQueryRepo) GetByStatus(status string) ([]models.Query, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var queries []models.Query
	for _, q := range r.s.queries {
		if q.Status == status {
			queries = append(queries, q)
		}
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].Timestamp.Before(queries[j].Timestamp) })
	return queries, nil
}

func (r *memoryQueryRepo) UpdateStatus(id uint, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.queries {
		if r.s.queries[i].ID == id {
			r.s.queries[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryQueryRepo) Count() (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.queries)), nil
}

func (r *memoryQueryRepo) CountByStatus(status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, q := range r.s.queries {
		if q.Status == status {
			count++
		}
	}
	return count, nil
}

type memoryAnswerRepo struct{ s *memoryStore }

func (r *memoryAnswerRepo) Create(answer *models.Answer) error {
	if err := answer.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	answer.ID = r.s.id()
	if answer.Timestamp.IsZero() {
		answer.Timestamp = time.Now()
	}
	r.s.answers = append(r.s.answers, *answer)
	return nil
}

func (r *memoryAnswerRepo) GetByID(id uint) (*models.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.answers {
		if a.ID == id {
			copied := a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryAnswerRepo) GetByIDForStudent(id, studentID uint) (*models.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.answers {
		if a.ID != id {
			continue
		}
		for _, q := range r.s.queries {
			if q.ID != a.QueryID {
				continue
			}
			for _, se := range r.s.sessions {
				if se.ID == q.SessionID && se.StudentID == studentID {
					copied := a
					return &copied, nil
				}
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryAnswerRepo) GetByQueryID(queryID uint) ([]models.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return answersForQuery(r.s, queryID), nil
}

type memoryEscalationRepo struct{ s *memoryStore }

func (r *memoryEscalationRepo) Create(escalation *models.Escalation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	escalation.ID = r.s.id()
	if escalation.EscalatedAt.IsZero() {
		escalation.EscalatedAt = time.Now()
	}
	if escalation.Status == "" {
		escalation.Status = models.EscalationStatusPending
	}
	r.s.escalations = append(r.s.escalations, *escalation)
	return nil
}

func (r *memoryEscalationRepo) ResolveLatestPending(queryID, tutorID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	latest := -1
	for i := range r.s.escalations {
		e := r.s.escalations[i]
		if e.QueryID != queryID || e.Status != models.EscalationStatusPending {
			continue
		}
		if latest < 0 || e.EscalatedAt.After(r.s.escalations[latest].EscalatedAt) {
			latest = i
		}
	}
	if latest >= 0 {
		r.s.escalations[latest].Status = models.EscalationStatusResolved
		r.s.escalations[latest].TutorID = &tutorID
	}
	return nil
}

func (r *memoryEscalationRepo) GetRecent(limit int) ([]models.Escalation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Escalation, len(r.s.escalations))
	copy(out, r.s.escalations)
	sort.Slice(out, func(i, j int) bool { return out[i].EscalatedAt.After(out[j].EscalatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryFeedbackRepo struct{ s *memoryStore }

func (r *memoryFeedbackRepo) Create(feedback *models.Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	feedback.ID = r.s.id()
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}
	r.s.feedback = append(r.s.feedback, *feedback)
	return nil
}

func (r *memoryFeedbackRepo) GetByAnswerID(answerID uint) ([]models.Feedback, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Feedback
	for _, f := range r.s.feedback {
		if f.AnswerID == answerID {
			out = append(out, f)
		}
	}
	return out, nil
}
