package services

import (
	"context"
	"time"

	"github.com/doubtdesk/backend/internal/database"
	"github.com/doubtdesk/backend/internal/models"
	"github.com/doubtdesk/backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// adminCacheTTL bounds staleness of the cached admin views.
const adminCacheTTL = 60 * time.Second

// AdminService serves the read-only oversight surfaces.
type AdminService struct {
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	logger      *logrus.Logger
}

func NewAdminService(
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	logger *logrus.Logger,
) *AdminService {
	return &AdminService{
		repoManager: repoManager,
		cache:       cache,
		logger:      logger,
	}
}

// Stats returns the aggregate platform counts, cached for a minute.
func (s *AdminService) Stats(ctx context.Context) (*models.StatsResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedAdminStats(ctx); err == nil {
			return cached, nil
		}
	}

	stats := &models.StatsResponse{}

	var err error
	if stats.TotalStudents, err = s.repoManager.Student.Count(); err != nil {
		return nil, err
	}
	if stats.TotalTutors, err = s.repoManager.Tutor.Count(); err != nil {
		return nil, err
	}
	if stats.TotalQueries, err = s.repoManager.Query.Count(); err != nil {
		return nil, err
	}
	if stats.QueriesResolved, err = s.repoManager.Query.CountByStatus(models.QueryStatusResolved); err != nil {
		return nil, err
	}
	if stats.QueriesEscalated, err = s.repoManager.Query.CountByStatus(models.QueryStatusEscalated); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheAdminStats(ctx, stats, adminCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache admin stats")
		}
	}

	return stats, nil
}

// Reports returns the recent escalations, per-tutor answer counts and
// the five most active students, cached for a minute.
func (s *AdminService) Reports(ctx context.Context) (*models.ReportsResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedAdminReports(ctx); err == nil {
			return cached, nil
		}
	}

	escalations, err := s.repoManager.Escalation.GetRecent(10)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.EscalationSummary, 0, len(escalations))
	for _, e := range escalations {
		summaries = append(summaries, models.EscalationSummary{
			QueryID:     e.QueryID,
			Status:      e.Status,
			EscalatedAt: e.EscalatedAt,
		})
	}

	performance, err := s.repoManager.Tutor.Performance()
	if err != nil {
		return nil, err
	}

	activity, err := s.repoManager.Student.TopActive(5)
	if err != nil {
		return nil, err
	}

	reports := &models.ReportsResponse{
		RecentEscalations: summaries,
		TutorPerformance:  performance,
		StudentActivity:   activity,
	}

	if s.cache != nil {
		if err := s.cache.CacheAdminReports(ctx, reports, adminCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache admin reports")
		}
	}

	return reports, nil
}

// Users returns the flat student + tutor listing.
func (s *AdminService) Users() ([]models.UserSummary, error) {
	students, err := s.repoManager.Student.GetAll()
	if err != nil {
		return nil, err
	}
	tutors, err := s.repoManager.Tutor.GetAll()
	if err != nil {
		return nil, err
	}

	users := make([]models.UserSummary, 0, len(students)+len(tutors))
	for _, s := range students {
		users = append(users, models.UserSummary{
			ID:     s.ID,
			Name:   s.Name,
			Email:  s.Email,
			Role:   "Student",
			Joined: s.CreatedAt,
		})
	}
	for _, t := range tutors {
		users = append(users, models.UserSummary{
			ID:     t.ID,
			Name:   t.Name,
			Email:  t.Email,
			Role:   "Tutor",
			Joined: t.CreatedAt,
		})
	}
	return users, nil
}
