package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

const reportCachePrefix = "gradebook:report:"

// ReportCacheService caches course grade reports in Redis. Cache failures
// degrade to recomputation, never to errors.
type ReportCacheService struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCacheService constructs the cache service.
func NewReportCacheService(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportCacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCacheService{client: client, ttl: ttl, logger: logger}
}

// GetReport returns a cached report when present and decodable.
func (s *ReportCacheService) GetReport(ctx context.Context, courseID string) (*models.CourseGradeReport, bool) {
	if s == nil || s.client == nil {
		return nil, false
	}
	raw, err := s.client.Get(ctx, reportCachePrefix+courseID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("report cache read failed", zap.String("course_id", courseID), zap.Error(err))
		}
		return nil, false
	}
	var report models.CourseGradeReport
	if err := json.Unmarshal(raw, &report); err != nil {
		s.logger.Warn("report cache decode failed", zap.String("course_id", courseID), zap.Error(err))
		return nil, false
	}
	return &report, true
}

// SetReport stores a report with the configured TTL.
func (s *ReportCacheService) SetReport(ctx context.Context, report *models.CourseGradeReport) {
	if s == nil || s.client == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("report cache encode failed", zap.String("course_id", report.CourseID), zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, reportCachePrefix+report.CourseID, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("report cache write failed", zap.String("course_id", report.CourseID), zap.Error(err))
	}
}

// Invalidate drops the cached report for a course.
func (s *ReportCacheService) Invalidate(ctx context.Context, courseID string) {
	if s == nil || s.client == nil {
		return
	}
	if err := s.client.Del(ctx, reportCachePrefix+courseID).Err(); err != nil {
		s.logger.Warn("report cache invalidate failed", zap.String("course_id", courseID), zap.Error(err))
	}
}
