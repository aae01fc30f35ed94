package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	"github.com/oksasatya/bulk-mailer/internal/metrics"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

const (
	maxHistoryLimit   = 100
	dashboardRecent   = 5
	defaultHistoryLen = 20
)

// HistorySearcher finds a user's delivery events by free text.
type HistorySearcher interface {
	Search(ctx context.Context, userID, q string, size int) ([]mailer.DeliveryEvent, error)
}

type AnalyticsService struct {
	Logs                repository.DeliveryLogRepository
	Templates           repository.TemplateRepository
	Recipients          repository.RecipientRepository
	Redis               *redis.Client
	Search              HistorySearcher
	CacheTTL            time.Duration
	HistoryDefaultLimit int
	Logger              *logrus.Logger
}

func NewAnalyticsService(
	logs repository.DeliveryLogRepository,
	templates repository.TemplateRepository,
	recipients repository.RecipientRepository,
	rdb *redis.Client,
	search HistorySearcher,
	cacheTTL time.Duration,
	historyDefaultLimit int,
	logger *logrus.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		Logs:                logs,
		Templates:           templates,
		Recipients:          recipients,
		Redis:               rdb,
		Search:              search,
		CacheTTL:            cacheTTL,
		HistoryDefaultLimit: historyDefaultLimit,
		Logger:              logger,
	}
}

func generationKey(userID string) string {
	return "analytics:gen:" + userID
}

func rangeBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func (s *AnalyticsService) cacheKey(ctx context.Context, userID string, r entity.DateRange) (string, error) {
	gen, err := helpers.RedisGeneration(ctx, s.Redis, generationKey(userID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("analytics:%s:%d:%s:%s", userID, gen, rangeBound(r.From), rangeBound(r.To)), nil
}

// Aggregate counts the user's log entries in r and derives the rates.
// Results are cached per range until the next Invalidate.
func (s *AnalyticsService) Aggregate(ctx context.Context, userID string, r entity.DateRange) (entity.Analytics, error) {
	var key string
	if s.Redis != nil && s.CacheTTL > 0 {
		k, err := s.cacheKey(ctx, userID, r)
		if err != nil {
			s.warn(err, userID, "analytics cache generation lookup failed")
			metrics.IncAnalyticsCache("error")
		} else {
			key = k
			var cached entity.Analytics
			found, err := helpers.RedisGetJSON(ctx, s.Redis, key, &cached)
			switch {
			case err != nil:
				s.warn(err, userID, "analytics cache read failed")
				metrics.IncAnalyticsCache("error")
			case found:
				metrics.IncAnalyticsCache("hit")
				return cached, nil
			default:
				metrics.IncAnalyticsCache("miss")
			}
		}
	}

	counts, err := s.Logs.CountByStatus(ctx, userID, r)
	if err != nil {
		return entity.Analytics{}, fmt.Errorf("count delivery logs: %w", err)
	}
	a := entity.ComputeAnalytics(counts)

	if key != "" {
		if err := helpers.RedisSetJSON(ctx, s.Redis, key, a, s.CacheTTL); err != nil {
			s.warn(err, userID, "analytics cache write failed")
		}
	}
	return a, nil
}

// Invalidate moves the user to a new cache generation. Old keys expire on their own.
func (s *AnalyticsService) Invalidate(ctx context.Context, userID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, generationKey(userID)).Err(); err != nil {
		s.warn(err, userID, "analytics cache invalidate failed")
	}
}

// History returns the newest entries first. limit <= 0 means the default; it is capped at 100.
func (s *AnalyticsService) History(ctx context.Context, userID string, limit int) ([]entity.DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = s.HistoryDefaultLimit
	}
	if limit <= 0 {
		limit = defaultHistoryLen
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.Logs.ListRecent(ctx, userID, limit)
}

func (s *AnalyticsService) SearchHistory(ctx context.Context, userID, q string, size int) ([]mailer.DeliveryEvent, error) {
	if s.Search == nil {
		return []mailer.DeliveryEvent{}, nil
	}
	return s.Search.Search(ctx, userID, q, size)
}

func (s *AnalyticsService) Dashboard(ctx context.Context, userID string) (*entity.Dashboard, error) {
	a, err := s.Aggregate(ctx, userID, entity.DateRange{})
	if err != nil {
		return nil, err
	}
	templatesCount, err := s.Templates.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count templates: %w", err)
	}
	recipientsCount, err := s.Recipients.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count recipients: %w", err)
	}
	recent, err := s.Logs.ListRecent(ctx, userID, dashboardRecent)
	if err != nil {
		return nil, fmt.Errorf("list recent logs: %w", err)
	}
	return &entity.Dashboard{
		EmailsSent:      a.Sent,
		TemplatesCount:  templatesCount,
		RecipientsCount: recipientsCount,
		SuccessRate:     a.SuccessRate,
		RecentEmails:    recent,
	}, nil
}

func (s *AnalyticsService) warn(err error, userID, msg string) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn(msg)
	}
}
