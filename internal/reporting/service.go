package reporting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const dashboardCacheKey = "report:dashboard"

// Queries abstracts the aggregate queries for the service.
type Queries interface {
	SalesSince(ctx context.Context, since time.Time) (decimal.Decimal, int64, error)
	StockValuation(ctx context.Context) (decimal.Decimal, error)
	LowStockCount(ctx context.Context) (int64, error)
	OutstandingCredit(ctx context.Context) (decimal.Decimal, error)
	SalesByDay(ctx context.Context, from, to time.Time) ([]SalesByDay, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
}

// Service assembles reports, caching the dashboard in Redis since it backs
// every page load.
type Service struct {
	queries Queries
	rdb     *redis.Client
	ttl     time.Duration
}

// NewService builds Service. rdb may be nil, which disables caching.
func NewService(queries Queries, rdb *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{queries: queries, rdb: rdb, ttl: ttl}
}

// Dashboard returns the landing summary, fanning the four aggregates out
// concurrently on a cache miss.
func (s *Service) Dashboard(ctx context.Context) (DashboardSummary, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, dashboardCacheKey).Bytes(); err == nil {
			var cached DashboardSummary
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary := DashboardSummary{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, count, err := s.queries.SalesSince(gctx, midnight)
		summary.TodaySalesTotal, summary.TodaySalesCount = total, count
		return err
	})
	g.Go(func() error {
		total, err := s.queries.StockValuation(gctx)
		summary.StockValuation = total
		return err
	})
	g.Go(func() error {
		count, err := s.queries.LowStockCount(gctx)
		summary.LowStockCount = count
		return err
	})
	g.Go(func() error {
		total, err := s.queries.OutstandingCredit(gctx)
		summary.OutstandingCredit = total
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardSummary{}, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(summary); err == nil {
			s.rdb.Set(ctx, dashboardCacheKey, raw, s.ttl)
		}
	}
	return summary, nil
}

// SalesByDay buckets sales per day over the previous `days` days including
// today.
func (s *Service) SalesByDay(ctx context.Context, days int) ([]SalesByDay, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	return s.queries.SalesByDay(ctx, from, now)
}

// TopProducts ranks best sellers over the previous `days` days.
func (s *Service) TopProducts(ctx context.Context, days, limit int) ([]TopProduct, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	return s.queries.TopProducts(ctx, from, now, limit)
}

// InvalidateDashboard drops the cached summary, called after postings that
// change its inputs.
func (s *Service) InvalidateDashboard(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	s.rdb.Del(ctx, dashboardCacheKey)
}
