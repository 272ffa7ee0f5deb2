package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	salesTotal decimal.Decimal
	salesCount int64
	valuation  decimal.Decimal
	lowStock   int64
	credit     decimal.Decimal
	byDay      []SalesByDay
	top        []TopProduct
	calls      int
	byDayFrom  time.Time
	topLimit   int
}

func (q *fakeQueries) SalesSince(ctx context.Context, since time.Time) (decimal.Decimal, int64, error) {
	q.calls++
	return q.salesTotal, q.salesCount, nil
}

func (q *fakeQueries) StockValuation(ctx context.Context) (decimal.Decimal, error) {
	return q.valuation, nil
}

func (q *fakeQueries) LowStockCount(ctx context.Context) (int64, error) {
	return q.lowStock, nil
}

func (q *fakeQueries) OutstandingCredit(ctx context.Context) (decimal.Decimal, error) {
	return q.credit, nil
}

func (q *fakeQueries) SalesByDay(ctx context.Context, from, to time.Time) ([]SalesByDay, error) {
	q.byDayFrom = from
	return q.byDay, nil
}

func (q *fakeQueries) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	q.topLimit = limit
	return q.top, nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDashboardComputedOnceThenCached(t *testing.T) {
	queries := &fakeQueries{
		salesTotal: decimal.NewFromInt(250),
		salesCount: 12,
		valuation:  decimal.NewFromInt(4800),
		lowStock:   3,
		credit:     decimal.NewFromInt(130),
	}
	svc := NewService(queries, newTestRedis(t), time.Minute)
	ctx := context.Background()

	summary, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, summary.TodaySalesTotal.Equal(decimal.NewFromInt(250)))
	require.EqualValues(t, 12, summary.TodaySalesCount)
	require.True(t, summary.StockValuation.Equal(decimal.NewFromInt(4800)))
	require.EqualValues(t, 3, summary.LowStockCount)
	require.True(t, summary.OutstandingCredit.Equal(decimal.NewFromInt(130)))
	require.Equal(t, 1, queries.calls)

	// Second read is served from the cache even after the source changes.
	queries.salesTotal = decimal.NewFromInt(999)
	summary, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, summary.TodaySalesTotal.Equal(decimal.NewFromInt(250)))
	require.Equal(t, 1, queries.calls)
}

func TestInvalidateDashboardForcesRecompute(t *testing.T) {
	queries := &fakeQueries{salesTotal: decimal.NewFromInt(250)}
	svc := NewService(queries, newTestRedis(t), time.Minute)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)

	queries.salesTotal = decimal.NewFromInt(300)
	svc.InvalidateDashboard(ctx)

	summary, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, summary.TodaySalesTotal.Equal(decimal.NewFromInt(300)))
	require.Equal(t, 2, queries.calls)
}

func TestDashboardWithoutRedis(t *testing.T) {
	queries := &fakeQueries{salesTotal: decimal.NewFromInt(10)}
	svc := NewService(queries, nil, 0)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, queries.calls)
}

func TestSalesByDayDefaultsWindow(t *testing.T) {
	queries := &fakeQueries{byDay: []SalesByDay{{Count: 4}}}
	svc := NewService(queries, nil, 0)

	rows, err := svc.SalesByDay(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	wantFrom := time.Now().UTC().AddDate(0, 0, -30)
	require.WithinDuration(t, wantFrom, queries.byDayFrom, time.Minute)
}

func TestTopProductsPassesLimit(t *testing.T) {
	queries := &fakeQueries{top: []TopProduct{{ProductName: "Water"}}}
	svc := NewService(queries, nil, 0)

	rows, err := svc.TopProducts(context.Background(), 7, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 5, queries.topLimit)
}
