package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSummary aggregates the figures shown on the landing dashboard.
type DashboardSummary struct {
	TodaySalesTotal   decimal.Decimal `json:"today_sales_total"`
	TodaySalesCount   int64           `json:"today_sales_count"`
	StockValuation    decimal.Decimal `json:"stock_valuation"`
	LowStockCount     int64           `json:"low_stock_count"`
	OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// SalesByDay is one bucket of the daily sales report.
type SalesByDay struct {
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

// TopProduct is one row of the best-sellers report.
type TopProduct struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}
