package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. On-hand quantity lives in stock_levels; the
// fast read path goes through the stock level cache, not a counter here.
type Product struct {
	ID         int64
	SKU        string
	Name       string
	CategoryID int64
	Price      decimal.Decimal
	Cost       decimal.Decimal
	MinStock   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Category groups products.
type Category struct {
	ID   int64
	Code string
	Name string
}

// Client is a customer that may buy on credit.
type Client struct {
	ID            int64
	Name          string
	Phone         string
	Email         string
	CreditBalance decimal.Decimal
	CreditLimit   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Supplier provides purchase orders.
type Supplier struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows list queries.
type ListFilter struct {
	Search string
	Page   int
	Limit  int
}

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicateSKU indicates a SKU collision.
	ErrDuplicateSKU = errors.New("catalog: sku already exists")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
)
