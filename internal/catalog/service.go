package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, product Product) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	CountProducts(ctx context.Context, filter ListFilter) (int, error)
	CreateClient(ctx context.Context, client Client) (Client, error)
	GetClient(ctx context.Context, id int64) (Client, error)
	UpdateClient(ctx context.Context, client Client) error
	ListClients(ctx context.Context, filter ListFilter) ([]Client, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Service coordinates catalog master data.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct validates and inserts a product with a zero stock level.
func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if product.SKU == "" || product.Name == "" {
		return Product{}, fmt.Errorf("%w: sku and name required", ErrValidation)
	}
	if product.Price.IsNegative() || product.Cost.IsNegative() {
		return Product{}, fmt.Errorf("%w: price and cost must be >= 0", ErrValidation)
	}
	if product.MinStock < 0 {
		return Product{}, fmt.Errorf("%w: min stock must be >= 0", ErrValidation)
	}
	return s.repo.CreateProduct(ctx, product)
}

// UpdateProduct validates and updates a product.
func (s *Service) UpdateProduct(ctx context.Context, product Product) error {
	if product.ID == 0 {
		return fmt.Errorf("%w: product id required", ErrValidation)
	}
	if product.SKU == "" || product.Name == "" {
		return fmt.Errorf("%w: sku and name required", ErrValidation)
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	return s.repo.UpdateProduct(ctx, product)
}

// GetProduct fetches one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, shared.Pagination, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.CountProducts(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

// CreateClient validates and inserts a client.
func (s *Service) CreateClient(ctx context.Context, client Client) (Client, error) {
	if client.Name == "" {
		return Client{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	if client.CreditLimit.IsNegative() {
		return Client{}, fmt.Errorf("%w: credit limit must be >= 0", ErrValidation)
	}
	client.CreditBalance = decimal.Zero
	return s.repo.CreateClient(ctx, client)
}

// GetClient fetches one client.
func (s *Service) GetClient(ctx context.Context, id int64) (Client, error) {
	return s.repo.GetClient(ctx, id)
}

// UpdateClient updates client identity and credit limit.
func (s *Service) UpdateClient(ctx context.Context, client Client) error {
	if client.ID == 0 || client.Name == "" {
		return fmt.Errorf("%w: id and name required", ErrValidation)
	}
	if client.CreditLimit.IsNegative() {
		return fmt.Errorf("%w: credit limit must be >= 0", ErrValidation)
	}
	return s.repo.UpdateClient(ctx, client)
}

// ListClients lists clients.
func (s *Service) ListClients(ctx context.Context, filter ListFilter) ([]Client, error) {
	return s.repo.ListClients(ctx, filter)
}

// CreateSupplier validates and inserts a supplier.
func (s *Service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if supplier.Name == "" {
		return Supplier{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

// ListSuppliers lists suppliers.
func (s *Service) ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, filter)
}

// CreateCategory validates and inserts a category.
func (s *Service) CreateCategory(ctx context.Context, category Category) (Category, error) {
	if category.Name == "" {
		return Category{}, fmt.Errorf("%w: name required", ErrValidation)
	}
	return s.repo.CreateCategory(ctx, category)
}

// ListCategories lists all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}
