package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateProduct inserts the product and its zero stock level row atomically.
func (r *Repository) CreateProduct(ctx context.Context, product Product) (Product, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO products (sku, name, category_id, price, cost, min_stock, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id, created_at, updated_at`,
			product.SKU, product.Name, nullInt(product.CategoryID), product.Price, product.Cost, product.MinStock).
			Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO stock_levels (product_id, quantity_on_hand, reorder_level, updated_at) VALUES ($1, 0, $2, NOW())`,
			product.ID, product.MinStock)
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, err
	}
	return product, nil
}

// UpdateProduct updates mutable product fields. Cost is owned by purchase
// order receiving and is not touched here.
func (r *Repository) UpdateProduct(ctx context.Context, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET sku=$2, name=$3, category_id=$4, price=$5, min_stock=$6, updated_at=NOW() WHERE id=$1`,
		product.ID, product.SKU, product.Name, nullInt(product.CategoryID), product.Price, product.MinStock)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProduct fetches one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	var categoryID *int64
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, category_id, price, cost, min_stock, created_at, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &categoryID, &p.Price, &p.Cost, &p.MinStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	return p, nil
}

// ListProducts lists products with optional search over sku and name.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	limit, offset := pageBounds(filter)
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, category_id, price, cost, min_stock, created_at, updated_at
FROM products
WHERE ($1 = '' OR sku ILIKE '%'||$1||'%' OR name ILIKE '%'||$1||'%')
ORDER BY name ASC
LIMIT $2 OFFSET $3`, filter.Search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		var categoryID *int64
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &categoryID, &p.Price, &p.Cost, &p.MinStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if categoryID != nil {
			p.CategoryID = *categoryID
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CountProducts counts products matching the search filter.
func (r *Repository) CountProducts(ctx context.Context, filter ListFilter) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)
FROM products
WHERE ($1 = '' OR sku ILIKE '%'||$1||'%' OR name ILIKE '%'||$1||'%')`, filter.Search).Scan(&total)
	return total, err
}

// CreateClient inserts a client.
func (r *Repository) CreateClient(ctx context.Context, client Client) (Client, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO clients (name, phone, email, credit_balance, credit_limit, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		client.Name, client.Phone, client.Email, client.CreditBalance, client.CreditLimit).
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	return client, nil
}

// GetClient fetches one client.
func (r *Repository) GetClient(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, email, credit_balance, credit_limit, created_at, updated_at FROM clients WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreditBalance, &c.CreditLimit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

// UpdateClient updates client identity and credit limit. The balance is only
// mutated by transaction posting.
func (r *Repository) UpdateClient(ctx context.Context, client Client) error {
	tag, err := r.pool.Exec(ctx, `UPDATE clients SET name=$2, phone=$3, email=$4, credit_limit=$5, updated_at=NOW() WHERE id=$1`,
		client.ID, client.Name, client.Phone, client.Email, client.CreditLimit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClients lists clients with optional search over name and phone.
func (r *Repository) ListClients(ctx context.Context, filter ListFilter) ([]Client, error) {
	limit, offset := pageBounds(filter)
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email, credit_balance, credit_limit, created_at, updated_at
FROM clients
WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR phone ILIKE '%'||$1||'%')
ORDER BY name ASC
LIMIT $2 OFFSET $3`, filter.Search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	clients := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreditBalance, &c.CreditLimit, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// CreateSupplier inserts a supplier.
func (r *Repository) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, phone, email, address, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		supplier.Name, supplier.Phone, supplier.Email, supplier.Address).
		Scan(&supplier.ID, &supplier.CreatedAt, &supplier.UpdatedAt)
	if err != nil {
		return Supplier{}, err
	}
	return supplier, nil
}

// ListSuppliers lists suppliers.
func (r *Repository) ListSuppliers(ctx context.Context, filter ListFilter) ([]Supplier, error) {
	limit, offset := pageBounds(filter)
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email, address, created_at, updated_at
FROM suppliers
WHERE ($1 = '' OR name ILIKE '%'||$1||'%')
ORDER BY name ASC
LIMIT $2 OFFSET $3`, filter.Search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, category Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (code, name) VALUES ($1,$2) RETURNING id`, category.Code, category.Name).Scan(&category.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Category{}, fmt.Errorf("%w: category code taken", ErrValidation)
		}
		return Category{}, err
	}
	return category, nil
}

// ListCategories lists all categories.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func pageBounds(filter ListFilter) (int, int) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
