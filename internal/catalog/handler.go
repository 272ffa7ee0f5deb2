package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// Handler wires HTTP endpoints for catalog master data.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.handleCreateProduct)
		r.Get("/", h.handleListProducts)
		r.Get("/{id}", h.handleGetProduct)
		r.Put("/{id}", h.handleUpdateProduct)
	})
	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.handleCreateClient)
		r.Get("/", h.handleListClients)
		r.Get("/{id}", h.handleGetClient)
		r.Put("/{id}", h.handleUpdateClient)
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Post("/", h.handleCreateSupplier)
		r.Get("/", h.handleListSuppliers)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.handleCreateCategory)
		r.Get("/", h.handleListCategories)
	})
}

type productRequest struct {
	SKU        string `json:"sku" validate:"required"`
	Name       string `json:"name" validate:"required"`
	CategoryID int64  `json:"category_id"`
	Price      string `json:"price" validate:"required"`
	Cost       string `json:"cost"`
	MinStock   int64  `json:"min_stock" validate:"gte=0"`
}

type productResponse struct {
	ID         int64     `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	CategoryID int64     `json:"category_id,omitempty"`
	Price      string    `json:"price"`
	Cost       string    `json:"cost"`
	MinStock   int64     `json:"min_stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:         p.ID,
		SKU:        p.SKU,
		Name:       p.Name,
		CategoryID: p.CategoryID,
		Price:      p.Price.StringFixed(2),
		Cost:       p.Cost.StringFixed(2),
		MinStock:   p.MinStock,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (h *Handler) decodeProduct(r *http.Request) (Product, error) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Product{}, ErrValidation
	}
	if err := h.validate.Struct(req); err != nil {
		return Product{}, ErrValidation
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return Product{}, ErrValidation
	}
	cost := decimal.Zero
	if req.Cost != "" {
		if cost, err = decimal.NewFromString(req.Cost); err != nil {
			return Product{}, ErrValidation
		}
	}
	return Product{
		SKU:        req.SKU,
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Price:      price,
		Cost:       cost,
		MinStock:   req.MinStock,
	}, nil
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.decodeProduct(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(created))
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	product, err := h.decodeProduct(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	product.ID = id
	if err := h.service.UpdateProduct(r.Context(), product); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(product))
}

type productListResponse struct {
	Items      []productResponse `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, pagination, err := h.service.ListProducts(r.Context(), listFilterFromQuery(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, productListResponse{Items: out, Pagination: pagination})
}

type clientRequest struct {
	Name        string `json:"name" validate:"required"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	CreditLimit string `json:"credit_limit"`
}

type clientResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	CreditBalance string    `json:"credit_balance"`
	CreditLimit   string    `json:"credit_limit"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toClientResponse(c Client) clientResponse {
	return clientResponse{
		ID:            c.ID,
		Name:          c.Name,
		Phone:         c.Phone,
		Email:         c.Email,
		CreditBalance: c.CreditBalance.StringFixed(2),
		CreditLimit:   c.CreditLimit.StringFixed(2),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (h *Handler) decodeClient(r *http.Request) (Client, error) {
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Client{}, ErrValidation
	}
	if err := h.validate.Struct(req); err != nil {
		return Client{}, ErrValidation
	}
	limit := decimal.Zero
	if req.CreditLimit != "" {
		var err error
		if limit, err = decimal.NewFromString(req.CreditLimit); err != nil {
			return Client{}, ErrValidation
		}
	}
	return Client{Name: req.Name, Phone: req.Phone, Email: req.Email, CreditLimit: limit}, nil
}

func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.decodeClient(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.service.CreateClient(r.Context(), client)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClientResponse(created))
}

func (h *Handler) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	client, err := h.decodeClient(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	client.ID = id
	if err := h.service.UpdateClient(r.Context(), client); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClientResponse(client))
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context(), listFilterFromQuery(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type supplierRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	created, err := h.service.CreateSupplier(r.Context(), Supplier{Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context(), listFilterFromQuery(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

type categoryRequest struct {
	Code string `json:"code"`
	Name string `json:"name" validate:"required"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondErr(w, ErrValidation)
		return
	}
	created, err := h.service.CreateCategory(r.Context(), Category{Code: req.Code, Name: req.Name})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func listFilterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("search")}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	return filter
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
