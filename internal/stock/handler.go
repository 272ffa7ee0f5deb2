package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/levels", h.handleListLevels)
		r.Get("/levels/{productID}", h.handleGetLevel)
		r.Put("/levels/{productID}/reorder", h.handleSetReorderPolicy)
		r.Get("/movements", h.handleListMovements)
		r.Get("/low", h.handleLowStock)
	})
}

type levelResponse struct {
	ProductID        int64      `json:"product_id"`
	QuantityOnHand   int64      `json:"quantity_on_hand"`
	QuantityReserved int64      `json:"quantity_reserved"`
	ReorderLevel     int64      `json:"reorder_level"`
	ReorderQuantity  int64      `json:"reorder_quantity"`
	LastCountedAt    *time.Time `json:"last_counted_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toLevelResponse(level Level) levelResponse {
	resp := levelResponse{
		ProductID:        level.ProductID,
		QuantityOnHand:   level.QuantityOnHand,
		QuantityReserved: level.QuantityReserved,
		ReorderLevel:     level.ReorderLevel,
		ReorderQuantity:  level.ReorderQuantity,
		UpdatedAt:        level.UpdatedAt,
	}
	if !level.LastCountedAt.IsZero() {
		counted := level.LastCountedAt
		resp.LastCountedAt = &counted
	}
	return resp
}

type movementResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Type        string    `json:"type"`
	Quantity    int64     `json:"quantity"`
	UserID      int64     `json:"user_id,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.ListLevels(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]levelResponse, 0, len(levels))
	for _, level := range levels {
		out = append(out, toLevelResponse(level))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	level, err := h.service.GetLevel(r.Context(), productID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLevelResponse(level))
}

type reorderPolicyRequest struct {
	ReorderLevel    int64 `json:"reorder_level"`
	ReorderQuantity int64 `json:"reorder_quantity"`
}

func (h *Handler) handleSetReorderPolicy(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req reorderPolicyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.SetReorderPolicy(r.Context(), productID, req.ReorderLevel, req.ReorderQuantity); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id is required")
		return
	}
	filter := MovementFilter{ProductID: productID}
	if fromStr := q.Get("from"); fromStr != "" {
		if from, err := time.Parse("2006-01-02", fromStr); err == nil {
			filter.From = from
		}
	}
	if toStr := q.Get("to"); toStr != "" {
		if to, err := time.Parse("2006-01-02", toStr); err == nil {
			filter.To = to.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse{
			ID:          m.ID,
			ProductID:   m.ProductID,
			ProductName: m.ProductName,
			Type:        string(m.Type),
			Quantity:    m.Quantity,
			UserID:      m.UserID,
			Notes:       m.Notes,
			CreatedAt:   m.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLowStock(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLevelNotFound), errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMovementType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("stock request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
