package adjustments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// Handler wires HTTP endpoints for stock adjustments.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the adjustments handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers adjustment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/adjustments", func(r chi.Router) {
		r.Post("/", h.handlePostAdjustment)
		r.Get("/", h.handleListAdjustments)
	})
}

type postAdjustmentRequest struct {
	ProductID       int64  `json:"product_id" validate:"required"`
	QuantityChange  int64  `json:"quantity_change" validate:"required"`
	Type            string `json:"adjustment_type" validate:"required"`
	Reason          string `json:"reason" validate:"required"`
	ReferenceNumber string `json:"reference_number"`
	CreatedBy       int64  `json:"created_by" validate:"required"`
	Notes           string `json:"notes"`
}

type adjustmentResponse struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	ProductName     string    `json:"product_name"`
	QuantityChange  int64     `json:"quantity_change"`
	Type            string    `json:"adjustment_type"`
	Reason          string    `json:"reason"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAdjustmentResponse(a Adjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:              a.ID,
		ProductID:       a.ProductID,
		ProductName:     a.ProductName,
		QuantityChange:  a.QuantityChange,
		Type:            string(a.Type),
		Reason:          a.Reason,
		ReferenceNumber: a.ReferenceNumber,
		CreatedBy:       a.CreatedBy,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
	}
}

func (h *Handler) handlePostAdjustment(w http.ResponseWriter, r *http.Request) {
	var req postAdjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	adjustment, err := h.service.PostAdjustment(r.Context(), PostInput{
		ProductID:       req.ProductID,
		QuantityChange:  req.QuantityChange,
		Type:            AdjustmentType(req.Type),
		Reason:          req.Reason,
		ReferenceNumber: req.ReferenceNumber,
		CreatedBy:       req.CreatedBy,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAdjustmentResponse(adjustment))
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Type: AdjustmentType(q.Get("type"))}
	if productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64); err == nil {
		filter.ProductID = productID
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	adjustments, err := h.service.ListAdjustments(r.Context(), filter)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]adjustmentResponse, 0, len(adjustments))
	for _, a := range adjustments {
		out = append(out, toAdjustmentResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, stock.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("adjustment request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
