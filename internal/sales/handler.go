package sales

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
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// Handler wires HTTP endpoints for transaction posting.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.handlePostTransaction)
		r.Get("/", h.handleListTransactions)
		r.Get("/{id}", h.handleGetTransaction)
	})
	r.Route("/credit", func(r chi.Router) {
		r.Post("/payments", h.handleCreditPayment)
		r.Get("/records", h.handleListCreditRecords)
	})
}

type itemRequest struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Price     string `json:"price" validate:"required"`
	Discount  string `json:"discount"`
}

type postTransactionRequest struct {
	Type          string        `json:"type" validate:"required"`
	PaymentMethod string        `json:"payment_method" validate:"required"`
	ClientID      int64         `json:"client_id"`
	UserID        int64         `json:"user_id" validate:"required"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
	Total         string        `json:"total"`
}

type itemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	Discount    string `json:"discount"`
}

type transactionResponse struct {
	ID            int64          `json:"id"`
	Type          string         `json:"type"`
	Total         string         `json:"total"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"payment_method"`
	ClientID      int64          `json:"client_id,omitempty"`
	UserID        int64          `json:"user_id"`
	Reference     string         `json:"reference"`
	CreatedAt     time.Time      `json:"created_at"`
	Items         []itemResponse `json:"items,omitempty"`
}

func toTransactionResponse(txn Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            txn.ID,
		Type:          string(txn.Type),
		Total:         txn.Total.StringFixed(2),
		Status:        string(txn.Status),
		PaymentMethod: string(txn.PaymentMethod),
		ClientID:      txn.ClientID,
		UserID:        txn.UserID,
		Reference:     txn.Reference,
		CreatedAt:     txn.CreatedAt,
	}
	for _, item := range txn.Items {
		resp.Items = append(resp.Items, itemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
			Discount:    item.Discount.StringFixed(2),
		})
	}
	return resp
}

func (h *Handler) handlePostTransaction(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := PostTransactionInput{
		Type:          TransactionType(req.Type),
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		ClientID:      req.ClientID,
		UserID:        req.UserID,
	}
	var err error
	if input.Total, err = parseAmount(req.Total); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid total")
		return
	}
	for _, item := range req.Items {
		in := ItemInput{ProductID: item.ProductID, Quantity: item.Quantity}
		if in.Price, err = decimal.NewFromString(item.Price); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item price")
			return
		}
		if in.Discount, err = parseAmount(item.Discount); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item discount")
			return
		}
		input.Items = append(input.Items, in)
	}

	txn, err := h.service.PostTransaction(r.Context(), input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Type: TransactionType(q.Get("type"))}
	if clientID, err := strconv.ParseInt(q.Get("client_id"), 10, 64); err == nil {
		filter.ClientID = clientID
	}
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
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	txns, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type creditPaymentRequest struct {
	CreditRecordID int64  `json:"credit_record_id" validate:"required"`
	Amount         string `json:"amount" validate:"required"`
	PaymentMethod  string `json:"payment_method"`
	CreatedBy      int64  `json:"created_by" validate:"required"`
}

func (h *Handler) handleCreditPayment(w http.ResponseWriter, r *http.Request) {
	var req creditPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount")
		return
	}
	txn, err := h.service.RecordCreditPayment(r.Context(), CreditPaymentInput{
		CreditRecordID: req.CreditRecordID,
		Amount:         amount,
		PaymentMethod:  PaymentMethod(req.PaymentMethod),
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

type creditRecordResponse struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	TransactionID int64     `json:"transaction_id"`
	Amount        string    `json:"amount"`
	PaidAmount    string    `json:"paid_amount"`
	DueDate       time.Time `json:"due_date"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *Handler) handleListCreditRecords(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil || clientID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id is required")
		return
	}
	records, err := h.service.ListCreditRecords(r.Context(), clientID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]creditRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, creditRecordResponse{
			ID:            record.ID,
			ClientID:      record.ClientID,
			TransactionID: record.TransactionID,
			Amount:        record.Amount.StringFixed(2),
			PaidAmount:    record.PaidAmount.StringFixed(2),
			DueDate:       record.DueDate,
			Status:        string(record.Status),
			CreatedAt:     record.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrClientNotFound), errors.Is(err, stock.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrCreditLimitExceeded), errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Rejected", err.Error())
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
