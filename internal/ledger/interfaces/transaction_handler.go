package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mkaminsky/PocketLedger/internal/ledger/application"
	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
)

type TransactionServiceInterface interface {
	CreateTransaction(ctx context.Context, transaction *domain.Transaction) error
	GetUserTransactions(ctx context.Context, userID string, limit, page int) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID, userID string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID, userID string, update application.TransactionUpdate) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID, userID string) error
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	GetSumByType(ctx context.Context, userID, transactionType string) (decimal.Decimal, error)
	GetStatsByPeriod(ctx context.Context, userID, period string) ([]application.PeriodBucket, error)
}

type TransactionHandler struct {
	service TransactionServiceInterface
}

func NewTransactionHandler(service TransactionServiceInterface) *TransactionHandler {
	if service == nil {
		panic("transaction service must not be nil")
	}
	return &TransactionHandler{service: service}
}

type transactionRequest struct {
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"type"`
	CategoryID *string         `json:"category_id"`
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction := domain.Transaction{
		UserID:     userID,
		Title:      req.Title,
		Amount:     req.Amount,
		Type:       req.Type,
		CategoryID: req.CategoryID,
	}
	if err := h.service.CreateTransaction(r.Context(), &transaction); err != nil {
		respondServiceError(w, err, "Failed to create transaction")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"message": "Transaction successfully created.",
		"data":    transaction,
	})
}

func (h *TransactionHandler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid limit value")
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid page value")
		return
	}

	transactions, err := h.service.GetUserTransactions(r.Context(), userID, limit, page)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve transactions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Transactions retrieved successfully.",
		"data":    transactions,
	})
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	transaction, err := h.service.GetTransaction(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve transaction")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Transaction retrieved successfully.",
		"data":    transaction,
	})
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Title      *string          `json:"title"`
		Amount     *decimal.Decimal `json:"amount"`
		Type       *string          `json:"type"`
		CategoryID *string          `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := application.TransactionUpdate{
		Title:      req.Title,
		Amount:     req.Amount,
		Type:       req.Type,
		CategoryID: req.CategoryID,
	}
	transaction, err := h.service.UpdateTransaction(r.Context(), r.PathValue("id"), userID, update)
	if err != nil {
		respondServiceError(w, err, "Failed to update transaction")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Transaction successfully updated.",
		"data":    transaction,
	})
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTransaction(r.Context(), r.PathValue("id"), userID); err != nil {
		respondServiceError(w, err, "Failed to delete transaction")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Transaction successfully deleted.",
	})
}

func (h *TransactionHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Balance retrieved successfully.",
		"data":    map[string]decimal.Decimal{"balance": balance},
	})
}

func (h *TransactionHandler) GetSumByType(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	transactionType := r.URL.Query().Get("type")
	sum, err := h.service.GetSumByType(r.Context(), userID, transactionType)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve sum")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Sum retrieved successfully.",
		"data":    map[string]interface{}{"type": transactionType, "total": sum},
	})
}

func (h *TransactionHandler) GetStatsByPeriod(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	series, err := h.service.GetStatsByPeriod(r.Context(), userID, r.URL.Query().Get("period"))
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve statistics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Statistics retrieved successfully.",
		"data":    series,
	})
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}
