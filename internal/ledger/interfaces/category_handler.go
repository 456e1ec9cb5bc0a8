package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
)

type CategoryServiceInterface interface {
	CreateCategory(ctx context.Context, userID, title string) (*domain.Category, error)
	GetUserCategories(ctx context.Context, userID string) ([]domain.Category, error)
	GetCategory(ctx context.Context, categoryID, userID string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, categoryID, userID, title string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, categoryID, userID string) error
}

type CategoryHandler struct {
	service CategoryServiceInterface
}

func NewCategoryHandler(service CategoryServiceInterface) *CategoryHandler {
	if service == nil {
		panic("category service must not be nil")
	}
	return &CategoryHandler{service: service}
}

type categoryRequest struct {
	Title string `json:"title"`
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category, err := h.service.CreateCategory(r.Context(), userID, req.Title)
	if err != nil {
		respondServiceError(w, err, "Failed to create category")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"message": "Category successfully created.",
		"data":    category,
	})
}

func (h *CategoryHandler) GetUserCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	categories, err := h.service.GetUserCategories(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve categories")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Categories retrieved successfully.",
		"data":    categories,
	})
}

func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	category, err := h.service.GetCategory(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve category")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Category retrieved successfully.",
		"data":    category,
	})
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), r.PathValue("id"), userID, req.Title)
	if err != nil {
		respondServiceError(w, err, "Failed to update category")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Category successfully updated.",
		"data":    category,
	})
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), r.PathValue("id"), userID); err != nil {
		respondServiceError(w, err, "Failed to delete category")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Category successfully deleted.",
	})
}
