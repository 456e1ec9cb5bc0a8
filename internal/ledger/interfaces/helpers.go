package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	})
}

// respondServiceError maps ledger sentinels onto HTTP statuses. Anything not
// in the taxonomy is a 500 with the generic fallback message so internals do
// not leak to clients.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case ledgerErrors.IsValidationError(err),
		errors.Is(err, ledgerErrors.ErrInvalidPeriod),
		errors.Is(err, ledgerErrors.ErrInsufficientBalance),
		errors.Is(err, ledgerErrors.ErrCategoryExists):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledgerErrors.ErrTransactionNotFound),
		errors.Is(err, ledgerErrors.ErrCategoryNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledgerErrors.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logrus.WithError(err).Error(fallback)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func requestUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}
