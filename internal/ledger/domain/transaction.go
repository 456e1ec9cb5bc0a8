package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"

	maxTitleLength = 200
)

// Transaction is a single ledger record owned by exactly one user.
// CategoryID is a reference only; it becomes nil when the category is deleted.
type Transaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"-"`
	CategoryID *string         `json:"category_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"type"` // "income" or "expense"
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func IsValidTransactionType(transactionType string) bool {
	return transactionType == TypeIncome || transactionType == TypeExpense
}

func (t *Transaction) Validate() error {
	if t.Title == "" {
		return ledgerErrors.NewFieldValidationError("title", "must not be empty")
	}
	if len(t.Title) > maxTitleLength {
		return ledgerErrors.NewFieldValidationError("title", "must be of length less than 200")
	}
	if !IsValidTransactionType(t.Type) {
		return ledgerErrors.NewFieldValidationError("type", "must be 'income' or 'expense'")
	}
	if !t.Amount.IsPositive() {
		return ledgerErrors.ErrInvalidAmount
	}
	return nil
}

// TransactionRepository is the ledger store. InsertIfBalanceHolds and
// UpdateIfBalanceHolds are the only operations that enforce the non-negative
// balance invariant; both must run the balance read and the write as one
// atomic unit of work scoped to the owning user.
type TransactionRepository interface {
	Save(ctx context.Context, transaction *Transaction) error
	InsertIfBalanceHolds(ctx context.Context, transaction *Transaction) error
	UpdateIfBalanceHolds(ctx context.Context, transaction *Transaction) error
	Delete(ctx context.Context, transactionID, userID string) error
	FindByID(ctx context.Context, transactionID, userID string) (*Transaction, error)
	FindByUser(ctx context.Context, userID string, limit, page int) ([]Transaction, error)
	FindInDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]Transaction, error)
	SumAmountByType(ctx context.Context, userID, transactionType string) (decimal.Decimal, error)
}
