package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

// PersonalLedgerService is the admission controller of the ledger: every
// transaction enters the store through it, and the non-negative balance
// invariant is checked before any expense is admitted. Balance is always
// recomputed from the durable ledger, never cached.
type PersonalLedgerService struct {
	repo domain.TransactionRepository
	now  func() time.Time
}

func NewPersonalLedgerService(repo domain.TransactionRepository) *PersonalLedgerService {
	return &PersonalLedgerService{
		repo: repo,
		now:  time.Now,
	}
}

// TransactionUpdate carries partial changes for an existing transaction.
// Nil fields are left unchanged.
type TransactionUpdate struct {
	Title      *string
	Amount     *decimal.Decimal
	Type       *string
	CategoryID *string
}

// CreateTransaction admits a new transaction. Income is inserted
// unconditionally since it cannot violate the invariant; an expense is
// admitted only when the recomputed balance covers it, inside one atomic
// unit of work at the store.
func (s *PersonalLedgerService) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	transaction.ID = uuid.NewString()
	if err := transaction.Validate(); err != nil {
		return err
	}

	if transaction.Type == domain.TypeIncome {
		return s.withRetry(ctx, func() error {
			return s.repo.Save(ctx, transaction)
		})
	}
	return s.withRetry(ctx, func() error {
		return s.repo.InsertIfBalanceHolds(ctx, transaction)
	})
}

// GetBalance recomputes the user's balance from the ledger. Read-only, so it
// takes no lock; callers that gate writes on a balance must not use it.
func (s *PersonalLedgerService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	income, err := s.repo.SumAmountByType(ctx, userID, domain.TypeIncome)
	if err != nil {
		return decimal.Zero, err
	}
	expense, err := s.repo.SumAmountByType(ctx, userID, domain.TypeExpense)
	if err != nil {
		return decimal.Zero, err
	}
	return income.Sub(expense), nil
}

// GetSumByType returns the all-time total for one transaction type.
func (s *PersonalLedgerService) GetSumByType(ctx context.Context, userID, transactionType string) (decimal.Decimal, error) {
	if !domain.IsValidTransactionType(transactionType) {
		return decimal.Zero, ledgerErrors.NewFieldValidationError("type", "must be 'income' or 'expense'")
	}
	return s.repo.SumAmountByType(ctx, userID, transactionType)
}

// GetUserTransactions lists the user's transactions newest first.
func (s *PersonalLedgerService) GetUserTransactions(ctx context.Context, userID string, limit, page int) ([]domain.Transaction, error) {
	transactions, err := s.repo.FindByUser(ctx, userID, limit, page)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		return []domain.Transaction{}, nil
	}
	return transactions, nil
}

func (s *PersonalLedgerService) GetTransaction(ctx context.Context, transactionID, userID string) (*domain.Transaction, error) {
	return s.repo.FindByID(ctx, transactionID, userID)
}

// UpdateTransaction applies a partial update and re-validates the invariant
// through the same atomic protocol as admission. Editing amounts or flipping
// income to expense can overdraw the ledger just like a new expense, so every
// update goes through the balance-checked path.
func (s *PersonalLedgerService) UpdateTransaction(ctx context.Context, transactionID, userID string, update TransactionUpdate) (*domain.Transaction, error) {
	existing, err := s.repo.FindByID(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		existing.Title = *update.Title
	}
	if update.Amount != nil {
		existing.Amount = *update.Amount
	}
	if update.Type != nil {
		existing.Type = *update.Type
	}
	if update.CategoryID != nil {
		existing.CategoryID = update.CategoryID
	}
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, func() error {
		return s.repo.UpdateIfBalanceHolds(ctx, existing)
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteTransaction removes a record from future balance and aggregate
// computations. No invariant re-check: deleting a past expense cannot
// overdraw the ledger going forward.
func (s *PersonalLedgerService) DeleteTransaction(ctx context.Context, transactionID, userID string) error {
	return s.repo.Delete(ctx, transactionID, userID)
}

// withRetry retries a store operation once on a transient failure. Retry is
// safe because no partial state is committed by a failed admission; a second
// failure surfaces as ErrUnavailable.
func (s *PersonalLedgerService) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isRetryable(ctx, err) {
		return err
	}

	logrus.WithError(err).Warn("ledger store operation failed, retrying once")
	err = op()
	if err != nil && isRetryable(ctx, err) {
		logrus.WithError(err).Error("ledger store operation failed after retry")
		return ledgerErrors.ErrUnavailable
	}
	return err
}

func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ledgerErrors.ErrInsufficientBalance) ||
		errors.Is(err, ledgerErrors.ErrTransactionNotFound) ||
		errors.Is(err, ledgerErrors.ErrCategoryNotFound) {
		return false
	}
	return !ledgerErrors.IsValidationError(err)
}
