package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
	"github.com/mkaminsky/PocketLedger/internal/ledger/infrastructure"
)

const testUserID = "3f0d9a9e-7b49-4f57-9b9f-c6a20a9e6f01"

func newLedgerService() (*PersonalLedgerService, *infrastructure.MockTransactionRepository) {
	repo := infrastructure.NewMockTransactionRepository()
	return NewPersonalLedgerService(repo), repo
}

func mustCreate(t *testing.T, service *PersonalLedgerService, transactionType, amount string) *domain.Transaction {
	t.Helper()
	transaction := &domain.Transaction{
		UserID: testUserID,
		Title:  "Seed",
		Amount: decimal.RequireFromString(amount),
		Type:   transactionType,
	}
	require.NoError(t, service.CreateTransaction(context.Background(), transaction))
	return transaction
}

func TestCreateTransaction_InvalidAmount(t *testing.T) {
	service, _ := newLedgerService()

	transaction := &domain.Transaction{
		UserID: testUserID,
		Title:  "Broken",
		Amount: decimal.Zero,
		Type:   domain.TypeExpense,
	}

	err := service.CreateTransaction(context.Background(), transaction)
	assert.ErrorIs(t, err, ledgerErrors.ErrInvalidAmount)

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "no write may happen on validation failure")
}

func TestCreateTransaction_IncomeAdmittedUnconditionally(t *testing.T) {
	service, _ := newLedgerService()

	transaction := mustCreate(t, service, domain.TypeIncome, "250.00")
	assert.NotEmpty(t, transaction.ID)
	assert.False(t, transaction.CreatedAt.IsZero(), "creation timestamp assigned at insert")

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("250.00")))
}

func TestCreateTransaction_ExpenseRejectedWhenOverdrawn(t *testing.T) {
	service, _ := newLedgerService()
	mustCreate(t, service, domain.TypeIncome, "100")

	expense := &domain.Transaction{
		UserID: testUserID,
		Title:  "Too big",
		Amount: decimal.RequireFromString("150"),
		Type:   domain.TypeExpense,
	}
	err := service.CreateTransaction(context.Background(), expense)
	assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)), "rejected expense must leave balance unchanged")
}

func TestCreateTransaction_ExpenseToExactBalance(t *testing.T) {
	service, _ := newLedgerService()
	mustCreate(t, service, domain.TypeIncome, "100")
	mustCreate(t, service, domain.TypeExpense, "100")

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestCreateTransaction_ConcurrentExpensesAdmitExactlyOne(t *testing.T) {
	service, _ := newLedgerService()
	mustCreate(t, service, domain.TypeIncome, "100")

	const attempts = 2
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			expense := &domain.Transaction{
				UserID: testUserID,
				Title:  "Concurrent",
				Amount: decimal.RequireFromString("60"),
				Type:   domain.TypeExpense,
			}
			results[i] = service.CreateTransaction(context.Background(), expense)
		}(i)
	}
	wg.Wait()

	admitted, rejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, ledgerErrors.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, admitted, "exactly one of the two expenses may be admitted")
	assert.Equal(t, 1, rejected)

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(40)))
}

func TestBalance_NeverNegativeAfterAdmittedSequence(t *testing.T) {
	service, _ := newLedgerService()

	steps := []struct {
		transactionType string
		amount          string
	}{
		{domain.TypeIncome, "50"},
		{domain.TypeExpense, "20"},
		{domain.TypeExpense, "40"}, // rejected, balance is 30
		{domain.TypeIncome, "10"},
		{domain.TypeExpense, "40"},
		{domain.TypeExpense, "0.01"}, // rejected, balance is 0
	}

	for _, step := range steps {
		transaction := &domain.Transaction{
			UserID: testUserID,
			Title:  "Step",
			Amount: decimal.RequireFromString(step.amount),
			Type:   step.transactionType,
		}
		err := service.CreateTransaction(context.Background(), transaction)
		if err != nil {
			assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)
		}

		balance, balanceErr := service.GetBalance(context.Background(), testUserID)
		require.NoError(t, balanceErr)
		assert.False(t, balance.IsNegative(), "balance went negative after %s %s", step.transactionType, step.amount)
	}
}

func TestGetBalance_Idempotent(t *testing.T) {
	service, _ := newLedgerService()
	mustCreate(t, service, domain.TypeIncome, "80")
	mustCreate(t, service, domain.TypeExpense, "35.50")

	first, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	second, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(decimal.RequireFromString("44.50")))
}

func TestGetSumByType(t *testing.T) {
	service, _ := newLedgerService()
	mustCreate(t, service, domain.TypeIncome, "80")
	mustCreate(t, service, domain.TypeIncome, "20")
	mustCreate(t, service, domain.TypeExpense, "30")

	income, err := service.GetSumByType(context.Background(), testUserID, domain.TypeIncome)
	require.NoError(t, err)
	assert.True(t, income.Equal(decimal.NewFromInt(100)))

	_, err = service.GetSumByType(context.Background(), testUserID, "transfer")
	assert.True(t, ledgerErrors.IsValidationError(err))
}

func TestUpdateTransaction_RechecksInvariant(t *testing.T) {
	service, _ := newLedgerService()
	mustCreate(t, service, domain.TypeIncome, "100")
	expense := mustCreate(t, service, domain.TypeExpense, "80")

	// Growing the expense past the remaining income must be rejected.
	tooBig := decimal.RequireFromString("150")
	_, err := service.UpdateTransaction(context.Background(), expense.ID, testUserID, TransactionUpdate{Amount: &tooBig})
	assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(20)), "failed update must not change the ledger")

	// Growing it up to the full income is fine.
	exact := decimal.RequireFromString("100")
	updated, err := service.UpdateTransaction(context.Background(), expense.ID, testUserID, TransactionUpdate{Amount: &exact})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(exact))

	balance, err = service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestUpdateTransaction_ShrinkingIncomeCannotOverdraw(t *testing.T) {
	service, _ := newLedgerService()
	income := mustCreate(t, service, domain.TypeIncome, "100")
	mustCreate(t, service, domain.TypeExpense, "80")

	smaller := decimal.RequireFromString("50")
	_, err := service.UpdateTransaction(context.Background(), income.ID, testUserID, TransactionUpdate{Amount: &smaller})
	assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)
}

func TestUpdateTransaction_NotFound(t *testing.T) {
	service, _ := newLedgerService()

	title := "Renamed"
	_, err := service.UpdateTransaction(context.Background(), "missing-id", testUserID, TransactionUpdate{Title: &title})
	assert.ErrorIs(t, err, ledgerErrors.ErrTransactionNotFound)
}

func TestDeleteTransaction_NoInvariantRecheck(t *testing.T) {
	service, _ := newLedgerService()
	income := mustCreate(t, service, domain.TypeIncome, "100")
	mustCreate(t, service, domain.TypeExpense, "80")

	// Deleting the income is allowed even though it leaves expenses exceeding
	// income historically; only future admissions are guarded.
	require.NoError(t, service.DeleteTransaction(context.Background(), income.ID, testUserID))

	balance, err := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(-80)))
}

// flakyRepository fails the first n admission calls with a transient error.
type flakyRepository struct {
	domain.TransactionRepository
	mu        sync.Mutex
	failures  int
	callCount int
}

func (f *flakyRepository) InsertIfBalanceHolds(ctx context.Context, transaction *domain.Transaction) error {
	f.mu.Lock()
	f.callCount++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return errors.New("connection reset by peer")
	}
	return f.TransactionRepository.InsertIfBalanceHolds(ctx, transaction)
}

func TestCreateTransaction_RetriesOnceOnTransientFailure(t *testing.T) {
	mock := infrastructure.NewMockTransactionRepository()
	flaky := &flakyRepository{TransactionRepository: mock, failures: 1}
	service := NewPersonalLedgerService(flaky)

	income := &domain.Transaction{UserID: testUserID, Title: "Pay", Amount: decimal.NewFromInt(100), Type: domain.TypeIncome}
	require.NoError(t, service.CreateTransaction(context.Background(), income))

	expense := &domain.Transaction{UserID: testUserID, Title: "Rent", Amount: decimal.NewFromInt(60), Type: domain.TypeExpense}
	err := service.CreateTransaction(context.Background(), expense)

	assert.NoError(t, err, "a single transient failure is retried")
	assert.Equal(t, 2, flaky.callCount)
}

func TestCreateTransaction_UnavailableAfterRepeatedFailure(t *testing.T) {
	mock := infrastructure.NewMockTransactionRepository()
	flaky := &flakyRepository{TransactionRepository: mock, failures: 2}
	service := NewPersonalLedgerService(flaky)

	income := &domain.Transaction{UserID: testUserID, Title: "Pay", Amount: decimal.NewFromInt(100), Type: domain.TypeIncome}
	require.NoError(t, service.CreateTransaction(context.Background(), income))

	expense := &domain.Transaction{UserID: testUserID, Title: "Rent", Amount: decimal.NewFromInt(60), Type: domain.TypeExpense}
	err := service.CreateTransaction(context.Background(), expense)

	assert.ErrorIs(t, err, ledgerErrors.ErrUnavailable)
	assert.Equal(t, 2, flaky.callCount, "exactly one retry with the same inputs")

	balance, balanceErr := service.GetBalance(context.Background(), testUserID)
	require.NoError(t, balanceErr)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)), "no partial write on failed admission")
}

func TestCreateTransaction_InsufficientBalanceIsNotRetried(t *testing.T) {
	mock := infrastructure.NewMockTransactionRepository()
	flaky := &flakyRepository{TransactionRepository: mock}
	service := NewPersonalLedgerService(flaky)

	expense := &domain.Transaction{UserID: testUserID, Title: "Rent", Amount: decimal.NewFromInt(60), Type: domain.TypeExpense}
	err := service.CreateTransaction(context.Background(), expense)

	assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)
	assert.Equal(t, 1, flaky.callCount)
}
