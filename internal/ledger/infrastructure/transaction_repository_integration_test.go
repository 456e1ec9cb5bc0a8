package infrastructure

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	database "github.com/mkaminsky/PocketLedger/internal/db"
	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

// startPostgres brings up a disposable Postgres with the real schema applied.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pocketledger_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func createTestUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	var userID string
	err := db.QueryRow(
		`INSERT INTO users (email, login, password_hash) VALUES ($1, $2, 'x') RETURNING id`,
		uuid.NewString()+"@example.com", "user-"+uuid.NewString()[:8],
	).Scan(&userID)
	require.NoError(t, err)
	return userID
}

func newTestTransaction(userID, transactionType, amount string) *domain.Transaction {
	return &domain.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  "Integration",
		Amount: decimal.RequireFromString(amount),
		Type:   transactionType,
	}
}

func TestPostgresAdmission(t *testing.T) {
	db := startPostgres(t)
	repo := NewPersonalTransactionRepository(db)
	ctx := context.Background()
	userID := createTestUser(t, db)

	require.NoError(t, repo.Save(ctx, newTestTransaction(userID, domain.TypeIncome, "100")))

	// Overdraw is rejected and leaves no row behind.
	err := repo.InsertIfBalanceHolds(ctx, newTestTransaction(userID, domain.TypeExpense, "150"))
	assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)

	// Spending to exactly zero is allowed.
	require.NoError(t, repo.InsertIfBalanceHolds(ctx, newTestTransaction(userID, domain.TypeExpense, "100")))

	income, err := repo.SumAmountByType(ctx, userID, domain.TypeIncome)
	require.NoError(t, err)
	expense, err := repo.SumAmountByType(ctx, userID, domain.TypeExpense)
	require.NoError(t, err)
	assert.True(t, income.Sub(expense).IsZero())
}

func TestPostgresConcurrentExpenses(t *testing.T) {
	db := startPostgres(t)
	repo := NewPersonalTransactionRepository(db)
	ctx := context.Background()
	userID := createTestUser(t, db)

	require.NoError(t, repo.Save(ctx, newTestTransaction(userID, domain.TypeIncome, "100")))

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.InsertIfBalanceHolds(ctx, newTestTransaction(userID, domain.TypeExpense, "60"))
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range results {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, admitted, "the advisory lock must serialize admissions")

	income, err := repo.SumAmountByType(ctx, userID, domain.TypeIncome)
	require.NoError(t, err)
	expense, err := repo.SumAmountByType(ctx, userID, domain.TypeExpense)
	require.NoError(t, err)
	assert.False(t, income.Sub(expense).IsNegative())
}

func TestPostgresUpdateInvariant(t *testing.T) {
	db := startPostgres(t)
	repo := NewPersonalTransactionRepository(db)
	ctx := context.Background()
	userID := createTestUser(t, db)

	require.NoError(t, repo.Save(ctx, newTestTransaction(userID, domain.TypeIncome, "100")))
	expense := newTestTransaction(userID, domain.TypeExpense, "80")
	require.NoError(t, repo.InsertIfBalanceHolds(ctx, expense))

	expense.Amount = decimal.RequireFromString("150")
	err := repo.UpdateIfBalanceHolds(ctx, expense)
	assert.ErrorIs(t, err, ledgerErrors.ErrInsufficientBalance)

	expense.Amount = decimal.RequireFromString("100")
	require.NoError(t, repo.UpdateIfBalanceHolds(ctx, expense))

	stored, err := repo.FindByID(ctx, expense.ID, userID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(100)))
}

func TestPostgresUnknownCategory(t *testing.T) {
	db := startPostgres(t)
	repo := NewPersonalTransactionRepository(db)
	ctx := context.Background()
	userID := createTestUser(t, db)

	missingCategory := uuid.NewString()
	transaction := newTestTransaction(userID, domain.TypeIncome, "10")
	transaction.CategoryID = &missingCategory

	err := repo.Save(ctx, transaction)
	assert.ErrorIs(t, err, ledgerErrors.ErrCategoryNotFound)
}

func TestPostgresCategoryDeleteNullsReference(t *testing.T) {
	db := startPostgres(t)
	transactionRepo := NewPersonalTransactionRepository(db)
	categoryRepo := NewCategoryRepository(db)
	ctx := context.Background()
	userID := createTestUser(t, db)

	category := domain.Category{ID: uuid.NewString(), UserID: userID, Title: "Groceries"}
	require.NoError(t, categoryRepo.Save(ctx, &category))

	transaction := newTestTransaction(userID, domain.TypeIncome, "10")
	transaction.CategoryID = &category.ID
	require.NoError(t, transactionRepo.Save(ctx, transaction))

	require.NoError(t, categoryRepo.Delete(ctx, category.ID, userID))

	stored, err := transactionRepo.FindByID(ctx, transaction.ID, userID)
	require.NoError(t, err)
	assert.Nil(t, stored.CategoryID, "deleting a category must null the reference, not the transaction")

	_, err = transactionRepo.FindByID(ctx, uuid.NewString(), userID)
	assert.ErrorIs(t, err, ledgerErrors.ErrTransactionNotFound)
}
