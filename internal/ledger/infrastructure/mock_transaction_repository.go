package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

// MockTransactionRepository is an in-memory ledger store for tests. A single
// mutex held across the balance read and the write gives it the same
// atomicity the Postgres repository gets from its per-user advisory lock, so
// the admission protocol can be tested under real goroutine concurrency.
type MockTransactionRepository struct {
	mu           sync.Mutex
	transactions map[string]domain.Transaction
	now          func() time.Time
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]domain.Transaction),
		now:          time.Now,
	}
}

// Seed stores a transaction verbatim, keeping whatever CreatedAt the test
// chose. It bypasses the invariant check on purpose.
func (m *MockTransactionRepository) Seed(transaction domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[transaction.ID] = transaction
}

func (m *MockTransactionRepository) Save(ctx context.Context, transaction *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	transaction.CreatedAt = now
	transaction.UpdatedAt = now
	m.transactions[transaction.ID] = *transaction
	return nil
}

func (m *MockTransactionRepository) InsertIfBalanceHolds(ctx context.Context, transaction *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balanceLocked(transaction.UserID, "").LessThan(transaction.Amount) {
		return ledgerErrors.ErrInsufficientBalance
	}

	now := m.now()
	transaction.CreatedAt = now
	transaction.UpdatedAt = now
	m.transactions[transaction.ID] = *transaction
	return nil
}

func (m *MockTransactionRepository) UpdateIfBalanceHolds(ctx context.Context, transaction *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.transactions[transaction.ID]
	if !ok || existing.UserID != transaction.UserID {
		return ledgerErrors.ErrTransactionNotFound
	}

	effect := transaction.Amount
	if transaction.Type == domain.TypeExpense {
		effect = transaction.Amount.Neg()
	}
	if m.balanceLocked(transaction.UserID, transaction.ID).Add(effect).IsNegative() {
		return ledgerErrors.ErrInsufficientBalance
	}

	transaction.CreatedAt = existing.CreatedAt
	transaction.UpdatedAt = m.now()
	m.transactions[transaction.ID] = *transaction
	return nil
}

func (m *MockTransactionRepository) Delete(ctx context.Context, transactionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.transactions[transactionID]
	if !ok || existing.UserID != userID {
		return ledgerErrors.ErrTransactionNotFound
	}
	delete(m.transactions, transactionID)
	return nil
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, transactionID, userID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.transactions[transactionID]
	if !ok || existing.UserID != userID {
		return nil, ledgerErrors.ErrTransactionNotFound
	}
	return &existing, nil
}

func (m *MockTransactionRepository) FindByUser(ctx context.Context, userID string, limit, page int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.userTransactionsLocked(userID)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	offset := (page - 1) * limit
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MockTransactionRepository) FindInDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matching []domain.Transaction
	for _, transaction := range m.userTransactionsLocked(userID) {
		if transaction.CreatedAt.Before(startDate) || transaction.CreatedAt.After(endDate) {
			continue
		}
		matching = append(matching, transaction)
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].CreatedAt.Before(matching[j].CreatedAt) })
	return matching, nil
}

func (m *MockTransactionRepository) SumAmountByType(ctx context.Context, userID, transactionType string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, transaction := range m.userTransactionsLocked(userID) {
		if transaction.Type == transactionType {
			total = total.Add(transaction.Amount)
		}
	}
	return total, nil
}

func (m *MockTransactionRepository) balanceLocked(userID, excludeID string) decimal.Decimal {
	balance := decimal.Zero
	for _, transaction := range m.transactions {
		if transaction.UserID != userID || transaction.ID == excludeID {
			continue
		}
		if transaction.Type == domain.TypeIncome {
			balance = balance.Add(transaction.Amount)
		} else {
			balance = balance.Sub(transaction.Amount)
		}
	}
	return balance
}

func (m *MockTransactionRepository) userTransactionsLocked(userID string) []domain.Transaction {
	var result []domain.Transaction
	for _, transaction := range m.transactions {
		if transaction.UserID == userID {
			result = append(result, transaction)
		}
	}
	return result
}
