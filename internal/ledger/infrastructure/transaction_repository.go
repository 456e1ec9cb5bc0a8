package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

const (
	// Signed all-time balance for a user: income counts positive, expense negative.
	balanceQuery = `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE user_id = $1`

	insertTransactionQuery = `
		INSERT INTO transactions (id, user_id, category_id, title, amount, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	foreignKeyViolationCode = "23503"
)

type PersonalTransactionRepository struct {
	db *sql.DB
}

func NewPersonalTransactionRepository(db *sql.DB) *PersonalTransactionRepository {
	return &PersonalTransactionRepository{db: db}
}

func (r *PersonalTransactionRepository) Save(ctx context.Context, transaction *domain.Transaction) error {
	err := r.db.QueryRowContext(ctx, insertTransactionQuery,
		transaction.ID, transaction.UserID, transaction.CategoryID,
		transaction.Title, transaction.Amount, transaction.Type,
	).Scan(&transaction.CreatedAt, &transaction.UpdatedAt)
	return mapConstraintError(err)
}

// InsertIfBalanceHolds is the one place the non-negative balance invariant is
// mechanically enforced for new expenses. The per-user advisory lock makes the
// balance read and the insert one isolated unit of work: two concurrent
// expenses against the same user serialize here, so a pair that would jointly
// overdraw can never both be admitted.
func (r *PersonalTransactionRepository) InsertIfBalanceHolds(ctx context.Context, transaction *domain.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUserLedger(ctx, tx, transaction.UserID); err != nil {
		return err
	}

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, balanceQuery, transaction.UserID).Scan(&balance); err != nil {
		return err
	}
	if balance.LessThan(transaction.Amount) {
		return ledgerErrors.ErrInsufficientBalance
	}

	err = tx.QueryRowContext(ctx, insertTransactionQuery,
		transaction.ID, transaction.UserID, transaction.CategoryID,
		transaction.Title, transaction.Amount, transaction.Type,
	).Scan(&transaction.CreatedAt, &transaction.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}

	return tx.Commit()
}

// UpdateIfBalanceHolds rewrites a transaction under the same per-user lock as
// admission, so edits that grow an expense or shrink an income cannot push the
// ledger negative.
func (r *PersonalTransactionRepository) UpdateIfBalanceHolds(ctx context.Context, transaction *domain.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUserLedger(ctx, tx, transaction.UserID); err != nil {
		return err
	}

	var existingType string
	err = tx.QueryRowContext(ctx,
		`SELECT type FROM transactions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		transaction.ID, transaction.UserID,
	).Scan(&existingType)
	if errors.Is(err, sql.ErrNoRows) {
		return ledgerErrors.ErrTransactionNotFound
	}
	if err != nil {
		return err
	}

	var balanceExcluding decimal.Decimal
	err = tx.QueryRowContext(ctx, balanceQuery+` AND id <> $2`, transaction.UserID, transaction.ID).
		Scan(&balanceExcluding)
	if err != nil {
		return err
	}

	effect := transaction.Amount
	if transaction.Type == domain.TypeExpense {
		effect = transaction.Amount.Neg()
	}
	if balanceExcluding.Add(effect).IsNegative() {
		return ledgerErrors.ErrInsufficientBalance
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE transactions
		SET title = $1, amount = $2, type = $3, category_id = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING created_at, updated_at`,
		transaction.Title, transaction.Amount, transaction.Type, transaction.CategoryID,
		transaction.ID, transaction.UserID,
	).Scan(&transaction.CreatedAt, &transaction.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}

	return tx.Commit()
}

func (r *PersonalTransactionRepository) Delete(ctx context.Context, transactionID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`,
		transactionID, userID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledgerErrors.ErrTransactionNotFound
	}
	return nil
}

func (r *PersonalTransactionRepository) FindByID(ctx context.Context, transactionID, userID string) (*domain.Transaction, error) {
	var transaction domain.Transaction
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, category_id, title, amount, type, created_at, updated_at
		FROM transactions
		WHERE id = $1 AND user_id = $2`,
		transactionID, userID,
	).Scan(
		&transaction.ID, &transaction.UserID, &transaction.CategoryID,
		&transaction.Title, &transaction.Amount, &transaction.Type,
		&transaction.CreatedAt, &transaction.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledgerErrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *PersonalTransactionRepository) FindByUser(ctx context.Context, userID string, limit, page int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, title, amount, type, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *PersonalTransactionRepository) FindInDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, title, amount, type, created_at, updated_at
		FROM transactions
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at ASC, id ASC`,
		userID, startDate, endDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *PersonalTransactionRepository) SumAmountByType(ctx context.Context, userID, transactionType string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1 AND type = $2`,
		userID, transactionType,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// lockUserLedger serializes admission-path writes for a single user. The lock
// is transaction-scoped and released on commit or rollback; other users'
// ledgers are unaffected.
func lockUserLedger(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID)
	return err
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var transaction domain.Transaction
		if err := rows.Scan(
			&transaction.ID, &transaction.UserID, &transaction.CategoryID,
			&transaction.Title, &transaction.Amount, &transaction.Type,
			&transaction.CreatedAt, &transaction.UpdatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

// mapConstraintError translates a category foreign-key violation into the
// domain error; everything else passes through unchanged.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode {
		return ledgerErrors.ErrCategoryNotFound
	}
	return err
}
