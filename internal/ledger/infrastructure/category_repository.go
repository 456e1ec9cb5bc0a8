package infrastructure

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

const categoryWithCountQuery = `
	SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at, COUNT(t.id)
	FROM categories c
	LEFT JOIN transactions t ON t.category_id = c.id
	WHERE c.user_id = $1`

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Save(ctx context.Context, category *domain.Category) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO categories (id, user_id, title) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		category.ID, category.UserID, category.Title,
	).Scan(&category.CreatedAt, &category.UpdatedAt)
}

func (r *CategoryRepository) FindByUser(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, categoryWithCountQuery+`
		GROUP BY c.id, c.user_id, c.title, c.created_at, c.updated_at
		ORDER BY c.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(
			&category.ID, &category.UserID, &category.Title,
			&category.CreatedAt, &category.UpdatedAt, &category.TransactionCount,
		); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) FindByID(ctx context.Context, categoryID, userID string) (*domain.Category, error) {
	var category domain.Category
	err := r.db.QueryRowContext(ctx, categoryWithCountQuery+` AND c.id = $2
		GROUP BY c.id, c.user_id, c.title, c.created_at, c.updated_at`,
		userID, categoryID,
	).Scan(
		&category.ID, &category.UserID, &category.Title,
		&category.CreatedAt, &category.UpdatedAt, &category.TransactionCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledgerErrors.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) ExistsByTitle(ctx context.Context, userID, title string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE user_id = $1 AND title = $2)`,
		userID, title,
	).Scan(&exists)
	return exists, err
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET title = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
		category.Title, category.ID, category.UserID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledgerErrors.ErrCategoryNotFound
	}
	return nil
}

// Delete removes the category; the transactions that referenced it keep their
// rows and get a NULL category via the FK's ON DELETE SET NULL.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = $1 AND user_id = $2`,
		categoryID, userID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledgerErrors.ErrCategoryNotFound
	}
	return nil
}
