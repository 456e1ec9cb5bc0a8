package domain

import (
	"context"
	"time"
)

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// TransactionCount is filled by list queries only.
	TransactionCount int `json:"transaction_count"`
}

type CategoryRepository interface {
	Save(ctx context.Context, category *Category) error
	FindByUser(ctx context.Context, userID string) ([]Category, error)
	FindByID(ctx context.Context, categoryID, userID string) (*Category, error)
	ExistsByTitle(ctx context.Context, userID, title string) (bool, error)
	Update(ctx context.Context, category Category) error
	Delete(ctx context.Context, categoryID, userID string) error
}
