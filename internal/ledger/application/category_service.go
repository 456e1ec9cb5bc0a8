package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkaminsky/PocketLedger/internal/ledger/domain"
	ledgerErrors "github.com/mkaminsky/PocketLedger/internal/ledger/errors"
)

type CategoryService struct {
	repo domain.CategoryRepository
}

func NewCategoryService(repo domain.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) CreateCategory(ctx context.Context, userID, title string) (*domain.Category, error) {
	if title == "" {
		return nil, ledgerErrors.NewFieldValidationError("title", "must not be empty")
	}

	exists, err := s.repo.ExistsByTitle(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ledgerErrors.ErrCategoryExists
	}

	category := domain.Category{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	if err := s.repo.Save(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) GetUserCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	categories, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		return []domain.Category{}, nil
	}
	return categories, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, categoryID, userID string) (*domain.Category, error) {
	return s.repo.FindByID(ctx, categoryID, userID)
}

func (s *CategoryService) UpdateCategory(ctx context.Context, categoryID, userID, title string) (*domain.Category, error) {
	if title == "" {
		return nil, ledgerErrors.NewFieldValidationError("title", "must not be empty")
	}

	category, err := s.repo.FindByID(ctx, categoryID, userID)
	if err != nil {
		return nil, err
	}

	if category.Title != title {
		exists, err := s.repo.ExistsByTitle(ctx, userID, title)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ledgerErrors.ErrCategoryExists
		}
	}

	category.Title = title
	if err := s.repo.Update(ctx, *category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, categoryID, userID string) error {
	return s.repo.Delete(ctx, categoryID, userID)
}
