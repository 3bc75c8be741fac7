package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (model.Product, error)
	ListActive(ctx context.Context, page int, limit int) ([]model.Product, int64, error)
	Create(ctx context.Context, product model.Product) (int64, error)
	Update(ctx context.Context, product model.Product) error
}
