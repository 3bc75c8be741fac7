package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks（衝突回避の命名）
// =====================

type ProdProductRepoMock struct{ mock.Mock }

func (m *ProdProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProdProductRepoMock) ListActive(ctx context.Context, page int, limit int) ([]model.Product, int64, error) {
	args := m.Called(ctx, page, limit)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProdProductRepoMock) Create(ctx context.Context, product model.Product) (int64, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ProdProductRepoMock) Update(ctx context.Context, product model.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

type ProdInventoryRepoMock struct{ mock.Mock }

func (m *ProdInventoryRepoMock) SetStock(ctx context.Context, productID int64, newStock int64) error {
	args := m.Called(ctx, productID, newStock)
	return args.Error(0)
}

func (m *ProdInventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	panic("not used in ProductUsecase tests")
}

func (m *ProdInventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	panic("not used in ProductUsecase tests")
}

func (m *ProdInventoryRepoMock) GetStock(ctx context.Context, productID int64) (int64, error) {
	panic("not used in ProductUsecase tests")
}

// =====================
// Public: List / Detail
// =====================

func TestProductUsecase_ListPublicProducts_InvalidPage(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProdProductRepoMock), new(ProdInventoryRepoMock))

	_, err := uc.ListPublicProducts(context.Background(), 0, 20)
	assertErrContains(t, err, "invalid page")
}

func TestProductUsecase_ListPublicProducts_InvalidLimit(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProdProductRepoMock), new(ProdInventoryRepoMock))

	_, err := uc.ListPublicProducts(context.Background(), 1, 101)
	assertErrContains(t, err, "invalid limit")
}

func TestProductUsecase_ListPublicProducts_Success(t *testing.T) {
	pRepo := new(ProdProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo, new(ProdInventoryRepoMock))

	items := []model.Product{
		{ID: 1, Name: "Apples", IsActive: true},
	}
	pRepo.On("ListActive", mock.Anything, 1, 20).Return(items, int64(1), nil)

	out, err := uc.ListPublicProducts(context.Background(), 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 1, len(out.Items))

	pRepo.AssertExpectations(t)
}

func TestProductUsecase_GetProductDetail_NotFound_WhenInactive(t *testing.T) {
	pRepo := new(ProdProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo, new(ProdInventoryRepoMock))

	pRepo.On("FindByID", mock.Anything, int64(5)).Return(model.Product{ID: 5, IsActive: false}, nil)

	_, err := uc.GetProductDetail(context.Background(), 5)
	assertErrContains(t, err, "not found")
}

// =====================
// Admin
// =====================

func TestProductUsecase_AdminCreateProduct_NegativePrice(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProdProductRepoMock), new(ProdInventoryRepoMock))

	_, err := uc.AdminCreateProduct(context.Background(), 1, usecase.AdminProductInput{
		Name: "Apples", Price: d("-1"), Stock: 5,
	})
	assertErrContains(t, err, "price must be >= 0")
}

func TestProductUsecase_AdminCreateProduct_Success(t *testing.T) {
	pRepo := new(ProdProductRepoMock)
	uc := usecase.NewProductUsecase(pRepo, new(ProdInventoryRepoMock))

	pRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
		return p.Name == "Apples" && p.Price.Equal(d("10")) && p.Stock == 5
	})).Return(int64(100), nil)

	id, err := uc.AdminCreateProduct(context.Background(), 1, usecase.AdminProductInput{
		Name: " Apples ", Price: d("10"), Stock: 5, IsActive: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(100), id)
}

func TestProductUsecase_AdminUpdateInventory_Negative(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProdProductRepoMock), new(ProdInventoryRepoMock))

	err := uc.AdminUpdateInventory(context.Background(), 1, 100, -1)
	assertErrContains(t, err, "stock must be >= 0")
}

func TestProductUsecase_AdminUpdateInventory_NotFound(t *testing.T) {
	invRepo := new(ProdInventoryRepoMock)
	uc := usecase.NewProductUsecase(new(ProdProductRepoMock), invRepo)

	invRepo.On("SetStock", mock.Anything, int64(999), int64(10)).Return(repo.ErrNotFound)

	err := uc.AdminUpdateInventory(context.Background(), 1, 999, 10)
	assertErrContains(t, err, "not found")
}
