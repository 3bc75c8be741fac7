package usecase_test

import (
	"context"
	"strings"
	"testing"

	"app/internal/domain/model"
	"app/internal/metrics"
	"app/internal/notification"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	inventory  repo.InventoryRepository
	products   repo.ProductRepository
	addresses  repo.AddressRepository
	users      repo.UserRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *TxReposMock) Carts() repo.CartRepository           { return r.carts }
func (r *TxReposMock) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *TxReposMock) Products() repo.ProductRepository     { return r.products }
func (r *TxReposMock) Addresses() repo.AddressRepository    { return r.addresses }
func (r *TxReposMock) Users() repo.UserRepository           { return r.users }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) Save(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) AttachPaymentIntent(ctx context.Context, orderID int64, paypalOrderID string, paymentMethod string) (bool, error) {
	args := m.Called(ctx, orderID, paypalOrderID, paymentMethod)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	panic("not used in OrderUsecase tests")
}

func (m *CartRepoMock) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	args := m.Called(ctx, cartID, status)
	return args.Error(0)
}

func (m *CartRepoMock) Clear(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64, unitPriceSnapshot decimal.Decimal) error {
	panic("not used in OrderUsecase tests")
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	panic("not used in OrderUsecase tests")
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, cartItemID int64) error {
	panic("not used in OrderUsecase tests")
}

func (m *CartItemRepoMock) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	panic("not used in OrderUsecase tests")
}

func (m *CartItemRepoMock) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	panic("not used in OrderUsecase tests")
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, productID int64, newStock int64) error {
	panic("not used in OrderUsecase tests")
}

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) GetStock(ctx context.Context, productID int64) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) ListActive(ctx context.Context, page int, limit int) ([]model.Product, int64, error) {
	panic("not used in OrderUsecase tests")
}

func (m *ProductRepoMock) Create(ctx context.Context, product model.Product) (int64, error) {
	panic("not used in OrderUsecase tests")
}

func (m *ProductRepoMock) Update(ctx context.Context, product model.Product) error {
	panic("not used in OrderUsecase tests")
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	panic("not used in OrderUsecase tests")
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	panic("not used in OrderUsecase tests")
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user model.User) (int64, error) {
	panic("not used in OrderUsecase tests")
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (model.User, error) {
	panic("not used in OrderUsecase tests")
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

// NotifierRecorder は配信されたイベントを記録するだけの通知口
type NotifierRecorder struct {
	Events []notification.OrderEvent
}

func (n *NotifierRecorder) Dispatch(ctx context.Context, ev notification.OrderEvent) {
	n.Events = append(n.Events, ev)
}

func (n *NotifierRecorder) Types() []notification.EventType {
	out := make([]notification.EventType, 0, len(n.Events))
	for _, ev := range n.Events {
		out = append(out, ev.Type)
	}
	return out
}

// =====================
// Helpers
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimalEq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "got=%s want=%s", got.String(), want)
}

// CreateOrder用の標準セットアップ：
// user 1、address 7、カート3に 商品A(qty2, $10) と 商品B(qty1, $30)
type createOrderFixture struct {
	tx        *TxManagerMock
	orders    *OrderRepoMock
	items     *OrderItemRepoMock
	carts     *CartRepoMock
	cartItems *CartItemRepoMock
	inventory *InventoryRepoMock
	products  *ProductRepoMock
	addresses *AddressRepoMock
	users     *UserRepoMock
	notifier  *NotifierRecorder
	uc        *usecase.OrderUsecase
}

func newCreateOrderFixture() *createOrderFixture {
	f := &createOrderFixture{
		tx:        new(TxManagerMock),
		orders:    new(OrderRepoMock),
		items:     new(OrderItemRepoMock),
		carts:     new(CartRepoMock),
		cartItems: new(CartItemRepoMock),
		inventory: new(InventoryRepoMock),
		products:  new(ProductRepoMock),
		addresses: new(AddressRepoMock),
		users:     new(UserRepoMock),
		notifier:  &NotifierRecorder{},
	}
	f.tx.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.items,
		carts:      f.carts,
		cartItems:  f.cartItems,
		inventory:  f.inventory,
		products:   f.products,
		addresses:  f.addresses,
		users:      f.users,
	}
	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.uc = usecase.NewOrderUsecase(f.tx, f.notifier)
	return f
}

func (f *createOrderFixture) stubHappyPath() {
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 1, Line1: "1 Main St", City: "Springfield", PostalCode: "12345"}, nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com", Name: "Buyer"}, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, UserID: 1, Status: model.CartStatusActive}, nil)
	f.cartItems.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{
		{ID: 31, CartID: 3, ProductID: 100, Quantity: 2, UnitPriceSnapshot: d("10")},
		{ID: 32, CartID: 3, ProductID: 200, Quantity: 1, UnitPriceSnapshot: d("30")},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(100)).Return(model.Product{ID: 100, Name: "Apples", Price: d("10"), Stock: 5, IsActive: true}, nil)
	f.products.On("FindByID", mock.Anything, int64(200)).Return(model.Product{ID: 200, Name: "Beans", Price: d("30"), Stock: 5, IsActive: true}, nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(100), int64(2)).Return(true, nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(200), int64(1)).Return(true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil)
	f.items.On("CreateBulk", mock.Anything, int64(42), mock.Anything).Return(nil)
	f.carts.On("UpdateStatus", mock.Anything, int64(3), model.CartStatusCheckedOut).Return(nil)
	f.carts.On("Clear", mock.Anything, int64(3)).Return(nil)
}

// =====================
// CreateOrder
// =====================

func TestOrderUsecase_CreateOrder_Success_FreeShippingAndTax(t *testing.T) {
	f := newCreateOrderFixture()
	f.stubHappyPath()

	out, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assert.NoError(t, err)

	// 小計 $50 → 送料無料、税8% = $4、合計 $54
	assert.Equal(t, int64(42), out.ID)
	assertDecimalEq(t, "0", out.ShippingFee)
	assertDecimalEq(t, "4", out.TaxAmount)
	assertDecimalEq(t, "54", out.TotalAmount)
	assert.Equal(t, "PENDING", out.OrderStatus)
	assert.Equal(t, "PENDING", out.PaymentStatus)
	assert.NotNil(t, out.EstimatedDeliveryDate)
	assert.Equal(t, 2, len(out.Items))

	// ORDER_CREATEDだけが出る（前払いなので確定イベントは無し）
	assert.Equal(t, []notification.EventType{notification.EventOrderCreated}, f.notifier.Types())

	f.orders.AssertExpectations(t)
	f.items.AssertExpectations(t)
	f.carts.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
}

// 任意入力の支払い方法はそのままメトリクスのラベルにしない
func TestOrderUsecase_CreateOrder_PaymentMethodLabelNormalized(t *testing.T) {
	f := newCreateOrderFixture()
	f.stubHappyPath()

	before := testutil.ToFloat64(metrics.OrdersCreated.WithLabelValues("other"))

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "gift-card-9f3b"})
	assert.NoError(t, err)

	after := testutil.ToFloat64(metrics.OrdersCreated.WithLabelValues("other"))
	assert.Equal(t, before+1, after)
}

func TestOrderUsecase_CreateOrder_FlatShippingUnderThreshold(t *testing.T) {
	f := newCreateOrderFixture()
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 1}, nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com"}, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, UserID: 1}, nil)
	f.cartItems.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{
		{ID: 31, CartID: 3, ProductID: 100, Quantity: 2, UnitPriceSnapshot: d("10")},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(100)).Return(model.Product{ID: 100, Name: "Apples", Price: d("10"), Stock: 5, IsActive: true}, nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(100), int64(2)).Return(true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(43), nil)
	f.items.On("CreateBulk", mock.Anything, int64(43), mock.Anything).Return(nil)
	f.carts.On("UpdateStatus", mock.Anything, int64(3), model.CartStatusCheckedOut).Return(nil)
	f.carts.On("Clear", mock.Anything, int64(3)).Return(nil)

	out, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assert.NoError(t, err)

	// 小計 $20 → 送料$5、税 $1.60、合計 $26.60
	assertDecimalEq(t, "5", out.ShippingFee)
	assertDecimalEq(t, "1.60", out.TaxAmount)
	assertDecimalEq(t, "26.60", out.TotalAmount)
}

func TestOrderUsecase_CreateOrder_CashOnDelivery_AutoConfirmed(t *testing.T) {
	f := newCreateOrderFixture()
	f.stubHappyPath()

	out, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "cash"})
	assert.NoError(t, err)

	// 代引きはゲートウェイを通らず即CONFIRMED
	assert.Equal(t, "CONFIRMED", out.OrderStatus)
	assert.Equal(t, "CASH_ON_DELIVERY", out.PaymentStatus)

	// 作成＋確定の2イベント
	assert.Equal(t, []notification.EventType{
		notification.EventOrderCreated,
		notification.EventOrderConfirmed,
	}, f.notifier.Types())
}

func TestOrderUsecase_CreateOrder_InsufficientStock_AbortsWholeOrder(t *testing.T) {
	f := newCreateOrderFixture()
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 1}, nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com"}, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, UserID: 1}, nil)
	f.cartItems.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{
		{ID: 31, CartID: 3, ProductID: 100, Quantity: 2, UnitPriceSnapshot: d("10")},
		{ID: 32, CartID: 3, ProductID: 200, Quantity: 10, UnitPriceSnapshot: d("30")},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(100)).Return(model.Product{ID: 100, Name: "Apples", Price: d("10"), Stock: 5, IsActive: true}, nil)
	f.products.On("FindByID", mock.Anything, int64(200)).Return(model.Product{ID: 200, Name: "Beans", Price: d("30"), Stock: 5, IsActive: true}, nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(100), int64(2)).Return(true, nil)
	// 2品目で在庫不足 → 注文全体が失敗（txなので1品目の減算もロールバックされる）
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(200), int64(10)).Return(false, nil)

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assertErrContains(t, err, "not enough stock")

	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	assert.Equal(t, 0, len(f.notifier.Events))
}

func TestOrderUsecase_CreateOrder_AddressNotOwned(t *testing.T) {
	f := newCreateOrderFixture()
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 99}, nil)

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assertErrContains(t, err, "address does not belong")
}

func TestOrderUsecase_CreateOrder_AddressNotFound(t *testing.T) {
	f := newCreateOrderFixture()
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{}, repo.ErrNotFound)

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assertErrContains(t, err, "address not found")
}

func TestOrderUsecase_CreateOrder_EmptyCart(t *testing.T) {
	f := newCreateOrderFixture()
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 1}, nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1}, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, UserID: 1}, nil)
	f.cartItems.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{}, nil)

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assertErrContains(t, err, "cart is empty")
}

func TestOrderUsecase_CreateOrder_InactiveProduct(t *testing.T) {
	f := newCreateOrderFixture()
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 1}, nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1}, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 3, UserID: 1}, nil)
	f.cartItems.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{
		{ID: 31, CartID: 3, ProductID: 100, Quantity: 1, UnitPriceSnapshot: d("10")},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(100)).Return(model.Product{ID: 100, Name: "Apples", Price: d("10"), Stock: 5, IsActive: false}, nil)

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{AddressID: 7, PaymentMethod: "paypal"})
	assertErrContains(t, err, "invalid product")
}

// =====================
// Cancel
// =====================

func TestOrderUsecase_Cancel_RestoresStockOnce(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, AddressID: 7, OrderStatus: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending}
	items := []model.OrderItem{
		{ID: 1, OrderID: 42, ProductID: 100, ProductNameSnapshot: "Apples", UnitPriceSnapshot: d("10"), Quantity: 2},
		{ID: 2, OrderID: 42, ProductID: 200, ProductNameSnapshot: "Beans", UnitPriceSnapshot: d("30"), Quantity: 1},
	}

	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return(items, nil)
	f.inventory.On("IncreaseStock", mock.Anything, int64(100), int64(2)).Return(nil)
	f.inventory.On("IncreaseStock", mock.Anything, int64(200), int64(1)).Return(nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com"}, nil)
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7, UserID: 1}, nil)

	out, err := f.uc.CancelOrder(context.Background(), 42, "changed my mind")
	assert.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.OrderStatus)
	assert.Equal(t, "changed my mind", out.CancellationReason)
	assert.NotNil(t, out.CancelledAt)

	assert.Equal(t, []notification.EventType{notification.EventOrderCancelled}, f.notifier.Types())

	f.inventory.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestOrderUsecase_Cancel_SecondCancelRejected(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, OrderStatus: model.OrderStatusCancelled}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)

	_, err := f.uc.CancelOrder(context.Background(), 42, "again")
	assertErrContains(t, err, "cannot cancel")

	// 在庫の二重戻しは起きない
	f.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, len(f.notifier.Events))
}

func TestOrderUsecase_Cancel_DeliveredRejected(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, OrderStatus: model.OrderStatusDelivered}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)

	_, err := f.uc.CancelOrder(context.Background(), 42, "too late")
	assertErrContains(t, err, "cannot cancel")
}

func TestOrderUsecase_CancelMyOrder_OtherUsersOrderHidden(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 99, OrderStatus: model.OrderStatusPending}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)

	_, err := f.uc.CancelMyOrder(context.Background(), 1, 42, "not mine")
	assertErrContains(t, err, "order not found")
}

// =====================
// UpdateOrderStatus
// =====================

func TestOrderUsecase_UpdateOrderStatus_InvalidStatus(t *testing.T) {
	f := newCreateOrderFixture()

	_, err := f.uc.UpdateOrderStatus(context.Background(), 42, "UNKNOWN")
	assertErrContains(t, err, "invalid status")
}

func TestOrderUsecase_UpdateOrderStatus_SameStatus_NoOp(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, OrderStatus: model.OrderStatusShipped}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)

	out, err := f.uc.UpdateOrderStatus(context.Background(), 42, "SHIPPED")
	assert.NoError(t, err)
	assert.Equal(t, "SHIPPED", out.OrderStatus)

	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 0, len(f.notifier.Events))
}

func TestOrderUsecase_UpdateOrderStatus_Delivered_SetsDateAndNotifies(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, AddressID: 7, OrderStatus: model.OrderStatusShipped}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com"}, nil)
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7}, nil)

	out, err := f.uc.UpdateOrderStatus(context.Background(), 42, "DELIVERED")
	assert.NoError(t, err)
	assert.Equal(t, "DELIVERED", out.OrderStatus)
	assert.NotNil(t, out.DeliveredDate)

	assert.Equal(t, []notification.EventType{notification.EventOrderDelivered}, f.notifier.Types())
}

func TestOrderUsecase_UpdateOrderStatus_Processing_NoNotification(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, AddressID: 7, OrderStatus: model.OrderStatusConfirmed}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1}, nil)
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7}, nil)

	out, err := f.uc.UpdateOrderStatus(context.Background(), 42, "PROCESSING")
	assert.NoError(t, err)
	assert.Equal(t, "PROCESSING", out.OrderStatus)
	assert.Equal(t, 0, len(f.notifier.Events))
}

// =====================
// UpdatePaymentStatus
// =====================

func TestOrderUsecase_UpdatePaymentStatus_Completed_ConfirmsOrder(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, AddressID: 7, OrderStatus: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com"}, nil)
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7}, nil)

	out, err := f.uc.UpdatePaymentStatus(context.Background(), 42, "COMPLETED")
	assert.NoError(t, err)
	assert.Equal(t, "COMPLETED", out.PaymentStatus)
	assert.Equal(t, "CONFIRMED", out.OrderStatus)

	assert.Equal(t, []notification.EventType{notification.EventPaymentCompleted}, f.notifier.Types())
}

func TestOrderUsecase_UpdatePaymentStatus_Invalid(t *testing.T) {
	f := newCreateOrderFixture()

	_, err := f.uc.UpdatePaymentStatus(context.Background(), 42, "PAID")
	assertErrContains(t, err, "invalid payment status")
}

// =====================
// UpdateTrackingNumber
// =====================

func TestOrderUsecase_UpdateTrackingNumber_ShippedReemitsNotification(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, AddressID: 7, OrderStatus: model.OrderStatusShipped}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1, Email: "buyer@example.com"}, nil)
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7}, nil)

	out, err := f.uc.UpdateTrackingNumber(context.Background(), 42, "TRACK-123")
	assert.NoError(t, err)
	assert.Equal(t, "TRACK-123", out.TrackingNumber)

	assert.Equal(t, []notification.EventType{notification.EventOrderShipped}, f.notifier.Types())
}

func TestOrderUsecase_UpdateTrackingNumber_NotShipped_NoNotification(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 1, AddressID: 7, OrderStatus: model.OrderStatusProcessing}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(1)).Return(model.User{ID: 1}, nil)
	f.addresses.On("FindByID", mock.Anything, int64(7)).Return(model.Address{ID: 7}, nil)

	_, err := f.uc.UpdateTrackingNumber(context.Background(), 42, "TRACK-123")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(f.notifier.Events))
}

func TestOrderUsecase_UpdateTrackingNumber_Empty(t *testing.T) {
	f := newCreateOrderFixture()

	_, err := f.uc.UpdateTrackingNumber(context.Background(), 42, "  ")
	assertErrContains(t, err, "invalid tracking_number")
}

// =====================
// Read side
// =====================

func TestOrderUsecase_GetMyOrder_OtherUsersOrderHidden(t *testing.T) {
	f := newCreateOrderFixture()

	order := model.Order{ID: 42, UserID: 99}
	f.orders.On("FindByID", mock.Anything, int64(42)).Return(order, nil)

	_, err := f.uc.GetMyOrder(context.Background(), 1, 42)
	assertErrContains(t, err, "order not found")
}

func TestOrderUsecase_ListAdmin_InvalidPage(t *testing.T) {
	f := newCreateOrderFixture()

	_, err := f.uc.ListAdmin(context.Background(), repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")
}
