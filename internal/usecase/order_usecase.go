package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/metrics"
	"app/internal/notification"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// 送料・税の規定値。$50以上で送料無料、それ未満は一律$5、税は小計の8%。
var (
	freeShippingThreshold = decimal.NewFromInt(50)
	flatShippingFee       = decimal.NewFromInt(5)
	taxRate               = decimal.NewFromFloat(0.08)
)

// 配達予定は注文から7日後
const deliveryLeadTime = 7 * 24 * time.Hour

// OrderNotifier は注文イベントの配信口。
// 配信の失敗は呼び出し側へ返らない（Dispatcher側で処理される）。
type OrderNotifier interface {
	Dispatch(ctx context.Context, ev notification.OrderEvent)
}

// OrderUsecase が注文のライフサイクル（作成・取消・状態遷移）を持つ。
type OrderUsecase struct {
	tx       repo.TransactionManager
	notifier OrderNotifier
}

func NewOrderUsecase(tx repo.TransactionManager, notifier OrderNotifier) *OrderUsecase {
	return &OrderUsecase{tx: tx, notifier: notifier}
}

type CreateOrderInput struct {
	AddressID     int64
	PaymentMethod string
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	PaypalOrderID string `json:"paypal_order_id,omitempty"`
	OrderStatus   string `json:"order_status"`
	PaymentStatus string `json:"payment_status"`

	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	TrackingNumber        string     `json:"tracking_number,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`
	DeliveredDate         *time.Time `json:"delivered_date,omitempty"`
	CancellationReason    string     `json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time         `json:"created_at"`
	Items     []OrderItemOutput `json:"items"`
}

// 代引きか（支払いはゲートウェイを通らない）
func isCashOnDelivery(method string) bool {
	m := strings.ToLower(strings.TrimSpace(method))
	return m == "cash" || m == "cod"
}

// メトリクスのラベルは閉集合に正規化する（任意入力をそのまま使わない）
func paymentMethodLabel(method string) string {
	switch m := strings.ToLower(strings.TrimSpace(method)); {
	case m == "paypal":
		return "paypal"
	case m == "cash" || m == "cod":
		return "cod"
	default:
		return "other"
	}
}

// CreateOrder はカートの内容から注文を作る。
// 在庫減算・明細スナップショット・金額確定・カートのクリアまでを
// 1トランザクションで行い、どこかで失敗したら全部捨てる。
// 通知はcommit後に送り、失敗しても注文は成立したまま。
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}

	var (
		out     OrderOutput
		created model.Order
		items   []model.OrderItem
		buyer   model.User
		addr    model.Address
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//住所の存在確認＋所有チェック
		var err error
		addr, err = r.Addresses().FindByID(ctx, in.AddressID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "address not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if addr.UserID != userID {
			return NewHTTPError(http.StatusForbidden, "address does not belong to user")
		}

		buyer, err = r.Users().FindByID(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//ACTIVEカート取得
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "cart is empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart is empty")
		}

		//在庫を確定時に再チェックして減らす。
		//単価はカート追加時ではなく今のカタログ価格を固定する。
		items = make([]model.OrderItem, 0, len(cartItems))
		subtotal := decimal.Zero

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}

			//在庫減算（足りないならfalse、注文全体を中断）
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "not enough stock: "+p.Name)
			}

			items = append(items, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
				CreatedAt:           time.Now(),
			})

			subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(ci.Quantity)))
		}

		shippingFee := calculateShippingFee(subtotal)
		taxAmount := calculateTax(subtotal)
		totalAmount := subtotal.Add(shippingFee).Add(taxAmount)

		now := time.Now()
		estimated := now.Add(deliveryLeadTime)

		order := model.Order{
			UserID:                userID,
			AddressID:             in.AddressID,
			PaymentMethod:         in.PaymentMethod,
			OrderStatus:           model.OrderStatusPending,
			PaymentStatus:         model.PaymentStatusPending,
			ShippingFee:           shippingFee,
			TaxAmount:             taxAmount,
			TotalAmount:           totalAmount,
			EstimatedDeliveryDate: &estimated,
			CreatedAt:             now,
			UpdatedAt:             now,
		}

		//代引きはゲートウェイを通らず即CONFIRMED
		if isCashOnDelivery(in.PaymentMethod) {
			order.PaymentStatus = model.PaymentStatusCashOnDelivery
			order.OrderStatus = model.OrderStatusConfirmed
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//カートをCHECKED_OUTにして明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		created = order
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	metrics.OrdersCreated.WithLabelValues(paymentMethodLabel(in.PaymentMethod)).Inc()

	//通知はcommit後。失敗しても注文には影響しない。
	u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderCreated, created, items, buyer, addr))
	if isCashOnDelivery(in.PaymentMethod) {
		u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderConfirmed, created, items, buyer, addr))
	}

	return out, nil
}

// UpdateOrderStatus は注文状態を上書きする。
// 取消ガード以外の遷移表は現状未定義で、逆行も通る（既知の挙動）。
// 同じ状態の再適用は何もしないで成功を返す。
func (u *OrderUsecase) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus string) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	status := model.OrderStatus(strings.TrimSpace(newStatus))
	switch status {
	case model.OrderStatusPending, model.OrderStatusConfirmed, model.OrderStatusProcessing,
		model.OrderStatusShipped, model.OrderStatusOutForDelivery, model.OrderStatusDelivered,
		model.OrderStatusCancelled, model.OrderStatusRefunded:
		// OK
	default:
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var (
		out     OrderOutput
		order   model.Order
		items   []model.OrderItem
		buyer   model.User
		addr    model.Address
		changed bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//すでに同じなら何もしない
		if order.OrderStatus == status {
			out = toOrderOutput(order, items)
			return nil
		}

		order.OrderStatus = status
		if status == model.OrderStatusDelivered {
			now := time.Now()
			order.DeliveredDate = &now
		}
		order.UpdatedAt = time.Now()

		if err := r.Orders().Save(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		buyer, addr = loadEventParties(ctx, r, order)
		changed = true
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed {
		switch status {
		case model.OrderStatusShipped:
			u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderShipped, order, items, buyer, addr))
		case model.OrderStatusDelivered:
			u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderDelivered, order, items, buyer, addr))
		case model.OrderStatusCancelled:
			u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderCancelled, order, items, buyer, addr))
		}
	}

	return out, nil
}

// UpdatePaymentStatus は支払い状態を更新する。
// COMPLETEDになったら注文もCONFIRMEDへ進める。
func (u *OrderUsecase) UpdatePaymentStatus(ctx context.Context, orderID int64, newStatus string) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	status := model.PaymentStatus(strings.TrimSpace(newStatus))
	switch status {
	case model.PaymentStatusPending, model.PaymentStatusCompleted, model.PaymentStatusFailed,
		model.PaymentStatusRefunded, model.PaymentStatusCashOnDelivery:
		// OK
	default:
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment status")
	}

	var (
		out     OrderOutput
		order   model.Order
		items   []model.OrderItem
		buyer   model.User
		addr    model.Address
		changed bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if order.PaymentStatus == status {
			out = toOrderOutput(order, items)
			return nil
		}

		order.PaymentStatus = status
		if status == model.PaymentStatusCompleted {
			order.OrderStatus = model.OrderStatusConfirmed
		}
		order.UpdatedAt = time.Now()

		if err := r.Orders().Save(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		buyer, addr = loadEventParties(ctx, r, order)
		changed = true
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed && status == model.PaymentStatusCompleted {
		u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventPaymentCompleted, order, items, buyer, addr))
	}

	return out, nil
}

// CancelOrder は注文を取り消し、明細の数量どおりに在庫を戻す。
// 戻しは取消1回につき1回だけ。DELIVERED/CANCELLEDは取消不可。
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID int64, reason string) (OrderOutput, error) {
	return u.cancel(ctx, 0, orderID, reason)
}

// CancelMyOrder は本人の注文に限って取り消す。
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, userID int64, orderID int64, reason string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.cancel(ctx, userID, orderID, reason)
}

func (u *OrderUsecase) cancel(ctx context.Context, requireUserID int64, orderID int64, reason string) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		out   OrderOutput
		order model.Order
		items []model.OrderItem
		buyer model.User
		addr  model.Address
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//他人の注文は「存在しない扱い」
		if requireUserID > 0 && order.UserID != requireUserID {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}

		//二重取消・配達済みの取消は弾く（在庫の二重戻し防止）
		if order.OrderStatus == model.OrderStatusDelivered || order.OrderStatus == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "cannot cancel this order")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//在庫戻し（予約時と同じ数量・1回だけ）
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		now := time.Now()
		order.OrderStatus = model.OrderStatusCancelled
		order.CancellationReason = reason
		order.CancelledAt = &now
		order.UpdatedAt = now

		if err := r.Orders().Save(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		buyer, addr = loadEventParties(ctx, r, order)
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	metrics.OrdersCancelled.Inc()
	u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderCancelled, order, items, buyer, addr))

	return out, nil
}

// UpdateTrackingNumber は追跡番号を付ける。
// 出荷済みの注文なら出荷通知を出し直す。
func (u *OrderUsecase) UpdateTrackingNumber(ctx context.Context, orderID int64, trackingNumber string) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if strings.TrimSpace(trackingNumber) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid tracking_number")
	}

	var (
		out   OrderOutput
		order model.Order
		items []model.OrderItem
		buyer model.User
		addr  model.Address
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order.TrackingNumber = strings.TrimSpace(trackingNumber)
		order.UpdatedAt = time.Now()

		if err := r.Orders().Save(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		buyer, addr = loadEventParties(ctx, r, order)
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if order.OrderStatus == model.OrderStatusShipped {
		u.notifier.Dispatch(ctx, notification.NewOrderEvent(notification.EventOrderShipped, order, items, buyer, addr))
	}

	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "order not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 管理者用の注文一覧
func (u *OrderUsecase) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func calculateShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		return decimal.Zero
	}
	return flatShippingFee
}

func calculateTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRate).Round(2)
}

// 通知用にユーザーと住所を引く。ここの失敗で遷移は止めない。
func loadEventParties(ctx context.Context, r repo.TxRepos, o model.Order) (model.User, model.Address) {
	buyer, err := r.Users().FindByID(ctx, o.UserID)
	if err != nil {
		buyer = model.User{}
	}
	addr, err := r.Addresses().FindByID(ctx, o.AddressID)
	if err != nil {
		addr = model.Address{}
	}
	return buyer, addr
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
		})
	}

	return OrderOutput{
		ID:                    o.ID,
		UserID:                o.UserID,
		AddressID:             o.AddressID,
		PaymentMethod:         o.PaymentMethod,
		PaypalOrderID:         o.PaypalOrderID,
		OrderStatus:           string(o.OrderStatus),
		PaymentStatus:         string(o.PaymentStatus),
		ShippingFee:           o.ShippingFee,
		TaxAmount:             o.TaxAmount,
		TotalAmount:           o.TotalAmount,
		TrackingNumber:        o.TrackingNumber,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		DeliveredDate:         o.DeliveredDate,
		CancellationReason:    o.CancellationReason,
		CancelledAt:           o.CancelledAt,
		CreatedAt:             o.CreatedAt,
		Items:                 outItems,
	}
}
