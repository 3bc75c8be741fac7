package notification

import (
	"fmt"
	"time"

	"app/internal/domain/model"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderCreated     EventType = "ORDER_CREATED"
	EventOrderConfirmed   EventType = "ORDER_CONFIRMED"
	EventPaymentCompleted EventType = "PAYMENT_COMPLETED"
	EventOrderShipped     EventType = "ORDER_SHIPPED"
	EventOrderDelivered   EventType = "ORDER_DELIVERED"
	EventOrderCancelled   EventType = "ORDER_CANCELLED"
)

type OrderEventItem struct {
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderEvent は通知用の注文スナップショット。
// 直接配信経路とバス経路が同じ値を独立に消費する。
type OrderEvent struct {
	Type          EventType           `json:"type"`
	OrderID       int64               `json:"order_id"`
	UserEmail     string              `json:"user_email"`
	UserName      string              `json:"user_name"`
	OrderStatus   model.OrderStatus   `json:"order_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	PaymentMethod string              `json:"payment_method"`

	TotalAmount decimal.Decimal `json:"total_amount"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`

	ShippingAddress string `json:"shipping_address"`
	TrackingNumber  string `json:"tracking_number,omitempty"`

	OrderDate             time.Time  `json:"order_date"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`

	Items []OrderEventItem `json:"items"`

	EmittedAt time.Time `json:"emitted_at"`
}

// NewOrderEvent は発行時点の注文内容を固めてイベントを作る。
func NewOrderEvent(t EventType, o model.Order, items []model.OrderItem, user model.User, addr model.Address) OrderEvent {
	evItems := make([]OrderEventItem, 0, len(items))
	for _, it := range items {
		evItems = append(evItems, OrderEventItem{
			ProductName: it.ProductNameSnapshot,
			Quantity:    it.Quantity,
			Price:       it.UnitPriceSnapshot,
		})
	}

	userName := user.Name
	if userName == "" {
		userName = user.Email
	}

	return OrderEvent{
		Type:                  t,
		OrderID:               o.ID,
		UserEmail:             user.Email,
		UserName:              userName,
		OrderStatus:           o.OrderStatus,
		PaymentStatus:         o.PaymentStatus,
		PaymentMethod:         o.PaymentMethod,
		TotalAmount:           o.TotalAmount,
		ShippingFee:           o.ShippingFee,
		TaxAmount:             o.TaxAmount,
		ShippingAddress:       formatAddress(addr),
		TrackingNumber:        o.TrackingNumber,
		OrderDate:             o.CreatedAt,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		Items:                 evItems,
		EmittedAt:             time.Now(),
	}
}

func formatAddress(a model.Address) string {
	if a.ID == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%s, %s, %s, %s - %s", a.Line1, a.City, a.State, a.Country, a.PostalCode)
}
