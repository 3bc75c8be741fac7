package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusRefunded       OrderStatus = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "PENDING"
	PaymentStatusCompleted      PaymentStatus = "COMPLETED"
	PaymentStatusFailed         PaymentStatus = "FAILED"
	PaymentStatusRefunded       PaymentStatus = "REFUNDED"
	PaymentStatusCashOnDelivery PaymentStatus = "CASH_ON_DELIVERY"
)

// 注文。削除はせずCANCELLEDへの遷移のみ。
// 金額は作成時に確定し、以後再計算しない。
type Order struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64         `gorm:"not null;index" json:"user_id"`
	AddressID     int64         `gorm:"not null" json:"address_id"`
	PaymentMethod string        `gorm:"type:varchar(50)" json:"payment_method"`
	PaypalOrderID string        `gorm:"type:varchar(100);index" json:"paypal_order_id,omitempty"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(50);not null;index" json:"payment_status"`
	OrderStatus   OrderStatus   `gorm:"type:varchar(50);not null;index" json:"order_status"`

	ShippingFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`

	TrackingNumber        string     `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`
	DeliveredDate         *time.Time `json:"delivered_date,omitempty"`
	CancellationReason    string     `gorm:"type:varchar(500)" json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
