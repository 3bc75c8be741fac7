package usecase

import (
	"context"
	"net/http"
	"strings"

	"app/internal/domain/model"
	"app/internal/metrics"
	"app/internal/payment"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// PaymentUsecase はPayPal側のフローと注文側の状態を橋渡しする。
// ゲートウェイが失敗したらローカルは触らない（注文はPENDINGのまま）。
type PaymentUsecase struct {
	orderRepo repo.OrderRepository
	gateway   payment.Gateway
	orderUC   *OrderUsecase
}

func NewPaymentUsecase(orderRepo repo.OrderRepository, gateway payment.Gateway, orderUC *OrderUsecase) *PaymentUsecase {
	return &PaymentUsecase{
		orderRepo: orderRepo,
		gateway:   gateway,
		orderUC:   orderUC,
	}
}

type CreatePaymentInput struct {
	OrderID   int64
	Currency  string
	ReturnURL string
	CancelURL string
}

type CreatePaymentOutput struct {
	OrderID       int64           `json:"order_id"`
	PaypalOrderID string          `json:"paypal_order_id"`
	ApprovalURL   string          `json:"approval_url"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
}

// CreatePayment はPayPal注文を作り、そのIDを注文に紐付ける。
func (u *PaymentUsecase) CreatePayment(ctx context.Context, userID int64, in CreatePaymentInput) (CreatePaymentOutput, error) {
	if userID <= 0 {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.OrderID <= 0 {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	if strings.TrimSpace(in.ReturnURL) == "" || strings.TrimSpace(in.CancelURL) == "" {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "return_url and cancel_url required")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	order, err := u.orderRepo.FindByID(ctx, in.OrderID)
	if err == repo.ErrNotFound {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.UserID != userID {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}

	//代引きと支払い済みは対象外
	if order.PaymentStatus == model.PaymentStatusCashOnDelivery {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "cash on delivery order")
	}
	if order.PaymentStatus == model.PaymentStatusCompleted {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "order already paid")
	}

	intent, err := u.gateway.CreateOrder(ctx, payment.CreateOrderInput{
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		ShippingFee: order.ShippingFee,
		TaxAmount:   order.TaxAmount,
		Currency:    currency,
		ReturnURL:   in.ReturnURL,
		CancelURL:   in.CancelURL,
	})
	if err != nil {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}

	//PayPal側のIDを保存（後続のcapture/statusで使う）。
	//ゲートウェイ往復の間に取消や支払い完了が入っていたら紐付けない。
	attached, err := u.orderRepo.AttachPaymentIntent(ctx, order.ID, intent.RemoteOrderID, "paypal")
	if err != nil {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !attached {
		return CreatePaymentOutput{}, NewHTTPError(http.StatusConflict, "order can no longer be paid")
	}

	return CreatePaymentOutput{
		OrderID:       order.ID,
		PaypalOrderID: intent.RemoteOrderID,
		ApprovalURL:   intent.ApprovalURL,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Status:        intent.Status,
	}, nil
}

// ConfirmPayment は承認済みのPayPal注文をcaptureし、
// 成功したら支払い・注文状態のほうへ反映する。
func (u *PaymentUsecase) ConfirmPayment(ctx context.Context, userID int64, orderID int64, paypalOrderID string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	order, err := u.orderRepo.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.UserID != userID {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}

	remoteID := strings.TrimSpace(paypalOrderID)
	if remoteID == "" {
		remoteID = order.PaypalOrderID
	}
	if remoteID == "" || remoteID != order.PaypalOrderID {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "paypal order id mismatch")
	}
	if order.PaymentStatus == model.PaymentStatusCompleted {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "order already paid")
	}

	captured, err := u.gateway.Capture(ctx, remoteID)
	if err != nil {
		metrics.PaymentCaptures.WithLabelValues("error").Inc()
		return OrderOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}
	if !captured {
		//capture失敗。ローカルの状態は変えない。
		metrics.PaymentCaptures.WithLabelValues("failed").Inc()
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "payment capture failed")
	}

	metrics.PaymentCaptures.WithLabelValues("completed").Inc()

	//COMPLETED反映（注文もCONFIRMEDへ、通知もそちら経由で出る）
	return u.orderUC.UpdatePaymentStatus(ctx, orderID, string(model.PaymentStatusCompleted))
}

// GetStatus はPayPal側の注文状態をそのまま返す。
func (u *PaymentUsecase) GetStatus(ctx context.Context, paypalOrderID string) (string, error) {
	if strings.TrimSpace(paypalOrderID) == "" {
		return "", NewHTTPError(http.StatusBadRequest, "invalid paypal order id")
	}

	status, err := u.gateway.GetStatus(ctx, paypalOrderID)
	if err != nil {
		return "", NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}
	return status, nil
}

type RefundInput struct {
	OrderID   int64
	CaptureID string
	Amount    decimal.Decimal
	Currency  string
}

// Refund は管理者操作。PayPal側で返金できたら支払い状態をREFUNDEDにする。
func (u *PaymentUsecase) Refund(ctx context.Context, in RefundInput) (OrderOutput, error) {
	if in.OrderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	if strings.TrimSpace(in.CaptureID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "capture_id required")
	}
	if !in.Amount.IsPositive() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "amount must be > 0")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	order, err := u.orderRepo.FindByID(ctx, in.OrderID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.PaymentStatus != model.PaymentStatusCompleted {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "order is not paid")
	}

	ok, err := u.gateway.Refund(ctx, in.CaptureID, in.Amount, currency)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "refund failed")
	}

	return u.orderUC.UpdatePaymentStatus(ctx, in.OrderID, string(model.PaymentStatusRefunded))
}
