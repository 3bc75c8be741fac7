package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type CreatePaymentRequest struct {
	OrderID   int64  `json:"order_id"`
	Currency  string `json:"currency"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type CapturePaymentRequest struct {
	OrderID       int64  `json:"order_id"`
	PaypalOrderID string `json:"paypal_order_id"`
}

type RefundRequest struct {
	OrderID   int64           `json:"order_id"`
	CaptureID string          `json:"capture_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type PaymentStatusResponse struct {
	PaypalOrderID string `json:"paypal_order_id"`
	Status        string `json:"status"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("/create-payment", h.create)
	//旧フロント互換のalias
	g.POST("/create", h.create)
	g.POST("/capture", h.capture)
	g.GET("/status/:paypalOrderId", h.status)

	g.POST("/refund", h.refund, middleware.AdminRoleGuard())
}

func (h *PaymentHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.CreatePayment(c.Request().Context(), userID, usecase.CreatePaymentInput{
		OrderID:   req.OrderID,
		Currency:  req.Currency,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) capture(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CapturePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ConfirmPayment(c.Request().Context(), userID, req.OrderID, req.PaypalOrderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) status(c echo.Context) error {
	paypalOrderID := c.Param("paypalOrderId")

	status, err := h.uc.GetStatus(c.Request().Context(), paypalOrderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, PaymentStatusResponse{
		PaypalOrderID: paypalOrderID,
		Status:        status,
	})
}

func (h *PaymentHandler) refund(c echo.Context) error {
	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Refund(c.Request().Context(), usecase.RefundInput{
		OrderID:   req.OrderID,
		CaptureID: req.CaptureID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
