package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway は外部決済プロセッサ（order/capture型）との窓口。
// 呼び出しは全て同期のネットワーク往復。失敗はそのまま返し、
// ローカルの注文・在庫状態には触れない。
type Gateway interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (PaymentIntent, error)
	Capture(ctx context.Context, remoteOrderID string) (bool, error)
	GetStatus(ctx context.Context, remoteOrderID string) (string, error)
	Refund(ctx context.Context, captureID string, amount decimal.Decimal, currency string) (bool, error)
}

type CreateOrderInput struct {
	OrderID     int64
	TotalAmount decimal.Decimal
	ShippingFee decimal.Decimal
	TaxAmount   decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

// PaymentIntent はゲートウェイ側の支払い表現。
type PaymentIntent struct {
	RemoteOrderID string          `json:"paypal_order_id"`
	ApprovalURL   string          `json:"approval_url"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
}

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

type PayPalClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
}

func NewPayPalClient(clientID, clientSecret, mode string) *PayPalClient {
	baseURL := liveBaseURL
	if strings.EqualFold(mode, "sandbox") {
		baseURL = sandboxBaseURL
	}
	return &PayPalClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// getAccessToken はclient credentialでアクセストークンを取る。
// 短命トークンなのでキャッシュせず毎回取り直す。
func (c *PayPalClient) getAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("paypal token exchange: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("paypal token exchange: empty access_token")
	}
	return out.AccessToken, nil
}

type amountBreakdown struct {
	ItemTotal money `json:"item_total"`
	Shipping  money `json:"shipping"`
	TaxTotal  money `json:"tax_total"`
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Description string `json:"description"`
	CustomID    string `json:"custom_id"`
	Amount      struct {
		money
		Breakdown amountBreakdown `json:"breakdown"`
	} `json:"amount"`
}

type createOrderRequest struct {
	Intent             string `json:"intent"`
	ApplicationContext struct {
		ReturnURL          string `json:"return_url"`
		CancelURL          string `json:"cancel_url"`
		BrandName          string `json:"brand_name"`
		LandingPage        string `json:"landing_page"`
		ShippingPreference string `json:"shipping_preference"`
	} `json:"application_context"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateOrder はCAPTUREインテントで支払いを作る。
// 金額の内訳（商品計＋送料＋税）は注文のtotalAmountと一致していること。
func (c *PayPalClient) CreateOrder(ctx context.Context, in CreateOrderInput) (PaymentIntent, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return PaymentIntent{}, err
	}

	itemTotal := in.TotalAmount.Sub(in.ShippingFee).Sub(in.TaxAmount)

	var body createOrderRequest
	body.Intent = "CAPTURE"
	body.ApplicationContext.ReturnURL = in.ReturnURL
	body.ApplicationContext.CancelURL = in.CancelURL
	body.ApplicationContext.BrandName = "Grocery Store"
	body.ApplicationContext.LandingPage = "BILLING"
	body.ApplicationContext.ShippingPreference = "NO_SHIPPING"

	var pu purchaseUnit
	orderRef := strconv.FormatInt(in.OrderID, 10)
	pu.ReferenceID = orderRef
	pu.CustomID = orderRef
	pu.Description = fmt.Sprintf("Order #%d - Grocery Purchase", in.OrderID)
	pu.Amount.CurrencyCode = in.Currency
	pu.Amount.Value = in.TotalAmount.StringFixed(2)
	pu.Amount.Breakdown = amountBreakdown{
		ItemTotal: money{CurrencyCode: in.Currency, Value: itemTotal.StringFixed(2)},
		Shipping:  money{CurrencyCode: in.Currency, Value: in.ShippingFee.StringFixed(2)},
		TaxTotal:  money{CurrencyCode: in.Currency, Value: in.TaxAmount.StringFixed(2)},
	}
	body.PurchaseUnits = []purchaseUnit{pu}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v2/checkout/orders", token, body)
	if err != nil {
		return PaymentIntent{}, err
	}

	var out orderResponse
	if err := c.do(req, &out); err != nil {
		return PaymentIntent{}, fmt.Errorf("paypal create order: %w", err)
	}

	approvalURL := ""
	for _, l := range out.Links {
		if l.Rel == "approve" {
			approvalURL = l.Href
			break
		}
	}

	return PaymentIntent{
		RemoteOrderID: out.ID,
		ApprovalURL:   approvalURL,
		Amount:        in.TotalAmount,
		Currency:      in.Currency,
		Status:        out.Status,
	}, nil
}

// Capture は承認済みの支払いを確定する。
// プロセッサがCOMPLETEDを返したときだけtrue。
func (c *PayPalClient) Capture(ctx context.Context, remoteOrderID string) (bool, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return false, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost,
		"/v2/checkout/orders/"+remoteOrderID+"/capture", token, struct{}{})
	if err != nil {
		return false, err
	}

	var out orderResponse
	if err := c.do(req, &out); err != nil {
		return false, fmt.Errorf("paypal capture: %w", err)
	}
	return out.Status == "COMPLETED", nil
}

func (c *PayPalClient) GetStatus(ctx context.Context, remoteOrderID string) (string, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/checkout/orders/"+remoteOrderID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out orderResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("paypal get order: %w", err)
	}
	return out.Status, nil
}

func (c *PayPalClient) Refund(ctx context.Context, captureID string, amount decimal.Decimal, currency string) (bool, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return false, err
	}

	body := struct {
		Amount money `json:"amount"`
	}{
		Amount: money{CurrencyCode: currency, Value: amount.StringFixed(2)},
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost,
		"/v2/payments/captures/"+captureID+"/refund", token, body)
	if err != nil {
		return false, err
	}

	var out orderResponse
	if err := c.do(req, &out); err != nil {
		return false, fmt.Errorf("paypal refund: %w", err)
	}
	return out.Status == "COMPLETED", nil
}

func (c *PayPalClient) newJSONRequest(ctx context.Context, method, path, token string, body interface{}) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	// 二重実行防止のリクエストID
	req.Header.Set("PayPal-Request-Id", uuid.NewString())
	return req, nil
}

func (c *PayPalClient) do(req *http.Request, out interface{}) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", res.StatusCode, string(raw))
	}
	return json.Unmarshal(raw, out)
}
