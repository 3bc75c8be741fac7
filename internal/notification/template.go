package notification

import (
	"fmt"
	"html"
	"strings"
)

type subjectPair struct {
	user  string
	admin string
}

var subjects = map[EventType]subjectPair{
	EventOrderCreated:     {"Order Confirmation", "[ADMIN] New Order Received"},
	EventOrderConfirmed:   {"Order Confirmed", "[ADMIN] Order Confirmed"},
	EventPaymentCompleted: {"Payment Received", "[ADMIN] Payment Received"},
	EventOrderShipped:     {"Order Shipped", "[ADMIN] Order Shipped"},
	EventOrderDelivered:   {"Order Delivered", "[ADMIN] Order Delivered"},
	EventOrderCancelled:   {"Order Cancelled", "[ADMIN] Order Cancelled"},
}

// buildSubject は "Order Confirmed - Order #42" の形にする。
func buildSubject(ev OrderEvent, forAdmin bool) (string, bool) {
	p, ok := subjects[ev.Type]
	if !ok {
		return "", false
	}
	s := p.user
	if forAdmin {
		s = p.admin
	}
	return fmt.Sprintf("%s - Order #%d", s, ev.OrderID), true
}

func headlineFor(t EventType) string {
	switch t {
	case EventOrderCreated:
		return "Thank you for your order!"
	case EventOrderConfirmed:
		return "Your order has been confirmed."
	case EventPaymentCompleted:
		return "We have received your payment."
	case EventOrderShipped:
		return "Your order is on its way."
	case EventOrderDelivered:
		return "Your order has been delivered."
	case EventOrderCancelled:
		return "Your order has been cancelled."
	default:
		return "Your order has been updated."
	}
}

// renderOrderEmailHTML はイベント種別ごとの本文を組み立てる。
func renderOrderEmailHTML(ev OrderEvent, forAdmin bool) string {
	var b strings.Builder

	b.WriteString("<html><body>")
	if forAdmin {
		fmt.Fprintf(&b, "<h2>Order #%d (%s)</h2>", ev.OrderID, html.EscapeString(string(ev.Type)))
		fmt.Fprintf(&b, "<p>Customer: %s &lt;%s&gt;</p>",
			html.EscapeString(ev.UserName), html.EscapeString(ev.UserEmail))
	} else {
		fmt.Fprintf(&b, "<h2>%s</h2>", headlineFor(ev.Type))
		fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(ev.UserName))
		fmt.Fprintf(&b, "<p>Order #%d</p>", ev.OrderID)
	}

	b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Product</th><th>Qty</th><th>Price</th></tr>")
	for _, it := range ev.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>$%s</td></tr>",
			html.EscapeString(it.ProductName), it.Quantity, it.Price.StringFixed(2))
	}
	b.WriteString("</table>")

	fmt.Fprintf(&b, "<p>Shipping: $%s<br>Tax: $%s<br><b>Total: $%s</b></p>",
		ev.ShippingFee.StringFixed(2), ev.TaxAmount.StringFixed(2), ev.TotalAmount.StringFixed(2))

	fmt.Fprintf(&b, "<p>Status: %s / Payment: %s (%s)</p>",
		ev.OrderStatus, ev.PaymentStatus, html.EscapeString(ev.PaymentMethod))

	fmt.Fprintf(&b, "<p>Shipping address: %s</p>", html.EscapeString(ev.ShippingAddress))

	if ev.TrackingNumber != "" {
		fmt.Fprintf(&b, "<p>Tracking number: %s</p>", html.EscapeString(ev.TrackingNumber))
	}
	if ev.EstimatedDeliveryDate != nil {
		fmt.Fprintf(&b, "<p>Estimated delivery: %s</p>", ev.EstimatedDeliveryDate.Format("2006-01-02"))
	}

	b.WriteString("</body></html>")
	return b.String()
}
