package notification

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// イベントバスのトピック。カテゴリごとに分ける。
const (
	TopicOrderNotifications   = "order-notifications"
	TopicOrderStatusUpdates   = "order-status-updates"
	TopicPaymentNotifications = "payment-notifications"
)

// topicFor はイベント種別から発行先トピックを決める。
func topicFor(t EventType) string {
	switch t {
	case EventOrderCreated, EventOrderConfirmed:
		return TopicOrderNotifications
	case EventPaymentCompleted:
		return TopicPaymentNotifications
	default:
		return TopicOrderStatusUpdates
	}
}

// BusNotifier はイベントバス経路。注文IDをキーにJSONで発行する。
// ブローカー不達はエラーとして返し、Dispatcher側で握りつぶされる。
type BusNotifier struct {
	writer *kafka.Writer
}

func NewBusNotifier(brokers []string) *BusNotifier {
	return &BusNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

func (n *BusNotifier) Name() string { return "bus" }

func (n *BusNotifier) Notify(ctx context.Context, ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return n.writer.WriteMessages(ctx, kafka.Message{
		Topic: topicFor(ev.Type),
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: payload,
	})
}

func (n *BusNotifier) Close() error {
	return n.writer.Close()
}

// NoopBusNotifier はバス無効時に差し込むno-op実装。
// ワークフロー側にnilチェックを散らさないための器。
type NoopBusNotifier struct{}

func (NoopBusNotifier) Name() string { return "bus" }

func (NoopBusNotifier) Notify(ctx context.Context, ev OrderEvent) error { return nil }
