package notification

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// 購読側のconsumer group
const ConsumerGroupID = "order-notification-group"

// Consumer はバスの3トピックを購読して自前のメール配信を行う。
// 発行側のトランザクションからは時間も失敗面も切り離されている。
type Consumer struct {
	brokers []string
	groupID string
	mailer  Mailer
	logger  *zap.Logger
}

func NewConsumer(brokers []string, groupID string, mailer Mailer, logger *zap.Logger) *Consumer {
	return &Consumer{brokers: brokers, groupID: groupID, mailer: mailer, logger: logger}
}

// Run はctxが閉じるまで購読し続ける。
func (c *Consumer) Run(ctx context.Context) {
	topics := []string{
		TopicOrderNotifications,
		TopicOrderStatusUpdates,
		TopicPaymentNotifications,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			c.consumeTopic(ctx, topic)
		}(topic)
	}
	wg.Wait()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		GroupID:  c.groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("read message failed", zap.String("topic", topic), zap.Error(err))
			return
		}

		var ev OrderEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.logger.Error("malformed order event",
				zap.String("topic", topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			continue
		}

		c.handle(ev, topic, m.Offset)
	}
}

// handle は1件のイベントをメールにして送る。失敗してもオフセットは進む。
func (c *Consumer) handle(ev OrderEvent, topic string, offset int64) {
	c.logger.Info("received order event",
		zap.String("topic", topic),
		zap.Int64("offset", offset),
		zap.Int64("order_id", ev.OrderID),
		zap.String("type", string(ev.Type)),
	)

	subject, ok := buildSubject(ev, false)
	if !ok {
		c.logger.Warn("unknown event type", zap.String("type", string(ev.Type)))
		return
	}
	if ev.UserEmail == "" {
		c.logger.Warn("order event without recipient", zap.Int64("order_id", ev.OrderID))
		return
	}

	if err := c.mailer.Send(ev.UserEmail, subject, renderOrderEmailHTML(ev, false)); err != nil {
		c.logger.Error("email delivery failed",
			zap.Int64("order_id", ev.OrderID),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("order event processed", zap.Int64("order_id", ev.OrderID))
}
