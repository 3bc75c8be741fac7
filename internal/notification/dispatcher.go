package notification

import (
	"context"

	"app/internal/metrics"

	"go.uber.org/zap"
)

// Notifier は1つの配信経路。
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev OrderEvent) error
}

// Dispatcher は同じOrderEventを各経路へ流す。
// 経路の失敗はログとカウンタに落として握りつぶす。
// 注文処理（作成・取消・更新）を失敗させてはならない。
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
}

func NewDispatcher(logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev OrderEvent) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			metrics.NotificationFailures.WithLabelValues(n.Name()).Inc()
			d.logger.Error("notification delivery failed",
				zap.String("path", n.Name()),
				zap.Int64("order_id", ev.OrderID),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}
