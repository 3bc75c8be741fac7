package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//遷移は複数フィールドを同時に書くのでレコード単位で保存する
	Save(ctx context.Context, order model.Order) error

	//支払いインテントの紐付けは2列だけ条件付きで更新する。
	//取消・配達済み・支払い済みには紐付けない（false）。
	//ゲートウェイ往復中に取消が割り込んでも他の列を巻き戻さないため。
	AttachPaymentIntent(ctx context.Context, orderID int64, paypalOrderID string, paymentMethod string) (bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
